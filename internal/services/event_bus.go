package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"paygate/internal/models/db_models"
)

type TransitionKind string

const (
	TransitionGranted TransitionKind = "granted"
	TransitionRevoked TransitionKind = "revoked"
)

// TransitionEvent is published after a status change has been persisted.
// Subscribers must re-read the transaction; the event is a hint, not state.
type TransitionEvent struct {
	Kind          TransitionKind
	TransactionID uuid.UUID
	Previous      db_models.TransactionStatus
	Current       db_models.TransactionStatus
	OccurredAt    time.Time
}

type TransitionHandler func(ctx context.Context, event TransitionEvent) error

type EventPublisher interface {
	Publish(ctx context.Context, event TransitionEvent) error
}

// EventBus fans transition events out to the handlers subscribed at startup.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[TransitionKind][]TransitionHandler
	log         *zap.Logger
}

func NewEventBus(log *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[TransitionKind][]TransitionHandler),
		log:         log.Named("event_bus"),
	}
}

func (b *EventBus) Subscribe(kind TransitionKind, handler TransitionHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[kind] = append(b.subscribers[kind], handler)
}

// Publish runs every subscriber of the event kind in subscription order. A
// failing subscriber does not stop the others; all failures are returned.
func (b *EventBus) Publish(ctx context.Context, event TransitionEvent) error {
	b.mu.RLock()
	handlers := append([]TransitionHandler(nil), b.subscribers[event.Kind]...)
	b.mu.RUnlock()

	var errs []error
	for i, handler := range handlers {
		if err := b.invoke(ctx, handler, event); err != nil {
			b.log.Warn("transition subscriber failed",
				zap.String("kind", string(event.Kind)),
				zap.String("transaction_id", event.TransactionID.String()),
				zap.Int("subscriber", i),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *EventBus) invoke(ctx context.Context, handler TransitionHandler, event TransitionEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transition subscriber panicked: %v", r)
		}
	}()
	return handler(ctx, event)
}

// TransitionEvents derives the events fired by moving a transaction from
// previous to next.
func TransitionEvents(previous, next db_models.TransactionStatus) []TransitionKind {
	if previous == next {
		return nil
	}
	var kinds []TransitionKind
	if next.IsGranted() && !previous.IsGranted() {
		kinds = append(kinds, TransitionGranted)
	}
	if next.IsRevoked() && previous.IsGranted() {
		kinds = append(kinds, TransitionRevoked)
	}
	return kinds
}
