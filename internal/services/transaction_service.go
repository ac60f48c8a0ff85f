package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"paygate/internal/models/db_models"
	"paygate/internal/models/request_models"
	"paygate/internal/repositories"
	"paygate/pkg/utils"
)

const (
	maxStatusCASAttempts = 3

	// reactionTimeout bounds the synchronous reaction to a stored transition.
	reactionTimeout = 30 * time.Second
)

// TransitionResult reports what ApplyStatusChange did. Accepted is false for
// a no-op, in which case no event fired.
type TransitionResult struct {
	Accepted bool
	Previous db_models.TransactionStatus
	Current  db_models.TransactionStatus
	Events   []TransitionKind
}

type TransactionServiceInterface interface {
	CreateTransaction(ctx context.Context, req request_models.CreateTransactionRequest) (*db_models.Transaction, []TransitionKind, error)
	ApplyStatusChange(ctx context.Context, id uuid.UUID, newStatus db_models.TransactionStatus) (TransitionResult, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*db_models.Transaction, error)
}

type TransactionService struct {
	txns   repositories.TransactionRepository
	plans  repositories.IPlanRepository
	events EventPublisher
	log    *zap.Logger
	now    func() time.Time
}

func NewTransactionService(
	txns repositories.TransactionRepository,
	plans repositories.IPlanRepository,
	events EventPublisher,
	log *zap.Logger,
) *TransactionService {
	return &TransactionService{
		txns:   txns,
		plans:  plans,
		events: events,
		log:    log.Named("transactions"),
		now:    time.Now,
	}
}

func ParseStatus(raw string) (db_models.TransactionStatus, error) {
	status := db_models.TransactionStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", utils.ErrInvalidStatus, raw)
	}
	return status, nil
}

// CreateTransaction starts a payment flow. A transaction created directly in
// a granted status is treated as a move from pending and fires Granted.
func (s *TransactionService) CreateTransaction(ctx context.Context, req request_models.CreateTransactionRequest) (*db_models.Transaction, []TransitionKind, error) {
	status := db_models.TxnStatusPending
	if req.Status != "" {
		parsed, err := ParseStatus(req.Status)
		if err != nil {
			return nil, nil, err
		}
		status = parsed
	}

	plan, err := s.plans.FindActive(ctx, req.BotID, req.PlanID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if plan == nil {
		return nil, nil, utils.ErrPlanNotFound
	}

	txn := &db_models.Transaction{
		BotID:         req.BotID,
		ContactID:     req.ContactID,
		PlanID:        plan.ID,
		Amount:        plan.Price,
		Currency:      plan.Currency,
		Status:        status,
		Provider:      req.Provider,
		ProviderTxnID: req.ProviderTxnID,
		Metadata:      datatypes.JSONMap(req.Metadata),
	}
	now := s.now().Unix()
	if status.IsGranted() {
		txn.PaidAt = utils.Int64Ptr(now)
	}
	if err := s.txns.Create(ctx, txn); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}

	kinds := TransitionEvents(db_models.TxnStatusPending, status)
	s.publish(ctx, txn.ID, db_models.TxnStatusPending, status, kinds)
	return txn, kinds, nil
}

// ApplyStatusChange persists newStatus and then publishes the derived events.
// A subscriber failure never rolls back the stored status.
func (s *TransactionService) ApplyStatusChange(ctx context.Context, id uuid.UUID, newStatus db_models.TransactionStatus) (TransitionResult, error) {
	if !newStatus.Valid() {
		return TransitionResult{}, fmt.Errorf("%w: %q", utils.ErrInvalidStatus, newStatus)
	}

	for attempt := 1; attempt <= maxStatusCASAttempts; attempt++ {
		txn, err := s.txns.FindByID(ctx, id)
		if err != nil {
			return TransitionResult{}, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
		}
		if txn == nil {
			return TransitionResult{}, utils.ErrTransactionNotFound
		}

		previous := txn.Status
		if previous == newStatus {
			return TransitionResult{Previous: previous, Current: previous}, nil
		}

		changed, err := s.txns.CompareAndSetStatus(ctx, id, previous, newStatus, s.now().Unix())
		if err != nil {
			return TransitionResult{}, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
		}
		if !changed {
			s.log.Debug("status changed underneath, re-reading",
				zap.String("transaction_id", id.String()),
				zap.Int("attempt", attempt))
			continue
		}

		kinds := TransitionEvents(previous, newStatus)
		s.log.Info("transaction status changed",
			zap.String("transaction_id", id.String()),
			zap.String("from", string(previous)),
			zap.String("to", string(newStatus)),
			zap.Int("events", len(kinds)))
		s.publish(ctx, id, previous, newStatus, kinds)

		return TransitionResult{Accepted: true, Previous: previous, Current: newStatus, Events: kinds}, nil
	}

	return TransitionResult{}, utils.ErrConcurrentUpdate
}

func (s *TransactionService) GetTransaction(ctx context.Context, id uuid.UUID) (*db_models.Transaction, error) {
	txn, err := s.txns.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if txn == nil {
		return nil, utils.ErrTransactionNotFound
	}
	return txn, nil
}

// publish runs the reactions detached from the caller: once the status is
// stored, a disconnecting client must not cancel them, since a redelivered
// status is a no-op and would never fire the event again.
func (s *TransactionService) publish(ctx context.Context, id uuid.UUID, previous, current db_models.TransactionStatus, kinds []TransitionKind) {
	if len(kinds) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reactionTimeout)
	defer cancel()

	for _, kind := range kinds {
		event := TransitionEvent{
			Kind:          kind,
			TransactionID: id,
			Previous:      previous,
			Current:       current,
			OccurredAt:    s.now(),
		}
		if err := s.events.Publish(ctx, event); err != nil {
			s.log.Error("transition reaction failed, status kept",
				zap.String("transaction_id", id.String()),
				zap.String("event", string(kind)),
				zap.Error(err))
		}
	}
}
