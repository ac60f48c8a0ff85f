package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"paygate/internal/models/db_models"
	"paygate/internal/models/response_models"
	"paygate/internal/repositories"
	"paygate/pkg/jobqueue"
)

type AlertServiceInterface interface {
	Broadcast(ctx context.Context, botID *uuid.UUID) (response_models.BroadcastSummary, error)
	HandleDeliveryJob(ctx context.Context, job *jobqueue.Job) error
}

// AlertService selects due alerts and fans each out as one delivery job per
// recipient.
type AlertService struct {
	alerts   repositories.AlertRepository
	contacts repositories.ContactRepository
	bots     repositories.BotRepository
	audience AudienceResolver
	client   ChannelClient
	jobs     JobEnqueuer
	loc      *time.Location
	log      *zap.Logger
	now      func() time.Time
}

func NewAlertService(
	alerts repositories.AlertRepository,
	contacts repositories.ContactRepository,
	bots repositories.BotRepository,
	audience AudienceResolver,
	client ChannelClient,
	jobs JobEnqueuer,
	loc *time.Location,
	log *zap.Logger,
) *AlertService {
	if loc == nil {
		loc = time.UTC
	}
	return &AlertService{
		alerts:   alerts,
		contacts: contacts,
		bots:     bots,
		audience: audience,
		client:   client,
		jobs:     jobs,
		loc:      loc,
		log:      log.Named("alerts"),
		now:      time.Now,
	}
}

// Broadcast runs one pass. Recipients are resolved before a scheduled alert
// is claimed, so an alert without audience stays active; the claim is an
// atomic active->sent flip and only its winner enqueues.
func (s *AlertService) Broadcast(ctx context.Context, botID *uuid.UUID) (response_models.BroadcastSummary, error) {
	var summary response_models.BroadcastSummary

	now := s.now().In(s.loc)
	listed, err := s.alerts.ListEligible(ctx, now, botID)
	if err != nil {
		return summary, fmt.Errorf("list eligible alerts: %w", err)
	}
	// IsDue is authoritative over whatever the store matched
	alerts := listed[:0]
	for _, alert := range listed {
		if alert.IsDue(now) {
			alerts = append(alerts, alert)
			continue
		}
		s.log.Debug("listed alert is not due, skipped", zap.String("alert_id", alert.ID.String()))
	}
	summary.Alerts = len(alerts)

	for i := range alerts {
		alert := &alerts[i]
		log := s.log.With(zap.String("alert_id", alert.ID.String()), zap.String("type", string(alert.Type)))

		recipients, err := s.audience.Resolve(ctx, alert)
		if err != nil {
			log.Error("resolve recipients", zap.Error(err))
			summary.Failed++
			continue
		}
		if len(recipients) == 0 {
			log.Info("no recipients, alert left untouched")
			summary.NoAudience++
			continue
		}

		if alert.Type == db_models.AlertTypeScheduled {
			won, err := s.alerts.MarkSent(ctx, alert.ID)
			if err != nil {
				log.Error("claim scheduled alert", zap.Error(err))
				summary.Failed++
				continue
			}
			if !won {
				log.Info("scheduled alert claimed by another pass")
				summary.AlreadyClaimed++
				continue
			}
		}

		enqueued := 0
		for _, contact := range recipients {
			job := &jobqueue.Job{
				Kind:    JobAlertDelivery,
				Payload: AlertDeliveryPayload{AlertID: alert.ID, ContactID: contact.ID},
			}
			if err := s.jobs.Enqueue(ctx, job); err != nil {
				log.Error("enqueue alert delivery", zap.String("contact_id", contact.ID.String()), zap.Error(err))
				summary.EnqueueErrors++
				continue
			}
			enqueued++
		}
		summary.JobsEnqueued += enqueued
		summary.Dispatched++
		log.Info("alert dispatched", zap.Int("recipients", len(recipients)), zap.Int("enqueued", enqueued))
	}

	return summary, nil
}

func (s *AlertService) HandleDeliveryJob(ctx context.Context, job *jobqueue.Job) error {
	payload, ok := job.Payload.(AlertDeliveryPayload)
	if !ok {
		return jobqueue.Permanent(fmt.Errorf("unexpected payload %T", job.Payload))
	}

	alert, err := s.alerts.FindByID(ctx, payload.AlertID)
	if err != nil {
		return err
	}
	if alert == nil {
		return jobqueue.Skip(errors.New("alert no longer exists"))
	}

	contact, err := s.contacts.FindByID(ctx, payload.ContactID)
	if err != nil {
		return err
	}
	if contact == nil || contact.IsBlocked {
		return jobqueue.Skip(errors.New("recipient missing or blocked"))
	}

	bot, err := s.bots.FindByID(ctx, alert.BotID)
	if err != nil {
		return err
	}
	if bot == nil || !bot.IsActive {
		return jobqueue.Skip(errors.New("bot inactive"))
	}

	if err := s.client.SendText(ctx, bot, contact, alert.Message); err != nil {
		if errors.Is(err, ErrRecipientUnreachable) {
			markUnreachable(ctx, s.contacts, contact, s.log)
			return jobqueue.Skip(err)
		}
		return fmt.Errorf("send alert: %w", err)
	}

	if alert.MediaURL != "" {
		if err := s.client.SendMedia(ctx, bot, contact, alert.MediaURL); err != nil {
			s.log.Warn("alert media not delivered",
				zap.String("alert_id", alert.ID.String()),
				zap.String("contact_id", contact.ID.String()),
				zap.Error(err))
		}
	}

	if err := s.alerts.IncrementSentCount(ctx, alert.ID); err != nil {
		s.log.Warn("increment alert sent count", zap.String("alert_id", alert.ID.String()), zap.Error(err))
	}
	return nil
}

func markUnreachable(ctx context.Context, contacts repositories.ContactRepository, contact *db_models.Contact, log *zap.Logger) {
	log.Info("recipient unreachable, marking blocked", zap.String("contact_id", contact.ID.String()))
	if err := contacts.MarkBlocked(ctx, contact.ID); err != nil {
		log.Warn("mark contact blocked", zap.String("contact_id", contact.ID.String()), zap.Error(err))
	}
}
