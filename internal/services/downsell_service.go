package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"paygate/internal/models/db_models"
	"paygate/internal/models/response_models"
	"paygate/internal/repositories"
	"paygate/pkg/jobqueue"
)

const defaultDownsellBatch = 200

type DownsellServiceInterface interface {
	ScheduleDue(ctx context.Context) (response_models.DownsellScanSummary, error)
	Trigger(ctx context.Context, deliveryID uuid.UUID) error
	HandleDeliveryJob(ctx context.Context, job *jobqueue.Job) error
}

// DownsellService reserves one delivery per (downsell, transaction) once the
// delay has elapsed and sends it through the dispatcher. Eligibility is
// re-checked when the job runs, not when it is scheduled.
type DownsellService struct {
	downsells repositories.DownsellRepository
	txns      repositories.TransactionRepository
	contacts  repositories.ContactRepository
	bots      repositories.BotRepository
	client    ChannelClient
	jobs      JobEnqueuer
	batchSize int
	log       *zap.Logger
	now       func() time.Time
}

func NewDownsellService(
	downsells repositories.DownsellRepository,
	txns repositories.TransactionRepository,
	contacts repositories.ContactRepository,
	bots repositories.BotRepository,
	client ChannelClient,
	jobs JobEnqueuer,
	batchSize int,
	log *zap.Logger,
) *DownsellService {
	if batchSize <= 0 {
		batchSize = defaultDownsellBatch
	}
	return &DownsellService{
		downsells: downsells,
		txns:      txns,
		contacts:  contacts,
		bots:      bots,
		client:    client,
		jobs:      jobs,
		batchSize: batchSize,
		log:       log.Named("downsells"),
		now:       time.Now,
	}
}

func (s *DownsellService) ScheduleDue(ctx context.Context) (response_models.DownsellScanSummary, error) {
	var summary response_models.DownsellScanSummary

	downsells, err := s.downsells.ListActive(ctx)
	if err != nil {
		return summary, fmt.Errorf("list active downsells: %w", err)
	}
	summary.Downsells = len(downsells)

	now := s.now()
	for i := range downsells {
		downsell := &downsells[i]
		log := s.log.With(zap.String("downsell_id", downsell.ID.String()))

		status, ok := downsell.TriggerEvent.TransactionStatus()
		if !ok {
			log.Warn("unknown trigger event", zap.String("trigger_event", string(downsell.TriggerEvent)))
			summary.Failed++
			continue
		}

		cutoff := now.Add(-time.Duration(downsell.DelayMinutes) * time.Minute).Unix()
		txns, err := s.txns.ListAwaitingDownsell(ctx, downsell, status, cutoff, s.batchSize)
		if err != nil {
			log.Error("list transactions awaiting downsell", zap.Error(err))
			summary.Failed++
			continue
		}

		for _, txn := range txns {
			s.schedule(ctx, log, downsell, txn.ID, &summary)
		}
	}

	return summary, nil
}

func (s *DownsellService) schedule(ctx context.Context, log *zap.Logger, downsell *db_models.Downsell, txnID uuid.UUID, summary *response_models.DownsellScanSummary) {
	delivery, created, err := s.downsells.ReserveDelivery(ctx, downsell.ID, txnID)
	if err != nil {
		log.Error("reserve downsell delivery", zap.String("transaction_id", txnID.String()), zap.Error(err))
		return
	}
	if !created {
		return
	}
	summary.Reserved++

	job := &jobqueue.Job{
		Kind:    JobDownsellDelivery,
		Payload: DownsellDeliveryPayload{DeliveryID: delivery.ID},
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		summary.EnqueueErrors++
		log.Error("enqueue downsell delivery", zap.String("delivery_id", delivery.ID.String()), zap.Error(err))
		if err := s.downsells.ReleaseDelivery(ctx, delivery.ID); err != nil {
			log.Error("release downsell reservation", zap.String("delivery_id", delivery.ID.String()), zap.Error(err))
		}
		return
	}
	summary.JobsEnqueued++
}

// Trigger executes one reserved delivery. Preconditions that no longer hold
// end the job as a skip; the quota is consumed atomically before sending and
// only once per delivery.
func (s *DownsellService) Trigger(ctx context.Context, deliveryID uuid.UUID) error {
	delivery, err := s.downsells.FindDelivery(ctx, deliveryID)
	if err != nil {
		return err
	}
	if delivery == nil {
		return jobqueue.Skip(errors.New("delivery not found"))
	}
	if delivery.Status != db_models.DeliveryScheduled {
		return jobqueue.Skip(fmt.Errorf("delivery already %s", delivery.Status))
	}

	downsell, err := s.downsells.FindByID(ctx, delivery.DownsellID)
	if err != nil {
		return err
	}
	if downsell == nil {
		return s.skip(ctx, delivery, "downsell not found")
	}
	if !delivery.UsageCounted && !downsell.CanBeUsed() {
		return s.skip(ctx, delivery, "downsell inactive or quota exhausted")
	}

	txn, err := s.txns.FindByID(ctx, delivery.TransactionID)
	if err != nil {
		return err
	}
	wanted, _ := downsell.TriggerEvent.TransactionStatus()
	if txn == nil || txn.Status != wanted {
		return s.skip(ctx, delivery, "transaction left the trigger status")
	}

	contact, err := s.contacts.FindByID(ctx, txn.ContactID)
	if err != nil {
		return err
	}
	if contact == nil || contact.IsBlocked {
		return s.skip(ctx, delivery, "recipient missing or blocked")
	}
	bot, err := s.bots.FindByID(ctx, txn.BotID)
	if err != nil {
		return err
	}
	if bot == nil || !bot.IsActive {
		return s.skip(ctx, delivery, "bot inactive")
	}

	if !delivery.UsageCounted {
		consumed, err := s.downsells.ConsumeForDelivery(ctx, delivery.ID, downsell.ID)
		if err != nil {
			return fmt.Errorf("consume downsell quota: %w", err)
		}
		if !consumed {
			return s.skip(ctx, delivery, "quota exhausted")
		}
	}

	if err := s.client.SendText(ctx, bot, contact, RenderDownsellMessage(downsell, contact)); err != nil {
		if errors.Is(err, ErrRecipientUnreachable) {
			markUnreachable(ctx, s.contacts, contact, s.log)
			return s.skip(ctx, delivery, err.Error())
		}
		return fmt.Errorf("send downsell: %w", err)
	}

	if downsell.MediaURL != "" {
		if err := s.client.SendMedia(ctx, bot, contact, downsell.MediaURL); err != nil {
			s.log.Warn("downsell media not delivered",
				zap.String("delivery_id", delivery.ID.String()),
				zap.Error(err))
		}
	}

	if err := s.downsells.MarkDelivery(ctx, delivery.ID, db_models.DeliverySent); err != nil {
		s.log.Warn("mark downsell delivery sent", zap.String("delivery_id", delivery.ID.String()), zap.Error(err))
	}
	s.log.Info("downsell sent",
		zap.String("downsell_id", downsell.ID.String()),
		zap.String("transaction_id", txn.ID.String()))
	return nil
}

func (s *DownsellService) HandleDeliveryJob(ctx context.Context, job *jobqueue.Job) error {
	payload, ok := job.Payload.(DownsellDeliveryPayload)
	if !ok {
		return jobqueue.Permanent(fmt.Errorf("unexpected payload %T", job.Payload))
	}
	return s.Trigger(ctx, payload.DeliveryID)
}

func (s *DownsellService) skip(ctx context.Context, delivery *db_models.DownsellDelivery, reason string) error {
	if err := s.downsells.MarkDelivery(ctx, delivery.ID, db_models.DeliverySkipped); err != nil {
		s.log.Warn("mark downsell delivery skipped", zap.String("delivery_id", delivery.ID.String()), zap.Error(err))
	}
	return jobqueue.Skip(errors.New(reason))
}

// RenderDownsellMessage fills the {price} and {name} placeholders.
func RenderDownsellMessage(downsell *db_models.Downsell, contact *db_models.Contact) string {
	name := contact.FirstName
	if name == "" {
		name = contact.Username
	}
	return strings.NewReplacer(
		"{price}", downsell.Price.StringFixed(2),
		"{name}", name,
	).Replace(downsell.Message)
}
