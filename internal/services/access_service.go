package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"paygate/internal/models/db_models"
	"paygate/internal/repositories"
	"paygate/pkg/jobqueue"
	"paygate/pkg/utils"
)

type AccessServiceInterface interface {
	OnGranted(ctx context.Context, transactionID uuid.UUID) (db_models.AccessOutcome, error)
	OnRevoked(ctx context.Context, transactionID uuid.UUID) (db_models.AccessOutcome, error)
	HandleTransition(ctx context.Context, event TransitionEvent) error
	HandleReconcileJob(ctx context.Context, job *jobqueue.Job) error
}

// AccessService keeps gated channel membership in line with payment status.
// Every step re-reads current state, so redelivered events are harmless.
type AccessService struct {
	txns     repositories.TransactionRepository
	bots     repositories.BotRepository
	contacts repositories.ContactRepository
	channels repositories.ChannelRepository
	audits   repositories.AuditRepository
	client   ChannelClient
	jobs     JobEnqueuer
	log      *zap.Logger
	now      func() time.Time
}

func NewAccessService(
	txns repositories.TransactionRepository,
	bots repositories.BotRepository,
	contacts repositories.ContactRepository,
	channels repositories.ChannelRepository,
	audits repositories.AuditRepository,
	client ChannelClient,
	jobs JobEnqueuer,
	log *zap.Logger,
) *AccessService {
	return &AccessService{
		txns:     txns,
		bots:     bots,
		contacts: contacts,
		channels: channels,
		audits:   audits,
		client:   client,
		jobs:     jobs,
		log:      log.Named("access"),
		now:      time.Now,
	}
}

// target is everything a reconcile step needs, loaded fresh.
type target struct {
	txn     *db_models.Transaction
	channel *db_models.GatedChannel
	contact *db_models.Contact
}

func (s *AccessService) load(ctx context.Context, txn *db_models.Transaction) (*target, string, error) {
	channel, err := s.channels.FindByPlan(ctx, txn.BotID, txn.PlanID)
	if err != nil {
		return nil, "", err
	}
	if channel == nil {
		return nil, "no gated channel for plan", nil
	}
	contact, err := s.contacts.FindByID(ctx, txn.ContactID)
	if err != nil {
		return nil, "", err
	}
	if contact == nil {
		return nil, "contact not found", nil
	}
	return &target{txn: txn, channel: channel, contact: contact}, "", nil
}

func (s *AccessService) OnGranted(ctx context.Context, transactionID uuid.UUID) (db_models.AccessOutcome, error) {
	txn, err := s.txns.FindByID(ctx, transactionID)
	if err != nil {
		return db_models.OutcomeFailed, err
	}
	if txn == nil {
		return db_models.OutcomeSkipped, utils.ErrTransactionNotFound
	}
	if !txn.Status.IsGranted() {
		return s.record(ctx, db_models.AccessGrant, txn, nil, db_models.OutcomeSkipped,
			fmt.Sprintf("status %s is no longer granted", txn.Status)), nil
	}

	t, reason, err := s.load(ctx, txn)
	if err != nil {
		return db_models.OutcomeFailed, err
	}
	if t == nil {
		return s.record(ctx, db_models.AccessGrant, txn, nil, db_models.OutcomeSkipped, reason), nil
	}

	membership, err := s.channels.FindMembership(ctx, t.channel.ID, t.contact.ID)
	if err != nil {
		return db_models.OutcomeFailed, err
	}
	if membership.Active() {
		return s.record(ctx, db_models.AccessGrant, txn, t, db_models.OutcomeAlreadyMember, ""), nil
	}

	bot, err := s.bots.FindByID(ctx, txn.BotID)
	if err != nil {
		return db_models.OutcomeFailed, err
	}
	if bot == nil {
		return s.record(ctx, db_models.AccessGrant, txn, t, db_models.OutcomeSkipped, "bot not found"), nil
	}

	invite, err := s.inviteLink(ctx, bot, t.channel)
	if err != nil {
		s.record(ctx, db_models.AccessGrant, txn, t, db_models.OutcomeFailed, err.Error())
		return db_models.OutcomeFailed, fmt.Errorf("invite link: %w", err)
	}

	outcome := db_models.OutcomeAdded
	if err := s.client.AddMember(ctx, bot, t.channel, t.contact, invite); err != nil {
		switch {
		case errors.Is(err, ErrAlreadyMember):
			outcome = db_models.OutcomeAlreadyMember
		case errors.Is(err, ErrRecipientUnreachable):
			markUnreachable(ctx, s.contacts, t.contact, s.log)
			s.record(ctx, db_models.AccessGrant, txn, t, db_models.OutcomeFailed, err.Error())
			return db_models.OutcomeFailed, err
		default:
			s.record(ctx, db_models.AccessGrant, txn, t, db_models.OutcomeFailed, err.Error())
			return db_models.OutcomeFailed, fmt.Errorf("add member: %w", err)
		}
	}

	joined := s.now().Unix()
	err = s.channels.UpsertMembership(ctx, &db_models.ChannelMembership{
		ChannelID:     t.channel.ID,
		ContactID:     t.contact.ID,
		TransactionID: txn.ID,
		Status:        db_models.MembershipMember,
		JoinedAt:      &joined,
	})
	if err != nil {
		return db_models.OutcomeFailed, fmt.Errorf("save membership: %w", err)
	}

	return s.record(ctx, db_models.AccessGrant, txn, t, outcome, ""), nil
}

func (s *AccessService) OnRevoked(ctx context.Context, transactionID uuid.UUID) (db_models.AccessOutcome, error) {
	txn, err := s.txns.FindByID(ctx, transactionID)
	if err != nil {
		return db_models.OutcomeFailed, err
	}
	if txn == nil {
		return db_models.OutcomeSkipped, utils.ErrTransactionNotFound
	}
	if !txn.Status.IsRevoked() {
		return s.record(ctx, db_models.AccessRevoke, txn, nil, db_models.OutcomeSkipped,
			fmt.Sprintf("status %s is not revoked", txn.Status)), nil
	}

	t, reason, err := s.load(ctx, txn)
	if err != nil {
		return db_models.OutcomeFailed, err
	}
	if t == nil {
		return s.record(ctx, db_models.AccessRevoke, txn, nil, db_models.OutcomeSkipped, reason), nil
	}

	renewed, err := s.txns.HasGrantedForPlan(ctx, txn.ContactID, txn.PlanID, txn.ID)
	if err != nil {
		return db_models.OutcomeFailed, err
	}
	if renewed {
		return s.record(ctx, db_models.AccessRevoke, txn, t, db_models.OutcomeKept,
			"another granted transaction covers the plan"), nil
	}

	membership, err := s.channels.FindMembership(ctx, t.channel.ID, t.contact.ID)
	if err != nil {
		return db_models.OutcomeFailed, err
	}
	if !membership.Active() {
		return s.record(ctx, db_models.AccessRevoke, txn, t, db_models.OutcomeNotMember, ""), nil
	}

	bot, err := s.bots.FindByID(ctx, txn.BotID)
	if err != nil {
		return db_models.OutcomeFailed, err
	}
	if bot == nil {
		return s.record(ctx, db_models.AccessRevoke, txn, t, db_models.OutcomeSkipped, "bot not found"), nil
	}

	outcome := db_models.OutcomeRemoved
	if err := s.client.RemoveMember(ctx, bot, t.channel, t.contact); err != nil {
		if !errors.Is(err, ErrNotMember) {
			s.record(ctx, db_models.AccessRevoke, txn, t, db_models.OutcomeFailed, err.Error())
			return db_models.OutcomeFailed, fmt.Errorf("remove member: %w", err)
		}
		outcome = db_models.OutcomeNotMember
	}

	removed := s.now().Unix()
	err = s.channels.UpsertMembership(ctx, &db_models.ChannelMembership{
		ChannelID:     t.channel.ID,
		ContactID:     t.contact.ID,
		TransactionID: txn.ID,
		Status:        db_models.MembershipRemoved,
		JoinedAt:      membership.JoinedAt,
		RemovedAt:     &removed,
	})
	if err != nil {
		return db_models.OutcomeFailed, fmt.Errorf("save membership: %w", err)
	}

	return s.record(ctx, db_models.AccessRevoke, txn, t, outcome, ""), nil
}

// HandleTransition is the event bus subscriber. A failed reaction is handed
// to the dispatcher as an access.reconcile job so the bounded retry applies.
func (s *AccessService) HandleTransition(ctx context.Context, event TransitionEvent) error {
	err := s.reconcile(ctx, event.TransactionID, event.Kind)
	if err == nil || errors.Is(err, utils.ErrTransactionNotFound) || errors.Is(err, ErrRecipientUnreachable) {
		return err
	}

	job := &jobqueue.Job{
		Kind:    JobAccessReconcile,
		Payload: AccessReconcilePayload{TransactionID: event.TransactionID, Kind: event.Kind},
	}
	// the retry must be queued even when the reaction ran out of time
	if enqueueErr := s.jobs.Enqueue(context.WithoutCancel(ctx), job); enqueueErr != nil {
		return errors.Join(err, fmt.Errorf("enqueue reconcile retry: %w", enqueueErr))
	}
	s.log.Warn("reconcile failed, retry queued",
		zap.String("transaction_id", event.TransactionID.String()),
		zap.String("event", string(event.Kind)),
		zap.String("job_id", job.ID),
		zap.Error(err))
	return nil
}

func (s *AccessService) HandleReconcileJob(ctx context.Context, job *jobqueue.Job) error {
	payload, ok := job.Payload.(AccessReconcilePayload)
	if !ok {
		return jobqueue.Permanent(fmt.Errorf("unexpected payload %T", job.Payload))
	}

	err := s.reconcile(ctx, payload.TransactionID, payload.Kind)
	switch {
	case errors.Is(err, utils.ErrTransactionNotFound), errors.Is(err, ErrRecipientUnreachable):
		return jobqueue.Skip(err)
	default:
		return err
	}
}

func (s *AccessService) reconcile(ctx context.Context, transactionID uuid.UUID, kind TransitionKind) error {
	var err error
	switch kind {
	case TransitionGranted:
		_, err = s.OnGranted(ctx, transactionID)
	case TransitionRevoked:
		_, err = s.OnRevoked(ctx, transactionID)
	default:
		return jobqueue.Permanent(fmt.Errorf("unknown transition %q", kind))
	}
	return err
}

// inviteLink reuses the cached invite or creates one; when two grants race
// the first stored link wins.
func (s *AccessService) inviteLink(ctx context.Context, bot *db_models.Bot, channel *db_models.GatedChannel) (string, error) {
	if channel.InviteLink != "" {
		return channel.InviteLink, nil
	}
	link, err := s.client.CreateInviteLink(ctx, bot, channel)
	if err != nil {
		return "", err
	}
	stored, err := s.channels.SaveInviteLink(ctx, channel.ID, link)
	if err != nil {
		return "", err
	}
	channel.InviteLink = stored
	return stored, nil
}

func (s *AccessService) record(ctx context.Context, action db_models.AccessAction, txn *db_models.Transaction, t *target, outcome db_models.AccessOutcome, detail string) db_models.AccessOutcome {
	audit := &db_models.AccessAudit{
		TransactionID: txn.ID,
		Action:        action,
		Outcome:       outcome,
		Detail:        detail,
	}
	contactID := txn.ContactID
	audit.ContactID = &contactID
	if t != nil {
		channelID := t.channel.ID
		audit.ChannelID = &channelID
	}

	fields := []zap.Field{
		zap.String("transaction_id", txn.ID.String()),
		zap.String("action", string(action)),
		zap.String("outcome", string(outcome)),
	}
	if detail != "" {
		fields = append(fields, zap.String("detail", detail))
	}
	if outcome == db_models.OutcomeFailed {
		s.log.Warn("access reconcile", fields...)
	} else {
		s.log.Info("access reconcile", fields...)
	}

	if err := s.audits.Record(ctx, audit); err != nil {
		s.log.Warn("write access audit", append(fields, zap.Error(err))...)
	}
	return outcome
}
