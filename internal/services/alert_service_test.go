package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"paygate/internal/models/db_models"
	"paygate/pkg/jobqueue"
)

var alertNow = time.Date(2026, 10, 17, 14, 30, 0, 0, time.UTC)

func newAlertService(f *fixture, client *fakeChannelClient, jobs *fakeEnqueuer) *AlertService {
	contacts := fakeContactRepo{f.store}
	svc := NewAlertService(
		fakeAlertRepo{f.store},
		contacts,
		fakeBotRepo{f.store},
		NewAudience(contacts, CategoryAudienceFilter(), PlanAudienceFilter(contacts)),
		client,
		jobs,
		time.UTC,
		testLog,
	)
	svc.now = func() time.Time { return alertNow }
	return svc
}

func (f *fixture) addAlert(a db_models.Alert) db_models.Alert {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if a.BotID == uuid.Nil {
		a.BotID = f.bot.ID
	}
	if a.Status == "" {
		a.Status = db_models.AlertStatusActive
	}
	f.store.stamp(&a.BaseModel)
	f.store.alerts[a.ID] = a
	return a
}

func (f *fixture) alert(id uuid.UUID) db_models.Alert {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.alerts[id]
}

func strPtr(s string) *string { return &s }

func TestBroadcast_ScheduledAlertSentOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	jobs := &fakeEnqueuer{}
	svc := newAlertService(f, newFakeChannelClient(), jobs)
	second := f.addContact(db_models.Contact{TelegramID: 43, FirstName: "Bia", LanguageCode: "pt-BR"})

	alert := f.addAlert(db_models.Alert{
		Type:          db_models.AlertTypeScheduled,
		Message:       "Live tonight",
		ScheduledDate: strPtr("2026-10-17"),
	})

	summary, err := svc.Broadcast(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Dispatched)
	require.Equal(t, 2, summary.JobsEnqueued)
	require.Equal(t, db_models.AlertStatusSent, f.alert(alert.ID).Status)

	queued := jobs.byKind(JobAlertDelivery)
	require.Len(t, queued, 2)
	require.Equal(t, AlertDeliveryPayload{AlertID: alert.ID, ContactID: f.contact.ID}, queued[0].Payload)
	require.Equal(t, AlertDeliveryPayload{AlertID: alert.ID, ContactID: second.ID}, queued[1].Payload)

	summary, err = svc.Broadcast(ctx, nil)
	require.NoError(t, err)
	require.Zero(t, summary.Alerts)
	require.Len(t, jobs.byKind(JobAlertDelivery), 2)
}

func TestBroadcast_ScheduledAlertWaitsForTime(t *testing.T) {
	f := newFixture()
	jobs := &fakeEnqueuer{}
	svc := newAlertService(f, newFakeChannelClient(), jobs)

	later := f.addAlert(db_models.Alert{Type: db_models.AlertTypeScheduled, ScheduledDate: strPtr("2026-10-17"), ScheduledTime: strPtr("18:00:00")})
	tomorrow := f.addAlert(db_models.Alert{Type: db_models.AlertTypeScheduled, ScheduledDate: strPtr("2026-10-18")})

	summary, err := svc.Broadcast(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, summary.Alerts)
	require.Equal(t, db_models.AlertStatusActive, f.alert(later.ID).Status)
	require.Equal(t, db_models.AlertStatusActive, f.alert(tomorrow.ID).Status)
}

// looseAlertRepo lists every alert of the bot, due or not.
type looseAlertRepo struct{ fakeAlertRepo }

func (r looseAlertRepo) ListEligible(_ context.Context, _ time.Time, _ *uuid.UUID) ([]db_models.Alert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]db_models.Alert, 0, len(r.s.alerts))
	for _, a := range r.s.alerts {
		out = append(out, a)
	}
	return out, nil
}

func TestBroadcast_SkipsListedAlertsThatAreNotDue(t *testing.T) {
	f := newFixture()
	jobs := &fakeEnqueuer{}
	svc := newAlertService(f, newFakeChannelClient(), jobs)
	svc.alerts = looseAlertRepo{fakeAlertRepo{f.store}}

	tomorrow := f.addAlert(db_models.Alert{Type: db_models.AlertTypeScheduled, ScheduledDate: strPtr("2026-10-18")})
	f.addAlert(db_models.Alert{Type: db_models.AlertTypeCommon, Status: db_models.AlertStatusSent})
	due := f.addAlert(db_models.Alert{Type: db_models.AlertTypeScheduled, ScheduledDate: strPtr("2026-10-17"), ScheduledTime: strPtr("09:00:00")})

	summary, err := svc.Broadcast(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Alerts)
	require.Equal(t, 1, summary.Dispatched)
	require.Equal(t, db_models.AlertStatusActive, f.alert(tomorrow.ID).Status)
	require.Equal(t, db_models.AlertStatusSent, f.alert(due.ID).Status)

	queued := jobs.byKind(JobAlertDelivery)
	require.Len(t, queued, 1)
	require.Equal(t, AlertDeliveryPayload{AlertID: due.ID, ContactID: f.contact.ID}, queued[0].Payload)
}

func TestBroadcast_CommonAlertRecurs(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	jobs := &fakeEnqueuer{}
	svc := newAlertService(f, newFakeChannelClient(), jobs)
	alert := f.addAlert(db_models.Alert{Type: db_models.AlertTypeCommon, Message: "Daily tip"})

	for i := 0; i < 3; i++ {
		_, err := svc.Broadcast(ctx, nil)
		require.NoError(t, err)
	}
	require.Len(t, jobs.byKind(JobAlertDelivery), 3)
	require.Equal(t, db_models.AlertStatusActive, f.alert(alert.ID).Status)
}

func TestBroadcast_NoAudienceLeavesAlertActive(t *testing.T) {
	f := newFixture()
	jobs := &fakeEnqueuer{}
	svc := newAlertService(f, newFakeChannelClient(), jobs)

	alert := f.addAlert(db_models.Alert{
		Type:           db_models.AlertTypeScheduled,
		ScheduledDate:  strPtr("2026-10-01"),
		LanguageFilter: "es",
	})

	summary, err := svc.Broadcast(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.NoAudience)
	require.Empty(t, jobs.byKind(JobAlertDelivery))
	require.Equal(t, db_models.AlertStatusActive, f.alert(alert.ID).Status)
}

func TestBroadcast_EnqueueFailureDoesNotSkipSiblings(t *testing.T) {
	f := newFixture()
	jobs := &fakeEnqueuer{failOn: map[int]bool{1: true}}
	svc := newAlertService(f, newFakeChannelClient(), jobs)
	second := f.addContact(db_models.Contact{TelegramID: 43, FirstName: "Bia"})
	f.addAlert(db_models.Alert{Type: db_models.AlertTypeCommon, Message: "one"})
	f.addAlert(db_models.Alert{Type: db_models.AlertTypeCommon, Message: "two"})

	summary, err := svc.Broadcast(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.EnqueueErrors)
	require.Equal(t, 3, summary.JobsEnqueued)
	require.Equal(t, 2, summary.Dispatched)

	queued := jobs.byKind(JobAlertDelivery)
	require.Equal(t, second.ID, queued[0].Payload.(AlertDeliveryPayload).ContactID)
}

func TestBroadcast_FiltersByBotCategoryAndPlan(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	jobs := &fakeEnqueuer{}
	svc := newAlertService(f, newFakeChannelClient(), jobs)

	vip := f.addContact(db_models.Contact{TelegramID: 43, Category: "vip"})
	f.addContact(db_models.Contact{TelegramID: 44, Category: "vip", IsBot: true})
	f.addContact(db_models.Contact{TelegramID: 45, Category: "lead"})
	f.addAlert(db_models.Alert{Type: db_models.AlertTypeCommon, CategoryFilter: "VIP"})
	f.addAlert(db_models.Alert{Type: db_models.AlertTypeCommon, BotID: uuid.New()})

	botID := f.bot.ID
	summary, err := svc.Broadcast(ctx, &botID)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Alerts)
	queued := jobs.byKind(JobAlertDelivery)
	require.Len(t, queued, 1)
	require.Equal(t, vip.ID, queued[0].Payload.(AlertDeliveryPayload).ContactID)

	planID := f.plan.ID
	f.addTransaction(db_models.TxnStatusPaid)
	planAlert := f.addAlert(db_models.Alert{Type: db_models.AlertTypeScheduled, ScheduledDate: strPtr("2026-10-17"), PlanFilter: &planID})
	delete(f.store.alerts, queued[0].Payload.(AlertDeliveryPayload).AlertID)

	_, err = svc.Broadcast(ctx, &botID)
	require.NoError(t, err)
	queued = jobs.byKind(JobAlertDelivery)
	require.Len(t, queued, 2)
	require.Equal(t, AlertDeliveryPayload{AlertID: planAlert.ID, ContactID: f.contact.ID}, queued[1].Payload)
}

func TestAlertDelivery(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	client := newFakeChannelClient()
	svc := newAlertService(f, client, &fakeEnqueuer{})
	alert := f.addAlert(db_models.Alert{Type: db_models.AlertTypeCommon, Message: "Promo", MediaURL: "https://cdn.example/promo.jpg"})

	job := &jobqueue.Job{Kind: JobAlertDelivery, Payload: AlertDeliveryPayload{AlertID: alert.ID, ContactID: f.contact.ID}}
	require.NoError(t, svc.HandleDeliveryJob(ctx, job))
	require.Equal(t, []string{"Promo"}, client.texts())
	require.Equal(t, 1, f.alert(alert.ID).SentCount)

	// media failure is logged only
	client.mediaErr = errors.New("bad media")
	require.NoError(t, svc.HandleDeliveryJob(ctx, job))
	require.Equal(t, 2, f.alert(alert.ID).SentCount)

	// transient send failure is retried by the dispatcher
	client.sendErrs = []error{errors.New("429 too many requests")}
	err := svc.HandleDeliveryJob(ctx, job)
	require.Error(t, err)
	require.False(t, jobqueue.IsSkip(err))

	// blocked by the user: contact learned as blocked, permanent skip
	client.sendErrs = []error{ErrRecipientUnreachable}
	err = svc.HandleDeliveryJob(ctx, job)
	require.True(t, jobqueue.IsSkip(err))
	contact, _ := fakeContactRepo{f.store}.FindByID(ctx, f.contact.ID)
	require.True(t, contact.IsBlocked)

	err = svc.HandleDeliveryJob(ctx, job)
	require.True(t, jobqueue.IsSkip(err))
}

func TestAlertDelivery_InactiveBotSkips(t *testing.T) {
	f := newFixture()
	bot := f.store.bots[f.bot.ID]
	bot.IsActive = false
	f.store.bots[f.bot.ID] = bot
	client := newFakeChannelClient()
	svc := newAlertService(f, client, &fakeEnqueuer{})
	alert := f.addAlert(db_models.Alert{Type: db_models.AlertTypeCommon, Message: "Promo"})

	err := svc.HandleDeliveryJob(context.Background(), &jobqueue.Job{Payload: AlertDeliveryPayload{AlertID: alert.ID, ContactID: f.contact.ID}})
	require.True(t, jobqueue.IsSkip(err))
	require.Empty(t, client.texts())
}
