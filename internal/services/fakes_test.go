package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"paygate/internal/models/db_models"
	"paygate/pkg/jobqueue"
)

// store is an in-memory stand-in for the database shared by the fake
// repositories below.
type store struct {
	mu          sync.Mutex
	txns        map[uuid.UUID]db_models.Transaction
	bots        map[uuid.UUID]db_models.Bot
	contacts    map[uuid.UUID]db_models.Contact
	plans       map[uuid.UUID]db_models.Plan
	channels    map[uuid.UUID]db_models.GatedChannel
	memberships map[[2]uuid.UUID]db_models.ChannelMembership
	audits      []db_models.AccessAudit
	alerts      map[uuid.UUID]db_models.Alert
	downsells   map[uuid.UUID]db_models.Downsell
	deliveries  map[uuid.UUID]db_models.DownsellDelivery
	seq         int64

	// casHook runs before a status compare-and-set, for racing tests.
	casHook func()
}

func newStore() *store {
	return &store{
		txns:        make(map[uuid.UUID]db_models.Transaction),
		bots:        make(map[uuid.UUID]db_models.Bot),
		contacts:    make(map[uuid.UUID]db_models.Contact),
		plans:       make(map[uuid.UUID]db_models.Plan),
		channels:    make(map[uuid.UUID]db_models.GatedChannel),
		memberships: make(map[[2]uuid.UUID]db_models.ChannelMembership),
		alerts:      make(map[uuid.UUID]db_models.Alert),
		downsells:   make(map[uuid.UUID]db_models.Downsell),
		deliveries:  make(map[uuid.UUID]db_models.DownsellDelivery),
	}
}

// stamp gives a new row an id and a strictly increasing creation time.
func (s *store) stamp(b *db_models.BaseModel) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt == 0 {
		s.seq++
		b.CreatedAt = s.seq
	}
}

// fixture builds a bot with one contact, one plan and its gated channel.
type fixture struct {
	store   *store
	bot     db_models.Bot
	contact db_models.Contact
	plan    db_models.Plan
	channel db_models.GatedChannel
}

func newFixture() *fixture {
	s := newStore()
	f := &fixture{store: s}

	f.bot = db_models.Bot{Name: "VIP bot", Username: "vip_bot", Token: "TOKEN", IsActive: true}
	s.stamp(&f.bot.BaseModel)
	s.bots[f.bot.ID] = f.bot

	f.contact = db_models.Contact{BotID: f.bot.ID, TelegramID: 42, FirstName: "Ana", LanguageCode: "pt-BR", MessagingStatus: db_models.MessagingActive}
	s.stamp(&f.contact.BaseModel)
	s.contacts[f.contact.ID] = f.contact

	f.plan = db_models.Plan{BotID: f.bot.ID, Code: "vip_monthly", Name: "VIP", Price: decimal.RequireFromString("29.90"), Currency: "BRL", IsActive: true}
	s.stamp(&f.plan.BaseModel)
	s.plans[f.plan.ID] = f.plan

	f.channel = db_models.GatedChannel{BotID: f.bot.ID, PlanID: f.plan.ID, ChatID: -1001, Title: "VIP"}
	s.stamp(&f.channel.BaseModel)
	s.channels[f.channel.ID] = f.channel

	return f
}

func (f *fixture) addTransaction(status db_models.TransactionStatus) db_models.Transaction {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	txn := db_models.Transaction{BotID: f.bot.ID, ContactID: f.contact.ID, PlanID: f.plan.ID, Amount: f.plan.Price, Currency: "BRL", Status: status}
	f.store.stamp(&txn.BaseModel)
	f.store.txns[txn.ID] = txn
	return txn
}

func (f *fixture) addContact(c db_models.Contact) db_models.Contact {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	c.BotID = f.bot.ID
	if c.MessagingStatus == "" {
		c.MessagingStatus = db_models.MessagingActive
	}
	f.store.stamp(&c.BaseModel)
	f.store.contacts[c.ID] = c
	return c
}

func (f *fixture) setStatus(id uuid.UUID, status db_models.TransactionStatus) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	txn := f.store.txns[id]
	txn.Status = status
	f.store.txns[id] = txn
}

func (f *fixture) membership() (db_models.ChannelMembership, bool) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	m, ok := f.store.memberships[[2]uuid.UUID{f.channel.ID, f.contact.ID}]
	return m, ok
}

func (f *fixture) auditOutcomes() []db_models.AccessOutcome {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var outcomes []db_models.AccessOutcome
	for _, a := range f.store.audits {
		outcomes = append(outcomes, a.Outcome)
	}
	return outcomes
}

// --- repositories ---

type fakeTxnRepo struct{ s *store }

func (r fakeTxnRepo) Create(_ context.Context, txn *db_models.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&txn.BaseModel)
	r.s.txns[txn.ID] = *txn
	return nil
}

func (r fakeTxnRepo) FindByID(_ context.Context, id uuid.UUID) (*db_models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	txn, ok := r.s.txns[id]
	if !ok {
		return nil, nil
	}
	return &txn, nil
}

func (r fakeTxnRepo) CompareAndSetStatus(_ context.Context, id uuid.UUID, from, to db_models.TransactionStatus, at int64) (bool, error) {
	if hook := r.s.casHook; hook != nil {
		hook()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	txn, ok := r.s.txns[id]
	if !ok || txn.Status != from {
		return false, nil
	}
	txn.Status = to
	txn.UpdatedAt = at
	r.s.txns[id] = txn
	return true, nil
}

func (r fakeTxnRepo) SavePaymentCode(_ context.Context, id uuid.UUID, code string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	txn := r.s.txns[id]
	txn.PaymentCode = code
	r.s.txns[id] = txn
	return nil
}

func (r fakeTxnRepo) HasGrantedForPlan(_ context.Context, contactID, planID, excludeID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, txn := range r.s.txns {
		if txn.ContactID == contactID && txn.PlanID == planID && txn.ID != excludeID && txn.Status.IsGranted() {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeTxnRepo) ListAwaitingDownsell(_ context.Context, d *db_models.Downsell, status db_models.TransactionStatus, createdBefore int64, limit int) ([]db_models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []db_models.Transaction
	for _, txn := range r.s.txns {
		if txn.BotID != d.BotID || txn.PlanID != d.PlanID || txn.Status != status || txn.CreatedAt > createdBefore {
			continue
		}
		reserved := false
		for _, dd := range r.s.deliveries {
			if dd.DownsellID == d.ID && dd.TransactionID == txn.ID {
				reserved = true
			}
		}
		if !reserved {
			out = append(out, txn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakePlanRepo struct{ s *store }

func (r fakePlanRepo) FindActive(_ context.Context, botID, planID uuid.UUID) (*db_models.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	plan, ok := r.s.plans[planID]
	if !ok || plan.BotID != botID || !plan.IsActive {
		return nil, nil
	}
	return &plan, nil
}

func (r fakePlanRepo) ListByBot(_ context.Context, botID uuid.UUID) ([]db_models.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []db_models.Plan
	for _, p := range r.s.plans {
		if p.BotID == botID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeBotRepo struct{ s *store }

func (r fakeBotRepo) FindByID(_ context.Context, id uuid.UUID) (*db_models.Bot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	bot, ok := r.s.bots[id]
	if !ok {
		return nil, nil
	}
	return &bot, nil
}

type fakeContactRepo struct{ s *store }

func (r fakeContactRepo) FindByID(_ context.Context, id uuid.UUID) (*db_models.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contacts[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r fakeContactRepo) ListReachable(_ context.Context, botID uuid.UUID) ([]db_models.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []db_models.Contact
	for _, c := range r.s.contacts {
		if c.BotID == botID && !c.IsBot && !c.IsBlocked && c.MessagingStatus == db_models.MessagingActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (r fakeContactRepo) MarkBlocked(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.contacts[id]
	c.IsBlocked = true
	r.s.contacts[id] = c
	return nil
}

func (r fakeContactRepo) ListIDsHoldingPlan(_ context.Context, botID, planID uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []uuid.UUID
	for _, txn := range r.s.txns {
		if txn.BotID == botID && txn.PlanID == planID && txn.Status.IsGranted() {
			ids = append(ids, txn.ContactID)
		}
	}
	return ids, nil
}

type fakeChannelRepo struct{ s *store }

func (r fakeChannelRepo) FindByPlan(_ context.Context, botID, planID uuid.UUID) (*db_models.GatedChannel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ch := range r.s.channels {
		if ch.BotID == botID && ch.PlanID == planID {
			return &ch, nil
		}
	}
	return nil, nil
}

func (r fakeChannelRepo) SaveInviteLink(_ context.Context, channelID uuid.UUID, link string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ch := r.s.channels[channelID]
	if ch.InviteLink == "" {
		ch.InviteLink = link
		r.s.channels[channelID] = ch
	}
	return ch.InviteLink, nil
}

func (r fakeChannelRepo) FindMembership(_ context.Context, channelID, contactID uuid.UUID) (*db_models.ChannelMembership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.memberships[[2]uuid.UUID{channelID, contactID}]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r fakeChannelRepo) UpsertMembership(_ context.Context, m *db_models.ChannelMembership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := [2]uuid.UUID{m.ChannelID, m.ContactID}
	if existing, ok := r.s.memberships[key]; ok {
		m.ID = existing.ID
	}
	r.s.stamp(&m.BaseModel)
	r.s.memberships[key] = *m
	return nil
}

type fakeAuditRepo struct{ s *store }

func (r fakeAuditRepo) Record(_ context.Context, audit *db_models.AccessAudit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&audit.BaseModel)
	r.s.audits = append(r.s.audits, *audit)
	return nil
}

func (r fakeAuditRepo) ListByTransaction(_ context.Context, id uuid.UUID) ([]db_models.AccessAudit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []db_models.AccessAudit
	for _, a := range r.s.audits {
		if a.TransactionID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeAlertRepo struct{ s *store }

func (r fakeAlertRepo) ListEligible(_ context.Context, now time.Time, botID *uuid.UUID) ([]db_models.Alert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []db_models.Alert
	for _, a := range r.s.alerts {
		if botID != nil && a.BotID != *botID {
			continue
		}
		if a.IsDue(now) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (r fakeAlertRepo) FindByID(_ context.Context, id uuid.UUID) (*db_models.Alert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.alerts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r fakeAlertRepo) MarkSent(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.alerts[id]
	if !ok || a.Status != db_models.AlertStatusActive {
		return false, nil
	}
	a.Status = db_models.AlertStatusSent
	r.s.alerts[id] = a
	return true, nil
}

func (r fakeAlertRepo) IncrementSentCount(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a := r.s.alerts[id]
	a.SentCount++
	r.s.alerts[id] = a
	return nil
}

type fakeDownsellRepo struct{ s *store }

func (r fakeDownsellRepo) ListActive(_ context.Context) ([]db_models.Downsell, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []db_models.Downsell
	for _, d := range r.s.downsells {
		if d.CanBeUsed() {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (r fakeDownsellRepo) FindByID(_ context.Context, id uuid.UUID) (*db_models.Downsell, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.downsells[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r fakeDownsellRepo) ReserveDelivery(_ context.Context, downsellID, txnID uuid.UUID) (*db_models.DownsellDelivery, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, dd := range r.s.deliveries {
		if dd.DownsellID == downsellID && dd.TransactionID == txnID {
			return &dd, false, nil
		}
	}
	dd := db_models.DownsellDelivery{DownsellID: downsellID, TransactionID: txnID, Status: db_models.DeliveryScheduled}
	r.s.stamp(&dd.BaseModel)
	r.s.deliveries[dd.ID] = dd
	return &dd, true, nil
}

func (r fakeDownsellRepo) FindDelivery(_ context.Context, id uuid.UUID) (*db_models.DownsellDelivery, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	dd, ok := r.s.deliveries[id]
	if !ok {
		return nil, nil
	}
	return &dd, nil
}

func (r fakeDownsellRepo) ConsumeForDelivery(_ context.Context, deliveryID, downsellID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	dd := r.s.deliveries[deliveryID]
	if dd.UsageCounted {
		return true, nil
	}
	d := r.s.downsells[downsellID]
	if !d.CanBeUsed() {
		return false, nil
	}
	d.QuantityUses++
	dd.UsageCounted = true
	r.s.downsells[downsellID] = d
	r.s.deliveries[deliveryID] = dd
	return true, nil
}

func (r fakeDownsellRepo) MarkDelivery(_ context.Context, id uuid.UUID, status db_models.DeliveryStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	dd := r.s.deliveries[id]
	dd.Status = status
	r.s.deliveries[id] = dd
	return nil
}

func (r fakeDownsellRepo) ReleaseDelivery(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if dd, ok := r.s.deliveries[id]; ok && dd.Status == db_models.DeliveryScheduled && !dd.UsageCounted {
		delete(r.s.deliveries, id)
	}
	return nil
}

// --- collaborators ---

type sentMessage struct {
	ContactID uuid.UUID
	Text      string
	MediaURL  string
}

// fakeChannelClient keeps platform membership in memory; the err fields
// make the next calls fail.
type fakeChannelClient struct {
	mu          sync.Mutex
	members     map[[2]int64]bool
	inviteCalls int
	addCalls    int
	removeCalls int
	sent        []sentMessage

	addErr   error
	sendErrs []error
	mediaErr error
}

func newFakeChannelClient() *fakeChannelClient {
	return &fakeChannelClient{members: make(map[[2]int64]bool)}
}

func (c *fakeChannelClient) CreateInviteLink(_ context.Context, _ *db_models.Bot, channel *db_models.GatedChannel) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inviteCalls++
	return "https://t.me/+invite-" + channel.Title, nil
}

func (c *fakeChannelClient) AddMember(ctx context.Context, _ *db_models.Bot, channel *db_models.GatedChannel, contact *db_models.Contact, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addCalls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.addErr != nil {
		return c.addErr
	}
	key := [2]int64{channel.ChatID, contact.TelegramID}
	if c.members[key] {
		return ErrAlreadyMember
	}
	c.members[key] = true
	return nil
}

func (c *fakeChannelClient) RemoveMember(_ context.Context, _ *db_models.Bot, channel *db_models.GatedChannel, contact *db_models.Contact) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeCalls++
	key := [2]int64{channel.ChatID, contact.TelegramID}
	if !c.members[key] {
		return ErrNotMember
	}
	delete(c.members, key)
	return nil
}

func (c *fakeChannelClient) SendText(_ context.Context, _ *db_models.Bot, contact *db_models.Contact, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sendErrs) > 0 {
		err := c.sendErrs[0]
		c.sendErrs = c.sendErrs[1:]
		if err != nil {
			return err
		}
	}
	c.sent = append(c.sent, sentMessage{ContactID: contact.ID, Text: text})
	return nil
}

func (c *fakeChannelClient) SendMedia(_ context.Context, _ *db_models.Bot, contact *db_models.Contact, mediaURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mediaErr != nil {
		return c.mediaErr
	}
	c.sent = append(c.sent, sentMessage{ContactID: contact.ID, MediaURL: mediaURL})
	return nil
}

func (c *fakeChannelClient) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, m := range c.sent {
		if m.Text != "" {
			out = append(out, m.Text)
		}
	}
	return out
}

// fakeEnqueuer records jobs instead of running them. failOn makes the n-th
// enqueue call (1-based) fail.
type fakeEnqueuer struct {
	mu     sync.Mutex
	jobs   []*jobqueue.Job
	calls  int
	failOn map[int]bool
}

func (e *fakeEnqueuer) Enqueue(ctx context.Context, job *jobqueue.Job) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.failOn[e.calls] {
		return errors.New("queue full")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	e.jobs = append(e.jobs, job)
	return nil
}

func (e *fakeEnqueuer) byKind(kind string) []*jobqueue.Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*jobqueue.Job
	for _, j := range e.jobs {
		if j.Kind == kind {
			out = append(out, j)
		}
	}
	return out
}

// recordingBus counts published events and can forward them.
type recordingBus struct {
	mu      sync.Mutex
	events  []TransitionEvent
	forward EventPublisher
	err     error
}

func (b *recordingBus) Publish(ctx context.Context, event TransitionEvent) error {
	b.mu.Lock()
	b.events = append(b.events, event)
	forward, err := b.forward, b.err
	b.mu.Unlock()
	if forward != nil {
		return forward.Publish(ctx, event)
	}
	return err
}

func (b *recordingBus) count(kind TransitionKind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

var testLog = zap.NewNop()
