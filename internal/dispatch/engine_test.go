package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/nimasrn/campaign-gateway/internal/compose"
	"github.com/nimasrn/campaign-gateway/internal/model"
	"github.com/nimasrn/campaign-gateway/internal/repository"
)

type fakeCampaigns struct {
	mu         sync.Mutex
	campaign   *model.Campaign
	statuses   []model.CampaignStatus
	countersOK bool

	// onMark runs at the start of MarkSending, simulating a competing
	// writer that slips in between the engine's read and its update.
	onMark func()
}

func (f *fakeCampaigns) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.campaign == nil || f.campaign.ID != id {
		return nil, repository.ErrCampaignNotFound
	}
	cp := *f.campaign
	return &cp, nil
}

func (f *fakeCampaigns) MarkSending(ctx context.Context, id int64, startedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onMark != nil {
		f.onMark()
	}
	if !f.campaign.Status.Sendable() {
		return repository.ErrStaleCampaign
	}
	f.campaign.Status = model.CampaignStatusSending
	f.campaign.SentAt = &startedAt
	f.statuses = append(f.statuses, model.CampaignStatusSending)
	return nil
}

func (f *fakeCampaigns) SetTotalRecipients(ctx context.Context, id int64, total int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campaign.TotalRecipients = total
	return nil
}

func (f *fakeCampaigns) AddCounters(ctx context.Context, id int64, sent, failed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campaign.SentCount += sent
	f.campaign.FailedCount += failed
	f.countersOK = true
	return nil
}

func (f *fakeCampaigns) SetStatus(ctx context.Context, id int64, status model.CampaignStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campaign.Status = status
	f.statuses = append(f.statuses, status)
	return nil
}

type fakeSubscribers struct {
	subs []*model.Subscriber
	err  error
}

func (f *fakeSubscribers) ListActive(ctx context.Context, limit int) ([]*model.Subscriber, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.subs) {
		return f.subs[:limit], nil
	}
	return f.subs, nil
}

type fakeLogs struct {
	mu      sync.Mutex
	batches [][]*model.EmailLog
	err     error
}

func (f *fakeLogs) CreateBatch(ctx context.Context, logs []*model.EmailLog) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, logs)
	return nil
}

func (f *fakeLogs) all() []*model.EmailLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.EmailLog
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

type fakeTx struct{ calls int }

func (f *fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type fakeLease struct {
	held     bool
	acquired int
	released int
}

func (f *fakeLease) Acquire(ctx context.Context, campaignID int64) (func(), error) {
	if f.held {
		return nil, &AlreadySendingError{CampaignID: campaignID}
	}
	f.acquired++
	return func() { f.released++ }, nil
}

type fakeClient struct {
	mu     sync.Mutex
	sent   []string
	failTo map[string]error
	n      int
}

func (f *fakeClient) Send(ctx context.Context, email *model.OutboundEmail) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failTo[email.To]; ok {
		return "", err
	}
	f.n++
	f.sent = append(f.sent, email.To)
	return fmt.Sprintf("prov-%d", f.n), nil
}

type fixture struct {
	campaigns *fakeCampaigns
	subs      *fakeSubscribers
	logs      *fakeLogs
	tx        *fakeTx
	lease     *fakeLease
	client    *fakeClient
	engine    *Engine
	pauses    []time.Duration
}

func newFixture(t *testing.T, nSubs int, cfg Config) *fixture {
	t.Helper()

	subs := make([]*model.Subscriber, nSubs)
	for i := range subs {
		subs[i] = &model.Subscriber{
			ID:               int64(i + 1),
			Email:            fmt.Sprintf("s%d@x.test", i+1),
			IsActive:         true,
			UnsubscribeToken: fmt.Sprintf("tok-%d", i+1),
		}
	}

	f := &fixture{
		campaigns: &fakeCampaigns{campaign: &model.Campaign{
			ID:       1,
			Name:     "Launch",
			Subject:  "Hi {{ name }}",
			BodyHTML: "<p>hello {{ name }}</p>",
			Status:   model.CampaignStatusDraft,
		}},
		subs:   &fakeSubscribers{subs: subs},
		logs:   &fakeLogs{},
		tx:     &fakeTx{},
		lease:  &fakeLease{},
		client: &fakeClient{failTo: map[string]error{}},
	}

	composer := compose.New(compose.Identity{Email: "news@acme.test", Name: "Acme"}, "https://acme.test/u")
	// Tests run with an effectively unlimited budget unless they override it.
	limiter := rate.NewLimiter(rate.Inf, 1)
	f.engine = NewEngine(f.campaigns, f.subs, f.logs, f.tx, f.lease, composer, f.client, limiter, cfg)
	f.engine.sleep = func(ctx context.Context, d time.Duration) error {
		f.pauses = append(f.pauses, d)
		return nil
	}
	return f
}

func TestEngine_Send_AllDelivered(t *testing.T) {
	f := newFixture(t, 5, Config{BatchSize: 2, InterBatchPause: 2 * time.Second})

	report, err := f.engine.Send(context.Background(), 1, Options{})
	require.NoError(t, err)

	assert.Equal(t, &Report{Total: 5, Sent: 5, Failed: 0}, report)
	assert.Equal(t, model.CampaignStatusCompleted, f.campaigns.campaign.Status)
	assert.Equal(t, 5, f.campaigns.campaign.TotalRecipients)
	assert.Equal(t, 5, f.campaigns.campaign.SentCount)
	assert.Zero(t, f.campaigns.campaign.FailedCount)

	// One transactional commit per batch, pause between batches only.
	assert.Len(t, f.logs.batches, 3)
	assert.Equal(t, 3, f.tx.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, f.pauses)

	logs := f.logs.all()
	require.Len(t, logs, 5)
	for i, l := range logs {
		assert.Equal(t, model.EmailLogStatusSent, l.Status)
		assert.NotEmpty(t, l.ProviderMessageID)
		assert.Equal(t, fmt.Sprintf("s%d@x.test", i+1), l.Email)
		assert.NotNil(t, l.SentAt)
	}

	assert.Equal(t, 1, f.lease.acquired)
	assert.Equal(t, 1, f.lease.released)
}

func TestEngine_Send_RecipientFailureIsIsolated(t *testing.T) {
	f := newFixture(t, 4, Config{BatchSize: 10})
	f.client.failTo["s2@x.test"] = errors.New("mailbox full")

	report, err := f.engine.Send(context.Background(), 1, Options{})
	require.NoError(t, err)

	assert.Equal(t, &Report{Total: 4, Sent: 3, Failed: 1}, report)
	assert.Equal(t, model.CampaignStatusCompletedWithErrors, f.campaigns.campaign.Status)
	assert.Equal(t, 3, f.campaigns.campaign.SentCount)
	assert.Equal(t, 1, f.campaigns.campaign.FailedCount)

	logs := f.logs.all()
	require.Len(t, logs, 4)
	assert.Equal(t, model.EmailLogStatusFailed, logs[1].Status)
	assert.Contains(t, logs[1].ErrorMessage, "mailbox full")
}

func TestEngine_Send_ComposeFailureRecordedNotFatal(t *testing.T) {
	f := newFixture(t, 2, Config{BatchSize: 10})
	f.campaigns.campaign.BodyHTML = "broken {{ name"

	report, err := f.engine.Send(context.Background(), 1, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Failed)
	assert.Zero(t, report.Sent)
	assert.Equal(t, model.CampaignStatusCompletedWithErrors, f.campaigns.campaign.Status)
	for _, l := range f.logs.all() {
		assert.Equal(t, model.EmailLogStatusFailed, l.Status)
		assert.NotEmpty(t, l.ErrorMessage)
	}
}

func TestEngine_Send_NotFound(t *testing.T) {
	f := newFixture(t, 1, Config{})

	_, err := f.engine.Send(context.Background(), 999, Options{})
	assert.ErrorIs(t, err, repository.ErrCampaignNotFound)
	assert.Zero(t, f.lease.acquired)
}

func TestEngine_Send_InvalidState(t *testing.T) {
	f := newFixture(t, 1, Config{})
	f.campaigns.campaign.Status = model.CampaignStatusCompleted

	_, err := f.engine.Send(context.Background(), 1, Options{})
	var ise *InvalidStateError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, model.CampaignStatusCompleted, ise.Status)

	// Campaign untouched, lease never taken.
	assert.Equal(t, model.CampaignStatusCompleted, f.campaigns.campaign.Status)
	assert.Zero(t, f.lease.acquired)
	assert.Empty(t, f.logs.all())
}

func TestEngine_Send_StaleTransitionReportsFreshStatus(t *testing.T) {
	f := newFixture(t, 3, Config{})
	f.campaigns.onMark = func() {
		f.campaigns.campaign.Status = model.CampaignStatusSending
	}

	_, err := f.engine.Send(context.Background(), 1, Options{})
	var ise *InvalidStateError
	require.ErrorAs(t, err, &ise)
	// The error carries the status that blocked the transition, not the
	// sendable one from the pre-lease read.
	assert.Equal(t, model.CampaignStatusSending, ise.Status)
	assert.Zero(t, f.client.n)
	assert.Equal(t, 1, f.lease.released)
}

func TestEngine_Send_LeaseContention(t *testing.T) {
	f := newFixture(t, 3, Config{})
	f.lease.held = true

	_, err := f.engine.Send(context.Background(), 1, Options{})
	var ase *AlreadySendingError
	require.ErrorAs(t, err, &ase)
	assert.Equal(t, int64(1), ase.CampaignID)

	// Status never moved to sending.
	assert.Equal(t, model.CampaignStatusDraft, f.campaigns.campaign.Status)
	assert.Zero(t, f.client.n)
}

func TestEngine_Send_StoreFailureMarksFailed(t *testing.T) {
	f := newFixture(t, 3, Config{BatchSize: 10})
	f.logs.err = errors.New("connection refused")

	_, err := f.engine.Send(context.Background(), 1, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, model.CampaignStatusFailed, f.campaigns.campaign.Status)
	assert.Equal(t, 1, f.lease.released)
}

func TestEngine_Send_TestMode(t *testing.T) {
	f := newFixture(t, 5, Config{BatchSize: 10})

	report, err := f.engine.Send(context.Background(), 1, Options{TestMode: true})
	require.NoError(t, err)

	assert.Equal(t, &Report{Total: 3, Sent: 3, Failed: 0}, report)
	assert.Equal(t, []string{"s1@x.test", "s2@x.test", "s3@x.test"}, f.client.sent)

	// Campaign record untouched: no counters, no status, no logs.
	assert.Equal(t, model.CampaignStatusDraft, f.campaigns.campaign.Status)
	assert.Zero(t, f.campaigns.campaign.SentCount)
	assert.Zero(t, f.campaigns.campaign.TotalRecipients)
	assert.Empty(t, f.logs.all())
	assert.Empty(t, f.campaigns.statuses)
}

func TestEngine_Send_TestModeFewerThanThree(t *testing.T) {
	f := newFixture(t, 2, Config{})

	report, err := f.engine.Send(context.Background(), 1, Options{TestMode: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Sent)
}

func TestEngine_Send_ZeroRecipients(t *testing.T) {
	f := newFixture(t, 0, Config{})

	report, err := f.engine.Send(context.Background(), 1, Options{})
	require.NoError(t, err)
	assert.Equal(t, &Report{}, report)
	assert.Equal(t, model.CampaignStatusCompleted, f.campaigns.campaign.Status)
	assert.Zero(t, f.campaigns.campaign.TotalRecipients)
	assert.Empty(t, f.pauses)
}

func TestEngine_Send_RatePacing(t *testing.T) {
	f := newFixture(t, 3, Config{BatchSize: 10})
	// 100 emails/sec: two inter-recipient gaps of 10ms each.
	f.engine.limiter = rate.NewLimiter(rate.Limit(100), 1)

	start := time.Now()
	_, err := f.engine.Send(context.Background(), 1, Options{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestEngine_SendTest(t *testing.T) {
	f := newFixture(t, 0, Config{})
	// Bypasses the state machine: even a completed campaign can be previewed.
	f.campaigns.campaign.Status = model.CampaignStatusCompleted

	providerID, err := f.engine.SendTest(context.Background(), 1, "  Preview@Example.COM ")
	require.NoError(t, err)
	assert.NotEmpty(t, providerID)
	require.Len(t, f.client.sent, 1)
	assert.Equal(t, "preview@example.com", f.client.sent[0])

	// Nothing persisted, status untouched.
	assert.Empty(t, f.logs.all())
	assert.Equal(t, model.CampaignStatusCompleted, f.campaigns.campaign.Status)
	assert.Zero(t, f.campaigns.campaign.SentCount)
}

func TestEngine_SendTest_DeliveryFailure(t *testing.T) {
	f := newFixture(t, 0, Config{})
	f.client.failTo["down@x.test"] = errors.New("provider down")

	_, err := f.engine.SendTest(context.Background(), 1, "down@x.test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
}

func TestPartition(t *testing.T) {
	subs := make([]*model.Subscriber, 5)
	for i := range subs {
		subs[i] = &model.Subscriber{ID: int64(i)}
	}

	batches := partition(subs, 2)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[2], 1)

	assert.Nil(t, partition(nil, 2))
	assert.Len(t, partition(subs, 10), 1)
}
