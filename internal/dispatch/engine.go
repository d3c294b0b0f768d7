// Package dispatch orchestrates campaign sends: it owns the campaign
// status state machine, paces recipients against the shared rate budget,
// and persists each batch's logs and counters as one unit.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nimasrn/campaign-gateway/internal/compose"
	"github.com/nimasrn/campaign-gateway/internal/delivery"
	"github.com/nimasrn/campaign-gateway/internal/model"
	"github.com/nimasrn/campaign-gateway/internal/repository"
	"github.com/nimasrn/campaign-gateway/pkg/logger"
	"github.com/nimasrn/campaign-gateway/pkg/prom"
)

// CampaignStore is the slice of campaign persistence the engine needs.
type CampaignStore interface {
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	MarkSending(ctx context.Context, id int64, startedAt time.Time) error
	SetTotalRecipients(ctx context.Context, id int64, total int) error
	AddCounters(ctx context.Context, id int64, sent, failed int) error
	SetStatus(ctx context.Context, id int64, status model.CampaignStatus) error
}

type SubscriberStore interface {
	ListActive(ctx context.Context, limit int) ([]*model.Subscriber, error)
}

type EmailLogStore interface {
	CreateBatch(ctx context.Context, logs []*model.EmailLog) error
}

// Transactor commits a batch's log rows and counter deltas as one unit.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Lease guards against two concurrent sends of the same campaign.
type Lease interface {
	Acquire(ctx context.Context, campaignID int64) (release func(), err error)
}

// Options controls a single send invocation.
type Options struct {
	// TestMode restricts the send to the first few active subscribers and
	// leaves campaign counters and status untouched.
	TestMode bool
}

// Report summarizes a finished send.
type Report struct {
	Total  int
	Sent   int
	Failed int
}

const testModeRecipients = 3

type Config struct {
	BatchSize       int
	RateLimit       int // max emails per second, shared across campaigns
	InterBatchPause time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.BatchSize <= 0 {
		out.BatchSize = 100
	}
	if out.RateLimit <= 0 {
		out.RateLimit = 1
	}
	if out.InterBatchPause == 0 {
		out.InterBatchPause = 2 * time.Second
	}
	return out
}

type Engine struct {
	campaigns   CampaignStore
	subscribers SubscriberStore
	logs        EmailLogStore
	tx          Transactor
	lease       Lease
	composer    *compose.Composer
	client      delivery.Client
	config      Config

	// limiter is shared process-wide so concurrent campaign sends respect
	// one provider budget together.
	limiter *rate.Limiter

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewEngine(
	campaigns CampaignStore,
	subscribers SubscriberStore,
	logs EmailLogStore,
	tx Transactor,
	lease Lease,
	composer *compose.Composer,
	client delivery.Client,
	limiter *rate.Limiter,
	config Config,
) *Engine {
	cfg := config.withDefaults()
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &Engine{
		campaigns:   campaigns,
		subscribers: subscribers,
		logs:        logs,
		tx:          tx,
		lease:       lease,
		composer:    composer,
		client:      client,
		limiter:     limiter,
		config:      cfg,
		sleep:       sleepCtx,
		now:         time.Now,
	}
}

// Send runs a full campaign send. It returns the report together with any
// error; a non-nil error after sending started means the campaign ended in
// the failed status.
func (e *Engine) Send(ctx context.Context, campaignID int64, opts Options) (*Report, error) {
	camp, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !camp.Status.Sendable() {
		return nil, &InvalidStateError{CampaignID: campaignID, Status: camp.Status}
	}

	if opts.TestMode {
		return e.sendPreview(ctx, camp)
	}

	release, err := e.lease.Acquire(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	defer release()

	start := e.now()
	if err := e.campaigns.MarkSending(ctx, campaignID, start); err != nil {
		if errors.Is(err, repository.ErrStaleCampaign) {
			// The pre-lease read is stale by definition here; re-read so the
			// error reports the status that actually blocked the transition.
			status := camp.Status
			if fresh, gerr := e.campaigns.Get(ctx, campaignID); gerr == nil {
				status = fresh.Status
			}
			return nil, &InvalidStateError{CampaignID: campaignID, Status: status}
		}
		return nil, err
	}
	logger.Info("campaign send started", "campaign_id", campaignID, "name", camp.Name)

	report := &Report{}

	subs, err := e.subscribers.ListActive(ctx, 0)
	if err != nil {
		return report, e.fail(ctx, campaignID, fmt.Errorf("load subscribers: %w", err))
	}
	report.Total = len(subs)

	if err := e.campaigns.SetTotalRecipients(ctx, campaignID, len(subs)); err != nil {
		return report, e.fail(ctx, campaignID, fmt.Errorf("persist recipient count: %w", err))
	}

	batches := partition(subs, e.config.BatchSize)
	for bi, batch := range batches {
		logs := make([]*model.EmailLog, 0, len(batch))
		sent, failed := 0, 0

		for _, sub := range batch {
			if err := e.limiter.Wait(ctx); err != nil {
				return report, e.fail(ctx, campaignID, fmt.Errorf("rate limiter: %w", err))
			}

			log := e.attempt(ctx, sub, camp)
			logs = append(logs, log)
			if log.Status == model.EmailLogStatusSent {
				sent++
			} else {
				failed++
			}
		}

		err := e.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
			if err := e.logs.CreateBatch(txCtx, logs); err != nil {
				return err
			}
			return e.campaigns.AddCounters(txCtx, campaignID, sent, failed)
		})
		if err != nil {
			return report, e.fail(ctx, campaignID, fmt.Errorf("persist batch %d: %w", bi, err))
		}

		report.Sent += sent
		report.Failed += failed
		logger.Info("batch committed",
			"campaign_id", campaignID, "batch", bi+1, "batches", len(batches), "sent", sent, "failed", failed)

		if bi < len(batches)-1 {
			if err := e.sleep(ctx, e.config.InterBatchPause); err != nil {
				return report, e.fail(ctx, campaignID, fmt.Errorf("inter-batch pause: %w", err))
			}
		}
	}

	final := model.CampaignStatusCompleted
	if report.Failed > 0 {
		final = model.CampaignStatusCompletedWithErrors
	}
	if err := e.campaigns.SetStatus(ctx, campaignID, final); err != nil {
		return report, e.fail(ctx, campaignID, fmt.Errorf("finalize status: %w", err))
	}

	prom.ObserveCampaignSendDuration(e.now().Sub(start).Seconds(), string(final))
	logger.Info("campaign send finished",
		"campaign_id", campaignID, "status", final,
		"total", report.Total, "sent", report.Sent, "failed", report.Failed,
		"duration", e.now().Sub(start).String())
	return report, nil
}

// SendTest composes and sends a single message to an ephemeral subscriber
// built from the address. The state machine, counters and logs are all
// bypassed.
func (e *Engine) SendTest(ctx context.Context, campaignID int64, testEmail string) (string, error) {
	camp, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		return "", err
	}

	sub := model.Subscriber{
		Email:            strings.ToLower(strings.TrimSpace(testEmail)),
		UnsubscribeToken: uuid.NewString(),
	}

	msg, err := e.composer.Compose(sub, *camp)
	if err != nil {
		return "", err
	}

	providerID, err := e.client.Send(ctx, &msg)
	if err != nil {
		return "", err
	}
	logger.Info("test email sent", "campaign_id", campaignID, "to", sub.Email, "provider_message_id", providerID)
	return providerID, nil
}

// sendPreview sends to a fixed prefix of the active subscribers without
// touching the campaign record.
func (e *Engine) sendPreview(ctx context.Context, camp *model.Campaign) (*Report, error) {
	subs, err := e.subscribers.ListActive(ctx, testModeRecipients)
	if err != nil {
		return nil, fmt.Errorf("load subscribers: %w", err)
	}

	report := &Report{Total: len(subs)}
	for _, sub := range subs {
		if err := e.limiter.Wait(ctx); err != nil {
			return report, err
		}
		log := e.attempt(ctx, sub, camp)
		if log.Status == model.EmailLogStatusSent {
			report.Sent++
		} else {
			report.Failed++
		}
	}
	logger.Info("test-mode send finished",
		"campaign_id", camp.ID, "total", report.Total, "sent", report.Sent, "failed", report.Failed)
	return report, nil
}

// attempt composes and sends to one recipient, reducing every failure mode
// to a log row so a bad address never aborts the campaign.
func (e *Engine) attempt(ctx context.Context, sub *model.Subscriber, camp *model.Campaign) *model.EmailLog {
	now := e.now()
	subID := sub.ID
	log := &model.EmailLog{
		CampaignID:   camp.ID,
		SubscriberID: &subID,
		Email:        sub.Email,
		SentAt:       &now,
	}

	msg, err := e.composer.Compose(*sub, *camp)
	if err != nil {
		log.Status = model.EmailLogStatusFailed
		log.ErrorMessage = err.Error()
		prom.AddEmailFailed("compose")
		logger.Warn("compose failed", "campaign_id", camp.ID, "subscriber_id", sub.ID, "error", err)
		return log
	}

	providerID, err := e.client.Send(ctx, &msg)
	if err != nil {
		log.Status = model.EmailLogStatusFailed
		log.ErrorMessage = err.Error()
		prom.AddEmailFailed("delivery")
		logger.Warn("delivery failed", "campaign_id", camp.ID, "subscriber_id", sub.ID, "error", err)
		return log
	}

	log.Status = model.EmailLogStatusSent
	log.ProviderMessageID = providerID
	prom.AddEmailSent("default")
	return log
}

// fail moves the campaign to the failed status before surfacing the error,
// so a crash never leaves it stuck in sending.
func (e *Engine) fail(ctx context.Context, campaignID int64, cause error) error {
	if err := e.campaigns.SetStatus(ctx, campaignID, model.CampaignStatusFailed); err != nil {
		logger.Error("failed to mark campaign failed", "campaign_id", campaignID, "error", err)
	}
	logger.Error("campaign send failed", "campaign_id", campaignID, "error", cause)
	return cause
}

func partition(subs []*model.Subscriber, size int) [][]*model.Subscriber {
	if len(subs) == 0 {
		return nil
	}
	batches := make([][]*model.Subscriber, 0, (len(subs)+size-1)/size)
	for start := 0; start < len(subs); start += size {
		end := start + size
		if end > len(subs) {
			end = len(subs)
		}
		batches = append(batches, subs[start:end])
	}
	return batches
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
