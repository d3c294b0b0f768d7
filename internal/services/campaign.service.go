package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/campaign-gateway/internal/dispatch"
	"github.com/nimasrn/campaign-gateway/internal/model"
	"github.com/nimasrn/campaign-gateway/internal/render"
)

var (
	ErrNotFound          = errors.New("error notfound")
	ErrInvalidState      = errors.New("campaign is not in a modifiable state")
	ErrMalformedTemplate = render.ErrMalformedTemplate
)

type CampaignRepository interface {
	Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error)
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error)
	Update(ctx context.Context, c *model.Campaign) error
	Delete(ctx context.Context, id int64) error
}

type TemplateStore interface {
	Get(ctx context.Context, id int64) (*model.EmailTemplate, error)
}

type LogStatsStore interface {
	CountByStatus(ctx context.Context, campaignID int64) (map[model.EmailLogStatus]int64, error)
	CountOpened(ctx context.Context, campaignID int64) (int64, error)
}

// CampaignScheduler arms and disarms the one-shot send trigger.
type CampaignScheduler interface {
	Schedule(campaignID int64, at time.Time)
	Cancel(campaignID int64) bool
}

// TriggerPublisher publishes dispatch triggers; satisfied by *queue.Queue.
type TriggerPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type CampaignService struct {
	campaignRepo CampaignRepository
	templateRepo TemplateStore
	logRepo      LogStatsStore
	scheduler    CampaignScheduler
	dispatchQ    TriggerPublisher
}

func NewCampaignService(
	campaignRepo CampaignRepository,
	templateRepo TemplateStore,
	logRepo LogStatsStore,
	scheduler CampaignScheduler,
	dispatchQ TriggerPublisher,
) *CampaignService {
	return &CampaignService{
		campaignRepo: campaignRepo,
		templateRepo: templateRepo,
		logRepo:      logRepo,
		scheduler:    scheduler,
		dispatchQ:    dispatchQ,
	}
}

// Create validates the bodies and stores the campaign. When TemplateID is
// set the subject and bodies are copied from the stored template, so later
// template edits never change an existing campaign. A future scheduled_at
// arms the scheduler.
func (s *CampaignService) Create(ctx context.Context, p model.CampaignCreateRequest, templateID *int64) (*model.Campaign, error) {
	if templateID != nil {
		tpl, err := s.templateRepo.Get(ctx, *templateID)
		if err != nil {
			return nil, err
		}
		p.Subject = tpl.Subject
		p.BodyHTML = tpl.BodyHTML
		p.BodyText = tpl.BodyText
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := render.Validate(p.Subject); err != nil {
		return nil, fmt.Errorf("subject: %w", err)
	}
	if err := render.Validate(p.BodyHTML); err != nil {
		return nil, fmt.Errorf("body_html: %w", err)
	}
	if p.BodyText != "" {
		if err := render.Validate(p.BodyText); err != nil {
			return nil, fmt.Errorf("body_text: %w", err)
		}
	}

	c := &model.Campaign{
		Name:        p.Name,
		Subject:     p.Subject,
		BodyHTML:    p.BodyHTML,
		BodyText:    p.BodyText,
		Status:      model.CampaignStatusDraft,
		ScheduledAt: p.ScheduledAt,
	}
	if p.ScheduledAt != nil && p.ScheduledAt.After(time.Now()) {
		c.Status = model.CampaignStatusScheduled
	}

	created, err := s.campaignRepo.Create(ctx, c)
	if err != nil {
		return nil, err
	}

	if created.Status == model.CampaignStatusScheduled && s.scheduler != nil {
		s.scheduler.Schedule(created.ID, *created.ScheduledAt)
	}
	return created, nil
}

func (s *CampaignService) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	return s.campaignRepo.Get(ctx, id)
}

func (s *CampaignService) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) {
	return s.campaignRepo.List(ctx, f)
}

// Stats aggregates a campaign's log rows into delivery rates. Open rate is
// the share of sent emails with at least one open.
func (s *CampaignService) Stats(ctx context.Context, id int64) (*model.CampaignStats, error) {
	camp, err := s.campaignRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	counts, err := s.logRepo.CountByStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	opened, err := s.logRepo.CountOpened(ctx, id)
	if err != nil {
		return nil, err
	}

	stats := &model.CampaignStats{
		CampaignID:     id,
		Status:         string(camp.Status),
		TotalSent:      int64(camp.SentCount),
		TotalDelivered: counts[model.EmailLogStatusDelivered] + counts[model.EmailLogStatusOpened] + counts[model.EmailLogStatusClicked],
		TotalOpened:    opened,
		TotalClicked:   counts[model.EmailLogStatusClicked],
		TotalBounced:   counts[model.EmailLogStatusBounced],
		TotalFailed:    int64(camp.FailedCount),
	}
	if stats.TotalSent > 0 {
		stats.OpenRate = float64(stats.TotalOpened) / float64(stats.TotalSent) * 100
		stats.ClickRate = float64(stats.TotalClicked) / float64(stats.TotalSent) * 100
	}
	return stats, nil
}

// Send publishes a dispatch trigger; the dispatcher process runs the actual
// send so the API call returns immediately.
func (s *CampaignService) Send(ctx context.Context, id int64, testMode bool) error {
	camp, err := s.campaignRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !camp.Status.Sendable() {
		return fmt.Errorf("%w: status %q", ErrInvalidState, camp.Status)
	}

	_, err = s.dispatchQ.PublishJSON(ctx, dispatch.Trigger{CampaignID: id, TestMode: testMode}, map[string]string{
		"type": "campaign_send",
	})
	return err
}

// SendTestEmail publishes a trigger that sends the campaign to a single
// explicit address. Works in any status, since nothing about the campaign
// is mutated.
func (s *CampaignService) SendTestEmail(ctx context.Context, id int64, email string) error {
	if _, err := s.campaignRepo.Get(ctx, id); err != nil {
		return err
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("test email address %q is invalid", email)
	}

	_, err := s.dispatchQ.PublishJSON(ctx, dispatch.Trigger{CampaignID: id, TestEmail: email}, map[string]string{
		"type": "test_send",
	})
	return err
}

// Update edits a draft or scheduled campaign. A future scheduled time
// re-arms the scheduler; a cleared or past one demotes the campaign back
// to draft.
func (s *CampaignService) Update(ctx context.Context, c *model.Campaign) error {
	existing, err := s.campaignRepo.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	if !existing.Status.Sendable() {
		return fmt.Errorf("%w: status %q", ErrInvalidState, existing.Status)
	}

	if err := render.Validate(c.Subject); err != nil {
		return fmt.Errorf("subject: %w", err)
	}
	if err := render.Validate(c.BodyHTML); err != nil {
		return fmt.Errorf("body_html: %w", err)
	}

	// Status follows the scheduled time: a future time (re)schedules, a
	// cleared or past time demotes back to draft so the campaign never sits
	// in scheduled with nothing to fire it.
	c.Status = model.CampaignStatusDraft
	if c.ScheduledAt != nil && c.ScheduledAt.After(time.Now()) {
		c.Status = model.CampaignStatusScheduled
	}
	if err := s.campaignRepo.Update(ctx, c); err != nil {
		return err
	}

	if s.scheduler != nil {
		s.scheduler.Cancel(c.ID)
		if c.Status == model.CampaignStatusScheduled {
			s.scheduler.Schedule(c.ID, *c.ScheduledAt)
		}
	}
	return nil
}

// Delete removes a campaign that has not started sending and cancels any
// pending trigger.
func (s *CampaignService) Delete(ctx context.Context, id int64) error {
	camp, err := s.campaignRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !camp.Status.Sendable() {
		return fmt.Errorf("%w: status %q", ErrInvalidState, camp.Status)
	}

	if err := s.campaignRepo.Delete(ctx, id); err != nil {
		return err
	}
	if s.scheduler != nil {
		s.scheduler.Cancel(id)
	}
	return nil
}
