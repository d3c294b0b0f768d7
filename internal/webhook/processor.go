// Package webhook applies delivery-provider callback events to email logs
// and subscribers.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/campaign-gateway/internal/model"
	"github.com/nimasrn/campaign-gateway/internal/queue"
	"github.com/nimasrn/campaign-gateway/internal/repository"
	"github.com/nimasrn/campaign-gateway/pkg/logger"
	"github.com/nimasrn/campaign-gateway/pkg/prom"
)

// Event is the normalized provider callback, as published onto the webhook
// queue by the API's ingestion endpoint.
type Event struct {
	EventType         string    `json:"event_type"`
	Email             string    `json:"email"`
	ProviderMessageID string    `json:"provider_message_id"`
	Timestamp         time.Time `json:"timestamp"`
	Payload           string    `json:"payload,omitempty"`
}

var ErrUnknownEventType = errors.New("unknown webhook event type")

type EmailLogStore interface {
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (*model.EmailLog, error)
	AdvanceStatus(ctx context.Context, logID int64, status model.EmailLogStatus, at time.Time) error
}

type SubscriberStore interface {
	DeactivateByEmail(ctx context.Context, email string, at time.Time) error
}

type EventStore interface {
	Create(ctx context.Context, e *model.WebhookEvent) (*model.WebhookEvent, error)
}

type Processor struct {
	logs        EmailLogStore
	subscribers SubscriberStore
	events      EventStore
}

func NewProcessor(logs EmailLogStore, subscribers SubscriberStore, events EventStore) *Processor {
	return &Processor{logs: logs, subscribers: subscribers, events: events}
}

// Handler adapts Process to the queue consumer signature.
func (p *Processor) Handler(ctx context.Context, msg *queue.Message) error {
	var ev Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		// Malformed payloads never parse on retry; let the queue dead-letter
		// them by exhausting attempts.
		return fmt.Errorf("decode webhook event: %w", err)
	}
	return p.Process(ctx, ev)
}

// Process persists the audit row and applies the event's effect. Events for
// unknown provider message ids are kept for audit but otherwise ignored.
func (p *Processor) Process(ctx context.Context, ev Event) error {
	eventType := model.WebhookEventType(ev.EventType)
	at := ev.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	if _, err := p.events.Create(ctx, &model.WebhookEvent{
		EventType:         eventType,
		Email:             ev.Email,
		ProviderMessageID: ev.ProviderMessageID,
		Payload:           ev.Payload,
		ReceivedAt:        at,
	}); err != nil {
		return fmt.Errorf("persist webhook event: %w", err)
	}
	prom.AddWebhookEvent(ev.EventType)

	status, ok := logStatusFor(eventType)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, ev.EventType)
	}

	if ev.ProviderMessageID != "" {
		log, err := p.logs.GetByProviderMessageID(ctx, ev.ProviderMessageID)
		switch {
		case errors.Is(err, repository.ErrEmailLogNotFound):
			logger.Warn("webhook for unknown message",
				"event_type", ev.EventType, "provider_message_id", ev.ProviderMessageID)
		case err != nil:
			return fmt.Errorf("lookup email log: %w", err)
		default:
			if err := p.logs.AdvanceStatus(ctx, log.ID, status, at); err != nil {
				return fmt.Errorf("advance log status: %w", err)
			}
		}
	}

	// Unsubscribes and hard bounces take the address out of future sends.
	if eventType == model.WebhookEventUnsubscribe || eventType == model.WebhookEventBounce {
		if err := p.subscribers.DeactivateByEmail(ctx, ev.Email, at); err != nil {
			return fmt.Errorf("deactivate subscriber: %w", err)
		}
	}

	logger.Info("webhook event applied",
		"event_type", ev.EventType, "email", ev.Email, "provider_message_id", ev.ProviderMessageID)
	return nil
}

func logStatusFor(t model.WebhookEventType) (model.EmailLogStatus, bool) {
	switch t {
	case model.WebhookEventDelivered:
		return model.EmailLogStatusDelivered, true
	case model.WebhookEventOpen:
		return model.EmailLogStatusOpened, true
	case model.WebhookEventClick:
		return model.EmailLogStatusClicked, true
	case model.WebhookEventBounce:
		return model.EmailLogStatusBounced, true
	case model.WebhookEventUnsubscribe:
		return model.EmailLogStatusUnsubscribed, true
	}
	return "", false
}
