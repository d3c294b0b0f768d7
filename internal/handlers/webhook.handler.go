package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"

	"github.com/nimasrn/campaign-gateway/internal/webhook"
	xhttp "github.com/nimasrn/campaign-gateway/pkg/http"
	"github.com/nimasrn/campaign-gateway/pkg/logger"
)

// EventPublisher publishes normalized webhook events; satisfied by
// *queue.Queue.
type EventPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type WebhookHandler struct {
	events EventPublisher
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/webhooks/email", h.IngestEvent)
}

func NewWebhookHandler(events EventPublisher) *WebhookHandler {
	return &WebhookHandler{
		events: events,
	}
}

type webhookEventRequest struct {
	EventType         string     `json:"event_type"`
	Email             string     `json:"email"`
	ProviderMessageID string     `json:"provider_message_id"`
	Timestamp         *time.Time `json:"timestamp"`
}

// IngestEvent accepts a provider callback and queues it for the dispatcher
// process. The endpoint stays fast and available: validation beyond basic
// shape happens in the consumer.
func (h *WebhookHandler) IngestEvent(ctx *xhttp.RequestCtx) {
	var req webhookEventRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.EventType == "" {
		writeError(ctx, 400, "event_type is required")
		return
	}

	ev := webhook.Event{
		EventType:         req.EventType,
		Email:             req.Email,
		ProviderMessageID: req.ProviderMessageID,
		Payload:           string(ctx.PostBody()),
	}
	if req.Timestamp != nil {
		ev.Timestamp = *req.Timestamp
	}

	msgID, err := h.events.PublishJSON(ctx, ev, map[string]string{"type": "webhook_event"})
	if err != nil {
		logger.Error("failed to queue webhook event", "event_type", req.EventType, "error", err)
		writeError(ctx, 500, "failed to queue event")
		return
	}
	writeJSON(ctx, 202, map[string]string{"status": "accepted", "message_id": msgID})
}
