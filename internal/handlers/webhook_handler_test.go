package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimasrn/campaign-gateway/internal/webhook"
)

type capturingPublisher struct {
	published []interface{}
	err       error
}

func (p *capturingPublisher) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.published = append(p.published, data)
	return "msg-1", nil
}

func TestWebhookHandler_IngestEvent(t *testing.T) {
	t.Run("queues normalized event", func(t *testing.T) {
		pub := &capturingPublisher{}
		handler := NewWebhookHandler(pub)

		body, _ := json.Marshal(map[string]string{
			"event_type":          "delivered",
			"email":               "ada@x.test",
			"provider_message_id": "prov-1",
		})
		ctx := setupTestContext("POST", "/api/v1/webhooks/email", body)
		handler.IngestEvent(ctx)

		assert.Equal(t, 202, ctx.Response.StatusCode())
		require.Len(t, pub.published, 1)

		ev := pub.published[0].(webhook.Event)
		assert.Equal(t, "delivered", ev.EventType)
		assert.Equal(t, "prov-1", ev.ProviderMessageID)
		// Raw body kept for audit.
		assert.JSONEq(t, string(body), ev.Payload)
	})

	t.Run("missing event type", func(t *testing.T) {
		handler := NewWebhookHandler(&capturingPublisher{})

		body, _ := json.Marshal(map[string]string{"email": "ada@x.test"})
		ctx := setupTestContext("POST", "/api/v1/webhooks/email", body)
		handler.IngestEvent(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("queue failure surfaces as 500", func(t *testing.T) {
		handler := NewWebhookHandler(&capturingPublisher{err: assert.AnError})

		body, _ := json.Marshal(map[string]string{"event_type": "open"})
		ctx := setupTestContext("POST", "/api/v1/webhooks/email", body)
		handler.IngestEvent(ctx)

		assert.Equal(t, 500, ctx.Response.StatusCode())
	})
}
