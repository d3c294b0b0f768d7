package model

import "time"

// WebhookEventType is the provider-side event name carried on a webhook.
type WebhookEventType string

const (
	WebhookEventDelivered   WebhookEventType = "delivered"
	WebhookEventOpen        WebhookEventType = "open"
	WebhookEventClick       WebhookEventType = "click"
	WebhookEventBounce      WebhookEventType = "bounce"
	WebhookEventUnsubscribe WebhookEventType = "unsubscribe"
)

type WebhookEvent struct {
	ID                int64            `json:"id"                  db:"id"                   gorm:"primaryKey;autoIncrement;column:id"`
	EventType         WebhookEventType `json:"event_type"          db:"event_type"           gorm:"column:event_type;not null;index"`
	Email             string           `json:"email"               db:"email"                gorm:"column:email;not null"`
	ProviderMessageID string           `json:"provider_message_id" db:"provider_message_id"  gorm:"column:provider_message_id;index"`
	Payload           string           `json:"payload"             db:"payload"              gorm:"column:payload"` // raw provider body, for audit
	ReceivedAt        time.Time        `json:"received_at"         db:"received_at"          gorm:"column:received_at;autoCreateTime;index"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }
