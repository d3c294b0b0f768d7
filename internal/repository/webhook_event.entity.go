package repository

import (
	"time"

	"github.com/nimasrn/campaign-gateway/internal/model"
)

type WebhookEventEntity struct {
	ID                int64     `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	EventType         string    `db:"event_type"          gorm:"column:event_type;not null;index"`
	Email             string    `db:"email"               gorm:"column:email;not null"`
	ProviderMessageID string    `db:"provider_message_id" gorm:"column:provider_message_id;index"`
	Payload           string    `db:"payload"             gorm:"column:payload"`
	ReceivedAt        time.Time `db:"received_at"         gorm:"column:received_at;autoCreateTime;index"`
}

func (WebhookEventEntity) TableName() string {
	return "webhook_events"
}

func toWebhookEventEntity(m *model.WebhookEvent) *WebhookEventEntity {
	if m == nil {
		return nil
	}
	return &WebhookEventEntity{
		ID:                m.ID,
		EventType:         string(m.EventType),
		Email:             m.Email,
		ProviderMessageID: m.ProviderMessageID,
		Payload:           m.Payload,
		ReceivedAt:        m.ReceivedAt,
	}
}

func toWebhookEventModel(e *WebhookEventEntity) *model.WebhookEvent {
	if e == nil {
		return nil
	}
	return &model.WebhookEvent{
		ID:                e.ID,
		EventType:         model.WebhookEventType(e.EventType),
		Email:             e.Email,
		ProviderMessageID: e.ProviderMessageID,
		Payload:           e.Payload,
		ReceivedAt:        e.ReceivedAt,
	}
}
