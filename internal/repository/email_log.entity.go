package repository

import (
	"time"

	"github.com/nimasrn/campaign-gateway/internal/model"
)

type EmailLogEntity struct {
	ID                int64      `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	CampaignID        int64      `db:"campaign_id"         gorm:"column:campaign_id;not null;index"`
	SubscriberID      *int64     `db:"subscriber_id"       gorm:"column:subscriber_id;index"`
	Email             string     `db:"email"               gorm:"column:email;not null"`
	Status            string     `db:"status"              gorm:"column:status;not null;index"`
	ProviderMessageID string     `db:"provider_message_id" gorm:"column:provider_message_id;index"`
	ErrorMessage      string     `db:"error_message"       gorm:"column:error_message"`
	SentAt            *time.Time `db:"sent_at"             gorm:"column:sent_at"`
	DeliveredAt       *time.Time `db:"delivered_at"        gorm:"column:delivered_at"`
	OpenedAt          *time.Time `db:"opened_at"           gorm:"column:opened_at"`
	ClickedAt         *time.Time `db:"clicked_at"          gorm:"column:clicked_at"`
	BouncedAt         *time.Time `db:"bounced_at"          gorm:"column:bounced_at"`
	UnsubscribedAt    *time.Time `db:"unsubscribed_at"     gorm:"column:unsubscribed_at"`
}

func (EmailLogEntity) TableName() string {
	return "email_logs"
}

func toEmailLogEntity(m *model.EmailLog) *EmailLogEntity {
	if m == nil {
		return nil
	}
	return &EmailLogEntity{
		ID:                m.ID,
		CampaignID:        m.CampaignID,
		SubscriberID:      m.SubscriberID,
		Email:             m.Email,
		Status:            string(m.Status),
		ProviderMessageID: m.ProviderMessageID,
		ErrorMessage:      m.ErrorMessage,
		SentAt:            m.SentAt,
		DeliveredAt:       m.DeliveredAt,
		OpenedAt:          m.OpenedAt,
		ClickedAt:         m.ClickedAt,
		BouncedAt:         m.BouncedAt,
		UnsubscribedAt:    m.UnsubscribedAt,
	}
}

func toEmailLogModel(e *EmailLogEntity) *model.EmailLog {
	if e == nil {
		return nil
	}
	return &model.EmailLog{
		ID:                e.ID,
		CampaignID:        e.CampaignID,
		SubscriberID:      e.SubscriberID,
		Email:             e.Email,
		Status:            model.EmailLogStatus(e.Status),
		ProviderMessageID: e.ProviderMessageID,
		ErrorMessage:      e.ErrorMessage,
		SentAt:            e.SentAt,
		DeliveredAt:       e.DeliveredAt,
		OpenedAt:          e.OpenedAt,
		ClickedAt:         e.ClickedAt,
		BouncedAt:         e.BouncedAt,
		UnsubscribedAt:    e.UnsubscribedAt,
	}
}

func toEmailLogModels(entities []*EmailLogEntity) []*model.EmailLog {
	if entities == nil {
		return nil
	}
	models := make([]*model.EmailLog, len(entities))
	for i, e := range entities {
		models[i] = toEmailLogModel(e)
	}
	return models
}
