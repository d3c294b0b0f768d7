package model

import "time"

// EmailLogStatus tracks a single recipient's delivery lifecycle.
type EmailLogStatus string

const (
	EmailLogStatusPending      EmailLogStatus = "pending"
	EmailLogStatusSent         EmailLogStatus = "sent"
	EmailLogStatusFailed       EmailLogStatus = "failed"
	EmailLogStatusDelivered    EmailLogStatus = "delivered"
	EmailLogStatusOpened       EmailLogStatus = "opened"
	EmailLogStatusClicked      EmailLogStatus = "clicked"
	EmailLogStatusBounced      EmailLogStatus = "bounced"
	EmailLogStatusUnsubscribed EmailLogStatus = "unsubscribed"
)

type EmailLog struct {
	ID                int64          `json:"id"                  db:"id"                   gorm:"primaryKey;autoIncrement;column:id"`
	CampaignID        int64          `json:"campaign_id"         db:"campaign_id"          gorm:"column:campaign_id;not null;index"`
	Campaign          *Campaign      `json:"-"                                               gorm:"foreignKey:CampaignID;references:ID;constraint:OnDelete:CASCADE"`
	SubscriberID      *int64         `json:"subscriber_id"       db:"subscriber_id"        gorm:"column:subscriber_id;index"` // nullable, test sends have none
	Subscriber        *Subscriber    `json:"-"                                               gorm:"foreignKey:SubscriberID;references:ID;constraint:OnDelete:SET NULL"`
	Email             string         `json:"email"               db:"email"                gorm:"column:email;not null"`
	Status            EmailLogStatus `json:"status"              db:"status"               gorm:"column:status;not null;index"`
	ProviderMessageID string         `json:"provider_message_id" db:"provider_message_id"  gorm:"column:provider_message_id;index"`
	ErrorMessage      string         `json:"error_message"       db:"error_message"        gorm:"column:error_message"`
	SentAt            *time.Time     `json:"sent_at"             db:"sent_at"              gorm:"column:sent_at"`
	DeliveredAt       *time.Time     `json:"delivered_at"        db:"delivered_at"         gorm:"column:delivered_at"`
	OpenedAt          *time.Time     `json:"opened_at"           db:"opened_at"            gorm:"column:opened_at"`
	ClickedAt         *time.Time     `json:"clicked_at"          db:"clicked_at"           gorm:"column:clicked_at"`
	BouncedAt         *time.Time     `json:"bounced_at"          db:"bounced_at"           gorm:"column:bounced_at"`
	UnsubscribedAt    *time.Time     `json:"unsubscribed_at"     db:"unsubscribed_at"      gorm:"column:unsubscribed_at"`
}

func (EmailLog) TableName() string { return "email_logs" }

// EmailLogFilter controls List queries.
type EmailLogFilter struct {
	CampaignID   *int64
	SubscriberID *int64
	Statuses     []EmailLogStatus // IN (...)
	Limit        int              // default 50
	Offset       int              // for pagination
}
