package model

import (
	"errors"
	"time"
)

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft               CampaignStatus = "draft"
	CampaignStatusScheduled           CampaignStatus = "scheduled"
	CampaignStatusSending             CampaignStatus = "sending"
	CampaignStatusCompleted           CampaignStatus = "completed"
	CampaignStatusCompletedWithErrors CampaignStatus = "completed_with_errors"
	CampaignStatusFailed              CampaignStatus = "failed"
)

// Sendable reports whether a campaign in this status may enter a send run.
func (s CampaignStatus) Sendable() bool {
	return s == CampaignStatusDraft || s == CampaignStatusScheduled
}

type Campaign struct {
	ID              int64          `json:"id"               db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	Name            string         `json:"name"             db:"name"              gorm:"column:name;not null"`
	Subject         string         `json:"subject"          db:"subject"           gorm:"column:subject;not null"`
	BodyHTML        string         `json:"body_html"        db:"body_html"         gorm:"column:body_html;not null"`
	BodyText        string         `json:"body_text"        db:"body_text"         gorm:"column:body_text"`
	Status          CampaignStatus `json:"status"           db:"status"            gorm:"column:status;not null;index;default:draft"`
	ScheduledAt     *time.Time     `json:"scheduled_at"     db:"scheduled_at"      gorm:"column:scheduled_at"` // nullable
	SentAt          *time.Time     `json:"sent_at"          db:"sent_at"           gorm:"column:sent_at"`      // nullable
	TotalRecipients int            `json:"total_recipients" db:"total_recipients"  gorm:"column:total_recipients;not null;default:0"`
	SentCount       int            `json:"sent_count"       db:"sent_count"        gorm:"column:sent_count;not null;default:0"`
	FailedCount     int            `json:"failed_count"     db:"failed_count"      gorm:"column:failed_count;not null;default:0"`
	CreatedAt       time.Time      `json:"created_at"       db:"created_at"        gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `json:"updated_at"       db:"updated_at"        gorm:"column:updated_at;autoUpdateTime"`
}

func (Campaign) TableName() string { return "campaigns" }

// CampaignCreateRequest is the input for creating a campaign.
type CampaignCreateRequest struct {
	Name        string
	Subject     string
	BodyHTML    string
	BodyText    string
	ScheduledAt *time.Time
}

func (p CampaignCreateRequest) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Subject == "" {
		return errors.New("subject is required")
	}
	if p.BodyHTML == "" {
		return errors.New("body_html is required")
	}
	return nil
}

// CampaignFilter controls List queries.
type CampaignFilter struct {
	Statuses []CampaignStatus // IN (...)
	From     *time.Time
	To       *time.Time
	Limit    int  // default 50
	Offset   int  // for pagination
	Desc     bool // order by created_at
}

// CampaignStats is the aggregated delivery view of a single campaign.
type CampaignStats struct {
	CampaignID     int64   `json:"campaign_id"`
	Status         string  `json:"status"`
	TotalSent      int64   `json:"total_sent"`
	TotalDelivered int64   `json:"total_delivered"`
	TotalOpened    int64   `json:"total_opened"`
	TotalClicked   int64   `json:"total_clicked"`
	TotalBounced   int64   `json:"total_bounced"`
	TotalFailed    int64   `json:"total_failed"`
	OpenRate       float64 `json:"open_rate"`
	ClickRate      float64 `json:"click_rate"`
}
