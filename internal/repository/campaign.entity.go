package repository

import (
	"time"

	"github.com/nimasrn/campaign-gateway/internal/model"
)

type CampaignEntity struct {
	ID              int64      `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	Name            string     `db:"name"             gorm:"column:name;not null"`
	Subject         string     `db:"subject"          gorm:"column:subject;not null"`
	BodyHTML        string     `db:"body_html"        gorm:"column:body_html;not null"`
	BodyText        string     `db:"body_text"        gorm:"column:body_text"`
	Status          string     `db:"status"           gorm:"column:status;not null;index;default:draft"`
	ScheduledAt     *time.Time `db:"scheduled_at"     gorm:"column:scheduled_at"`
	SentAt          *time.Time `db:"sent_at"          gorm:"column:sent_at"`
	TotalRecipients int        `db:"total_recipients" gorm:"column:total_recipients;not null;default:0"`
	SentCount       int        `db:"sent_count"       gorm:"column:sent_count;not null;default:0"`
	FailedCount     int        `db:"failed_count"     gorm:"column:failed_count;not null;default:0"`
	CreatedAt       time.Time  `db:"created_at"       gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `db:"updated_at"       gorm:"column:updated_at;autoUpdateTime"`
}

func (CampaignEntity) TableName() string {
	return "campaigns"
}

func toCampaignEntity(m *model.Campaign) *CampaignEntity {
	if m == nil {
		return nil
	}
	return &CampaignEntity{
		ID:              m.ID,
		Name:            m.Name,
		Subject:         m.Subject,
		BodyHTML:        m.BodyHTML,
		BodyText:        m.BodyText,
		Status:          string(m.Status),
		ScheduledAt:     m.ScheduledAt,
		SentAt:          m.SentAt,
		TotalRecipients: m.TotalRecipients,
		SentCount:       m.SentCount,
		FailedCount:     m.FailedCount,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toCampaignModel(e *CampaignEntity) *model.Campaign {
	if e == nil {
		return nil
	}
	return &model.Campaign{
		ID:              e.ID,
		Name:            e.Name,
		Subject:         e.Subject,
		BodyHTML:        e.BodyHTML,
		BodyText:        e.BodyText,
		Status:          model.CampaignStatus(e.Status),
		ScheduledAt:     e.ScheduledAt,
		SentAt:          e.SentAt,
		TotalRecipients: e.TotalRecipients,
		SentCount:       e.SentCount,
		FailedCount:     e.FailedCount,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func toCampaignModels(entities []*CampaignEntity) []*model.Campaign {
	if entities == nil {
		return nil
	}
	models := make([]*model.Campaign, len(entities))
	for i, e := range entities {
		models[i] = toCampaignModel(e)
	}
	return models
}
