package repository

import (
	"time"

	"github.com/nimasrn/campaign-gateway/internal/model"
)

type EmailTemplateEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	Name      string    `db:"name"       gorm:"column:name;not null;uniqueIndex"`
	Subject   string    `db:"subject"    gorm:"column:subject;not null"`
	BodyHTML  string    `db:"body_html"  gorm:"column:body_html;not null"`
	BodyText  string    `db:"body_text"  gorm:"column:body_text"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `db:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (EmailTemplateEntity) TableName() string {
	return "email_templates"
}

func toEmailTemplateEntity(m *model.EmailTemplate) *EmailTemplateEntity {
	if m == nil {
		return nil
	}
	return &EmailTemplateEntity{
		ID:        m.ID,
		Name:      m.Name,
		Subject:   m.Subject,
		BodyHTML:  m.BodyHTML,
		BodyText:  m.BodyText,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toEmailTemplateModel(e *EmailTemplateEntity) *model.EmailTemplate {
	if e == nil {
		return nil
	}
	return &model.EmailTemplate{
		ID:        e.ID,
		Name:      e.Name,
		Subject:   e.Subject,
		BodyHTML:  e.BodyHTML,
		BodyText:  e.BodyText,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func toEmailTemplateModels(entities []*EmailTemplateEntity) []*model.EmailTemplate {
	if entities == nil {
		return nil
	}
	models := make([]*model.EmailTemplate, len(entities))
	for i, e := range entities {
		models[i] = toEmailTemplateModel(e)
	}
	return models
}
