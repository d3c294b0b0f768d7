package model

import (
	"errors"
	"time"
)

type EmailTemplate struct {
	ID        int64     `json:"id"         db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	Name      string    `json:"name"       db:"name"       gorm:"column:name;not null;uniqueIndex"`
	Subject   string    `json:"subject"    db:"subject"    gorm:"column:subject;not null"`
	BodyHTML  string    `json:"body_html"  db:"body_html"  gorm:"column:body_html;not null"`
	BodyText  string    `json:"body_text"  db:"body_text"  gorm:"column:body_text"`
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (EmailTemplate) TableName() string { return "email_templates" }

// TemplateCreateRequest is the input for creating a template.
type TemplateCreateRequest struct {
	Name     string
	Subject  string
	BodyHTML string
	BodyText string
}

func (p TemplateCreateRequest) Validate() error {
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
