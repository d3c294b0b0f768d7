package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Subscriber struct {
	ID               int64      `json:"id"                db:"id"                 gorm:"primaryKey;autoIncrement;column:id"`
	Email            string     `json:"email"             db:"email"              gorm:"column:email;not null;uniqueIndex"`
	Name             string     `json:"name"              db:"name"               gorm:"column:name"`
	CustomMessage    string     `json:"custom_message"    db:"custom_message"     gorm:"column:custom_message"`
	IsActive         bool       `json:"is_active"         db:"is_active"          gorm:"column:is_active;not null;default:true;index"`
	UnsubscribeToken string     `json:"unsubscribe_token" db:"unsubscribe_token"  gorm:"column:unsubscribe_token;not null;uniqueIndex"`
	SubscribedAt     time.Time  `json:"subscribed_at"     db:"subscribed_at"      gorm:"column:subscribed_at;autoCreateTime"`
	UnsubscribedAt   *time.Time `json:"unsubscribed_at"   db:"unsubscribed_at"    gorm:"column:unsubscribed_at"` // nullable
}

func (Subscriber) TableName() string { return "subscribers" }

// DisplayName returns the subscriber's name, falling back to the part of
// the email address before the "@" when no name is set.
func (s Subscriber) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if i := strings.Index(s.Email, "@"); i > 0 {
		return s.Email[:i]
	}
	return s.Email
}

// NewSubscriber normalizes the email and assigns a fresh unsubscribe token.
func NewSubscriber(email, name string) Subscriber {
	return Subscriber{
		Email:            strings.ToLower(strings.TrimSpace(email)),
		Name:             strings.TrimSpace(name),
		IsActive:         true,
		UnsubscribeToken: uuid.NewString(),
	}
}

// SubscriberCreateRequest is the input for creating a subscriber.
type SubscriberCreateRequest struct {
	Email         string
	Name          string
	CustomMessage string
}

func (p SubscriberCreateRequest) Validate() error {
	if p.Email == "" {
		return errors.New("email is required")
	}
	if !strings.Contains(p.Email, "@") {
		return errors.New("email is invalid")
	}
	return nil
}

// SubscriberFilter controls List queries.
type SubscriberFilter struct {
	Active *bool
	Email  *string // equals (normalized)
	Limit  int     // default 50
	Offset int     // for pagination
}

// ImportResult summarizes a CSV import run.
type ImportResult struct {
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}
