package repository

import (
	"time"

	"github.com/nimasrn/campaign-gateway/internal/model"
)

type SubscriberEntity struct {
	ID               int64      `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	Email            string     `db:"email"             gorm:"column:email;not null;uniqueIndex"`
	Name             string     `db:"name"              gorm:"column:name"`
	CustomMessage    string     `db:"custom_message"    gorm:"column:custom_message"`
	IsActive         bool       `db:"is_active"         gorm:"column:is_active;not null;default:true;index"`
	UnsubscribeToken string     `db:"unsubscribe_token" gorm:"column:unsubscribe_token;not null;uniqueIndex"`
	SubscribedAt     time.Time  `db:"subscribed_at"     gorm:"column:subscribed_at;autoCreateTime"`
	UnsubscribedAt   *time.Time `db:"unsubscribed_at"   gorm:"column:unsubscribed_at"`
}

func (SubscriberEntity) TableName() string {
	return "subscribers"
}

func toSubscriberEntity(m *model.Subscriber) *SubscriberEntity {
	if m == nil {
		return nil
	}
	return &SubscriberEntity{
		ID:               m.ID,
		Email:            m.Email,
		Name:             m.Name,
		CustomMessage:    m.CustomMessage,
		IsActive:         m.IsActive,
		UnsubscribeToken: m.UnsubscribeToken,
		SubscribedAt:     m.SubscribedAt,
		UnsubscribedAt:   m.UnsubscribedAt,
	}
}

func toSubscriberModel(e *SubscriberEntity) *model.Subscriber {
	if e == nil {
		return nil
	}
	return &model.Subscriber{
		ID:               e.ID,
		Email:            e.Email,
		Name:             e.Name,
		CustomMessage:    e.CustomMessage,
		IsActive:         e.IsActive,
		UnsubscribeToken: e.UnsubscribeToken,
		SubscribedAt:     e.SubscribedAt,
		UnsubscribedAt:   e.UnsubscribedAt,
	}
}

func toSubscriberModels(entities []*SubscriberEntity) []*model.Subscriber {
	if entities == nil {
		return nil
	}
	models := make([]*model.Subscriber, len(entities))
	for i, e := range entities {
		models[i] = toSubscriberModel(e)
	}
	return models
}
