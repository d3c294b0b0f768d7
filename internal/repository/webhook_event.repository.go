package repository

import (
	"context"
	"time"

	"github.com/nimasrn/campaign-gateway/internal/model"
	"github.com/nimasrn/campaign-gateway/pkg/pg"
)

type WebhookEventRepository struct {
	*pg.DB
}

func NewWebhookEventRepository(db *pg.DB) *WebhookEventRepository {
	return &WebhookEventRepository{
		db,
	}
}

func (r *WebhookEventRepository) Create(ctx context.Context, e *model.WebhookEvent) (*model.WebhookEvent, error) {
	entity := toWebhookEventEntity(e)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toWebhookEventModel(entity), nil
}

// DeleteOlderThan removes audit rows received before the cutoff and returns
// how many were purged. Run daily by the retention job.
func (r *WebhookEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.Write(ctx).WithContext(ctx).
		Where("received_at < ?", cutoff).
		Delete(&WebhookEventEntity{})
	return result.RowsAffected, result.Error
}
