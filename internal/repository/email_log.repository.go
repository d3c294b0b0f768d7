package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/nimasrn/campaign-gateway/internal/model"
	"github.com/nimasrn/campaign-gateway/pkg/pg"
)

var ErrEmailLogNotFound = errors.New("email log not found")

type EmailLogRepository struct {
	*pg.DB
}

func NewEmailLogRepository(db *pg.DB) *EmailLogRepository {
	return &EmailLogRepository{
		db,
	}
}

func (r *EmailLogRepository) Create(ctx context.Context, l *model.EmailLog) (*model.EmailLog, error) {
	entity := toEmailLogEntity(l)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toEmailLogModel(entity), nil
}

// CreateBatch appends a batch of log rows in one statement so a crash never
// leaves a partially written batch.
func (r *EmailLogRepository) CreateBatch(ctx context.Context, logs []*model.EmailLog) error {
	if len(logs) == 0 {
		return nil
	}
	entities := make([]*EmailLogEntity, len(logs))
	for i, l := range logs {
		entities[i] = toEmailLogEntity(l)
	}
	return r.Write(ctx).WithContext(ctx).Create(&entities).Error
}

func (r *EmailLogRepository) List(ctx context.Context, f model.EmailLogFilter) ([]*model.EmailLog, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&EmailLogEntity{})

	if f.CampaignID != nil {
		q = q.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.SubscriberID != nil {
		q = q.Where("subscriber_id = ?", *f.SubscriberID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*EmailLogEntity
	if err := q.Order("id ASC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toEmailLogModels(entities), total, nil
}

// GetByProviderMessageID looks a log row up by the id the provider echoed
// back on its webhook.
func (r *EmailLogRepository) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*model.EmailLog, error) {
	var entity EmailLogEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("provider_message_id = ?", providerMessageID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmailLogNotFound
		}
		return nil, err
	}
	return toEmailLogModel(&entity), nil
}

// AdvanceStatus moves a log row forward in its delivery lifecycle and stamps
// the matching timestamp column.
func (r *EmailLogRepository) AdvanceStatus(ctx context.Context, logID int64, status model.EmailLogStatus, at time.Time) error {
	updates := map[string]interface{}{"status": status}
	switch status {
	case model.EmailLogStatusDelivered:
		updates["delivered_at"] = at
	case model.EmailLogStatusOpened:
		updates["opened_at"] = at
	case model.EmailLogStatusClicked:
		updates["clicked_at"] = at
	case model.EmailLogStatusBounced:
		updates["bounced_at"] = at
	case model.EmailLogStatusUnsubscribed:
		updates["unsubscribed_at"] = at
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&EmailLogEntity{}).
		Where("id = ?", logID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEmailLogNotFound
	}
	return nil
}

// CountByStatus aggregates a campaign's log rows per status.
func (r *EmailLogRepository) CountByStatus(ctx context.Context, campaignID int64) (map[model.EmailLogStatus]int64, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	err := r.Read(ctx).WithContext(ctx).
		Model(&EmailLogEntity{}).
		Select("status, COUNT(*) AS total").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.EmailLogStatus]int64, len(rows))
	for _, rw := range rows {
		counts[model.EmailLogStatus(rw.Status)] = rw.Total
	}
	return counts, nil
}

// CountOpened counts rows that reached at least the opened state. Clicked
// rows imply an open even when the open webhook never arrived.
func (r *EmailLogRepository) CountOpened(ctx context.Context, campaignID int64) (int64, error) {
	var total int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&EmailLogEntity{}).
		Where("campaign_id = ?", campaignID).
		Where("status IN ? OR opened_at IS NOT NULL",
			[]model.EmailLogStatus{model.EmailLogStatusOpened, model.EmailLogStatusClicked}).
		Count(&total).
		Error
	return total, err
}
