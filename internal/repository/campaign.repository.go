package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/nimasrn/campaign-gateway/internal/model"
	"github.com/nimasrn/campaign-gateway/pkg/pg"
)

var (
	// ErrCampaignNotFound is returned when a campaign does not exist.
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrStaleCampaign is returned when a guarded status update matched no row,
	// meaning another writer changed the status first.
	ErrStaleCampaign = errors.New("campaign status changed concurrently")
)

type CampaignRepository struct {
	*pg.DB
}

func NewCampaignRepository(db *pg.DB) *CampaignRepository {
	return &CampaignRepository{
		db,
	}
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	entity := toCampaignEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toCampaignModel(entity), nil
}

func (r *CampaignRepository) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	var entity CampaignEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return toCampaignModel(&entity), nil
}

func (r *CampaignRepository) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&CampaignEntity{})

	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*CampaignEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toCampaignModels(entities), total, nil
}

// ListDue returns scheduled campaigns whose scheduled time has passed.
func (r *CampaignRepository) ListDue(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	var entities []*CampaignEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ?", model.CampaignStatusScheduled).
		Where("scheduled_at IS NOT NULL AND scheduled_at <= ?", now).
		Order("scheduled_at ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toCampaignModels(entities), nil
}

func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	entity := toCampaignEntity(c)
	result := r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ?", c.ID).
		Select("name", "subject", "body_html", "body_text", "status", "scheduled_at").
		Updates(entity)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// MarkSending moves a campaign into the sending state, guarded so the
// transition only happens from a sendable status.
func (r *CampaignRepository) MarkSending(ctx context.Context, id int64, startedAt time.Time) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ?", id).
		Where("status IN ?", []model.CampaignStatus{model.CampaignStatusDraft, model.CampaignStatusScheduled}).
		Updates(map[string]interface{}{
			"status":  model.CampaignStatusSending,
			"sent_at": startedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleCampaign
	}
	return nil
}

// SetTotalRecipients persists the recipient count captured at send start.
func (r *CampaignRepository) SetTotalRecipients(ctx context.Context, id int64, total int) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ?", id).
		Update("total_recipients", total).
		Error
}

// AddCounters adds a batch's sent/failed deltas to the campaign counters.
func (r *CampaignRepository) AddCounters(ctx context.Context, id int64, sent, failed int) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sent_count":   gorm.Expr("sent_count + ?", sent),
			"failed_count": gorm.Expr("failed_count + ?", failed),
		}).
		Error
}

// SetStatus unconditionally sets the campaign status. Used for terminal
// transitions out of sending.
func (r *CampaignRepository) SetStatus(ctx context.Context, id int64, status model.CampaignStatus) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// Delete removes a campaign only while it is still a draft or scheduled.
func (r *CampaignRepository) Delete(ctx context.Context, id int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Where("id = ?", id).
		Where("status IN ?", []model.CampaignStatus{model.CampaignStatusDraft, model.CampaignStatusScheduled}).
		Delete(&CampaignEntity{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleCampaign
	}
	return nil
}
