package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nimasrn/campaign-gateway/internal/model"
	"github.com/nimasrn/campaign-gateway/pkg/pg"
)

var (
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrDuplicateEmail     = errors.New("email already subscribed")
)

type SubscriberRepository struct {
	*pg.DB
}

func NewSubscriberRepository(db *pg.DB) *SubscriberRepository {
	return &SubscriberRepository{
		db,
	}
}

func (r *SubscriberRepository) Create(ctx context.Context, s *model.Subscriber) (*model.Subscriber, error) {
	entity := toSubscriberEntity(s)

	err := r.Write(ctx).WithContext(ctx).Create(entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "duplicate") {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	return toSubscriberModel(entity), nil
}

func (r *SubscriberRepository) Get(ctx context.Context, id int64) (*model.Subscriber, error) {
	var entity SubscriberEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriberNotFound
		}
		return nil, err
	}
	return toSubscriberModel(&entity), nil
}

func (r *SubscriberRepository) GetByEmail(ctx context.Context, email string) (*model.Subscriber, error) {
	var entity SubscriberEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriberNotFound
		}
		return nil, err
	}
	return toSubscriberModel(&entity), nil
}

func (r *SubscriberRepository) GetByToken(ctx context.Context, token string) (*model.Subscriber, error) {
	var entity SubscriberEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("unsubscribe_token = ?", token).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriberNotFound
		}
		return nil, err
	}
	return toSubscriberModel(&entity), nil
}

// ListActive returns every active subscriber in stable id order. A limit of
// 0 means no limit.
func (r *SubscriberRepository) ListActive(ctx context.Context, limit int) ([]*model.Subscriber, error) {
	q := r.Read(ctx).WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var entities []*SubscriberEntity
	if err := q.Find(&entities).Error; err != nil {
		return nil, err
	}
	return toSubscriberModels(entities), nil
}

func (r *SubscriberRepository) List(ctx context.Context, f model.SubscriberFilter) ([]*model.Subscriber, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&SubscriberEntity{})

	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}
	if f.Email != nil && *f.Email != "" {
		q = q.Where("email = ?", strings.ToLower(*f.Email))
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

	var entities []*SubscriberEntity
	if err := q.Order("id ASC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toSubscriberModels(entities), total, nil
}

// Upsert inserts or refreshes a subscriber keyed by email. Used by CSV
// import; an existing row keeps its token and active flag but picks up the
// imported name and custom message.
func (r *SubscriberRepository) Upsert(ctx context.Context, s *model.Subscriber) (created bool, err error) {
	entity := toSubscriberEntity(s)

	result := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "custom_message"}),
		}).
		Create(entity)
	if result.Error != nil {
		return false, result.Error
	}

	// RowsAffected is 1 for both paths on some drivers, so detect creation
	// by checking whether our generated token survived.
	var stored SubscriberEntity
	if err := r.Read(ctx).WithContext(ctx).Where("email = ?", entity.Email).First(&stored).Error; err != nil {
		return false, err
	}
	return stored.UnsubscribeToken == s.UnsubscribeToken, nil
}

// Deactivate flips the subscriber inactive and stamps the unsubscribe time.
// Idempotent: deactivating an inactive subscriber is a no-op.
func (r *SubscriberRepository) Deactivate(ctx context.Context, id int64, at time.Time) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&SubscriberEntity{}).
		Where("id = ?", id).
		Where("is_active = ?", true).
		Updates(map[string]interface{}{
			"is_active":       false,
			"unsubscribed_at": at,
		})
	return result.Error
}

// DeactivateByEmail deactivates the subscriber owning the given address.
func (r *SubscriberRepository) DeactivateByEmail(ctx context.Context, email string, at time.Time) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&SubscriberEntity{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Where("is_active = ?", true).
		Updates(map[string]interface{}{
			"is_active":       false,
			"unsubscribed_at": at,
		}).
		Error
}
