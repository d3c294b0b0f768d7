package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/nimasrn/campaign-gateway/internal/model"
	"github.com/nimasrn/campaign-gateway/pkg/pg"
)

var ErrTemplateNotFound = errors.New("email template not found")

type EmailTemplateRepository struct {
	*pg.DB
}

func NewEmailTemplateRepository(db *pg.DB) *EmailTemplateRepository {
	return &EmailTemplateRepository{
		db,
	}
}

func (r *EmailTemplateRepository) Create(ctx context.Context, t *model.EmailTemplate) (*model.EmailTemplate, error) {
	entity := toEmailTemplateEntity(t)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toEmailTemplateModel(entity), nil
}

func (r *EmailTemplateRepository) Get(ctx context.Context, id int64) (*model.EmailTemplate, error) {
	var entity EmailTemplateEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return toEmailTemplateModel(&entity), nil
}

func (r *EmailTemplateRepository) List(ctx context.Context) ([]*model.EmailTemplate, error) {
	var entities []*EmailTemplateEntity
	if err := r.Read(ctx).WithContext(ctx).Order("name ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toEmailTemplateModels(entities), nil
}

func (r *EmailTemplateRepository) Update(ctx context.Context, t *model.EmailTemplate) error {
	entity := toEmailTemplateEntity(t)
	result := r.Write(ctx).WithContext(ctx).
		Model(&EmailTemplateEntity{}).
		Where("id = ?", t.ID).
		Select("name", "subject", "body_html", "body_text").
		Updates(entity)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (r *EmailTemplateRepository) Delete(ctx context.Context, id int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&EmailTemplateEntity{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTemplateNotFound
	}
	return nil
}
