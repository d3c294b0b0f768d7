package services

import (
	"context"
	"fmt"

	"github.com/nimasrn/campaign-gateway/internal/compose"
	"github.com/nimasrn/campaign-gateway/internal/model"
	"github.com/nimasrn/campaign-gateway/internal/render"
)

type TemplateRepository interface {
	Create(ctx context.Context, t *model.EmailTemplate) (*model.EmailTemplate, error)
	Get(ctx context.Context, id int64) (*model.EmailTemplate, error)
	List(ctx context.Context) ([]*model.EmailTemplate, error)
	Update(ctx context.Context, t *model.EmailTemplate) error
	Delete(ctx context.Context, id int64) error
}

type TemplateService struct {
	templateRepo TemplateRepository
	composer     *compose.Composer
}

func NewTemplateService(templateRepo TemplateRepository, composer *compose.Composer) *TemplateService {
	return &TemplateService{templateRepo: templateRepo, composer: composer}
}

// Create rejects malformed bodies at save time, so campaigns built from the
// template never fail composition for syntax.
func (s *TemplateService) Create(ctx context.Context, p model.TemplateCreateRequest) (*model.EmailTemplate, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := validateTemplateBodies(p.Subject, p.BodyHTML, p.BodyText); err != nil {
		return nil, err
	}

	return s.templateRepo.Create(ctx, &model.EmailTemplate{
		Name:     p.Name,
		Subject:  p.Subject,
		BodyHTML: p.BodyHTML,
		BodyText: p.BodyText,
	})
}

func (s *TemplateService) Get(ctx context.Context, id int64) (*model.EmailTemplate, error) {
	return s.templateRepo.Get(ctx, id)
}

func (s *TemplateService) List(ctx context.Context) ([]*model.EmailTemplate, error) {
	return s.templateRepo.List(ctx)
}

func (s *TemplateService) Update(ctx context.Context, t *model.EmailTemplate) error {
	if err := validateTemplateBodies(t.Subject, t.BodyHTML, t.BodyText); err != nil {
		return err
	}
	return s.templateRepo.Update(ctx, t)
}

func (s *TemplateService) Delete(ctx context.Context, id int64) error {
	return s.templateRepo.Delete(ctx, id)
}

// Preview renders the template against a sample subscriber so operators can
// inspect the substituted output before wiring it to a campaign.
func (s *TemplateService) Preview(ctx context.Context, id int64, sampleEmail, sampleName string) (*model.OutboundEmail, error) {
	tpl, err := s.templateRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	sub := model.NewSubscriber(sampleEmail, sampleName)
	camp := model.Campaign{
		Name:     tpl.Name,
		Subject:  tpl.Subject,
		BodyHTML: tpl.BodyHTML,
		BodyText: tpl.BodyText,
	}

	out, err := s.composer.Compose(sub, camp)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func validateTemplateBodies(subject, bodyHTML, bodyText string) error {
	if err := render.Validate(subject); err != nil {
		return fmt.Errorf("subject: %w", err)
	}
	if err := render.Validate(bodyHTML); err != nil {
		return fmt.Errorf("body_html: %w", err)
	}
	if bodyText != "" {
		if err := render.Validate(bodyText); err != nil {
			return fmt.Errorf("body_text: %w", err)
		}
	}
	return nil
}
