package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nimasrn/campaign-gateway/internal/model"
	"github.com/nimasrn/campaign-gateway/pkg/logger"
)

var ErrInvalidToken = errors.New("unknown unsubscribe token")

type SubscriberRepository interface {
	Create(ctx context.Context, s *model.Subscriber) (*model.Subscriber, error)
	Get(ctx context.Context, id int64) (*model.Subscriber, error)
	GetByToken(ctx context.Context, token string) (*model.Subscriber, error)
	List(ctx context.Context, f model.SubscriberFilter) ([]*model.Subscriber, int64, error)
	Upsert(ctx context.Context, s *model.Subscriber) (created bool, err error)
	Deactivate(ctx context.Context, id int64, at time.Time) error
}

type SubscriberService struct {
	subscriberRepo SubscriberRepository
}

func NewSubscriberService(subscriberRepo SubscriberRepository) *SubscriberService {
	return &SubscriberService{subscriberRepo: subscriberRepo}
}

func (s *SubscriberService) Create(ctx context.Context, p model.SubscriberCreateRequest) (*model.Subscriber, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	sub := model.NewSubscriber(p.Email, p.Name)
	sub.CustomMessage = strings.TrimSpace(p.CustomMessage)
	return s.subscriberRepo.Create(ctx, &sub)
}

func (s *SubscriberService) Get(ctx context.Context, id int64) (*model.Subscriber, error) {
	return s.subscriberRepo.Get(ctx, id)
}

func (s *SubscriberService) List(ctx context.Context, f model.SubscriberFilter) ([]*model.Subscriber, int64, error) {
	return s.subscriberRepo.List(ctx, f)
}

// Unsubscribe deactivates the subscriber owning the token. Always by token,
// never by email, so forwarded campaign mails cannot unsubscribe others.
func (s *SubscriberService) Unsubscribe(ctx context.Context, token string) error {
	sub, err := s.subscriberRepo.GetByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return s.subscriberRepo.Deactivate(ctx, sub.ID, time.Now())
}

// ImportCSV upserts subscribers from a CSV stream. Expected columns:
// email[,name[,custom_message]]; a header row starting with "email" is
// skipped. Bad rows are skipped and counted, never fatal.
func (s *SubscriberService) ImportCSV(ctx context.Context, r io.Reader) (*model.ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	result := &model.ImportResult{}
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, fmt.Errorf("read csv: %w", err)
		}
		line++

		if line == 1 && len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "email") {
			continue
		}
		if len(record) == 0 || !strings.Contains(record[0], "@") {
			result.Skipped++
			continue
		}

		sub := model.NewSubscriber(record[0], field(record, 1))
		sub.CustomMessage = field(record, 2)

		created, err := s.subscriberRepo.Upsert(ctx, &sub)
		if err != nil {
			logger.Warn("subscriber import row failed", "line", line, "email", sub.Email, "error", err)
			result.Skipped++
			continue
		}
		if created {
			result.Imported++
		} else {
			result.Updated++
		}
	}

	logger.Info("subscriber import finished",
		"imported", result.Imported, "updated", result.Updated, "skipped", result.Skipped)
	return result, nil
}

func field(record []string, i int) string {
	if i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}
