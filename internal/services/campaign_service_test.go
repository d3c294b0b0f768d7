package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nimasrn/campaign-gateway/internal/model"
	"github.com/nimasrn/campaign-gateway/internal/render"
	"github.com/nimasrn/campaign-gateway/internal/repository"
)

type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Campaign), args.Get(1).(int64), args.Error(2)
}

func (m *MockCampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCampaignRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockTemplateStore struct {
	mock.Mock
}

func (m *MockTemplateStore) Get(ctx context.Context, id int64) (*model.EmailTemplate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EmailTemplate), args.Error(1)
}

type MockLogStatsStore struct {
	mock.Mock
}

func (m *MockLogStatsStore) CountByStatus(ctx context.Context, campaignID int64) (map[model.EmailLogStatus]int64, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[model.EmailLogStatus]int64), args.Error(1)
}

func (m *MockLogStatsStore) CountOpened(ctx context.Context, campaignID int64) (int64, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).(int64), args.Error(1)
}

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Schedule(campaignID int64, at time.Time) {
	m.Called(campaignID, at)
}

func (m *MockScheduler) Cancel(campaignID int64) bool {
	args := m.Called(campaignID)
	return args.Bool(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	args := m.Called(ctx, data, metadata)
	return args.String(0), args.Error(1)
}

func TestCampaignService_Create_Draft(t *testing.T) {
	repo := new(MockCampaignRepository)
	sched := new(MockScheduler)
	svc := NewCampaignService(repo, nil, nil, sched, nil)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(c *model.Campaign) bool {
		return c.Status == model.CampaignStatusDraft
	})).Return(&model.Campaign{ID: 1, Status: model.CampaignStatusDraft}, nil)

	created, err := svc.Create(context.Background(), model.CampaignCreateRequest{
		Name:     "Launch",
		Subject:  "Hi {{ name }}",
		BodyHTML: "<p>hello</p>",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	sched.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
}

func TestCampaignService_Create_ScheduledArmsScheduler(t *testing.T) {
	repo := new(MockCampaignRepository)
	sched := new(MockScheduler)
	svc := NewCampaignService(repo, nil, nil, sched, nil)

	at := time.Now().Add(time.Hour)
	stored := &model.Campaign{ID: 5, Status: model.CampaignStatusScheduled, ScheduledAt: &at}
	repo.On("Create", mock.Anything, mock.Anything).Return(stored, nil)
	sched.On("Schedule", int64(5), at).Return()

	_, err := svc.Create(context.Background(), model.CampaignCreateRequest{
		Name:        "Later",
		Subject:     "s",
		BodyHTML:    "b",
		ScheduledAt: &at,
	}, nil)
	require.NoError(t, err)
	sched.AssertCalled(t, "Schedule", int64(5), at)
}

func TestCampaignService_Create_CopiesTemplate(t *testing.T) {
	repo := new(MockCampaignRepository)
	tpls := new(MockTemplateStore)
	svc := NewCampaignService(repo, tpls, nil, nil, nil)

	tplID := int64(9)
	tpls.On("Get", mock.Anything, tplID).Return(&model.EmailTemplate{
		ID: tplID, Name: "welcome", Subject: "Welcome {{ name }}", BodyHTML: "<p>w</p>", BodyText: "w",
	}, nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(c *model.Campaign) bool {
		return c.Subject == "Welcome {{ name }}" && c.BodyHTML == "<p>w</p>"
	})).Return(&model.Campaign{ID: 2}, nil)

	_, err := svc.Create(context.Background(), model.CampaignCreateRequest{Name: "From template"}, &tplID)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestCampaignService_Create_MalformedBodyRejected(t *testing.T) {
	svc := NewCampaignService(new(MockCampaignRepository), nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), model.CampaignCreateRequest{
		Name:     "Bad",
		Subject:  "s",
		BodyHTML: "broken {{ name",
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, render.ErrMalformedTemplate)
}

func TestCampaignService_Send_PublishesTrigger(t *testing.T) {
	repo := new(MockCampaignRepository)
	pub := new(MockPublisher)
	svc := NewCampaignService(repo, nil, nil, nil, pub)

	repo.On("Get", mock.Anything, int64(1)).Return(&model.Campaign{ID: 1, Status: model.CampaignStatusDraft}, nil)
	pub.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything).Return("msg-1", nil)

	require.NoError(t, svc.Send(context.Background(), 1, false))
	pub.AssertExpectations(t)
}

func TestCampaignService_Send_InvalidState(t *testing.T) {
	repo := new(MockCampaignRepository)
	pub := new(MockPublisher)
	svc := NewCampaignService(repo, nil, nil, nil, pub)

	repo.On("Get", mock.Anything, int64(1)).Return(&model.Campaign{ID: 1, Status: model.CampaignStatusSending}, nil)

	err := svc.Send(context.Background(), 1, false)
	assert.ErrorIs(t, err, ErrInvalidState)
	pub.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything, mock.Anything)
}

func TestCampaignService_Update_ClearingScheduleDemotesToDraft(t *testing.T) {
	at := time.Now().Add(time.Hour)
	ctx := context.Background()

	t.Run("nil scheduled_at", func(t *testing.T) {
		repo := new(MockCampaignRepository)
		sched := new(MockScheduler)
		svc := NewCampaignService(repo, nil, nil, sched, nil)

		repo.On("Get", mock.Anything, int64(7)).Return(&model.Campaign{
			ID: 7, Status: model.CampaignStatusScheduled, ScheduledAt: &at,
		}, nil).Once()
		repo.On("Update", mock.Anything, mock.MatchedBy(func(c *model.Campaign) bool {
			return c.Status == model.CampaignStatusDraft && c.ScheduledAt == nil
		})).Return(nil).Once()
		sched.On("Cancel", int64(7)).Return(true).Once()

		require.NoError(t, svc.Update(ctx, &model.Campaign{
			ID: 7, Name: "n", Subject: "s", BodyHTML: "b",
		}))
		repo.AssertExpectations(t)
		sched.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
	})

	t.Run("past scheduled_at", func(t *testing.T) {
		repo := new(MockCampaignRepository)
		sched := new(MockScheduler)
		svc := NewCampaignService(repo, nil, nil, sched, nil)

		past := time.Now().Add(-time.Hour)
		repo.On("Get", mock.Anything, int64(8)).Return(&model.Campaign{
			ID: 8, Status: model.CampaignStatusScheduled, ScheduledAt: &at,
		}, nil).Once()
		repo.On("Update", mock.Anything, mock.MatchedBy(func(c *model.Campaign) bool {
			return c.Status == model.CampaignStatusDraft
		})).Return(nil).Once()
		sched.On("Cancel", int64(8)).Return(true).Once()

		require.NoError(t, svc.Update(ctx, &model.Campaign{
			ID: 8, Name: "n", Subject: "s", BodyHTML: "b", ScheduledAt: &past,
		}))
		sched.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
	})

	t.Run("future scheduled_at re-arms", func(t *testing.T) {
		repo := new(MockCampaignRepository)
		sched := new(MockScheduler)
		svc := NewCampaignService(repo, nil, nil, sched, nil)

		later := time.Now().Add(2 * time.Hour)
		repo.On("Get", mock.Anything, int64(9)).Return(&model.Campaign{
			ID: 9, Status: model.CampaignStatusScheduled, ScheduledAt: &at,
		}, nil).Once()
		repo.On("Update", mock.Anything, mock.MatchedBy(func(c *model.Campaign) bool {
			return c.Status == model.CampaignStatusScheduled
		})).Return(nil).Once()
		sched.On("Cancel", int64(9)).Return(true).Once()
		sched.On("Schedule", int64(9), later).Return().Once()

		require.NoError(t, svc.Update(ctx, &model.Campaign{
			ID: 9, Name: "n", Subject: "s", BodyHTML: "b", ScheduledAt: &later,
		}))
		sched.AssertExpectations(t)
	})
}

func TestCampaignService_Delete_GuardsState(t *testing.T) {
	repo := new(MockCampaignRepository)
	sched := new(MockScheduler)
	svc := NewCampaignService(repo, nil, nil, sched, nil)
	ctx := context.Background()

	t.Run("draft deleted and trigger cancelled", func(t *testing.T) {
		repo.On("Get", mock.Anything, int64(1)).Return(&model.Campaign{ID: 1, Status: model.CampaignStatusDraft}, nil).Once()
		repo.On("Delete", mock.Anything, int64(1)).Return(nil).Once()
		sched.On("Cancel", int64(1)).Return(false).Once()

		require.NoError(t, svc.Delete(ctx, 1))
	})

	t.Run("completed campaign protected", func(t *testing.T) {
		repo.On("Get", mock.Anything, int64(2)).Return(&model.Campaign{ID: 2, Status: model.CampaignStatusCompleted}, nil).Once()

		err := svc.Delete(ctx, 2)
		assert.ErrorIs(t, err, ErrInvalidState)
		repo.AssertNotCalled(t, "Delete", mock.Anything, int64(2))
	})

	t.Run("missing campaign", func(t *testing.T) {
		repo.On("Get", mock.Anything, int64(3)).Return(nil, repository.ErrCampaignNotFound).Once()
		err := svc.Delete(ctx, 3)
		assert.ErrorIs(t, err, repository.ErrCampaignNotFound)
	})
}

func TestCampaignService_Stats(t *testing.T) {
	repo := new(MockCampaignRepository)
	logs := new(MockLogStatsStore)
	svc := NewCampaignService(repo, nil, logs, nil, nil)

	repo.On("Get", mock.Anything, int64(1)).Return(&model.Campaign{
		ID: 1, Status: model.CampaignStatusCompleted, SentCount: 100, FailedCount: 4,
	}, nil)
	logs.On("CountByStatus", mock.Anything, int64(1)).Return(map[model.EmailLogStatus]int64{
		model.EmailLogStatusDelivered: 80,
		model.EmailLogStatusOpened:    15,
		model.EmailLogStatusClicked:   5,
		model.EmailLogStatusBounced:   2,
	}, nil)
	logs.On("CountOpened", mock.Anything, int64(1)).Return(int64(20), nil)

	stats, err := svc.Stats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stats.TotalSent)
	assert.Equal(t, int64(100), stats.TotalDelivered)
	assert.Equal(t, int64(20), stats.TotalOpened)
	// Open rate is a share of sent emails, not a sum of row ids.
	assert.InDelta(t, 20.0, stats.OpenRate, 0.001)
	assert.InDelta(t, 5.0, stats.ClickRate, 0.001)
}
