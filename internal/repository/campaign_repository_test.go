package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimasrn/campaign-gateway/internal/model"
)

func newDraftCampaign() *model.Campaign {
	return &model.Campaign{
		Name:     "Launch",
		Subject:  "Hi {{ name }}",
		BodyHTML: "<p>hello</p>",
		Status:   model.CampaignStatusDraft,
	}
}

func TestCampaignRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, newDraftCampaign())
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Launch", got.Name)
	assert.Equal(t, model.CampaignStatusDraft, got.Status)
}

func TestCampaignRepository_Get_NotFound(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCampaignRepository(db)

	_, err := repo.Get(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestCampaignRepository_MarkSending(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, newDraftCampaign())
	require.NoError(t, err)

	t.Run("draft transitions to sending", func(t *testing.T) {
		err := repo.MarkSending(ctx, created.ID, time.Now())
		require.NoError(t, err)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, model.CampaignStatusSending, got.Status)
		assert.NotNil(t, got.SentAt)
	})

	t.Run("sending cannot transition again", func(t *testing.T) {
		err := repo.MarkSending(ctx, created.ID, time.Now())
		assert.ErrorIs(t, err, ErrStaleCampaign)
	})
}

func TestCampaignRepository_AddCounters(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, newDraftCampaign())
	require.NoError(t, err)

	require.NoError(t, repo.AddCounters(ctx, created.ID, 3, 1))
	require.NoError(t, repo.AddCounters(ctx, created.ID, 2, 0))

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.SentCount)
	assert.Equal(t, 1, got.FailedCount)
}

func TestCampaignRepository_ListDue(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	due := newDraftCampaign()
	due.Status = model.CampaignStatusScheduled
	due.ScheduledAt = &past
	dueCreated, err := repo.Create(ctx, due)
	require.NoError(t, err)

	notDue := newDraftCampaign()
	notDue.Status = model.CampaignStatusScheduled
	notDue.ScheduledAt = &future
	_, err = repo.Create(ctx, notDue)
	require.NoError(t, err)

	campaigns, err := repo.ListDue(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Equal(t, dueCreated.ID, campaigns[0].ID)
}

func TestCampaignRepository_Delete(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	t.Run("draft can be deleted", func(t *testing.T) {
		created, err := repo.Create(ctx, newDraftCampaign())
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, created.ID))
		_, err = repo.Get(ctx, created.ID)
		assert.ErrorIs(t, err, ErrCampaignNotFound)
	})

	t.Run("sending campaign is protected", func(t *testing.T) {
		created, err := repo.Create(ctx, newDraftCampaign())
		require.NoError(t, err)
		require.NoError(t, repo.MarkSending(ctx, created.ID, time.Now()))

		err = repo.Delete(ctx, created.ID)
		assert.ErrorIs(t, err, ErrStaleCampaign)
	})
}

func TestCampaignRepository_List(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := repo.Create(ctx, newDraftCampaign())
		require.NoError(t, err)
	}

	campaigns, total, err := repo.List(ctx, model.CampaignFilter{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, campaigns, 3)

	campaigns, total, err = repo.List(ctx, model.CampaignFilter{
		Statuses: []model.CampaignStatus{model.CampaignStatusCompleted},
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, campaigns)
}
