package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimasrn/campaign-gateway/internal/model"
)

func sentLog(campaignID int64, email, providerID string) *model.EmailLog {
	now := time.Now()
	return &model.EmailLog{
		CampaignID:        campaignID,
		Email:             email,
		Status:            model.EmailLogStatusSent,
		ProviderMessageID: providerID,
		SentAt:            &now,
	}
}

func TestEmailLogRepository_CreateBatch(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewEmailLogRepository(db)
	ctx := context.Background()

	logs := []*model.EmailLog{
		sentLog(1, "a@x.test", "p-1"),
		sentLog(1, "b@x.test", "p-2"),
		sentLog(1, "c@x.test", ""),
	}
	logs[2].Status = model.EmailLogStatusFailed
	logs[2].ErrorMessage = "mailbox full"

	require.NoError(t, repo.CreateBatch(ctx, logs))

	campaignID := int64(1)
	got, total, err := repo.List(ctx, model.EmailLogFilter{CampaignID: &campaignID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, got, 3)
	assert.Equal(t, model.EmailLogStatusFailed, got[2].Status)
	assert.Equal(t, "mailbox full", got[2].ErrorMessage)

	t.Run("empty batch is a no-op", func(t *testing.T) {
		require.NoError(t, repo.CreateBatch(ctx, nil))
	})
}

func TestEmailLogRepository_AdvanceStatus(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewEmailLogRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, sentLog(7, "a@x.test", "prov-9"))
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, repo.AdvanceStatus(ctx, created.ID, model.EmailLogStatusDelivered, now))
	require.NoError(t, repo.AdvanceStatus(ctx, created.ID, model.EmailLogStatusOpened, now.Add(time.Minute)))

	got, err := repo.GetByProviderMessageID(ctx, "prov-9")
	require.NoError(t, err)
	assert.Equal(t, model.EmailLogStatusOpened, got.Status)
	assert.NotNil(t, got.DeliveredAt)
	assert.NotNil(t, got.OpenedAt)
	assert.Nil(t, got.ClickedAt)

	err = repo.AdvanceStatus(ctx, 9999, model.EmailLogStatusDelivered, now)
	assert.ErrorIs(t, err, ErrEmailLogNotFound)
}

func TestEmailLogRepository_CountByStatus(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewEmailLogRepository(db)
	ctx := context.Background()

	logs := []*model.EmailLog{
		sentLog(3, "a@x.test", "p-1"),
		sentLog(3, "b@x.test", "p-2"),
		sentLog(3, "c@x.test", "p-3"),
	}
	logs[1].Status = model.EmailLogStatusOpened
	logs[2].Status = model.EmailLogStatusFailed
	require.NoError(t, repo.CreateBatch(ctx, logs))
	// Another campaign's rows must not leak in.
	require.NoError(t, repo.CreateBatch(ctx, []*model.EmailLog{sentLog(4, "z@x.test", "p-9")}))

	counts, err := repo.CountByStatus(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[model.EmailLogStatusSent])
	assert.Equal(t, int64(1), counts[model.EmailLogStatusOpened])
	assert.Equal(t, int64(1), counts[model.EmailLogStatusFailed])

	opened, err := repo.CountOpened(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), opened)
}

func TestWebhookEventRepository_DeleteOlderThan(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWebhookEventRepository(db.DB)
	ctx := context.Background()

	old := &model.WebhookEvent{EventType: model.WebhookEventDelivered, Email: "a@x.test"}
	created, err := repo.Create(ctx, old)
	require.NoError(t, err)
	// Backdate past the retention window.
	err = db.rawDB.Model(&WebhookEventEntity{}).
		Where("id = ?", created.ID).
		Update("received_at", time.Now().AddDate(0, 0, -40)).Error
	require.NoError(t, err)

	_, err = repo.Create(ctx, &model.WebhookEvent{EventType: model.WebhookEventOpen, Email: "b@x.test"})
	require.NoError(t, err)

	purged, err := repo.DeleteOlderThan(ctx, time.Now().AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}
