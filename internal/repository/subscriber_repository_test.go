package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimasrn/campaign-gateway/internal/model"
)

func TestSubscriberRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewSubscriberRepository(db)
	ctx := context.Background()

	sub := model.NewSubscriber("Ada@Example.com", "Ada")
	created, err := repo.Create(ctx, &sub)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "ada@example.com", created.Email)
	assert.NotEmpty(t, created.UnsubscribeToken)
	assert.True(t, created.IsActive)

	t.Run("duplicate email rejected", func(t *testing.T) {
		dup := model.NewSubscriber("ada@example.com", "Other")
		_, err := repo.Create(ctx, &dup)
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})
}

func TestSubscriberRepository_GetByToken(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewSubscriberRepository(db)
	ctx := context.Background()

	sub := model.NewSubscriber("grace@example.com", "Grace")
	created, err := repo.Create(ctx, &sub)
	require.NoError(t, err)

	got, err := repo.GetByToken(ctx, created.UnsubscribeToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = repo.GetByToken(ctx, "no-such-token")
	assert.ErrorIs(t, err, ErrSubscriberNotFound)
}

func TestSubscriberRepository_ListActive(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewSubscriberRepository(db)
	ctx := context.Background()

	emails := []string{"a@x.test", "b@x.test", "c@x.test", "d@x.test"}
	var ids []int64
	for _, e := range emails {
		sub := model.NewSubscriber(e, "")
		created, err := repo.Create(ctx, &sub)
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}
	require.NoError(t, repo.Deactivate(ctx, ids[1], time.Now()))

	t.Run("returns active in id order", func(t *testing.T) {
		subs, err := repo.ListActive(ctx, 0)
		require.NoError(t, err)
		require.Len(t, subs, 3)
		assert.Equal(t, "a@x.test", subs[0].Email)
		assert.Equal(t, "c@x.test", subs[1].Email)
		assert.Equal(t, "d@x.test", subs[2].Email)
	})

	t.Run("limit takes the first n", func(t *testing.T) {
		subs, err := repo.ListActive(ctx, 2)
		require.NoError(t, err)
		require.Len(t, subs, 2)
		assert.Equal(t, "a@x.test", subs[0].Email)
		assert.Equal(t, "c@x.test", subs[1].Email)
	})
}

func TestSubscriberRepository_Deactivate(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewSubscriberRepository(db)
	ctx := context.Background()

	sub := model.NewSubscriber("leave@x.test", "")
	created, err := repo.Create(ctx, &sub)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, repo.Deactivate(ctx, created.ID, now))

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.UnsubscribedAt)

	// Idempotent.
	require.NoError(t, repo.Deactivate(ctx, created.ID, now.Add(time.Hour)))
}

func TestSubscriberRepository_Upsert(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewSubscriberRepository(db)
	ctx := context.Background()

	first := model.NewSubscriber("import@x.test", "First")
	created, err := repo.Upsert(ctx, &first)
	require.NoError(t, err)
	assert.True(t, created)

	stored, err := repo.GetByEmail(ctx, "import@x.test")
	require.NoError(t, err)
	originalToken := stored.UnsubscribeToken

	second := model.NewSubscriber("import@x.test", "Second")
	created, err = repo.Upsert(ctx, &second)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err = repo.GetByEmail(ctx, "import@x.test")
	require.NoError(t, err)
	assert.Equal(t, "Second", stored.Name)
	// Token is stable across re-imports so old unsubscribe links keep working.
	assert.Equal(t, originalToken, stored.UnsubscribeToken)
}
