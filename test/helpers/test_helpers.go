package helpers

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nimasrn/campaign-gateway/internal/model"
	"github.com/nimasrn/campaign-gateway/internal/repository"
	"github.com/nimasrn/campaign-gateway/pkg/pg"
	"github.com/nimasrn/campaign-gateway/pkg/redis"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.CampaignEntity{},
		&repository.SubscriberEntity{},
		&repository.EmailLogEntity{},
		&repository.EmailTemplateEntity{},
		&repository.WebhookEventEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	adapter, err := redis.NewRedisAdapter("test", "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestCampaign(t *testing.T, db *pg.DB, name string, status model.CampaignStatus) *repository.CampaignEntity {
	ctx := context.Background()
	camp := &repository.CampaignEntity{
		Name:     name,
		Subject:  "Hello {{ name }}",
		BodyHTML: "<p>Hi {{ name }}, this is " + name + ".</p>",
		Status:   string(status),
	}
	err := db.Write(ctx).Create(camp).Error
	require.NoError(t, err)
	return camp
}

func CreateTestSubscriber(t *testing.T, db *pg.DB, email, name string) *repository.SubscriberEntity {
	ctx := context.Background()
	sub := model.NewSubscriber(email, name)
	entity := &repository.SubscriberEntity{
		Email:            sub.Email,
		Name:             sub.Name,
		IsActive:         true,
		UnsubscribeToken: sub.UnsubscribeToken,
		SubscribedAt:     time.Now(),
	}
	err := db.Write(ctx).Create(entity).Error
	require.NoError(t, err)
	return entity
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
