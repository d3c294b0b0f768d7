package queue

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimasrn/campaign-gateway/pkg/redis"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Unique connection name per test to avoid global adapter caching issues.
	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func TestQueue_PublishAndConsume(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := Config{
		Name:              "test:dispatch",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	}

	q, err := New(adapter, config)
	require.NoError(t, err)

	ctx := context.Background()
	payload := map[string]int64{"campaign_id": 42}

	_, err = q.PublishJSON(ctx, payload, map[string]string{"type": "campaign_send"})
	require.NoError(t, err)

	received := make(chan bool, 1)
	handler := func(ctx context.Context, msg *Message) error {
		var data map[string]int64
		err := json.Unmarshal(msg.Data, &data)
		assert.NoError(t, err)
		assert.Equal(t, int64(42), data["campaign_id"])
		assert.Equal(t, "campaign_send", msg.Metadata["type"])
		received <- true
		return nil
	}

	require.NoError(t, q.Consume(handler))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}

	q.Stop(time.Second)
}

func TestQueue_RequiresName(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	_, err := New(adapter, Config{})
	assert.Error(t, err)
}

func TestQueue_SuccessfulMessageIsAcked(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	q, err := New(adapter, Config{
		Name:              "test:ack",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		PollInterval:      100 * time.Millisecond,
		VisibilityTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	defer q.Stop(time.Second)

	_, err = q.Publish(context.Background(), []byte("hello"), nil)
	require.NoError(t, err)

	var handled atomic.Int32
	require.NoError(t, q.Consume(func(ctx context.Context, msg *Message) error {
		handled.Add(1)
		return nil
	}))

	require.Eventually(t, func() bool { return handled.Load() == 1 }, 2*time.Second, 50*time.Millisecond)

	stats, err := q.GetStats()
	require.NoError(t, err)
	assert.Zero(t, stats.PendingMessages)
}

func TestQueue_GetStats(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	q, err := New(adapter, Config{
		Name:          "test:stats",
		ConsumerGroup: "test-group",
		ConsumerName:  "test-consumer",
	})
	require.NoError(t, err)
	defer q.Stop(time.Second)

	for i := 0; i < 3; i++ {
		_, err := q.Publish(context.Background(), []byte("x"), nil)
		require.NoError(t, err)
	}

	stats, err := q.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalMessages)
}
