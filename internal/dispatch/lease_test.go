package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimasrn/campaign-gateway/pkg/redis"
)

func setupLeaseRedis(t *testing.T) redis.RedisAdapter {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	return adapter
}

func TestSendLease_AcquireAndRelease(t *testing.T) {
	lease := NewSendLease(setupLeaseRedis(t), time.Minute)
	ctx := context.Background()

	release, err := lease.Acquire(ctx, 1)
	require.NoError(t, err)

	// Second acquire on the same campaign fails fast.
	_, err = lease.Acquire(ctx, 1)
	var ase *AlreadySendingError
	require.ErrorAs(t, err, &ase)
	assert.Equal(t, int64(1), ase.CampaignID)

	// A different campaign is unaffected.
	release2, err := lease.Acquire(ctx, 2)
	require.NoError(t, err)
	release2()

	// Released lease can be re-acquired.
	release()
	release3, err := lease.Acquire(ctx, 1)
	require.NoError(t, err)
	release3()
}

func TestSendLease_DefaultTTL(t *testing.T) {
	lease := NewSendLease(setupLeaseRedis(t), 0)
	assert.Equal(t, time.Hour, lease.ttl)
}
