package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/campaign-gateway/pkg/logger"
	"github.com/nimasrn/campaign-gateway/pkg/redis"
)

const leaseKeyPrefix = "lease:campaign:"

// SendLease is the per-campaign exclusive lock guarding the sending state.
// The TTL bounds how long a crashed sender can block a campaign.
type SendLease struct {
	redis redis.RedisAdapter
	ttl   time.Duration
}

func NewSendLease(adapter redis.RedisAdapter, ttl time.Duration) *SendLease {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &SendLease{redis: adapter, ttl: ttl}
}

// Acquire takes the lease for a campaign. A held lease fails fast with
// AlreadySendingError. The returned release func is safe to defer.
func (l *SendLease) Acquire(ctx context.Context, campaignID int64) (func(), error) {
	key := fmt.Sprintf("%s%d", leaseKeyPrefix, campaignID)
	value := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))

	acquired, err := l.redis.SetNX(key, value, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire send lease: %w", err)
	}
	if !acquired {
		return nil, &AlreadySendingError{CampaignID: campaignID}
	}

	logger.Debug("send lease acquired", "campaign_id", campaignID, "ttl", l.ttl)

	release := func() {
		if err := l.redis.Del(key); err != nil {
			logger.Warn("failed to release send lease", "campaign_id", campaignID, "error", err)
		}
	}
	return release, nil
}
