package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"tenantdesk/server/domain"
)

const (
	statsKey          = "dashboard:stats"
	deliveryKeyPrefix = "delivery:"
)

// DashboardCache keeps the stats aggregate hot for the dashboard poll
// loop and records outbound delivery identifiers for audit.
type DashboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDashboardCache(client *redis.Client, ttl time.Duration) *DashboardCache {
	return &DashboardCache{client: client, ttl: ttl}
}

func (c *DashboardCache) GetStats(ctx context.Context) (domain.MessageStats, bool) {
	raw, err := c.client.Get(ctx, statsKey).Bytes()
	if err != nil {
		return domain.MessageStats{}, false
	}
	var stats domain.MessageStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return domain.MessageStats{}, false
	}
	return stats, true
}

func (c *DashboardCache) SetStats(ctx context.Context, stats domain.MessageStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statsKey, raw, c.ttl).Err()
}

func (c *DashboardCache) InvalidateStats(ctx context.Context) error {
	return c.client.Del(ctx, statsKey).Err()
}

func (c *DashboardCache) RecordDelivery(ctx context.Context, sid string, sentAt time.Time) error {
	return c.client.Set(ctx, deliveryKeyPrefix+sid, sentAt.Format(time.RFC3339), 0).Err()
}
