package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/swarmarb/swarmarb/internal/domain"
)

// tsField is the hash field carrying the snapshot timestamp, kept out of the
// token namespace by the leading underscore.
const tsField = "_ts"

// SnapshotCache implements domain.SnapshotCache using Redis hashes. Each
// bucket's latest prices live at key "snapshot:{bucket}" with one field per
// token plus the timestamp field.
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
// Entries expire after ttl; zero disables expiry.
func NewSnapshotCache(c *Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying(), ttl: ttl}
}

func snapshotKey(bucket string) string {
	return "snapshot:" + bucket
}

// SetPrices stores the latest token prices and timestamp for a bucket,
// replacing the previous snapshot atomically.
func (sc *SnapshotCache) SetPrices(ctx context.Context, bucket string, prices map[string]float64, ts time.Time) error {
	key := snapshotKey(bucket)

	fields := make(map[string]interface{}, len(prices)+1)
	for token, price := range prices {
		fields[token] = strconv.FormatFloat(price, 'f', -1, 64)
	}
	fields[tsField] = strconv.FormatInt(ts.UnixNano(), 10)

	pipe := sc.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	if sc.ttl > 0 {
		pipe.Expire(ctx, key, sc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", bucket, err)
	}
	return nil
}

// GetPrices retrieves the latest snapshot for a bucket. It returns
// domain.ErrNotFound when no snapshot exists.
func (sc *SnapshotCache) GetPrices(ctx context.Context, bucket string) (map[string]float64, time.Time, error) {
	vals, err := sc.rdb.HGetAll(ctx, snapshotKey(bucket)).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: get snapshot %s: %w", bucket, err)
	}
	if len(vals) == 0 {
		return nil, time.Time{}, domain.ErrNotFound
	}

	tsStr, ok := vals[tsField]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: parse snapshot ts %s: %w", bucket, err)
	}

	prices := make(map[string]float64, len(vals)-1)
	for field, raw := range vals {
		if field == tsField {
			continue
		}
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("redis: parse snapshot price %s/%s: %w", bucket, field, err)
		}
		prices[field] = price
	}

	return prices, time.Unix(0, tsNano).UTC(), nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
