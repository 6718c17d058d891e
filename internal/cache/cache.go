package cache

import (
	"context"
	"time"
)

// BytesCache is the minimal cache surface the tracking service needs:
// best-effort byte blobs with a TTL. A nil cache is always acceptable.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
