package cache

import (
	"context"
	"time"
)

// VersionedCache is a best-effort cache that never replaces a value with an
// older version of it. ok=false means a miss.
type VersionedCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// SetIfNewer stores value unless the cached version is >= version.
	SetIfNewer(ctx context.Context, key string, value []byte, version int64, ttl time.Duration) (bool, error)
}

type Limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}
