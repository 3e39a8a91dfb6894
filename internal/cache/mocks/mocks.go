package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type VersionedCache struct {
	mock.Mock
}

func (m *VersionedCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	var b []byte
	if v := args.Get(0); v != nil {
		b = v.([]byte)
	}
	return b, args.Bool(1), args.Error(2)
}

func (m *VersionedCache) SetIfNewer(ctx context.Context, key string, value []byte, version int64, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, version, ttl)
	return args.Bool(0), args.Error(1)
}

type Limiter struct {
	mock.Mock
}

func (m *Limiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Get(1).(int64), args.Error(2)
}
