package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines cache operations interface.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Close() error
}

// GetOrLoad reads key into a T, calling load on a miss and storing its
// result for ttl. Cache failures never fail the call; only load errors are
// returned, and failed loads are not cached. hit reports whether the value
// came from the cache. A nil Service always loads.
func GetOrLoad[T any](ctx context.Context, c Service, key string, ttl time.Duration, load func(context.Context) (T, error)) (v T, hit bool, err error) {
	if c == nil {
		v, err = load(ctx)
		return v, false, err
	}
	if gerr := c.Get(ctx, key, &v); gerr == nil {
		return v, true, nil
	}
	v, err = load(ctx)
	if err != nil {
		return v, false, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return v, false, nil
}
