// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader fills a Cache on miss, collapsing concurrent loads of the same key.
type Loader struct {
	cache Cache
	group singleflight.Group
}

// NewLoader returns a loader over c.
func NewLoader(c Cache) *Loader {
	return &Loader{cache: c}
}

// Cache returns the underlying cache.
func (l *Loader) Cache() Cache {
	return l.cache
}

// Load returns the cached value for key, or calls fn and stores its result for ttl.
// hit reports whether the value came from the cache. Errors from fn are not cached.
func (l *Loader) Load(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) ([]byte, error)) (value []byte, hit bool, err error) {
	if v, ok := l.cache.Get(key); ok {
		return v, true, nil
	}
	v, err, _ := l.group.Do(key, func() (any, error) {
		if v, ok := l.cache.Get(key); ok {
			return v, nil
		}
		b, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		l.cache.Set(key, b, ttl)
		return b, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}
