// SPDX-License-Identifier: MIT

package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// BadgerConfig configures the on-disk cache.
type BadgerConfig struct {
	// Path is the database directory; empty keeps the cache in memory.
	Path string `yaml:"path"`
	// GCInterval is how often value log garbage collection runs; zero disables it.
	GCInterval time.Duration `yaml:"gcInterval"`
}

// BadgerCache is a Badger-backed implementation of Cache that survives restarts.
// Expiration has one-second resolution.
type BadgerCache struct {
	db     *badger.DB
	logger zerolog.Logger
	stats  counters

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewBadgerCache opens the cache database.
func NewBadgerCache(config BadgerConfig, logger zerolog.Logger) (*BadgerCache, error) {
	opts := badger.DefaultOptions(config.Path).WithLogger(nil)
	if config.Path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open failed: %w", err)
	}

	c := &BadgerCache{db: db, logger: logger, stop: make(chan struct{}), done: make(chan struct{})}
	if config.GCInterval > 0 && config.Path != "" {
		go c.gc(config.GCInterval)
	} else {
		close(c.done)
	}

	logger.Info().Str("path", config.Path).Msg("opened Badger cache")
	return c, nil
}

// Get retrieves a value. Expired entries are invisible.
func (c *BadgerCache) Get(key string) ([]byte, bool) {
	var val []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn().Err(err).Str("key", key).Msg("badger get failed")
		}
		c.stats.misses.Add(1)
		return nil, false
	}
	c.stats.hits.Add(1)
	return val, true
}

// Set stores value with TTL.
func (c *BadgerCache) Set(key string, value []byte, ttl time.Duration) {
	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("badger set failed")
		return
	}
	c.stats.sets.Add(1)
}

// Delete removes a value.
func (c *BadgerCache) Delete(key string) {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("badger delete failed")
	}
}

// Clear drops every entry.
func (c *BadgerCache) Clear() {
	if err := c.db.DropAll(); err != nil {
		c.logger.Warn().Err(err).Msg("badger drop failed")
	}
}

// Stats returns cache statistics; the size counts live keys.
func (c *BadgerCache) Stats() CacheStats {
	size := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			size++
		}
		return nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("badger size failed")
	}
	return c.stats.snapshot(size)
}

func (c *BadgerCache) gc(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for {
				err := c.db.RunValueLogGC(0.5)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						c.logger.Warn().Err(err).Msg("badger value log gc failed")
					}
					break
				}
				c.stats.evictions.Add(1)
			}
		case <-c.stop:
			return
		}
	}
}

// Close stops garbage collection and closes the database.
func (c *BadgerCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	<-c.done
	return c.db.Close()
}
