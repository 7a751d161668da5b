// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigHolderReload(t *testing.T) {
	path := writeConfig(t, "cache:\n  ttl: 10s\n")
	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)

	holder := NewConfigHolder(initial, loader)
	updates := make(chan Config, 1)
	holder.RegisterListener(updates)

	require.NoError(t, os.WriteFile(path, []byte("cache:\n  ttl: 20s\n"), 0o600))
	require.NoError(t, holder.Reload(context.Background()))

	assert.Equal(t, 20*time.Second, holder.Get().Cache.TTL)
	select {
	case cfg := <-updates:
		assert.Equal(t, 20*time.Second, cfg.Cache.TTL)
	default:
		t.Fatal("listener not notified")
	}
}

func TestConfigHolderReloadKeepsOldOnError(t *testing.T) {
	path := writeConfig(t, "cache:\n  ttl: 10s\n")
	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)

	holder := NewConfigHolder(initial, loader)
	updates := make(chan Config, 1)
	holder.RegisterListener(updates)

	require.NoError(t, os.WriteFile(path, []byte("cache:\n  backend: tape\n"), 0o600))
	require.Error(t, holder.Reload(context.Background()))

	assert.Equal(t, 10*time.Second, holder.Get().Cache.TTL)
	assert.Equal(t, CacheMemory, holder.Get().Cache.Backend)
	assert.Empty(t, updates)
}

func TestConfigHolderFullListener(t *testing.T) {
	path := writeConfig(t, "")
	loader := NewLoader(path, "")
	holder := NewConfigHolder(Defaults(), loader)

	full := make(chan Config)
	holder.RegisterListener(full)

	// An unbuffered channel with no reader must not block the reload.
	require.NoError(t, holder.Reload(context.Background()))
}

func TestConfigHolderWatcher(t *testing.T) {
	path := writeConfig(t, "cache:\n  ttl: 10s\n")
	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)

	holder := NewConfigHolder(initial, loader)
	holder.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, holder.StartWatcher(ctx))

	require.NoError(t, os.WriteFile(path, []byte("cache:\n  ttl: 45s\n"), 0o600))

	require.Eventually(t, func() bool {
		return holder.Get().Cache.TTL == 45*time.Second
	}, 5*time.Second, 20*time.Millisecond)
}

func TestConfigHolderWatcherWithoutFile(t *testing.T) {
	holder := NewConfigHolder(Defaults(), NewLoader("", ""))
	require.NoError(t, holder.StartWatcher(context.Background()))
	assert.Nil(t, holder.watcher)
}
