package catalog

import (
	"context"
	"time"

	"github.com/longkey1/nostack/internal/nostack"
	"github.com/rs/zerolog/log"
)

// FetchFunc lists the models a provider offers.
type FetchFunc func(ctx context.Context) ([]nostack.ModelInfo, error)

type cachedList struct {
	FetchedAt time.Time           `json:"fetched_at"`
	Models    []nostack.ModelInfo `json:"models"`
}

// RemoteCache keeps the last model list of each provider in the
// settings store. A fresh list is served without a request; a stale or
// missing one is refetched, and the stale copy is served when the fetch
// fails.
type RemoteCache struct {
	store JSONStore
	ttl   time.Duration
	now   func() time.Time
}

// NewRemoteCache returns a cache whose entries stay fresh for ttl.
func NewRemoteCache(store JSONStore, ttl time.Duration) *RemoteCache {
	return &RemoteCache{store: store, ttl: ttl, now: time.Now}
}

func cacheKey(provider string) string {
	return "modelCache:" + provider
}

// Models returns the model list of provider. stale is true when the
// list came from the cache after a failed refresh.
func (c *RemoteCache) Models(ctx context.Context, provider string, fetch FetchFunc) (models []nostack.ModelInfo, stale bool, err error) {
	var cached cachedList
	found, err := c.store.GetJSON(cacheKey(provider), &cached)
	if err != nil {
		log.Warn().Err(err).Str("provider", provider).Msg("ignoring unreadable model cache")
		found = false
	}

	if found && c.now().Sub(cached.FetchedAt) < c.ttl {
		log.Debug().Str("provider", provider).Msg("model list served from cache")
		return cached.Models, false, nil
	}

	models, err = c.refresh(ctx, provider, fetch)
	if err != nil {
		if found {
			log.Warn().Err(err).Str("provider", provider).Msg("model refresh failed, using cached list")
			return cached.Models, true, nil
		}
		return nil, false, err
	}
	return models, false, nil
}

// Refresh fetches and stores the model list regardless of its age.
func (c *RemoteCache) Refresh(ctx context.Context, provider string, fetch FetchFunc) ([]nostack.ModelInfo, error) {
	return c.refresh(ctx, provider, fetch)
}

func (c *RemoteCache) refresh(ctx context.Context, provider string, fetch FetchFunc) ([]nostack.ModelInfo, error) {
	models, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	entry := cachedList{FetchedAt: c.now(), Models: models}
	if err := c.store.SetJSON(cacheKey(provider), entry); err != nil {
		log.Warn().Err(err).Str("provider", provider).Msg("failed to store model cache")
	}
	return models, nil
}
