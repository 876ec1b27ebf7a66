package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache key layout and TTL for payout destinations
const (
	destinationKeyFormat  = "worker:%s:payout_dest"
	destinationTTL        = 1 * time.Hour
	destinationMissMarker = "-" // cached "no destination" so missing refs don't hammer the db
)

// DestinationResolver is the database-backed lookup the cache sits in front of
type DestinationResolver interface {
	GetWorkerPayoutDestination(ctx context.Context, workerID string) (string, error)
}

// DestinationCache caches payout destination lookups. On any cache trouble it
// falls through to the resolver; the cache never changes lookup semantics.
type DestinationCache struct {
	cache    *CacheService
	resolver DestinationResolver
}

// NewDestinationCache wraps a resolver with the redis cache. A nil cache
// service disables caching entirely.
func NewDestinationCache(cache *CacheService, resolver DestinationResolver) *DestinationCache {
	return &DestinationCache{cache: cache, resolver: resolver}
}

// GetWorkerPayoutDestination implements the payout engine's WorkerDirectory
func (dc *DestinationCache) GetWorkerPayoutDestination(ctx context.Context, workerID string) (string, error) {
	key := fmt.Sprintf(destinationKeyFormat, workerID)

	if dc.cache != nil {
		// Any cache error, miss or outage, falls through to the database
		cached, err := dc.cache.Get(ctx, key)
		if err == nil {
			if cached == destinationMissMarker {
				return "", nil
			}
			return cached, nil
		}
	}

	destination, err := dc.resolver.GetWorkerPayoutDestination(ctx, workerID)
	if err != nil {
		return "", err
	}

	if dc.cache != nil {
		value := destination
		if value == "" {
			value = destinationMissMarker
		}
		// Best effort; a failed write just means a db hit next time
		_ = dc.cache.Set(ctx, key, value, destinationTTL)
	}

	return destination, nil
}

// Invalidate drops a worker's cached destination. Called when the onboarding
// webhook changes the account state.
func (dc *DestinationCache) Invalidate(ctx context.Context, workerID string) {
	if dc.cache == nil {
		return
	}
	_ = dc.cache.Delete(ctx, fmt.Sprintf(destinationKeyFormat, workerID))
}
