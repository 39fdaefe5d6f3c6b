package metadata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/observability"
)

const cacheKeyPrefix = "token_metadata:"

// CachedResolver memoizes resolved metadata in Redis across sessions.
// Cache errors are logged and bypassed; only non-empty results are stored.
type CachedResolver struct {
	next   Resolver
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedResolver wraps next with a Redis cache.
func NewCachedResolver(next Resolver, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *CachedResolver {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedResolver{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

type cachedMetadata struct {
	Name     string `json:"name,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	IconURI  string `json:"iconUri,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	Source   string `json:"source,omitempty"`
}

// Resolve returns cached metadata for mint, resolving and storing it on a miss.
func (c *CachedResolver) Resolve(ctx context.Context, mint string) domain.TokenMetadata {
	key := cacheKeyPrefix + mint

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cm cachedMetadata
		if err := json.Unmarshal(raw, &cm); err == nil {
			observability.RecordCacheRequest(true)
			return domain.TokenMetadata{
				Name:     cm.Name,
				Symbol:   cm.Symbol,
				IconURI:  cm.IconURI,
				ImageURL: cm.ImageURL,
				Source:   domain.MetadataSource(cm.Source),
			}
		}
	case err != redis.Nil:
		c.logger.Warn("metadata cache get failed", zap.String("mint", mint), zap.Error(err))
	}
	observability.RecordCacheRequest(false)

	meta := c.next.Resolve(ctx, mint)
	if meta.Empty() {
		return meta
	}

	data, err := json.Marshal(cachedMetadata{
		Name:     meta.Name,
		Symbol:   meta.Symbol,
		IconURI:  meta.IconURI,
		ImageURL: meta.ImageURL,
		Source:   string(meta.Source),
	})
	if err != nil {
		return meta
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("metadata cache set failed", zap.String("mint", mint), zap.Error(err))
	}

	return meta
}

var _ Resolver = (*CachedResolver)(nil)
