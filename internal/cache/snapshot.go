package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"token-pulse/internal/domain"
	"token-pulse/internal/observability"
)

// DefaultSnapshotKey is the single cache key holding the full serialized snapshot.
const DefaultSnapshotKey = "tokens:all"

// DefaultSnapshotTTL bounds how long a snapshot outlives its last refresh.
const DefaultSnapshotTTL = 30 * time.Second

// SnapshotCache stores the complete token snapshot as one atomic value under
// one key. It sits on the hot path of every REST call and broadcast tick, so
// both operations degrade instead of failing: Save logs and returns on any
// error, Load resolves any failure to an empty snapshot.
type SnapshotCache struct {
	kv     KV
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// SnapshotCacheOptions configures a SnapshotCache.
type SnapshotCacheOptions struct {
	KV     KV
	Key    string        // default DefaultSnapshotKey
	TTL    time.Duration // default DefaultSnapshotTTL
	Logger *zap.Logger
}

// NewSnapshotCache creates a SnapshotCache over the given KV.
func NewSnapshotCache(opts SnapshotCacheOptions) *SnapshotCache {
	key := opts.Key
	if key == "" {
		key = DefaultSnapshotKey
	}
	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultSnapshotTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotCache{
		kv:     opts.KV,
		key:    key,
		ttl:    ttl,
		logger: logger.Named("cache"),
	}
}

// Save serializes tokens and writes them under the snapshot key with the
// configured TTL. It never returns an error: on failure the cached data simply
// remains stale or empty until the next cycle.
func (c *SnapshotCache) Save(ctx context.Context, tokens []*domain.Token) {
	if tokens == nil {
		tokens = []*domain.Token{}
	}

	payload, err := json.Marshal(tokens)
	if err != nil {
		observability.RecordCacheError("save")
		c.logger.Error("serialize snapshot", zap.Error(err))
		return
	}

	if err := c.kv.Set(ctx, c.key, string(payload), c.ttl); err != nil {
		observability.RecordCacheError("save")
		c.logger.Error("write snapshot", zap.Error(err))
		return
	}

	observability.SetTokensCached(len(tokens))
	c.logger.Debug("snapshot saved", zap.Int("tokens", len(tokens)))
}

// Load reads the cached snapshot. On a missing key, unreachable store, or
// corrupt payload it returns an empty slice; it never returns an error.
func (c *SnapshotCache) Load(ctx context.Context) []*domain.Token {
	raw, err := c.kv.Get(ctx, c.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			observability.RecordCacheError("load")
			c.logger.Warn("read snapshot", zap.Error(err))
		}
		return []*domain.Token{}
	}

	var tokens []*domain.Token
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		observability.RecordCacheError("load")
		c.logger.Warn("corrupt snapshot payload", zap.Error(err))
		return []*domain.Token{}
	}
	if tokens == nil {
		return []*domain.Token{}
	}
	return tokens
}
