// Package aggregator implements the aggregation cycle: fetch all upstream
// sources concurrently, reconcile duplicate records via the merge engine and
// write the full replacement snapshot to the shared cache.
package aggregator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"token-pulse/internal/cache"
	"token-pulse/internal/domain"
	"token-pulse/internal/merge"
	"token-pulse/internal/observability"
	"token-pulse/internal/sources"
)

// Default configuration values.
const (
	DefaultSourceTimeout  = 10 * time.Second
	DefaultMaxConcurrency = 10
	DefaultInterval       = 20 * time.Second
)

// Aggregator runs the periodic aggregation cycle.
type Aggregator struct {
	sources        []sources.TokenSource
	snapshots      *cache.SnapshotCache
	sourceTimeout  time.Duration
	maxConcurrency int
	logger         *zap.Logger
	now            func() int64

	// scheduler state, owned by this instance
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	runs      atomic.Int64
	lastRunMs atomic.Int64
}

// Options contains configuration for creating an Aggregator.
type Options struct {
	Sources        []sources.TokenSource
	Snapshots      *cache.SnapshotCache
	SourceTimeout  time.Duration // default 10s
	MaxConcurrency int           // default 10
	Logger         *zap.Logger
}

// New creates an Aggregator.
func New(opts Options) *Aggregator {
	sourceTimeout := opts.SourceTimeout
	if sourceTimeout == 0 {
		sourceTimeout = DefaultSourceTimeout
	}
	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency == 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		sources:        opts.Sources,
		snapshots:      opts.Snapshots,
		sourceTimeout:  sourceTimeout,
		maxConcurrency: maxConcurrency,
		logger:         logger.Named("aggregator"),
		now:            func() int64 { return time.Now().UnixMilli() },
	}
}

// RunOnce executes one aggregation cycle and returns the written snapshot.
// It never returns an error or panics out of the cycle: any unexpected
// failure resolves to an empty snapshot written to the cache.
func (a *Aggregator) RunOnce(ctx context.Context) []*domain.Token {
	start := time.Now()
	merged := a.runGuarded(ctx)
	a.snapshots.Save(ctx, merged)

	a.runs.Add(1)
	a.lastRunMs.Store(start.UnixMilli())
	observability.RecordAggregationRun("success", time.Since(start).Seconds())
	a.logger.Info("aggregation cycle complete",
		zap.Int("tokens", len(merged)),
		zap.Duration("elapsed", time.Since(start)))
	return merged
}

// Stats reports how many cycles have completed and when the last one started.
// The zero time means no cycle has run yet.
func (a *Aggregator) Stats() (runs int64, lastRun time.Time) {
	runs = a.runs.Load()
	if ms := a.lastRunMs.Load(); ms != 0 {
		lastRun = time.UnixMilli(ms)
	}
	return runs, lastRun
}

// runGuarded runs fetch+merge with panic recovery at the cycle boundary.
func (a *Aggregator) runGuarded(ctx context.Context) (merged []*domain.Token) {
	defer func() {
		if r := recover(); r != nil {
			observability.RecordAggregationRun("panic", 0)
			a.logger.Error("aggregation cycle panicked", zap.Any("panic", r))
			merged = []*domain.Token{}
		}
	}()

	combined := a.fetchAll(ctx)
	return a.reconcile(combined)
}

// fetchAll fetches every source concurrently under the concurrency limiter.
// A source that errors or exceeds its timeout contributes an empty result.
// Results are concatenated in configured source order for a deterministic
// fold direction.
func (a *Aggregator) fetchAll(ctx context.Context) []*domain.Token {
	results := make([][]*domain.Token, len(a.sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxConcurrency)

	for i, src := range a.sources {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, a.sourceTimeout)
			defer cancel()

			start := time.Now()
			tokens, err := src.Fetch(fetchCtx)
			observability.RecordSourceLatency(src.Name(), time.Since(start).Seconds())
			if err != nil {
				observability.RecordSourceError(src.Name())
				a.logger.Warn("source fetch failed, treating as empty",
					zap.String("source", src.Name()), zap.Error(err))
				return nil
			}

			a.logger.Debug("source fetched",
				zap.String("source", src.Name()), zap.Int("tokens", len(tokens)))
			results[i] = tokens
			return nil
		})
	}

	// fetch errors are swallowed per source, so Wait cannot fail
	_ = g.Wait()

	var combined []*domain.Token
	for _, r := range results {
		combined = append(combined, r...)
	}
	return combined
}

// reconcile folds duplicate records pairwise through the merge engine, keyed
// by normalized address and preserving first-seen insertion order.
func (a *Aggregator) reconcile(combined []*domain.Token) []*domain.Token {
	index := make(map[string]int, len(combined))
	merged := make([]*domain.Token, 0, len(combined))

	for _, t := range combined {
		if t == nil || t.Address == "" {
			continue
		}
		key := domain.NormalizeAddress(t.Address)
		if i, ok := index[key]; ok {
			merged[i] = merge.Merge(merged[i], t, a.now())
			continue
		}
		index[key] = len(merged)
		merged = append(merged, t)
	}

	return merged
}

// Start begins the periodic schedule: one immediate run, then fixed-delay
// repeats. Idempotent: calling Start while running is a no-op.
func (a *Aggregator) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)

		a.RunOnce(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.RunOnce(ctx)
			}
		}
	}(a.done)

	a.logger.Info("aggregator started", zap.Duration("interval", interval))
}

// Stop cancels the periodic schedule. It does not wait for an in-flight
// cycle, which may complete one final write. Safe to call when not started.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel == nil {
		return
	}
	a.cancel()
	a.cancel = nil
	a.done = nil
	a.logger.Info("aggregator stopped")
}
