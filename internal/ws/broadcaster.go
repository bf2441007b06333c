package ws

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"token-pulse/internal/cache"
	"token-pulse/internal/observability"
)

// Default broadcaster timings.
const (
	DefaultBroadcastInterval = 3 * time.Second
	DefaultSweepInterval     = 60 * time.Second
)

// Broadcaster runs the recurring delta cycle: read the cached snapshot,
// push qualifying changes to every room, and periodically sweep empty rooms.
type Broadcaster struct {
	hub          *Hub
	snapshots    *cache.SnapshotCache
	thresholdPct float64
	volumeFactor float64
	logger       *zap.Logger

	// scheduler state, owned by this instance
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// BroadcasterOptions contains configuration for creating a Broadcaster.
type BroadcasterOptions struct {
	Hub          *Hub
	Snapshots    *cache.SnapshotCache
	ThresholdPct float64 // default 0.5
	VolumeFactor float64 // default 2.0
	Logger       *zap.Logger
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(opts BroadcasterOptions) *Broadcaster {
	thresholdPct := opts.ThresholdPct
	if thresholdPct == 0 {
		thresholdPct = DefaultPriceThresholdPct
	}
	volumeFactor := opts.VolumeFactor
	if volumeFactor == 0 {
		volumeFactor = DefaultVolumeSpikeFactor
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		hub:          opts.Hub,
		snapshots:    opts.Snapshots,
		thresholdPct: thresholdPct,
		volumeFactor: volumeFactor,
		logger:       logger.Named("broadcaster"),
	}
}

// RunOnce executes one broadcast tick. An empty snapshot skips the tick so
// rooms keep their state until fresh data arrives.
func (b *Broadcaster) RunOnce(ctx context.Context) {
	observability.RecordBroadcastTick()

	tokens := b.snapshots.Load(ctx)
	if len(tokens) == 0 {
		b.logger.Debug("empty snapshot, skipping tick")
		return
	}

	emitted := b.hub.Broadcast(tokens, b.thresholdPct, b.volumeFactor)
	if emitted > 0 {
		observability.RecordDeltasEmitted(emitted)
	}
}

// Start begins the periodic broadcast and sweep schedules. Idempotent:
// calling Start while running is a no-op.
func (b *Broadcaster) Start(interval, sweepInterval time.Duration) {
	if interval <= 0 {
		interval = DefaultBroadcastInterval
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		sweeper := time.NewTicker(sweepInterval)
		defer sweeper.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.RunOnce(ctx)
			case <-sweeper.C:
				b.hub.Sweep()
			}
		}
	}(b.done)

	b.logger.Info("broadcaster started",
		zap.Duration("interval", interval),
		zap.Duration("sweep_interval", sweepInterval))
}

// Stop cancels the periodic schedule. Safe to call when not started.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel == nil {
		return
	}
	b.cancel()
	b.cancel = nil
	b.done = nil
	b.logger.Info("broadcaster stopped")
}
