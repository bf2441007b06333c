package ws

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-pulse/internal/cache"
	"token-pulse/internal/domain"
)

func newTestBroadcaster(t *testing.T) (*Broadcaster, *Hub, *cache.SnapshotCache) {
	t.Helper()
	snapshots := cache.NewSnapshotCache(cache.SnapshotCacheOptions{KV: cache.NewMemoryKV()})
	hub := NewHub(HubOptions{Snapshots: snapshots})
	b := NewBroadcaster(BroadcasterOptions{Hub: hub, Snapshots: snapshots})
	return b, hub, snapshots
}

func TestRunOnce_EmptySnapshotSkipsTick(t *testing.T) {
	b, hub, _ := newTestBroadcaster(t)
	sub := &stubSub{id: "c1"}
	hub.Subscribe(context.Background(), sub, SubscribeParams{})

	b.RunOnce(context.Background())

	assert.Empty(t, sub.received("token_updates"))
}

func TestRunOnce_PushesDeltasToRoomMembers(t *testing.T) {
	b, hub, snapshots := newTestBroadcaster(t)
	sub := &stubSub{id: "c1"}
	ctx := context.Background()
	hub.Subscribe(ctx, sub, SubscribeParams{})

	snapshots.Save(ctx, []*domain.Token{
		{Address: "tok", PriceQuote: ptr(1.0), LastUpdated: 1000},
	})
	b.RunOnce(ctx)

	updates := sub.received("token_updates")
	require.Len(t, updates, 1)
	batch := updates[0].data.([]Update)
	require.Len(t, batch, 1)
	assert.Equal(t, "tok", batch[0].Address)
}

func TestRunOnce_SecondTickOverUnchangedSnapshotIsSilent(t *testing.T) {
	b, hub, snapshots := newTestBroadcaster(t)
	sub := &stubSub{id: "c1"}
	ctx := context.Background()
	hub.Subscribe(ctx, sub, SubscribeParams{})

	snapshots.Save(ctx, []*domain.Token{
		{Address: "tok", PriceQuote: ptr(1.0), LastUpdated: 1000},
	})
	b.RunOnce(ctx)
	b.RunOnce(ctx)

	assert.Len(t, sub.received("token_updates"), 1)
}

func TestStartStop_IdempotentLifecycle(t *testing.T) {
	b, hub, snapshots := newTestBroadcaster(t)
	sub := &stubSub{id: "c1"}
	ctx := context.Background()
	hub.Subscribe(ctx, sub, SubscribeParams{})

	snapshots.Save(ctx, []*domain.Token{
		{Address: "tok", PriceQuote: ptr(1.0), LastUpdated: 1000},
	})

	b.Start(10*time.Millisecond, time.Hour)
	b.Start(10*time.Millisecond, time.Hour) // no-op while running

	require.Eventually(t, func() bool {
		return len(sub.received("token_updates")) >= 1
	}, time.Second, 5*time.Millisecond)

	b.Stop()
	b.Stop() // safe when not started
}

func TestStart_SweepRemovesAbandonedRooms(t *testing.T) {
	b, hub, _ := newTestBroadcaster(t)
	sub := &stubSub{id: "c1"}
	ctx := context.Background()
	hub.Subscribe(ctx, sub, SubscribeParams{})
	hub.Unsubscribe(sub)

	b.Start(time.Hour, 10*time.Millisecond)
	defer b.Stop()

	require.Eventually(t, func() bool {
		rooms, _ := hub.Counts()
		return rooms == 0
	}, time.Second, 5*time.Millisecond)
}
