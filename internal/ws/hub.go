// Package ws implements the push side: subscription rooms keyed by view
// parameters, delta detection against per-room last-seen state, and the
// gorilla/websocket transport.
package ws

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"token-pulse/internal/cache"
	"token-pulse/internal/domain"
	"token-pulse/internal/observability"
)

// Default delta thresholds.
const (
	DefaultPriceThresholdPct = 0.5
	DefaultVolumeSpikeFactor = 2.0
)

// SubscribeParams is the view a client asks to follow. Clients sharing the
// same canonical params share one room and one last-seen state.
type SubscribeParams struct {
	Limit  int            `json:"limit"`
	SortBy domain.SortKey `json:"sortBy"`
	Period domain.Period  `json:"period"`
}

// Normalize replaces out-of-range values with defaults so that equivalent
// subscriptions land in the same room.
func (p SubscribeParams) Normalize() SubscribeParams {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	p.SortBy = domain.ParseSortKey(string(p.SortBy))
	p.Period = domain.ParsePeriod(string(p.Period))
	return p
}

// RoomKey is the canonical room identifier for the params.
func (p SubscribeParams) RoomKey() string {
	return fmt.Sprintf("%s|%s|%d", p.SortBy, p.Period, p.Limit)
}

// Subscriber is a transport-level connection the hub can push events to.
// Send is best-effort: a slow client drops the message rather than stalling
// the hub.
type Subscriber interface {
	ID() string
	Send(event string, data any)
}

// Update is one delta payload inside a token_updates batch.
type Update struct {
	Address     string   `json:"token_address"`
	Name        *string  `json:"token_name,omitempty"`
	Ticker      *string  `json:"token_ticker,omitempty"`
	Price       *float64 `json:"price_sol,omitempty"`
	Volume      *float64 `json:"volume_sol,omitempty"`
	MarketCap   *float64 `json:"market_cap_sol,omitempty"`
	Liquidity   *float64 `json:"liquidity_sol,omitempty"`
	PriceChange float64  `json:"price_change"`
	LastUpdated int64    `json:"last_updated"`
}

// tokenState is the last-broadcast numeric state for one token in one room.
type tokenState struct {
	Price       *float64
	Volume      *float64
	LastUpdated int64
}

type room struct {
	params  SubscribeParams
	members map[string]Subscriber
	seen    map[string]tokenState
}

// Hub owns the subscription rooms. A single mutex serializes subscribe seeding
// against broadcaster comparison writes for the same room state.
type Hub struct {
	snapshots *cache.SnapshotCache
	logger    *zap.Logger

	mu       sync.Mutex
	rooms    map[string]*room
	memberOf map[string]string // subscriber id -> room key
}

// HubOptions configures a Hub.
type HubOptions struct {
	Snapshots *cache.SnapshotCache
	Logger    *zap.Logger
}

// NewHub creates an empty hub over the given snapshot cache.
func NewHub(opts HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		snapshots: opts.Snapshots,
		logger:    logger.Named("ws"),
		rooms:     make(map[string]*room),
		memberOf:  make(map[string]string),
	}
}

// Subscribe joins sub to the room named by params, creating it if absent and
// leaving any previous room. The subscriber immediately receives a snapshot
// event holding the first limit items of the cached snapshot in cached order
// (a fast preview, not the sorted query pipeline), and the room's last-seen
// state is seeded from those items.
func (h *Hub) Subscribe(ctx context.Context, sub Subscriber, params SubscribeParams) {
	params = params.Normalize()
	key := params.RoomKey()

	preview := h.snapshots.Load(ctx)
	if len(preview) > params.Limit {
		preview = preview[:params.Limit]
	}

	h.mu.Lock()
	h.leaveLocked(sub.ID())

	r, ok := h.rooms[key]
	if !ok {
		r = &room{
			params:  params,
			members: make(map[string]Subscriber),
			seen:    make(map[string]tokenState),
		}
		h.rooms[key] = r
		observability.SetActiveRooms(len(h.rooms))
		h.logger.Debug("room created", zap.String("room", key))
	}
	r.members[sub.ID()] = sub
	h.memberOf[sub.ID()] = key

	for _, t := range preview {
		if t == nil || t.Address == "" {
			continue
		}
		r.seen[domain.NormalizeAddress(t.Address)] = tokenState{
			Price:       t.PriceQuote,
			Volume:      t.Volume,
			LastUpdated: t.LastUpdated,
		}
	}
	h.mu.Unlock()

	sub.Send("snapshot", preview)
	h.logger.Debug("subscribed", zap.String("client", sub.ID()), zap.String("room", key))
}

// Unsubscribe removes sub from its current room, if any. The room itself is
// kept until the cleanup sweep so its state survives brief reconnects.
func (h *Hub) Unsubscribe(sub Subscriber) {
	h.mu.Lock()
	h.leaveLocked(sub.ID())
	h.mu.Unlock()
}

func (h *Hub) leaveLocked(id string) {
	key, ok := h.memberOf[id]
	if !ok {
		return
	}
	delete(h.memberOf, id)
	if r, ok := h.rooms[key]; ok {
		delete(r.members, id)
	}
}

// Broadcast compares every snapshot token against each room's last-seen state
// and delivers the qualifying tokens to the room's members as one batched
// token_updates event. It returns the total number of delta payloads emitted.
func (h *Hub) Broadcast(tokens []*domain.Token, thresholdPct, volumeFactor float64) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	emitted := 0
	for key, r := range h.rooms {
		var batch []Update
		for _, t := range tokens {
			if t == nil || t.Address == "" {
				continue
			}
			addr := domain.NormalizeAddress(t.Address)
			prev, seen := r.seen[addr]
			if !qualifies(prev, seen, t, thresholdPct, volumeFactor) {
				continue
			}
			r.seen[addr] = tokenState{
				Price:       t.PriceQuote,
				Volume:      t.Volume,
				LastUpdated: t.LastUpdated,
			}
			batch = append(batch, Update{
				Address:     t.Address,
				Name:        t.Name,
				Ticker:      t.Ticker,
				Price:       t.PriceQuote,
				Volume:      t.Volume,
				MarketCap:   t.MarketCap,
				Liquidity:   t.Liquidity,
				PriceChange: t.DerivePriceChange(r.params.Period),
				LastUpdated: t.LastUpdated,
			})
		}
		if len(batch) == 0 {
			continue
		}
		for _, sub := range r.members {
			sub.Send("token_updates", batch)
		}
		emitted += len(batch) * len(r.members)
		h.logger.Debug("deltas emitted",
			zap.String("room", key),
			zap.Int("tokens", len(batch)),
			zap.Int("members", len(r.members)))
	}
	return emitted
}

// qualifies decides whether a token has moved enough to broadcast: a price
// move of at least thresholdPct percent (absent or zero prior price always
// counts), or a volume grown by at least volumeFactor (absent prior volume,
// or prior zero with new volume above zero, always counts). Either way the
// token's LastUpdated must be strictly newer than the recorded one.
func qualifies(prev tokenState, seen bool, t *domain.Token, thresholdPct, volumeFactor float64) bool {
	if seen && t.LastUpdated <= prev.LastUpdated {
		return false
	}

	priceChanged := !seen || prev.Price == nil || *prev.Price == 0
	if !priceChanged && t.PriceQuote != nil {
		move := (*t.PriceQuote - *prev.Price) / *prev.Price * 100
		if move < 0 {
			move = -move
		}
		priceChanged = move >= thresholdPct
	}
	if priceChanged {
		return true
	}

	if prev.Volume == nil {
		return true
	}
	if *prev.Volume == 0 {
		return t.Volume != nil && *t.Volume > 0
	}
	return t.Volume != nil && *t.Volume >= *prev.Volume*volumeFactor
}

// Sweep deletes rooms with no remaining members, discarding their state.
func (h *Hub) Sweep() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for key, r := range h.rooms {
		if len(r.members) == 0 {
			delete(h.rooms, key)
			h.logger.Debug("room swept", zap.String("room", key))
		}
	}
	observability.SetActiveRooms(len(h.rooms))
}

// Counts reports the current room and member totals.
func (h *Hub) Counts() (rooms, members int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms), len(h.memberOf)
}
