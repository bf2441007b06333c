// Package query implements the pull-side read path over the cached snapshot:
// period-specific price-change derivation, filtering, deterministic sorting
// and cursor-based pagination.
package query

import (
	"context"
	"math"
	"sort"

	"token-pulse/internal/cache"
	"token-pulse/internal/domain"
	"token-pulse/internal/observability"
)

// Limit bounds for one page.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params are the query parameters after transport-level parsing. Invalid
// values have already been replaced with defaults; Limit is clamped here.
type Params struct {
	Limit          int
	Cursor         string
	SortBy         domain.SortKey
	Period         domain.Period
	MinPriceChange *float64 // optional filter on |derived price change|
}

// View is one returned row: the canonical record plus the derived
// price-change value the query sorted/filtered on.
type View struct {
	*domain.Token
	PriceChange float64 `json:"price_change"`
}

// Result is one page of query output.
type Result struct {
	Items      []View  `json:"items"`
	NextCursor *string `json:"nextCursor"`
}

// Engine serves queries over the cached snapshot.
type Engine struct {
	snapshots *cache.SnapshotCache
}

// NewEngine creates a query engine over the given snapshot cache.
func NewEngine(snapshots *cache.SnapshotCache) *Engine {
	return &Engine{snapshots: snapshots}
}

// Query loads the snapshot, derives the period price change, filters, sorts
// and returns one page. It never fails: an empty or unreachable cache yields
// an empty page, a stale or garbage cursor restarts from the beginning.
func (e *Engine) Query(ctx context.Context, p Params) Result {
	observability.RecordQuery(string(p.SortBy))

	tokens := e.snapshots.Load(ctx)

	views := make([]View, 0, len(tokens))
	for _, t := range tokens {
		if t == nil {
			continue
		}
		v := View{Token: t, PriceChange: t.DerivePriceChange(p.Period)}
		if p.MinPriceChange != nil && math.Abs(v.PriceChange) < *p.MinPriceChange {
			continue
		}
		views = append(views, v)
	}

	sortViews(views, p.SortBy)

	return paginate(views, p.Limit, p.Cursor, p.SortBy)
}

// sortKeyValue extracts the active sort key; nil means "absent", which sorts
// below every present value.
func sortKeyValue(v View, key domain.SortKey) *float64 {
	switch key {
	case domain.SortByMarketCap:
		return v.MarketCap
	case domain.SortByPriceChange:
		pc := v.PriceChange
		return &pc
	default:
		return v.Volume
	}
}

// sortViews orders views descending by sort key, with a deterministic
// two-level tie-break: descending liquidity (absent = 0), then ascending
// address. This total order is what makes pagination stable.
func sortViews(views []View, key domain.SortKey) {
	sort.SliceStable(views, func(i, j int) bool {
		iv := valueOrLowest(sortKeyValue(views[i], key))
		jv := valueOrLowest(sortKeyValue(views[j], key))
		if iv != jv {
			return iv > jv
		}
		il := valueOrZero(views[i].Liquidity)
		jl := valueOrZero(views[j].Liquidity)
		if il != jl {
			return il > jl
		}
		return views[i].Address < views[j].Address
	})
}

func valueOrLowest(v *float64) float64 {
	if v == nil {
		return math.Inf(-1)
	}
	return *v
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// paginate resumes after the cursor's last key when it is still present in
// the sorted sequence, clamps the limit and emits the next cursor when more
// rows remain.
func paginate(sorted []View, limit int, rawCursor string, key domain.SortKey) Result {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	start := 0
	if c := DecodeCursor(rawCursor); c != nil {
		anchor := domain.NormalizeAddress(c.LastKey)
		for i, v := range sorted {
			if domain.NormalizeAddress(v.Address) == anchor {
				start = i + 1
				break
			}
		}
		// stale cursor: anchor gone, restart from the top
	}

	end := start + limit
	if end > len(sorted) {
		end = len(sorted)
	}
	items := sorted[start:end]

	var next *string
	if end < len(sorted) && len(items) > 0 {
		last := items[len(items)-1]
		encoded := EncodeCursor(Cursor{
			LastKey:   last.Address,
			LastValue: sortKeyValue(last, key),
		})
		next = &encoded
	}

	return Result{Items: items, NextCursor: next}
}
