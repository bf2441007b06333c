package domain

// Period selects which price-change window a query operates on.
type Period string

// Supported periods.
const (
	Period1h  Period = "1h"
	Period24h Period = "24h"
	Period7d  Period = "7d"
)

// ParsePeriod maps a raw string to a Period, defaulting to 24h.
func ParsePeriod(s string) Period {
	switch Period(s) {
	case Period1h, Period24h, Period7d:
		return Period(s)
	default:
		return Period24h
	}
}

// DerivePriceChange resolves a single price-change value for the period using
// a fallback chain over the per-window fields. Only when every window is
// absent does it fall back to 0.
func (t *Token) DerivePriceChange(p Period) float64 {
	var chain []*float64
	switch p {
	case Period1h:
		chain = []*float64{t.PriceChange1h, t.PriceChange24h, t.PriceChange7d}
	case Period7d:
		chain = []*float64{t.PriceChange7d, t.PriceChange24h, t.PriceChange1h}
	default: // 24h
		chain = []*float64{t.PriceChange24h, t.PriceChange1h, t.PriceChange7d}
	}
	for _, v := range chain {
		if v != nil {
			return *v
		}
	}
	return 0
}

// SortKey selects which metric a query sorts on.
type SortKey string

// Supported sort keys.
const (
	SortByVolume      SortKey = "volume"
	SortByMarketCap   SortKey = "market_cap"
	SortByPriceChange SortKey = "price_change"
)

// ParseSortKey maps a raw string to a SortKey, defaulting to volume.
func ParseSortKey(s string) SortKey {
	switch SortKey(s) {
	case SortByVolume, SortByMarketCap, SortByPriceChange:
		return SortKey(s)
	default:
		return SortByVolume
	}
}
