// Package merge combines records describing the same token identity into one
// canonical record. Callers fold left-to-right over a stable ordering of
// sources; the "prefer a on tie" rule makes the fold direction significant.
package merge

import "token-pulse/internal/domain"

// Merge combines two records for the same address into one.
// Policy:
//   - address: either non-empty side; merging mismatched addresses is a caller error
//   - string fields: first non-empty wins, preferring a
//   - numeric fields: a one-sided value wins outright; when both sides have a
//     value, the side with strictly higher liquidity wins (ties prefer a);
//     the same rule applies to liquidity itself
//   - sources: set union, a's entries first
//   - LastUpdated: the merge's own clock, not inherited
func Merge(a, b *domain.Token, now int64) *domain.Token {
	addr := a.Address
	if addr == "" {
		addr = b.Address
	}

	// a's liquidity wins the numeric comparison on ties
	aWins := liqOf(a) >= liqOf(b)

	merged := &domain.Token{
		Address:        addr,
		Name:           pickString(a.Name, b.Name),
		Ticker:         pickString(a.Ticker, b.Ticker),
		Protocol:       pickString(a.Protocol, b.Protocol),
		PriceQuote:     pickNumeric(a.PriceQuote, b.PriceQuote, aWins),
		MarketCap:      pickNumeric(a.MarketCap, b.MarketCap, aWins),
		Volume:         pickNumeric(a.Volume, b.Volume, aWins),
		Liquidity:      pickNumeric(a.Liquidity, b.Liquidity, aWins),
		TxCount:        pickNumeric(a.TxCount, b.TxCount, aWins),
		PriceChange1h:  pickNumeric(a.PriceChange1h, b.PriceChange1h, aWins),
		PriceChange24h: pickNumeric(a.PriceChange24h, b.PriceChange24h, aWins),
		PriceChange7d:  pickNumeric(a.PriceChange7d, b.PriceChange7d, aWins),
		Sources:        unionSources(a.Sources, b.Sources),
		LastUpdated:    now,
	}
	return merged
}

func liqOf(t *domain.Token) float64 {
	if t.Liquidity == nil {
		return 0
	}
	return *t.Liquidity
}

func pickString(av, bv *string) *string {
	if av != nil && *av != "" {
		v := *av
		return &v
	}
	if bv != nil && *bv != "" {
		v := *bv
		return &v
	}
	return nil
}

func pickNumeric(av, bv *float64, aWins bool) *float64 {
	if av == nil && bv == nil {
		return nil
	}
	if av == nil {
		v := *bv
		return &v
	}
	if bv == nil {
		v := *av
		return &v
	}
	if aWins {
		v := *av
		return &v
	}
	v := *bv
	return &v
}

func unionSources(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
