package domain

import "strings"

// Token is the canonical token record all upstream sources are normalized into.
// Numeric fields are nullable: nil means "unknown", which is distinct from 0.
type Token struct {
	Address        string   `json:"token_address"`
	Name           *string  `json:"token_name,omitempty"`
	Ticker         *string  `json:"token_ticker,omitempty"`
	PriceQuote     *float64 `json:"price_sol,omitempty"`
	MarketCap      *float64 `json:"market_cap_sol,omitempty"`
	Volume         *float64 `json:"volume_sol,omitempty"`
	Liquidity      *float64 `json:"liquidity_sol,omitempty"`
	TxCount        *float64 `json:"transaction_count,omitempty"`
	PriceChange1h  *float64 `json:"price_1hr_change,omitempty"`
	PriceChange24h *float64 `json:"price_24hr_change,omitempty"`
	PriceChange7d  *float64 `json:"price_7d_change,omitempty"`
	Protocol       *string  `json:"protocol,omitempty"`
	Sources        []string `json:"sources,omitempty"`
	LastUpdated    int64    `json:"last_updated"` // epoch ms
}

// NormalizeAddress returns the canonical form of a token address.
// Addresses are case-insensitive for equality; the lower-cased form is the
// dedup/merge key and the pagination cursor anchor.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Clone returns a deep copy of the token.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Name = clonePtr(t.Name)
	cp.Ticker = clonePtr(t.Ticker)
	cp.PriceQuote = clonePtr(t.PriceQuote)
	cp.MarketCap = clonePtr(t.MarketCap)
	cp.Volume = clonePtr(t.Volume)
	cp.Liquidity = clonePtr(t.Liquidity)
	cp.TxCount = clonePtr(t.TxCount)
	cp.PriceChange1h = clonePtr(t.PriceChange1h)
	cp.PriceChange24h = clonePtr(t.PriceChange24h)
	cp.PriceChange7d = clonePtr(t.PriceChange7d)
	cp.Protocol = clonePtr(t.Protocol)
	if t.Sources != nil {
		cp.Sources = append([]string(nil), t.Sources...)
	}
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
