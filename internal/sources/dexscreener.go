package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"token-pulse/internal/domain"
)

// SourceDexScreener is the identifier recorded for DexScreener contributions.
const SourceDexScreener = "dexscreener"

// DefaultDexScreenerURL is the search endpoint.
const DefaultDexScreenerURL = "https://api.dexscreener.com/latest/dex/search"

// DexScreenerSource fetches token data from the DexScreener search API.
type DexScreenerSource struct {
	client  *HTTPClient
	baseURL string
	query   string
	now     func() int64
}

// DexScreenerOptions configures a DexScreenerSource.
type DexScreenerOptions struct {
	Client  *HTTPClient
	BaseURL string // default DefaultDexScreenerURL
	Query   string // default "sol"
}

// NewDexScreenerSource creates a DexScreener source client.
func NewDexScreenerSource(opts DexScreenerOptions) *DexScreenerSource {
	client := opts.Client
	if client == nil {
		client = NewHTTPClient(SourceDexScreener)
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultDexScreenerURL
	}
	query := opts.Query
	if query == "" {
		query = "sol"
	}
	return &DexScreenerSource{
		client:  client,
		baseURL: baseURL,
		query:   query,
		now:     func() int64 { return time.Now().UnixMilli() },
	}
}

// Name implements TokenSource.
func (s *DexScreenerSource) Name() string {
	return SourceDexScreener
}

// dexScreenerResponse covers the two known response variants: search queries
// answer with "tokens", pair lookups with "pairs".
type dexScreenerResponse struct {
	Tokens []dexScreenerToken `json:"tokens"`
	Pairs  []dexScreenerToken `json:"pairs"`
}

type dexScreenerToken struct {
	Address        string   `json:"address"`
	TokenAddress   string   `json:"tokenAddress"`
	Name           string   `json:"name"`
	Symbol         string   `json:"symbol"`
	PriceUsd       *float64 `json:"priceUsd"`
	Volume         *float64 `json:"volume"`
	Liquidity      *float64 `json:"liquidity"`
	MarketCap      *float64 `json:"marketCap"`
	TxCount        *float64 `json:"txCount"`
	PriceChange1h  *float64 `json:"priceChange1h"`
	PriceChange24h *float64 `json:"priceChange24h"`
	PriceChange7d  *float64 `json:"priceChange7d"`
	DexID          string   `json:"dexId"`
}

// Fetch implements TokenSource.
func (s *DexScreenerSource) Fetch(ctx context.Context) ([]*domain.Token, error) {
	u := fmt.Sprintf("%s?q=%s", s.baseURL, url.QueryEscape(s.query))

	var resp dexScreenerResponse
	if err := s.client.GetJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("dexscreener search: %w", err)
	}

	list := resp.Tokens
	if len(list) == 0 {
		list = resp.Pairs
	}

	now := s.now()
	tokens := make([]*domain.Token, 0, len(list))
	for _, raw := range list {
		addr := raw.Address
		if addr == "" {
			addr = raw.TokenAddress
		}
		if addr == "" {
			continue
		}

		tokens = append(tokens, &domain.Token{
			Address:        addr,
			Name:           optString(raw.Name),
			Ticker:         optString(raw.Symbol),
			PriceQuote:     raw.PriceUsd,
			Volume:         raw.Volume,
			Liquidity:      raw.Liquidity,
			MarketCap:      raw.MarketCap,
			TxCount:        raw.TxCount,
			PriceChange1h:  raw.PriceChange1h,
			PriceChange24h: raw.PriceChange24h,
			PriceChange7d:  raw.PriceChange7d,
			Protocol:       optString(raw.DexID),
			Sources:        []string{SourceDexScreener},
			LastUpdated:    now,
		})
	}

	return tokens, nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ TokenSource = (*DexScreenerSource)(nil)
