package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"token-pulse/internal/domain"
)

// SourceJupiter is the identifier recorded for Jupiter contributions.
const SourceJupiter = "jupiter"

// DefaultJupiterURL is the token search endpoint.
const DefaultJupiterURL = "https://lite-api.jup.ag/tokens/v2/search"

// JupiterSource fetches token data from the Jupiter token search API.
type JupiterSource struct {
	client  *HTTPClient
	baseURL string
	query   string
	now     func() int64
}

// JupiterOptions configures a JupiterSource.
type JupiterOptions struct {
	Client  *HTTPClient
	BaseURL string // default DefaultJupiterURL
	Query   string // default "SOL"
}

// NewJupiterSource creates a Jupiter source client.
func NewJupiterSource(opts JupiterOptions) *JupiterSource {
	client := opts.Client
	if client == nil {
		client = NewHTTPClient(SourceJupiter)
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultJupiterURL
	}
	query := opts.Query
	if query == "" {
		query = "SOL"
	}
	return &JupiterSource{
		client:  client,
		baseURL: baseURL,
		query:   query,
		now:     func() int64 { return time.Now().UnixMilli() },
	}
}

// Name implements TokenSource.
func (s *JupiterSource) Name() string {
	return SourceJupiter
}

// jupiterResponse covers the two known response variants: an object with a
// "data" array, or a bare array.
type jupiterResponse struct {
	Data []jupiterToken
}

func (r *jupiterResponse) UnmarshalJSON(b []byte) error {
	var bare []jupiterToken
	if err := json.Unmarshal(b, &bare); err == nil {
		r.Data = bare
		return nil
	}

	var wrapped struct {
		Data []jupiterToken `json:"data"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return err
	}
	r.Data = wrapped.Data
	return nil
}

type jupiterToken struct {
	Address   string   `json:"address"`
	Mint      string   `json:"mint"`
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Symbol    string   `json:"symbol"`
	PriceUsd  *float64 `json:"priceUsd"`
	Liquidity *float64 `json:"liquidity"`
	MarketCap *float64 `json:"marketCap"`
	Volume    *float64 `json:"volume"`
	Change1h  *float64 `json:"change1h"`
	Change24h *float64 `json:"change24h"`
	Change7d  *float64 `json:"change7d"`
	Protocol  string   `json:"protocol"`
}

// Fetch implements TokenSource.
func (s *JupiterSource) Fetch(ctx context.Context) ([]*domain.Token, error) {
	u := fmt.Sprintf("%s?query=%s", s.baseURL, url.QueryEscape(s.query))

	var resp jupiterResponse
	if err := s.client.GetJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("jupiter search: %w", err)
	}

	now := s.now()
	tokens := make([]*domain.Token, 0, len(resp.Data))
	for _, raw := range resp.Data {
		addr := raw.Address
		if addr == "" {
			addr = raw.Mint
		}
		if addr == "" {
			addr = raw.ID
		}
		if addr == "" {
			continue
		}

		protocol := raw.Protocol
		if protocol == "" {
			protocol = SourceJupiter
		}

		tokens = append(tokens, &domain.Token{
			Address:        addr,
			Name:           optString(raw.Name),
			Ticker:         optString(raw.Symbol),
			PriceQuote:     raw.PriceUsd,
			Liquidity:      raw.Liquidity,
			MarketCap:      raw.MarketCap,
			Volume:         raw.Volume,
			PriceChange1h:  raw.Change1h,
			PriceChange24h: raw.Change24h,
			PriceChange7d:  raw.Change7d,
			Protocol:       &protocol,
			Sources:        []string{SourceJupiter},
			LastUpdated:    now,
		})
	}

	return tokens, nil
}

var _ TokenSource = (*JupiterSource)(nil)
