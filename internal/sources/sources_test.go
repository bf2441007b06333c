package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDexScreenerSource_MapsTokensVariant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sol", r.URL.Query().Get("q"))
		w.Write([]byte(`{"tokens":[
			{"address":"T1","name":"Token1","symbol":"TK1","priceUsd":1,"liquidity":100,"volume":10,"priceChange24h":5},
			{"name":"NoAddress"}
		]}`))
	}))
	defer srv.Close()

	src := NewDexScreenerSource(DexScreenerOptions{BaseURL: srv.URL})
	tokens, err := src.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, tokens, 1)
	tok := tokens[0]
	assert.Equal(t, "T1", tok.Address)
	require.NotNil(t, tok.Name)
	assert.Equal(t, "Token1", *tok.Name)
	require.NotNil(t, tok.PriceQuote)
	assert.Equal(t, 1.0, *tok.PriceQuote)
	require.NotNil(t, tok.Liquidity)
	assert.Equal(t, 100.0, *tok.Liquidity)
	require.NotNil(t, tok.PriceChange24h)
	assert.Equal(t, 5.0, *tok.PriceChange24h)
	assert.Nil(t, tok.PriceChange1h)
	assert.Equal(t, []string{"dexscreener"}, tok.Sources)
	assert.NotZero(t, tok.LastUpdated)
}

func TestDexScreenerSource_FallsBackToPairsVariant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pairs":[{"tokenAddress":"P1","symbol":"PP","dexId":"raydium"}]}`))
	}))
	defer srv.Close()

	src := NewDexScreenerSource(DexScreenerOptions{BaseURL: srv.URL})
	tokens, err := src.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, tokens, 1)
	assert.Equal(t, "P1", tokens[0].Address)
	require.NotNil(t, tokens[0].Protocol)
	assert.Equal(t, "raydium", *tokens[0].Protocol)
}

func TestJupiterSource_MapsWrappedVariant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SOL", r.URL.Query().Get("query"))
		w.Write([]byte(`{"data":[{"address":"J1","name":"Jup","symbol":"JP","priceUsd":2,"liquidity":50,"volume":5,"change24h":2}]}`))
	}))
	defer srv.Close()

	src := NewJupiterSource(JupiterOptions{BaseURL: srv.URL})
	tokens, err := src.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, tokens, 1)
	tok := tokens[0]
	assert.Equal(t, "J1", tok.Address)
	require.NotNil(t, tok.PriceChange24h)
	assert.Equal(t, 2.0, *tok.PriceChange24h)
	require.NotNil(t, tok.Protocol)
	assert.Equal(t, "jupiter", *tok.Protocol)
}

func TestJupiterSource_MapsBareArrayVariant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"mint":"M1","symbol":"MM"},{"id":"I1"}]`))
	}))
	defer srv.Close()

	src := NewJupiterSource(JupiterOptions{BaseURL: srv.URL})
	tokens, err := src.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, tokens, 2)
	assert.Equal(t, "M1", tokens[0].Address)
	assert.Equal(t, "I1", tokens[1].Address)
}

func TestHTTPClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewHTTPClient("test", WithRetryInterval(time.Millisecond))

	var out map[string]bool
	err := client.GetJSON(context.Background(), srv.URL, &out)
	require.NoError(t, err)
	assert.True(t, out["ok"])
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewHTTPClient("test", WithRetryInterval(time.Millisecond))

	var out map[string]bool
	err := client.GetJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
