package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-pulse/internal/domain"
)

func ptr[T any](v T) *T {
	return &v
}

func TestMerge_KeepsAddressAndUnionsSources(t *testing.T) {
	a := &domain.Token{
		Address:   "AbC",
		Name:      ptr("Alpha"),
		Liquidity: ptr(10.0),
		Sources:   []string{"dexscreener"},
	}
	b := &domain.Token{
		Address:   "AbC",
		Ticker:    ptr("AL"),
		Liquidity: ptr(5.0),
		Sources:   []string{"jupiter"},
	}

	merged := Merge(a, b, 1000)

	assert.Equal(t, "AbC", merged.Address)
	assert.ElementsMatch(t, []string{"dexscreener", "jupiter"}, merged.Sources)
	require.NotNil(t, merged.Name)
	assert.Equal(t, "Alpha", *merged.Name)
	require.NotNil(t, merged.Ticker)
	assert.Equal(t, "AL", *merged.Ticker)
	assert.Equal(t, int64(1000), merged.LastUpdated)
}

func TestMerge_HigherLiquiditySideWinsNumerics(t *testing.T) {
	a := &domain.Token{
		Address:    "X",
		Liquidity:  ptr(100.0),
		PriceQuote: ptr(1.0),
		Volume:     ptr(10.0),
	}
	b := &domain.Token{
		Address:    "X",
		Liquidity:  ptr(50.0),
		PriceQuote: ptr(2.0),
		Volume:     ptr(20.0),
	}

	merged := Merge(a, b, 0)

	require.NotNil(t, merged.PriceQuote)
	assert.Equal(t, 1.0, *merged.PriceQuote)
	require.NotNil(t, merged.Volume)
	assert.Equal(t, 10.0, *merged.Volume)
	require.NotNil(t, merged.Liquidity)
	assert.Equal(t, 100.0, *merged.Liquidity)

	// reversed argument order flips the winner
	reversed := Merge(b, a, 0)
	require.NotNil(t, reversed.PriceQuote)
	assert.Equal(t, 1.0, *reversed.PriceQuote)
	require.NotNil(t, reversed.Liquidity)
	assert.Equal(t, 100.0, *reversed.Liquidity)
}

func TestMerge_OneSidedNumericWinsRegardlessOfLiquidity(t *testing.T) {
	a := &domain.Token{Address: "X", Liquidity: ptr(0.0)}
	b := &domain.Token{Address: "X", Liquidity: ptr(2.0), PriceQuote: ptr(3.0)}

	merged := Merge(a, b, 0)

	require.NotNil(t, merged.PriceQuote)
	assert.Equal(t, 3.0, *merged.PriceQuote)
}

func TestMerge_TiePrefersA(t *testing.T) {
	a := &domain.Token{Address: "X", Liquidity: ptr(7.0), PriceQuote: ptr(1.5)}
	b := &domain.Token{Address: "X", Liquidity: ptr(7.0), PriceQuote: ptr(9.9)}

	merged := Merge(a, b, 0)

	require.NotNil(t, merged.PriceQuote)
	assert.Equal(t, 1.5, *merged.PriceQuote)
}

func TestMerge_IdempotentOnIdenticalInputs(t *testing.T) {
	a := &domain.Token{
		Address:        "same",
		Name:           ptr("Same"),
		PriceQuote:     ptr(4.2),
		MarketCap:      ptr(100.0),
		Volume:         ptr(55.0),
		Liquidity:      ptr(9.0),
		TxCount:        ptr(12.0),
		PriceChange1h:  ptr(1.0),
		PriceChange24h: ptr(2.0),
		PriceChange7d:  ptr(3.0),
		Protocol:       ptr("raydium"),
		Sources:        []string{"dexscreener"},
		LastUpdated:    123,
	}

	merged := Merge(a, a.Clone(), 999)

	// equal modulo LastUpdated
	assert.Equal(t, int64(999), merged.LastUpdated)
	merged.LastUpdated = a.LastUpdated
	assert.Equal(t, a, merged)
}

func TestMerge_MissingAddressFallsBackToB(t *testing.T) {
	a := &domain.Token{}
	b := &domain.Token{Address: "bbb"}

	merged := Merge(a, b, 0)

	assert.Equal(t, "bbb", merged.Address)
}

func TestMerge_NilLiquidityTreatedAsZero(t *testing.T) {
	a := &domain.Token{Address: "X", PriceQuote: ptr(1.0)}
	b := &domain.Token{Address: "X", Liquidity: ptr(0.5), PriceQuote: ptr(2.0)}

	merged := Merge(a, b, 0)

	require.NotNil(t, merged.PriceQuote)
	assert.Equal(t, 2.0, *merged.PriceQuote)
}

func TestMerge_DuplicateSourcesNotRepeated(t *testing.T) {
	a := &domain.Token{Address: "X", Sources: []string{"dexscreener", "jupiter"}}
	b := &domain.Token{Address: "X", Sources: []string{"jupiter"}}

	merged := Merge(a, b, 0)

	assert.Equal(t, []string{"dexscreener", "jupiter"}, merged.Sources)
}
