package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-pulse/internal/aggregator"
	"token-pulse/internal/cache"
	"token-pulse/internal/domain"
	"token-pulse/internal/query"
	"token-pulse/internal/sources"
	"token-pulse/internal/ws"
)

func ptr[T any](v T) *T {
	return &v
}

type stubSource struct {
	tokens []*domain.Token
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(ctx context.Context) ([]*domain.Token, error) {
	return s.tokens, nil
}

type fixture struct {
	api       *API
	server    *httptest.Server
	snapshots *cache.SnapshotCache
}

func newFixture(t *testing.T, adminKey string, upstream []*domain.Token) *fixture {
	t.Helper()

	snapshots := cache.NewSnapshotCache(cache.SnapshotCacheOptions{KV: cache.NewMemoryKV()})
	agg := aggregator.New(aggregator.Options{
		Sources:   []sources.TokenSource{&stubSource{tokens: upstream}},
		Snapshots: snapshots,
	})
	hub := ws.NewHub(ws.HubOptions{Snapshots: snapshots})

	api := New(Options{
		Engine:     query.NewEngine(snapshots),
		Aggregator: agg,
		Hub:        hub,
		WSHandler:  ws.NewServer(ws.ServerOptions{Hub: hub}),
		AdminKey:   adminKey,
	})
	server := httptest.NewServer(api.Router())
	t.Cleanup(server.Close)

	return &fixture{api: api, server: server, snapshots: snapshots}
}

func (f *fixture) getJSON(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestTokens_ReturnsSortedPageWithDerivedChange(t *testing.T) {
	f := newFixture(t, "", nil)
	f.snapshots.Save(context.Background(), []*domain.Token{
		{Address: "A", PriceChange1h: ptr(10.0), PriceChange24h: ptr(20.0)},
		{Address: "B", PriceChange1h: ptr(-5.0), PriceChange24h: ptr(-10.0)},
	})

	var res query.Result
	code := f.getJSON(t, "/tokens?period=1h&sortBy=price_change", &res)

	assert.Equal(t, http.StatusOK, code)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "A", res.Items[0].Address)
	assert.Equal(t, 10.0, res.Items[0].PriceChange)
	assert.Equal(t, "B", res.Items[1].Address)
}

func TestTokens_MinPriceChangeFilter(t *testing.T) {
	f := newFixture(t, "", nil)
	f.snapshots.Save(context.Background(), []*domain.Token{
		{Address: "A", PriceChange24h: ptr(20.0)},
		{Address: "B", PriceChange24h: ptr(-10.0)},
	})

	var res query.Result
	f.getJSON(t, "/tokens?period=24h&minPriceChange=15", &res)

	require.Len(t, res.Items, 1)
	assert.Equal(t, "A", res.Items[0].Address)
}

func TestTokens_MalformedParamsFallBackSilently(t *testing.T) {
	f := newFixture(t, "", nil)
	f.snapshots.Save(context.Background(), []*domain.Token{{Address: "A"}})

	var res query.Result
	code := f.getJSON(t, "/tokens?limit=banana&cursor=garbage&sortBy=nope&period=yesterday&minPriceChange=x", &res)

	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, res.Items, 1)
}

func TestTokens_PaginationFollowsCursor(t *testing.T) {
	f := newFixture(t, "", nil)
	f.snapshots.Save(context.Background(), []*domain.Token{
		{Address: "a", Volume: ptr(3.0)},
		{Address: "b", Volume: ptr(2.0)},
		{Address: "c", Volume: ptr(1.0)},
	})

	var first query.Result
	f.getJSON(t, "/tokens?limit=2", &first)
	require.Len(t, first.Items, 2)
	require.NotNil(t, first.NextCursor)

	var second query.Result
	f.getJSON(t, "/tokens?limit=2&cursor="+*first.NextCursor, &second)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "c", second.Items[0].Address)
	assert.Nil(t, second.NextCursor)
}

func TestAdminAggregate_RequiresKeyWhenConfigured(t *testing.T) {
	f := newFixture(t, "secret", []*domain.Token{{Address: "x"}})

	resp, err := http.Post(f.server.URL+"/admin/aggregate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPost, f.server.URL+"/admin/aggregate", nil)
	req.Header.Set("X-Admin-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body aggregateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.OK)
	assert.Equal(t, 1, body.Count)

	cached := f.snapshots.Load(context.Background())
	assert.Len(t, cached, 1)
}

func TestAdminAggregate_OpenWhenNoKeyConfigured(t *testing.T) {
	f := newFixture(t, "", []*domain.Token{{Address: "x"}, {Address: "y"}})

	resp, err := http.Post(f.server.URL+"/admin/aggregate", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body aggregateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Count)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, "", nil)

	var body healthResponse
	code := f.getJSON(t, "/health", &body)

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, body.OK)
	assert.Equal(t, "token-pulse", body.Service)
	assert.NotZero(t, body.Timestamp)
}

func TestStatus_ReflectsAggregationRuns(t *testing.T) {
	f := newFixture(t, "", []*domain.Token{{Address: "x"}})

	var before statusResponse
	f.getJSON(t, "/status", &before)
	assert.Zero(t, before.AggregationRuns)
	assert.Empty(t, before.LastRun)

	resp, err := http.Post(f.server.URL+"/admin/aggregate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	var after statusResponse
	f.getJSON(t, "/status", &after)
	assert.Equal(t, int64(1), after.AggregationRuns)
	assert.NotEmpty(t, after.LastRun)
}

func TestMetricsEndpointServes(t *testing.T) {
	f := newFixture(t, "", nil)

	code := f.getJSON(t, "/metrics", nil)

	assert.Equal(t, http.StatusOK, code)
}
