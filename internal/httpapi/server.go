// Package httpapi exposes the pull API, admin trigger and operational
// endpoints over a standard net/http mux.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"token-pulse/internal/aggregator"
	"token-pulse/internal/domain"
	"token-pulse/internal/observability"
	"token-pulse/internal/query"
	"token-pulse/internal/ws"
)

// API wires the HTTP surface: pull queries, the synchronous admin aggregation
// trigger, health/status and the websocket upgrade endpoint.
type API struct {
	engine     *query.Engine
	aggregator *aggregator.Aggregator
	hub        *ws.Hub
	wsHandler  http.Handler
	adminKey   string
	started    time.Time
	logger     *zap.Logger
}

// Options configures an API.
type Options struct {
	Engine     *query.Engine
	Aggregator *aggregator.Aggregator
	Hub        *ws.Hub
	WSHandler  http.Handler
	AdminKey   string // empty disables the admin gate
	Logger     *zap.Logger
}

// New creates an API.
func New(opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		engine:     opts.Engine,
		aggregator: opts.Aggregator,
		hub:        opts.Hub,
		wsHandler:  opts.WSHandler,
		adminKey:   opts.AdminKey,
		started:    time.Now(),
		logger:     logger.Named("http"),
	}
}

// Router builds the request mux.
func (a *API) Router() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /tokens", a.handleTokens)
	mux.HandleFunc("POST /admin/aggregate", a.handleAggregate)
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /status", a.handleStatus)
	mux.Handle("GET /metrics", observability.Handler())
	if a.wsHandler != nil {
		mux.Handle("/ws", a.wsHandler)
	}

	return mux
}

// handleTokens serves the paginated pull API. Malformed parameters fall back
// to defaults rather than erroring.
func (a *API) handleTokens(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := query.Params{
		Cursor: q.Get("cursor"),
		SortBy: domain.ParseSortKey(q.Get("sortBy")),
		Period: domain.ParsePeriod(q.Get("period")),
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		params.Limit = v
	}
	if v, err := strconv.ParseFloat(q.Get("minPriceChange"), 64); err == nil {
		params.MinPriceChange = &v
	}

	writeJSON(w, http.StatusOK, a.engine.Query(r.Context(), params))
}

// aggregateResponse is the admin trigger response body.
type aggregateResponse struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

// handleAggregate runs one aggregation cycle synchronously. When an admin key
// is configured the X-Admin-Key header must match.
func (a *API) handleAggregate(w http.ResponseWriter, r *http.Request) {
	if a.adminKey != "" && r.Header.Get("X-Admin-Key") != a.adminKey {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}

	merged := a.aggregator.RunOnce(r.Context())
	a.logger.Info("admin aggregation triggered", zap.Int("tokens", len(merged)))
	writeJSON(w, http.StatusOK, aggregateResponse{OK: true, Count: len(merged)})
}

// healthResponse is the health endpoint body.
type healthResponse struct {
	OK            bool   `json:"ok"`
	Service       string `json:"service"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     int64  `json:"timestamp"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		OK:            true,
		Service:       "token-pulse",
		UptimeSeconds: int64(time.Since(a.started).Seconds()),
		Timestamp:     time.Now().UnixMilli(),
	})
}

// statusResponse is the status endpoint body.
type statusResponse struct {
	AggregationRuns  int64  `json:"aggregation_runs"`
	LastRun          string `json:"last_run,omitempty"`
	Rooms            int    `json:"rooms"`
	ConnectedClients int    `json:"connected_clients"`
	Uptime           string `json:"uptime"`
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	runs, lastRun := a.aggregator.Stats()
	rooms, clients := a.hub.Counts()

	resp := statusResponse{
		AggregationRuns:  runs,
		Rooms:            rooms,
		ConnectedClients: clients,
		Uptime:           time.Since(a.started).Round(time.Second).String(),
	}
	if !lastRun.IsZero() {
		resp.LastRun = lastRun.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
