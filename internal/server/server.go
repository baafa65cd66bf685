// Package server is the record service: a records/query endpoint over a
// recordstore.Store, speaking the JSON protocol of package cloud.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/idilsaglam/itemwatch/internal/cloud"
	"github.com/idilsaglam/itemwatch/internal/recordstore"
	"github.com/idilsaglam/itemwatch/internal/tracing"
)

const (
	DefaultResultsLimit = 100
	MaxResultsLimit     = 200

	maxRequestBody = 1 << 20
)

// Options tune a Server. The zero value serves without rate limiting,
// tracing or a shared metrics registry.
type Options struct {
	Logger     *slog.Logger
	RateLimit  float64 // requests per second per client, 0 = unlimited
	Burst      int
	TrustProxy bool    // key the rate limit on X-Forwarded-For, set only behind a proxy that overwrites it
	Tracing    *tracing.Provider
	Registry   *prometheus.Registry
}

// Server answers record queries.
type Server struct {
	store    recordstore.Store
	log      *slog.Logger
	metrics  *metrics
	registry *prometheus.Registry
	limiter  *limiter
	tracing  *tracing.Provider
}

// New builds a Server over store.
func New(store recordstore.Store, opts Options) *Server {
	s := &Server{
		store:    store,
		log:      opts.Logger,
		registry: opts.Registry,
		tracing:  opts.Tracing,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.metrics = newMetrics(s.registry)
	if opts.RateLimit > 0 {
		s.limiter = newLimiter(opts.RateLimit, opts.Burst, opts.TrustProxy)
	}
	return s
}

// RegisterRoutes registers the service routes on r.
func (s *Server) RegisterRoutes(r *mux.Router) {
	var query http.Handler = http.HandlerFunc(s.Query)
	if s.limiter != nil {
		query = s.limiter.middleware(query)
	}
	r.Handle("/database/{version}/{container}/{environment}/{database}/records/query", query).Methods(http.MethodPost)
	r.HandleFunc("/health", s.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

// Handler returns the full router, wrapped in tracing when configured.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.RegisterRoutes(r)
	if s.tracing != nil {
		return tracing.Middleware(s.tracing)(r)
	}
	return r
}

// Health reports liveness.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Query handles POST .../records/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	database := metricDatabase(vars["database"])
	start := time.Now()
	code := s.query(w, r, vars)
	s.metrics.queries.WithLabelValues(database, string(code)).Inc()
	s.metrics.duration.WithLabelValues(database).Observe(time.Since(start).Seconds())
}

// metricDatabase bounds the database label to known values.
func metricDatabase(name string) string {
	switch cloud.Scope(name) {
	case cloud.ScopePublic, cloud.ScopePrivate:
		return name
	}
	return "unknown"
}

// query writes the response and returns the result code, "OK" on success.
func (s *Server) query(w http.ResponseWriter, r *http.Request, vars map[string]string) cloud.ErrorCode {
	fail := func(code cloud.ErrorCode, reason string) cloud.ErrorCode {
		writeError(w, code, reason)
		return code
	}

	if vars["version"] != "1" {
		return fail(cloud.CodeNotFound, "unsupported API version "+vars["version"])
	}
	switch cloud.Scope(vars["database"]) {
	case cloud.ScopePublic:
	case cloud.ScopePrivate:
		return fail(cloud.CodeAuthenticationRequired, "private database requires an authenticated user")
	default:
		return fail(cloud.CodeNotFound, "unknown database "+vars["database"])
	}

	var req cloud.QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		return fail(cloud.CodeBadRequest, "invalid request body")
	}
	if req.Query.RecordType == "" {
		return fail(cloud.CodeBadRequest, "query.recordType is required")
	}
	if len(req.Query.FilterBy) > 0 {
		return fail(cloud.CodeBadRequest, "only match-all queries are supported")
	}
	if req.ZoneID != nil && req.ZoneID.ZoneName != "" && req.ZoneID.ZoneName != cloud.DefaultZone {
		return fail(cloud.CodeZoneNotFound, "zone "+req.ZoneID.ZoneName+" not found")
	}
	limit := req.ResultsLimit
	switch {
	case limit < 0:
		return fail(cloud.CodeBadRequest, "resultsLimit must not be negative")
	case limit == 0:
		limit = DefaultResultsLimit
	case limit > MaxResultsLimit:
		limit = MaxResultsLimit
	}

	recs, err := s.store.Query(r.Context(), req.Query.RecordType, limit+1)
	if err != nil {
		s.log.Error("record query failed", "type", req.Query.RecordType, "error", err)
		return fail(cloud.CodeInternal, "record store unavailable")
	}

	resp := cloud.QueryResponse{Records: make([]cloud.WireRecord, 0, len(recs))}
	if len(recs) > limit {
		recs = recs[:limit]
		resp.ContinuationMarker = recs[limit-1].Name
	}
	for _, rec := range recs {
		wr := toWire(rec, req.DesiredKeys)
		if wr.ServerErrorCode != "" {
			s.metrics.recordErrors.Inc()
			s.log.Warn("record not decodable", "record", rec.Name)
		}
		resp.Records = append(resp.Records, wr)
	}
	s.metrics.returned.Observe(float64(len(resp.Records)))
	s.log.Debug("record query", "type", req.Query.RecordType, "limit", limit, "returned", len(resp.Records))

	writeJSON(w, http.StatusOK, resp)
	return "OK"
}

func toWire(rec recordstore.Record, desired []string) cloud.WireRecord {
	var fields map[string]any
	if len(rec.Fields) > 0 {
		if err := json.Unmarshal(rec.Fields, &fields); err != nil {
			return cloud.WireRecord{
				RecordName:      rec.Name,
				ServerErrorCode: cloud.CodeInternal,
				Reason:          "record fields could not be decoded",
			}
		}
	}

	out := cloud.WireRecord{
		RecordName: rec.Name,
		RecordType: rec.Type,
		Fields:     map[string]cloud.FieldValue{},
	}
	add := func(k string, v any) {
		out.Fields[k] = cloud.FieldValue{Value: v, Type: cloud.FieldType(v)}
	}
	if desired == nil {
		for k, v := range fields {
			add(k, v)
		}
		return out
	}
	for _, k := range desired {
		if v, ok := fields[k]; ok {
			add(k, v)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code cloud.ErrorCode, reason string) {
	writeJSON(w, cloud.StatusForCode(code), cloud.ErrorResponse{
		UUID:            uuid.NewString(),
		ServerErrorCode: code,
		Reason:          reason,
	})
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.limiter != nil {
		sweepCtx, stop := context.WithCancel(ctx)
		defer stop()
		go s.limiter.sweep(sweepCtx, limiterSweepInterval, limiterMaxIdle)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("record service listening", "addr", addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("record service stopped")
	return nil
}
