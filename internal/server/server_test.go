package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/itemwatch/internal/cloud"
	"github.com/idilsaglam/itemwatch/internal/recordstore"
)

const queryPath = "/database/1/iCloud.com.example.itemwatch/development/public/records/query"

func seeded(t *testing.T, recs ...recordstore.Record) *recordstore.MemoryStore {
	t.Helper()
	s := recordstore.NewMemoryStore()
	require.NoError(t, s.Put(context.Background(), recs...))
	return s
}

func item(name, fields string) recordstore.Record {
	return recordstore.Record{Name: name, Type: "Item", Fields: json.RawMessage(fields)}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeQuery(t *testing.T, rec *httptest.ResponseRecorder) cloud.QueryResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var qr cloud.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &qr))
	return qr
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) cloud.ErrorResponse {
	t.Helper()
	var er cloud.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
	assert.NotEmpty(t, er.UUID)
	return er
}

func TestQueryProjectsAndKeepsOrder(t *testing.T) {
	store := seeded(t,
		item("a", `{"name":"Alpha","rank":1}`),
		item("b", `{"rank":2}`),
		recordstore.Record{Name: "n", Type: "Note", Fields: json.RawMessage(`{"name":"memo"}`)},
		item("c", `{"name":"Gamma"}`),
	)
	h := New(store, Options{}).Handler()

	qr := decodeQuery(t, do(t, h, http.MethodPost, queryPath,
		`{"query":{"recordType":"Item"},"desiredKeys":["name"],"resultsLimit":50,"zoneID":{"zoneName":"_defaultZone"}}`))

	require.Len(t, qr.Records, 3)
	assert.Equal(t, "a", qr.Records[0].RecordName)
	assert.Equal(t, "Item", qr.Records[0].RecordType)
	assert.Equal(t, cloud.FieldValue{Value: "Alpha", Type: "STRING"}, qr.Records[0].Fields["name"])
	assert.NotContains(t, qr.Records[0].Fields, "rank")
	assert.Equal(t, "b", qr.Records[1].RecordName)
	assert.Empty(t, qr.Records[1].Fields)
	assert.Equal(t, "c", qr.Records[2].RecordName)
	assert.Empty(t, qr.ContinuationMarker)
}

func TestQueryWithoutDesiredKeysReturnsAllFields(t *testing.T) {
	h := New(seeded(t, item("a", `{"name":"Alpha","rank":1}`)), Options{}).Handler()
	qr := decodeQuery(t, do(t, h, http.MethodPost, queryPath, `{"query":{"recordType":"Item"}}`))
	require.Len(t, qr.Records, 1)
	assert.Equal(t, cloud.FieldValue{Value: 1.0, Type: "DOUBLE"}, qr.Records[0].Fields["rank"])
}

func TestQueryEmptyStore(t *testing.T) {
	h := New(recordstore.NewMemoryStore(), Options{}).Handler()
	rec := do(t, h, http.MethodPost, queryPath, `{"query":{"recordType":"Item"}}`)
	qr := decodeQuery(t, rec)
	assert.NotNil(t, qr.Records)
	assert.Empty(t, qr.Records)
	assert.Contains(t, rec.Body.String(), `"records":[]`)
}

func TestQueryLimitAndContinuation(t *testing.T) {
	store := seeded(t, item("a", `{}`), item("b", `{}`), item("c", `{}`))
	h := New(store, Options{}).Handler()

	qr := decodeQuery(t, do(t, h, http.MethodPost, queryPath, `{"query":{"recordType":"Item"},"resultsLimit":2}`))
	require.Len(t, qr.Records, 2)
	assert.Equal(t, "b", qr.ContinuationMarker)

	qr = decodeQuery(t, do(t, h, http.MethodPost, queryPath, `{"query":{"recordType":"Item"},"resultsLimit":3}`))
	assert.Len(t, qr.Records, 3)
	assert.Empty(t, qr.ContinuationMarker)
}

func TestQueryUndecodableRecordIsPerRecordError(t *testing.T) {
	store := seeded(t, item("a", `{"name":"Alpha"}`), item("bad", `{"name":`), item("c", `{"name":"Gamma"}`))
	h := New(store, Options{}).Handler()

	qr := decodeQuery(t, do(t, h, http.MethodPost, queryPath, `{"query":{"recordType":"Item"},"desiredKeys":["name"]}`))
	require.Len(t, qr.Records, 3)
	assert.Equal(t, cloud.CodeInternal, qr.Records[1].ServerErrorCode)
	assert.Equal(t, "bad", qr.Records[1].RecordName)
	assert.Empty(t, qr.Records[0].ServerErrorCode)
}

func TestQueryErrors(t *testing.T) {
	h := New(recordstore.NewMemoryStore(), Options{}).Handler()

	cases := []struct {
		name   string
		path   string
		body   string
		status int
		code   cloud.ErrorCode
	}{
		{"private database", strings.Replace(queryPath, "/public/", "/private/", 1), `{"query":{"recordType":"Item"}}`, 401, cloud.CodeAuthenticationRequired},
		{"unknown database", strings.Replace(queryPath, "/public/", "/shared/", 1), `{"query":{"recordType":"Item"}}`, 404, cloud.CodeNotFound},
		{"bad version", strings.Replace(queryPath, "/database/1/", "/database/2/", 1), `{"query":{"recordType":"Item"}}`, 404, cloud.CodeNotFound},
		{"malformed body", queryPath, `{"query":`, 400, cloud.CodeBadRequest},
		{"missing type", queryPath, `{"query":{}}`, 400, cloud.CodeBadRequest},
		{"filter", queryPath, `{"query":{"recordType":"Item","filterBy":[{"fieldName":"name","comparator":"EQUALS","fieldValue":{"value":"x"}}]}}`, 400, cloud.CodeBadRequest},
		{"negative limit", queryPath, `{"query":{"recordType":"Item"},"resultsLimit":-1}`, 400, cloud.CodeBadRequest},
		{"unknown zone", queryPath, `{"query":{"recordType":"Item"},"zoneID":{"zoneName":"Other"}}`, 404, cloud.CodeZoneNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decodeError(t, rec).ServerErrorCode)
		})
	}
}

type brokenStore struct{ recordstore.MemoryStore }

func (*brokenStore) Query(context.Context, string, int) ([]recordstore.Record, error) {
	return nil, io.ErrUnexpectedEOF
}

func TestQueryStoreFailure(t *testing.T) {
	h := New(&brokenStore{}, Options{}).Handler()
	rec := do(t, h, http.MethodPost, queryPath, `{"query":{"recordType":"Item"}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, cloud.CodeInternal, decodeError(t, rec).ServerErrorCode)
}

func TestRateLimitThrottles(t *testing.T) {
	h := New(recordstore.NewMemoryStore(), Options{RateLimit: 0.001, Burst: 1}).Handler()

	first := do(t, h, http.MethodPost, queryPath, `{"query":{"recordType":"Item"}}`)
	assert.Equal(t, http.StatusOK, first.Code)

	second := do(t, h, http.MethodPost, queryPath, `{"query":{"recordType":"Item"}}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, cloud.CodeThrottled, decodeError(t, second).ServerErrorCode)

	// Health is not rate limited.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
}

func TestRateLimitIgnoresForwardedFor(t *testing.T) {
	s := New(recordstore.NewMemoryStore(), Options{RateLimit: 0.001, Burst: 1})
	h := s.Handler()

	var codes []int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, queryPath, strings.NewReader(`{"query":{"recordType":"Item"}}`))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 429, 429, 429, 429}, codes)
	assert.Equal(t, 1, s.limiter.size())
}

func TestRateLimitTrustedProxyKeysOnLastHop(t *testing.T) {
	h := New(recordstore.NewMemoryStore(), Options{RateLimit: 0.001, Burst: 1, TrustProxy: true}).Handler()

	send := func(xff string) int {
		req := httptest.NewRequest(http.MethodPost, queryPath, strings.NewReader(`{"query":{"recordType":"Item"}}`))
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, send("10.0.0.1, 203.0.113.5"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1, 203.0.113.6"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.9.9.9, 203.0.113.5"))
}

func TestLimiterCleanupDropsIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newLimiter(1, 1, false)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	now = now.Add(5 * time.Minute)
	assert.True(t, l.allow("b"))
	now = now.Add(6 * time.Minute)

	assert.Equal(t, 1, l.cleanup(10*time.Minute))
	assert.Equal(t, 1, l.size())
	l.mu.Lock()
	_, kept := l.limiters["b"]
	l.mu.Unlock()
	assert.True(t, kept)
}

func TestLimiterSweepStopsWithContext(t *testing.T) {
	l := newLimiter(1, 1, false)
	l.allow("a")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.sweep(ctx, time.Millisecond, 0)
		close(done)
	}()
	require.Eventually(t, func() bool { return l.size() == 0 }, time.Second, time.Millisecond)
	cancel()
	<-done
}

func TestMetricsExposed(t *testing.T) {
	h := New(seeded(t, item("a", `{"name":"Alpha"}`), item("bad", `nope`)), Options{}).Handler()
	do(t, h, http.MethodPost, queryPath, `{"query":{"recordType":"Item"}}`)
	do(t, h, http.MethodPost, strings.Replace(queryPath, "/public/", "/private/", 1), `{"query":{"recordType":"Item"}}`)

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `itemwatch_record_queries_total{code="OK",database="public"} 1`)
	assert.Contains(t, body, `itemwatch_record_queries_total{code="AUTHENTICATION_REQUIRED",database="private"} 1`)
	assert.Contains(t, body, `itemwatch_record_errors_total 1`)
}

func TestMetricsBoundDatabaseLabel(t *testing.T) {
	h := New(recordstore.NewMemoryStore(), Options{}).Handler()
	for _, db := range []string{"shared", "x1", "x2"} {
		do(t, h, http.MethodPost, strings.Replace(queryPath, "/public/", "/"+db+"/", 1), `{"query":{"recordType":"Item"}}`)
	}

	body := do(t, h, http.MethodGet, "/metrics", "").Body.String()
	assert.Contains(t, body, `itemwatch_record_queries_total{code="NOT_FOUND",database="unknown"} 3`)
	assert.NotContains(t, body, `database="shared"`)
	assert.NotContains(t, body, `database="x1"`)
}

func TestHealth(t *testing.T) {
	rec := do(t, New(recordstore.NewMemoryStore(), Options{}).Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestQueryRejectsGet(t *testing.T) {
	rec := do(t, New(recordstore.NewMemoryStore(), Options{}).Handler(), http.MethodGet, queryPath, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(recordstore.NewMemoryStore(), Options{}).Serve(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}

