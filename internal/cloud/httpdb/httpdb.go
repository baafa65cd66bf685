// Package httpdb implements cloud.Database over the record service's JSON
// protocol.
package httpdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/idilsaglam/itemwatch/internal/cloud"
)

const (
	maxErrorBody = 1 << 20
	tracerName   = "github.com/idilsaglam/itemwatch/internal/cloud/httpdb"
)

// Options locate one database of a container.
type Options struct {
	Endpoint    string // e.g. http://localhost:8787
	Container   string
	Environment string // development | production
	Scope       cloud.Scope
	APIToken    string       // optional, sent as ckAPIToken
	HTTPClient  *http.Client // defaults to http.DefaultClient
}

// Database is a cloud.Database backed by HTTP.
type Database struct {
	url  string
	http *http.Client
}

var _ cloud.Database = (*Database)(nil)

// New builds a Database for opts.Scope.
func New(opts Options) *Database {
	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	scope := opts.Scope
	if scope == "" {
		scope = cloud.ScopePublic
	}
	u := strings.TrimRight(opts.Endpoint, "/") + "/database/1/" +
		url.PathEscape(opts.Container) + "/" +
		url.PathEscape(opts.Environment) + "/" +
		url.PathEscape(string(scope)) + "/records/query"
	if opts.APIToken != "" {
		u += "?ckAPIToken=" + url.QueryEscape(opts.APIToken)
	}
	return &Database{url: u, http: hc}
}

// NewContainer builds a container whose public and private databases share
// opts except for the scope.
func NewContainer(opts Options) *cloud.Container {
	pub, priv := opts, opts
	pub.Scope = cloud.ScopePublic
	priv.Scope = cloud.ScopePrivate
	return &cloud.Container{
		Identifier: opts.Container,
		Public:     New(pub),
		Private:    New(priv),
	}
}

// Query posts q and decodes the per-record results in response order. The
// request runs in a client span whose context is sent in the request headers.
func (d *Database) Query(ctx context.Context, q cloud.Query) (*cloud.QueryResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "records/query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("record.type", q.RecordType),
			attribute.Int("record.results_limit", q.ResultsLimit),
		),
	)
	defer span.End()

	res, err := d.query(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(cloud.CodeOf(err)))
		var ce *cloud.Error
		if errors.As(err, &ce) && ce.Status != 0 {
			span.SetAttributes(attribute.Int("http.status_code", ce.Status))
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int("record.matches", len(res.MatchResults)))
	return res, nil
}

func (d *Database) query(ctx context.Context, q cloud.Query) (*cloud.QueryResult, error) {
	zone := q.Zone
	if zone == "" {
		zone = cloud.DefaultZone
	}
	body := cloud.QueryRequest{
		Query:        cloud.QuerySpec{RecordType: q.RecordType, FilterBy: q.Predicate.Filters},
		DesiredKeys:  q.DesiredKeys,
		ResultsLimit: q.ResultsLimit,
		ZoneID:       &cloud.ZoneID{ZoneName: zone},
	}
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, &cloud.Error{Code: cloud.CodeNetworkFailure, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, decodeError(resp)
	}

	var qr cloud.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, &cloud.Error{Code: cloud.CodeInternal, Reason: "malformed query response", Status: resp.StatusCode, Err: err}
	}
	return toResult(qr, zone), nil
}

func toResult(qr cloud.QueryResponse, zone string) *cloud.QueryResult {
	out := &cloud.QueryResult{
		MatchResults: make([]cloud.MatchResult, 0, len(qr.Records)),
		Cursor:       qr.ContinuationMarker,
	}
	for _, wr := range qr.Records {
		id := cloud.RecordID{Name: wr.RecordName, Zone: zone}
		if wr.ServerErrorCode != "" {
			out.MatchResults = append(out.MatchResults, cloud.MatchResult{
				ID:  id,
				Err: &cloud.Error{Code: wr.ServerErrorCode, Reason: wr.Reason},
			})
			continue
		}
		fields := make(map[string]any, len(wr.Fields))
		for k, fv := range wr.Fields {
			fields[k] = fv.Value
		}
		out.MatchResults = append(out.MatchResults, cloud.MatchResult{
			ID:     id,
			Record: &cloud.Record{ID: id, Type: wr.RecordType, Fields: fields},
		})
	}
	return out
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var er cloud.ErrorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.ServerErrorCode != "" {
		return &cloud.Error{Code: er.ServerErrorCode, Reason: er.Reason, Status: resp.StatusCode}
	}
	reason := strings.TrimSpace(string(raw))
	if reason == "" {
		reason = resp.Status
	}
	return &cloud.Error{Code: cloud.CodeForStatus(resp.StatusCode), Reason: reason, Status: resp.StatusCode}
}
