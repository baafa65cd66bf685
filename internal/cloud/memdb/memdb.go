// Package memdb is an in-memory cloud.Database. It backs tests and the
// --demo mode, and can be told to fail whole queries or single records.
package memdb

import (
	"context"
	"sync"

	"github.com/idilsaglam/itemwatch/internal/cloud"
)

// DB holds records in insertion order.
type DB struct {
	mu         sync.Mutex
	records    []cloud.Record
	recordErrs map[string]error
	queryErr   error
	queries    []cloud.Query
}

var _ cloud.Database = (*DB)(nil)

// New returns a DB seeded with records.
func New(records ...cloud.Record) *DB {
	d := &DB{recordErrs: make(map[string]error)}
	d.Add(records...)
	return d
}

// NewRecord builds a record in the default zone.
func NewRecord(recordType, name string, fields map[string]any) cloud.Record {
	if fields == nil {
		fields = map[string]any{}
	}
	return cloud.Record{
		ID:     cloud.RecordID{Name: name, Zone: cloud.DefaultZone},
		Type:   recordType,
		Fields: fields,
	}
}

// Add appends records.
func (d *DB) Add(records ...cloud.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, records...)
}

// FailRecord makes the named record come back as a per-record failure.
func (d *DB) FailRecord(name string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recordErrs[name] = err
}

// FailQuery makes every following query fail with err. A nil err clears it.
func (d *DB) FailQuery(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queryErr = err
}

// Queries returns the queries received so far.
func (d *DB) Queries() []cloud.Query {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]cloud.Query(nil), d.queries...)
}

// Query implements cloud.Database.
func (d *DB) Query(ctx context.Context, q cloud.Query) (*cloud.QueryResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries = append(d.queries, q)

	if err := ctx.Err(); err != nil {
		return nil, &cloud.Error{Code: cloud.CodeNetworkFailure, Err: err}
	}
	if d.queryErr != nil {
		return nil, d.queryErr
	}
	if !q.Predicate.IsMatchAll() {
		return nil, cloud.Errorf(cloud.CodeBadRequest, "only match-all predicates are supported")
	}
	zone := q.Zone
	if zone == "" {
		zone = cloud.DefaultZone
	}
	if zone != cloud.DefaultZone {
		return nil, cloud.Errorf(cloud.CodeZoneNotFound, "zone %q not found", zone)
	}

	res := &cloud.QueryResult{MatchResults: []cloud.MatchResult{}}
	for _, rec := range d.records {
		if rec.Type != q.RecordType {
			continue
		}
		if q.ResultsLimit > 0 && len(res.MatchResults) == q.ResultsLimit {
			res.Cursor = rec.ID.Name
			break
		}
		if err, ok := d.recordErrs[rec.ID.Name]; ok {
			res.MatchResults = append(res.MatchResults, cloud.MatchResult{ID: rec.ID, Err: err})
			continue
		}
		out := project(rec, q.DesiredKeys)
		res.MatchResults = append(res.MatchResults, cloud.MatchResult{ID: rec.ID, Record: &out})
	}
	return res, nil
}

func project(rec cloud.Record, keys []string) cloud.Record {
	fields := make(map[string]any, len(rec.Fields))
	if keys == nil {
		for k, v := range rec.Fields {
			fields[k] = v
		}
	} else {
		for _, k := range keys {
			if v, ok := rec.Fields[k]; ok {
				fields[k] = v
			}
		}
	}
	rec.Fields = fields
	return rec
}
