// Package cloud is the client-side view of the remote record store: the
// query shape, the per-record results and the databases of a container.
package cloud

import "context"

// DefaultZone is the zone queried when Query.Zone is empty.
const DefaultZone = "_defaultZone"

// Scope selects one of the databases of a container.
type Scope string

const (
	ScopePublic  Scope = "public"
	ScopePrivate Scope = "private"
)

// Predicate filters records server side. Only MatchAll is understood by
// the record service; anything else is rejected with BAD_REQUEST.
type Predicate struct {
	Filters []Filter
}

// Filter is a single field comparison inside a predicate.
type Filter struct {
	Field      string `json:"fieldName"`
	Comparator string `json:"comparator"`
	Value      any    `json:"fieldValue"`
}

// MatchAll matches every record of the queried type.
var MatchAll = Predicate{}

// IsMatchAll reports whether p has no filters.
func (p Predicate) IsMatchAll() bool { return len(p.Filters) == 0 }

// Query describes one records/query call.
type Query struct {
	RecordType   string
	Predicate    Predicate
	DesiredKeys  []string // nil means all fields
	ResultsLimit int      // 0 lets the server pick
	Zone         string   // "" means DefaultZone
}

// RecordID identifies a record inside a zone.
type RecordID struct {
	Name string
	Zone string
}

// Record is a fetched record. Fields holds decoded field values keyed by
// field name; only desired keys are present when the query projected them.
type Record struct {
	ID     RecordID
	Type   string
	Fields map[string]any
}

// String returns the field as a string, or "" when it is absent or of
// another type.
func (r *Record) String(field string) string {
	if r == nil {
		return ""
	}
	s, _ := r.Fields[field].(string)
	return s
}

// MatchResult is the outcome of one record inside a query. Exactly one of
// Record and Err is set.
type MatchResult struct {
	ID     RecordID
	Record *Record
	Err    error
}

// QueryResult holds the match results in the order the store returned them.
type QueryResult struct {
	MatchResults []MatchResult
	Cursor       string
}

// Database runs queries against one database of a container.
type Database interface {
	Query(ctx context.Context, q Query) (*QueryResult, error)
}

// Container groups the databases of one cloud container. It is built
// explicitly and passed to whoever needs it.
type Container struct {
	Identifier string
	Public     Database
	Private    Database
}

// Database returns the database for scope, or nil for an unknown scope.
func (c *Container) Database(scope Scope) Database {
	switch scope {
	case ScopePublic:
		return c.Public
	case ScopePrivate:
		return c.Private
	}
	return nil
}
