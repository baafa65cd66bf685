// Package fetcher loads Item records from the record store and maps them
// to model.Item.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/idilsaglam/itemwatch/internal/cloud"
	"github.com/idilsaglam/itemwatch/internal/model"
)

// Query parameters are fixed: every Item, name only, first page of 50.
const (
	RecordType   = "Item"
	NameField    = "name"
	ResultsLimit = 50
)

// Result is what a FetchItems channel delivers: the items or a failure.
type Result struct {
	Items []model.Item
	Err   error
}

// Fetcher issues the Item query against an injected database.
type Fetcher struct {
	db  cloud.Database
	log *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the diagnostic logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.log = l }
}

// New returns a Fetcher reading from db.
func New(db cloud.Database, opts ...Option) *Fetcher {
	f := &Fetcher{db: db, log: slog.Default()}
	for _, o := range opts {
		o(f)
	}
	return f
}

// ItemsQuery is the query every fetch issues.
func ItemsQuery() cloud.Query {
	return cloud.Query{
		RecordType:   RecordType,
		Predicate:    cloud.MatchAll,
		DesiredKeys:  []string{NameField},
		ResultsLimit: ResultsLimit,
	}
}

// FetchItems runs the query on its own goroutine. The returned channel
// receives exactly one Result and is then closed; it is buffered so the
// goroutine never blocks on a receiver that went away.
func (f *Fetcher) FetchItems(ctx context.Context) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		items, err := f.Fetch(ctx)
		ch <- Result{Items: items, Err: err}
	}()
	return ch
}

// Fetch runs the query and waits for it. Records whose own fetch failed
// are skipped and at most ResultsLimit matches are read. A failed query is logged and returned; nothing is retried.
func (f *Fetcher) Fetch(ctx context.Context) ([]model.Item, error) {
	res, err := f.db.Query(ctx, ItemsQuery())
	if err != nil {
		f.log.Error("fetch items failed", "reason", cloud.CodeOf(err), "error", err)
		return nil, fmt.Errorf("query %s: %w", RecordType, err)
	}

	if res == nil {
		f.log.Warn("query returned no result", "type", RecordType)
		return []model.Item{}, nil
	}
	matches := res.MatchResults
	if len(matches) > ResultsLimit {
		f.log.Warn("query ignored the results limit", "returned", len(matches), "limit", ResultsLimit)
		matches = matches[:ResultsLimit]
	}

	items := make([]model.Item, 0, len(matches))
	for _, mr := range matches {
		if mr.Err != nil || mr.Record == nil {
			f.log.Debug("skipping record", "record", mr.ID.Name, "error", mr.Err)
			continue
		}
		id := mr.Record.ID.Name
		if id == "" {
			id = mr.ID.Name
		}
		items = append(items, model.Item{ID: id, Name: mr.Record.String(NameField)})
	}
	f.log.Debug("fetched items", "count", len(items), "skipped", len(matches)-len(items))
	return items, nil
}

// ReasonOf returns the failure reason carried by a fetch error.
func ReasonOf(err error) cloud.ErrorCode {
	return cloud.CodeOf(err)
}
