// Package recordstore persists records for the record service. Records
// keep their insertion order, which is the order queries return them in.
package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Record is a stored record. Fields is the JSON object of field values,
// kept verbatim so a damaged record still round-trips.
type Record struct {
	Name      string
	Type      string
	Fields    json.RawMessage
	CreatedAt time.Time
}

// Store is implemented by every backend.
type Store interface {
	// Query returns up to limit records of recordType in insertion order.
	// limit <= 0 means no limit.
	Query(ctx context.Context, recordType string, limit int) ([]Record, error)
	// Put inserts records, replacing type and fields of existing names
	// without moving them.
	Put(ctx context.Context, recs ...Record) error
	Close() error
}

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown store driver")

// Open returns the backend named by driver: memory, sqlite or postgres.
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if dsn == "" {
			dsn = "itemwatch.db"
		}
		return NewSQLiteStore(dsn)
	case "postgres":
		return NewPostgresStore(dsn)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
}

func validate(r Record) error {
	if r.Name == "" {
		return errors.New("record name is required")
	}
	if r.Type == "" {
		return fmt.Errorf("record %s: type is required", r.Name)
	}
	return nil
}
