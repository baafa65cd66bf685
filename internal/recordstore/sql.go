package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// dialect holds the statements that differ between backends.
type dialect struct {
	name   string
	schema string
	upsert string
	query  string // type, limit
	all    string // type
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `
	CREATE TABLE IF NOT EXISTS records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		fields TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_type_seq ON records(type, seq);
	`,
	upsert: `
		INSERT INTO records (name, type, fields, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET type = excluded.type, fields = excluded.fields`,
	query: `SELECT name, type, fields, created_at FROM records WHERE type = ? ORDER BY seq LIMIT ?`,
	all:   `SELECT name, type, fields, created_at FROM records WHERE type = ? ORDER BY seq`,
}

var postgresDialect = dialect{
	name: "postgres",
	schema: `
	CREATE TABLE IF NOT EXISTS records (
		seq BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		fields TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_type_seq ON records(type, seq);
	`,
	upsert: `
		INSERT INTO records (name, type, fields, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET type = EXCLUDED.type, fields = EXCLUDED.fields`,
	query: `SELECT name, type, fields, created_at FROM records WHERE type = $1 ORDER BY seq LIMIT $2`,
	all:   `SELECT name, type, fields, created_at FROM records WHERE type = $1 ORDER BY seq`,
}

// SQLStore is the database/sql backend shared by SQLite and PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLiteStore opens (or creates) a SQLite database file in WAL mode.
func NewSQLiteStore(path string) (*SQLStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return newSQLStore(db, sqliteDialect)
}

// NewPostgresStore connects to PostgreSQL using a lib/pq DSN.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("PostgreSQL DSN is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	return newSQLStore(db, postgresDialect)
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", d.name, err)
	}
	if _, err := db.Exec(d.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLStore{db: db, dialect: d}, nil
}

func (s *SQLStore) Query(ctx context.Context, recordType string, limit int) ([]Record, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, s.dialect.query, recordType, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, s.dialect.all, recordType)
	}
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			r      Record
			fields string
		)
		if err := rows.Scan(&r.Name, &r.Type, &fields, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Fields = json.RawMessage(fields)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Put(ctx context.Context, recs ...Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.dialect.upsert)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if err := validate(r); err != nil {
			return err
		}
		created := r.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		fields := string(r.Fields)
		if fields == "" {
			fields = "{}"
		}
		if _, err := stmt.ExecContext(ctx, r.Name, r.Type, fields, created); err != nil {
			return fmt.Errorf("upsert %s: %w", r.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }
