package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/example/bug-intake/internal/findings"
)

const DefaultTable = "bug_reports"

type Store interface {
	InsertFindings(ctx context.Context, items []findings.Finding) error
	ListFindings(ctx context.Context, fileName string) ([]findings.Finding, error)
}

func NewStore(ctx context.Context, dsn string, table string) (Store, error) {
	if dsn == "" {
		return NewMemoryStore(), nil
	}
	return NewPostgresStore(ctx, dsn, table)
}

type MemoryStore struct {
	mu      sync.Mutex
	rows    []findings.Finding
	inserts int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) InsertFindings(ctx context.Context, items []findings.Finding) error {
	if len(items) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, items...)
	m.inserts++
	return nil
}

func (m *MemoryStore) ListFindings(ctx context.Context, fileName string) ([]findings.Finding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []findings.Finding
	for _, row := range m.rows {
		if fileName == "" || row.FileName == fileName {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Inserts reports how many non-empty bulk inserts the store has accepted.
func (m *MemoryStore) Inserts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts
}

type PostgresStore struct {
	db    *sql.DB
	table string
}

func NewPostgresStore(ctx context.Context, dsn string, table string) (*PostgresStore, error) {
	if table == "" {
		table = DefaultTable
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	store := &PostgresStore{db: db, table: table}
	if err := store.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) ensureSchema(ctx context.Context) error {
	table := pq.QuoteIdentifier(p.table)
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			file_name TEXT NOT NULL,
			file_path TEXT NOT NULL,
			file_url TEXT,
			line_number INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL,
			confidence DOUBLE PRECISION,
			suggestion TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (file_name);`,
			pq.QuoteIdentifier(p.table+"_file_name_idx"), table),
	}
	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertFindings writes all items in one transaction using COPY.
func (p *PostgresStore) InsertFindings(ctx context.Context, items []findings.Finding) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(p.table,
		"id", "file_name", "file_path", "file_url", "line_number",
		"error_message", "confidence", "suggestion", "created_at"))
	if err != nil {
		return err
	}

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx,
			item.ID,
			item.FileName,
			item.FilePath,
			nullString(item.FileURL),
			item.LineNumber,
			item.ErrorMessage,
			nullFloat(item.Confidence),
			nullString(item.Suggestion),
			item.CreatedAt,
		); err != nil {
			_ = stmt.Close()
			return err
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return err
	}
	if err := stmt.Close(); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) ListFindings(ctx context.Context, fileName string) ([]findings.Finding, error) {
	query := fmt.Sprintf(`SELECT id, file_name, file_path, file_url, line_number, error_message, confidence, suggestion, created_at
		FROM %s WHERE ($1 = '' OR file_name = $1) ORDER BY created_at DESC, line_number ASC`, pq.QuoteIdentifier(p.table))
	rows, err := p.db.QueryContext(ctx, query, fileName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []findings.Finding
	for rows.Next() {
		var (
			item       findings.Finding
			url        sql.NullString
			confidence sql.NullFloat64
			suggestion sql.NullString
			createdAt  time.Time
		)
		if err := rows.Scan(&item.ID, &item.FileName, &item.FilePath, &url, &item.LineNumber,
			&item.ErrorMessage, &confidence, &suggestion, &createdAt); err != nil {
			return nil, err
		}
		if url.Valid {
			item.FileURL = findings.Optional(url.String)
		}
		if confidence.Valid {
			item = item.WithConfidence(confidence.Float64)
		}
		if suggestion.Valid {
			item.Suggestion = findings.Optional(suggestion.String)
		}
		item.CreatedAt = createdAt.UTC()
		out = append(out, item)
	}
	return out, rows.Err()
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}
