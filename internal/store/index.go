package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/csnp/qbom/internal/database"
	"github.com/csnp/qbom/internal/trace"
	"github.com/csnp/qbom/internal/utils"
)

// indexSchema is the derived-data schema. The index can be dropped and
// rebuilt from the trace files at any time.
const indexSchema = `
CREATE TABLE IF NOT EXISTS traces (
	id            TEXT PRIMARY KEY,
	content_hash  TEXT NOT NULL,
	name          TEXT,
	backend       TEXT,
	is_simulator  INTEGER NOT NULL DEFAULT 0,
	num_circuits  INTEGER NOT NULL DEFAULT 0,
	shots         INTEGER,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_traces_content_hash ON traces(content_hash);
CREATE INDEX IF NOT EXISTS idx_traces_backend ON traces(backend);
CREATE INDEX IF NOT EXISTS idx_traces_created_at ON traces(created_at);
`

// Entry is one indexed trace row.
type Entry struct {
	ID          string    `json:"id"`
	ContentHash string    `json:"content_hash"`
	Name        *string   `json:"name,omitempty"`
	Backend     *string   `json:"backend,omitempty"`
	IsSimulator bool      `json:"is_simulator"`
	NumCircuits int       `json:"num_circuits"`
	Shots       *int      `json:"shots,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Index is the SQLite catalog over a Store.
type Index struct {
	db  *database.DB
	log zerolog.Logger
}

// OpenIndex opens (creating if needed) the trace index database under
// dataDir and applies the schema.
func OpenIndex(dataDir string, log zerolog.Logger) (*Index, error) {
	db, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, "index.db"),
		Profile: database.ProfileIndex,
		Name:    "index",
	})
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}

	if _, err := db.Exec(indexSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply index schema: %w", err)
	}

	return &Index{
		db:  db,
		log: log.With().Str("component", "index").Logger(),
	}, nil
}

// Close closes the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// DB exposes the wrapped database for maintenance jobs.
func (ix *Index) DB() *database.DB {
	return ix.db
}

func entryFromTrace(t trace.Trace) Entry {
	e := Entry{
		ID:          t.ID,
		ContentHash: t.ContentHash(),
		NumCircuits: len(t.Circuits),
		CreatedAt:   t.CreatedAt,
	}
	e.Name = t.Metadata.Name
	if t.Hardware != nil {
		backend := t.Hardware.Backend
		e.Backend = &backend
		e.IsSimulator = t.Hardware.IsSimulator
	}
	if t.Execution != nil {
		shots := t.Execution.Shots
		e.Shots = &shots
	}
	return e
}

// Upsert inserts or replaces the index row for a trace.
func (ix *Index) Upsert(t trace.Trace) error {
	e := entryFromTrace(t)
	_, err := ix.db.Exec(`
		INSERT INTO traces (id, content_hash, name, backend, is_simulator, num_circuits, shots, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content_hash = excluded.content_hash,
			name         = excluded.name,
			backend      = excluded.backend,
			is_simulator = excluded.is_simulator,
			num_circuits = excluded.num_circuits,
			shots        = excluded.shots,
			created_at   = excluded.created_at`,
		e.ID, e.ContentHash, e.Name, e.Backend, boolToInt(e.IsSimulator),
		e.NumCircuits, e.Shots, e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("index trace %s: %w", t.ID, err)
	}
	return nil
}

// Remove deletes the index row for a trace ID.
func (ix *Index) Remove(id string) error {
	if _, err := ix.db.Exec("DELETE FROM traces WHERE id = ?", id); err != nil {
		return fmt.Errorf("remove trace %s from index: %w", id, err)
	}
	return nil
}

// List returns all indexed entries, newest first.
func (ix *Index) List(limit int) ([]Entry, error) {
	query := "SELECT id, content_hash, name, backend, is_simulator, num_circuits, shots, created_at FROM traces ORDER BY created_at DESC"
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := ix.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list index: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Search returns entries whose ID, name or backend contains the query
// string, newest first.
func (ix *Index) Search(query string) ([]Entry, error) {
	pattern := "%" + query + "%"
	rows, err := ix.db.Query(`
		SELECT id, content_hash, name, backend, is_simulator, num_circuits, shots, created_at
		FROM traces
		WHERE id LIKE ? OR name LIKE ? OR backend LIKE ?
		ORDER BY created_at DESC`,
		pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// FindByContentHash returns entries sharing a content hash, i.e. captures
// of the same experiment.
func (ix *Index) FindByContentHash(hash string) ([]Entry, error) {
	rows, err := ix.db.Query(`
		SELECT id, content_hash, name, backend, is_simulator, num_circuits, shots, created_at
		FROM traces
		WHERE content_hash = ?
		ORDER BY created_at DESC`,
		hash)
	if err != nil {
		return nil, fmt.Errorf("find by content hash: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Count returns the number of indexed traces.
func (ix *Index) Count() (int, error) {
	var count int
	if err := ix.db.QueryRow("SELECT COUNT(*) FROM traces").Scan(&count); err != nil {
		return 0, fmt.Errorf("count index: %w", err)
	}
	return count, nil
}

// Reindex rebuilds the whole index from the trace files. Runs in a single
// transaction so readers never observe a half-built index.
func (ix *Index) Reindex(s *Store) error {
	defer utils.OperationTimer("reindex", ix.log)()

	traces, err := s.List()
	if err != nil {
		return fmt.Errorf("load traces for reindex: %w", err)
	}

	err = database.WithTransaction(ix.db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM traces"); err != nil {
			return err
		}
		for _, t := range traces {
			e := entryFromTrace(t)
			if _, err := tx.Exec(`
				INSERT INTO traces (id, content_hash, name, backend, is_simulator, num_circuits, shots, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID, e.ContentHash, e.Name, e.Backend, boolToInt(e.IsSimulator),
				e.NumCircuits, e.Shots, e.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	ix.log.Info().Int("traces", len(traces)).Msg("Index rebuilt")
	return nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			simulator int
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.ContentHash, &e.Name, &e.Backend,
			&simulator, &e.NumCircuits, &e.Shots, &createdAt); err != nil {
			return nil, fmt.Errorf("scan index row: %w", err)
		}
		e.IsSimulator = simulator != 0
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse indexed timestamp: %w", err)
		}
		e.CreatedAt = ts
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
