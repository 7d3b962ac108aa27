// Package store persists traces as individual JSON files, one per trace,
// with a rebuildable SQLite index on top for listing and searching.
// The JSON files are the source of truth; the index is derived data.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/csnp/qbom/internal/trace"
)

// ErrNotFound is returned when no stored trace matches an identifier.
var ErrNotFound = errors.New("trace not found")

// ErrAmbiguous is returned when a partial identifier matches more than
// one stored trace.
var ErrAmbiguous = errors.New("identifier matches multiple traces")

// Store is a directory of trace JSON files.
type Store struct {
	dir string
	log zerolog.Logger
}

// New opens (creating if needed) a trace store rooted at dataDir. Traces
// live under dataDir/traces.
func New(dataDir string, log zerolog.Logger) (*Store, error) {
	dir := filepath.Join(dataDir, "traces")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	return &Store{
		dir: dir,
		log: log.With().Str("component", "store").Logger(),
	}, nil
}

// Dir returns the directory holding the trace files.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path a trace with the given ID is stored at.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes a trace to disk and returns the file path. Saving the same
// ID twice overwrites; traces are immutable so the bytes only change if
// the caller built a different trace under a reused ID.
func (s *Store) Save(t trace.Trace) (string, error) {
	if t.ID == "" {
		return "", fmt.Errorf("trace has no ID")
	}

	data, err := t.ToJSON()
	if err != nil {
		return "", fmt.Errorf("serialize trace %s: %w", t.ID, err)
	}

	path := s.Path(t.ID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write trace %s: %w", t.ID, err)
	}

	s.log.Debug().Str("id", t.ID).Str("path", path).Msg("Trace saved")
	return path, nil
}

// Load retrieves a trace by full or partial ID. An exact match wins;
// otherwise the ID is treated as a substring and must match exactly one
// stored trace.
func (s *Store) Load(id string) (trace.Trace, error) {
	if id == "" {
		return trace.Trace{}, ErrNotFound
	}

	// Exact match first.
	if data, err := os.ReadFile(s.Path(id)); err == nil {
		return trace.FromJSON(data)
	}

	// Substring match over stored IDs.
	ids, err := s.IDs()
	if err != nil {
		return trace.Trace{}, err
	}

	var matches []string
	for _, candidate := range ids {
		if strings.Contains(candidate, id) {
			matches = append(matches, candidate)
		}
	}

	switch len(matches) {
	case 0:
		return trace.Trace{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		data, err := os.ReadFile(s.Path(matches[0]))
		if err != nil {
			return trace.Trace{}, fmt.Errorf("read trace %s: %w", matches[0], err)
		}
		return trace.FromJSON(data)
	default:
		return trace.Trace{}, fmt.Errorf("%w: %s (%s)", ErrAmbiguous, id, strings.Join(matches, ", "))
	}
}

// Delete removes a stored trace by exact ID.
func (s *Store) Delete(id string) error {
	err := os.Remove(s.Path(id))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("delete trace %s: %w", id, err)
	}
	s.log.Debug().Str("id", id).Msg("Trace deleted")
	return nil
}

// IDs returns the IDs of all stored traces, in directory order.
func (s *Store) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read trace directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// List loads every stored trace, newest first. Unreadable files are
// skipped with a warning so one corrupt trace does not hide the rest.
func (s *Store) List() ([]trace.Trace, error) {
	ids, err := s.IDs()
	if err != nil {
		return nil, err
	}

	traces := make([]trace.Trace, 0, len(ids))
	for _, id := range ids {
		data, err := os.ReadFile(s.Path(id))
		if err != nil {
			s.log.Warn().Err(err).Str("id", id).Msg("Skipping unreadable trace file")
			continue
		}
		t, err := trace.FromJSON(data)
		if err != nil {
			s.log.Warn().Err(err).Str("id", id).Msg("Skipping unparseable trace file")
			continue
		}
		traces = append(traces, t)
	}

	sort.Slice(traces, func(i, j int) bool {
		return traces[i].CreatedAt.After(traces[j].CreatedAt)
	})
	return traces, nil
}

// Count returns the number of stored traces.
func (s *Store) Count() (int, error) {
	ids, err := s.IDs()
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
