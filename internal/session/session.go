// Package session coordinates invisible capture: a session owns the
// builder that instrumentation callbacks feed, and finalizes it into a
// stored trace. All methods are safe for concurrent use; callbacks from
// different goroutines serialize on the session mutex.
package session

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/csnp/qbom/internal/store"
	"github.com/csnp/qbom/internal/trace"
)

// ErrNoActiveSession is returned when finalizing without a started capture.
var ErrNoActiveSession = errors.New("no active capture session")

// Session is an explicit capture session object. Unlike a global
// singleton, multiple sessions can coexist, each with its own builder.
type Session struct {
	mu      sync.Mutex
	builder *trace.Builder

	store *store.Store
	index *store.Index
	log   zerolog.Logger
}

// New creates a Session writing to the given store. The index may be nil,
// in which case finalized traces are only written to disk.
func New(st *store.Store, ix *store.Index, log zerolog.Logger) *Session {
	return &Session{
		store: st,
		index: ix,
		log:   log.With().Str("component", "session").Logger(),
	}
}

// Start begins a new capture, discarding any unfinalized one, and
// snapshots the environment immediately. Empty metadata fields stay
// absent on the resulting trace.
func (s *Session) Start(name, description string, tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.builder = trace.NewBuilder().
		SetEnvironment(CaptureEnvironment()).
		SetMetadata(name, description, tags)
	s.log.Debug().Str("name", name).Msg("Capture session started")
}

// Active reports whether a capture is in progress.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builder != nil
}

// CurrentBuilder returns the in-progress builder, starting a capture
// implicitly if none is active. Adapters that need direct builder
// access (custom gate sets, raw representations) use this instead of
// the Record helpers.
func (s *Session) CurrentBuilder() *trace.Builder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureBuilder()
}

// ListTraces returns the finalized traces in the session's store,
// newest first.
func (s *Session) ListTraces() ([]trace.Trace, error) {
	return s.store.List()
}

// ensureBuilder starts a capture implicitly when a callback arrives
// before Start. Caller must hold the mutex.
func (s *Session) ensureBuilder() *trace.Builder {
	if s.builder == nil {
		s.builder = trace.NewBuilder().SetEnvironment(CaptureEnvironment())
		s.log.Debug().Msg("Capture session started implicitly")
	}
	return s.builder
}

// RecordCircuit captures a circuit.
func (s *Session) RecordCircuit(c trace.Circuit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureBuilder().AddCircuit(c)
}

// RecordTranspilation captures the transpilation record.
func (s *Session) RecordTranspilation(t trace.Transpilation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureBuilder().SetTranspilation(t)
}

// RecordHardware captures the backend and calibration snapshot.
func (s *Session) RecordHardware(h trace.Hardware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureBuilder().SetHardware(h)
}

// RecordExecution captures the run parameters.
func (s *Session) RecordExecution(e trace.Execution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureBuilder().SetExecution(e)
}

// RecordResult captures the execution outcome.
func (s *Session) RecordResult(r trace.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureBuilder().SetResult(r)
}

// Finalize freezes the current capture into a Trace, persists it and
// resets the session for the next experiment.
func (s *Session) Finalize() (trace.Trace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.builder == nil {
		return trace.Trace{}, ErrNoActiveSession
	}

	t := s.builder.Build()
	s.builder = nil

	if s.store != nil {
		path, err := s.store.Save(t)
		if err != nil {
			return trace.Trace{}, err
		}
		s.log.Info().
			Str("id", t.ID).
			Str("path", path).
			Str("content_hash", t.ContentHash()).
			Msg("Trace finalized")
	}
	if s.index != nil {
		if err := s.index.Upsert(t); err != nil {
			// The file is the source of truth; a failed index write is
			// repairable by reindexing.
			s.log.Warn().Err(err).Str("id", t.ID).Msg("Failed to index trace")
		}
	}

	return t, nil
}

// Discard drops the current capture without persisting it.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.builder != nil {
		s.builder = nil
		s.log.Debug().Msg("Capture session discarded")
	}
}

// Run executes one experiment: it starts a capture, hands the builder
// callbacks to fn and finalizes when fn returns without error.
func (s *Session) Run(name string, fn func(*Session) error) (trace.Trace, error) {
	s.Start(name, "", nil)
	if err := fn(s); err != nil {
		s.Discard()
		return trace.Trace{}, err
	}
	return s.Finalize()
}
