package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/csnp/qbom/internal/analysis"
	"github.com/csnp/qbom/internal/export"
	"github.com/csnp/qbom/internal/store"
	"github.com/csnp/qbom/internal/trace"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	response := map[string]interface{}{
		"error": message,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// loadTrace resolves a full or partial trace ID or replies with the
// appropriate error status.
func (s *Server) loadTrace(w http.ResponseWriter, id string) (trace.Trace, bool) {
	t, err := s.store.Load(id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "trace not found: "+id)
		case errors.Is(err, store.ErrAmbiguous):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.log.Error().Err(err).Str("id", id).Msg("Failed to load trace")
			s.writeError(w, http.StatusInternalServerError, "failed to load trace")
		}
		return trace.Trace{}, false
	}
	return t, true
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.index.DB().QuickCheck(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("Index health check failed")
		s.writeError(w, http.StatusServiceUnavailable, "index unavailable")
		return
	}

	count, err := s.store.Count()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"traces": count,
	})
}

// handleListTraces handles GET /api/traces with an optional ?q= search.
func (s *Server) handleListTraces(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	var (
		entries []store.Entry
		err     error
	)
	if query != "" {
		entries, err = s.index.Search(query)
	} else {
		entries, err = s.index.List(0)
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list traces")
		s.writeError(w, http.StatusInternalServerError, "failed to list traces")
		return
	}

	if entries == nil {
		entries = []store.Entry{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"traces": entries,
		"count":  len(entries),
	})
}

// handleGetTrace handles GET /api/traces/{id}
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTrace(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

// handleScore handles GET /api/traces/{id}/score
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTrace(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	score := analysis.ComputeScore(t)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trace_id":     t.ID,
		"score":        score,
		"percentage":   score.Percentage(),
		"reproducible": score.IsReproducible(),
		"summary":      score.Summary(),
	})
}

// handleDrift handles GET /api/traces/{id}/drift: the elapsed-time
// heuristic over the captured snapshot.
func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTrace(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	drift := analysis.AnalyzeDrift(t, nil)
	if drift == nil {
		s.writeError(w, http.StatusUnprocessableEntity, "trace has no hardware information")
		return
	}
	s.writeJSON(w, http.StatusOK, drift)
}

// handleDriftComparison handles POST /api/traces/{id}/drift with a
// current calibration snapshot in the body. The response includes a
// ranking of the currently best qubits for a re-run.
func (s *Server) handleDriftComparison(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTrace(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var current trace.Calibration
	if err := json.NewDecoder(r.Body).Decode(&current); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid calibration body")
		return
	}

	drift := analysis.AnalyzeDrift(t, &current)
	if drift == nil {
		s.writeError(w, http.StatusUnprocessableEntity, "trace has no hardware information")
		return
	}

	qubitCount := len(current.Qubits)
	if t.Hardware != nil && len(t.Hardware.QubitsUsed) > 0 {
		qubitCount = len(t.Hardware.QubitsUsed)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"drift":         drift,
		"better_qubits": analysis.BetterQubits(current, qubitCount),
	})
}

// handleValidate handles GET /api/traces/{id}/validate with an optional
// ?publication=true for the stricter check.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTrace(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var result analysis.ValidationResult
	if r.URL.Query().Get("publication") == "true" {
		result = analysis.ValidateForPublication(t)
	} else {
		result = analysis.ValidateTrace(t)
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleExport handles GET /api/traces/{id}/export?format=...
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTrace(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(export.FormatJSON)
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := export.Export(t, format)
	if err != nil {
		s.log.Error().Err(err).Str("id", t.ID).Msg("Export failed")
		s.writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	contentType := "application/json"
	switch format {
	case export.FormatYAML:
		contentType = "application/yaml"
	case export.FormatMsgpack:
		contentType = "application/msgpack"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handlePaper handles GET /api/traces/{id}/paper
func (s *Server) handlePaper(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTrace(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trace_id":  t.ID,
		"statement": export.PaperStatement(t),
	})
}

// handleVerify handles GET /api/traces/{id}/verify
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTrace(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, export.Verify(t))
}

// handleDiff handles GET /api/diff/{id1}/{id2}
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	t1, ok := s.loadTrace(w, chi.URLParam(r, "id1"))
	if !ok {
		return
	}
	t2, ok := s.loadTrace(w, chi.URLParam(r, "id2"))
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trace_1":      t1.ID,
		"trace_2":      t2.ID,
		"same_content": t1.ContentHash() == t2.ContentHash(),
		"explanations": analysis.ExplainResultDifference(t1, t2),
	})
}
