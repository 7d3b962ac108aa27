package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FormatVersion is the trace format version written into every trace.
const FormatVersion = "1.0"

// idPrefix is the fixed prefix of generated trace IDs.
const idPrefix = "qbom_"

// GenerateID returns a short trace ID: the fixed prefix plus 8 random hex
// characters. IDs are not globally unique; collision probability within a
// single trace store is negligible.
func GenerateID() string {
	return idPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Metadata is user-supplied experiment context. It is purely descriptive
// and never contributes to the content hash.
type Metadata struct {
	Name         *string  `json:"name,omitempty"`
	Description  *string  `json:"description,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Authors      []string `json:"authors,omitempty"`
	Paper        *string  `json:"paper,omitempty"`         // DOI or URL of related paper
	ExperimentID *string  `json:"experiment_id,omitempty"` // User's experiment identifier

	// Extra preserves unrecognized fields through serialization round trips.
	Extra map[string]json.RawMessage `json:"-"`
}

type metadataAlias Metadata

// MarshalJSON emits the known fields plus any preserved unknown fields.
func (m Metadata) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(metadataAlias(m), m.Extra)
}

// UnmarshalJSON loads the known fields and stashes unrecognized ones.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var known metadataAlias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	extra, err := collectExtra(data, []string{
		"name", "description", "tags", "authors", "paper", "experiment_id",
	})
	if err != nil {
		return err
	}
	*m = Metadata(known)
	m.Extra = extra
	return nil
}

// Trace is the complete immutable record of one quantum experiment.
//
// A Trace captures:
//   - Environment: software versions and platform
//   - Circuits: the quantum programs executed
//   - Transpilation: how circuits were transformed for hardware
//   - Hardware: backend identity and calibration snapshot
//   - Execution: job parameters and timing
//   - Result: measurement outcomes
//
// Once built it is never mutated; derived values are computed on read.
type Trace struct {
	// Identity
	ID        string    `json:"id"`
	Version   string    `json:"qbom_version"`
	CreatedAt time.Time `json:"created_at"`

	// Core components
	Environment   *Environment   `json:"environment,omitempty"`
	Circuits      []Circuit      `json:"circuits,omitempty"`
	Transpilation *Transpilation `json:"transpilation,omitempty"`
	Hardware      *Hardware      `json:"hardware,omitempty"`
	Execution     *Execution     `json:"execution,omitempty"`
	Result        *Result        `json:"result,omitempty"`

	// User metadata
	Metadata Metadata `json:"metadata"`

	// Lineage
	ParentID *string `json:"parent_id,omitempty"` // ID of parent trace if derived

	// Extra preserves unrecognized fields through serialization round trips.
	Extra map[string]json.RawMessage `json:"-"`
}

// New creates an empty Trace with a generated ID and creation timestamp.
func New() Trace {
	return Trace{
		ID:        GenerateID(),
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
	}
}

// Summary returns a human-readable one-line summary of the trace.
func (t Trace) Summary() string {
	var parts []string

	if len(t.Circuits) > 0 {
		if len(t.Circuits) > 1 {
			parts = append(parts, fmt.Sprintf("%d circuits", len(t.Circuits)))
		} else {
			parts = append(parts, fmt.Sprintf("%dq circuit", t.Circuits[0].NumQubits))
		}
	}

	if t.Hardware != nil {
		parts = append(parts, "on "+t.Hardware.Backend)
	}

	if t.Execution != nil {
		parts = append(parts, FormatShots(t.Execution.Shots)+" shots")
	}

	if len(parts) == 0 {
		return "Empty trace"
	}
	return strings.Join(parts, " | ")
}

// hashContent is the canonical shape hashed by ContentHash. Only the
// scientifically relevant fields participate: metadata, timestamps and
// the trace identity are deliberately excluded so two captures of the
// same experiment hash identically.
type hashContent struct {
	Circuits      []string       `json:"circuits"`
	Transpilation *Transpilation `json:"transpilation"`
	Hardware      hashHardware   `json:"hardware"`
	Execution     hashExecution  `json:"execution"`
	ResultHash    *string        `json:"result_hash"`
}

type hashHardware struct {
	Backend    *string `json:"backend"`
	QubitsUsed []int   `json:"qubits_used"`
}

type hashExecution struct {
	Shots *int   `json:"shots"`
	Seed  *int64 `json:"seed"`
}

// ContentHash returns the content-addressable hash of the trace: the
// first 16 hex characters of a SHA-256 over the canonical JSON encoding
// of the scientific content. It survives JSON round trips unchanged.
func (t Trace) ContentHash() string {
	circuitHashes := make([]string, 0, len(t.Circuits))
	for _, c := range t.Circuits {
		circuitHashes = append(circuitHashes, c.Hash)
	}

	content := hashContent{
		Circuits:      circuitHashes,
		Transpilation: t.Transpilation,
	}
	if t.Hardware != nil {
		content.Hardware.Backend = &t.Hardware.Backend
		content.Hardware.QubitsUsed = t.Hardware.QubitsUsed
	}
	if t.Execution != nil {
		content.Execution.Shots = &t.Execution.Shots
		content.Execution.Seed = t.Execution.Seed
	}
	if t.Result != nil {
		content.ResultHash = &t.Result.Hash
	}

	serialized, err := json.Marshal(content)
	if err != nil {
		// Only unmarshalable values (channels, funcs) can fail here and the
		// model contains none.
		return ""
	}
	return hashBytes(serialized)
}

type traceAlias Trace

// computedFields are emitted on marshal but ignored on unmarshal.
var computedFields = []string{"summary", "content_hash"}

// traceKnownFields lists every serialized field of Trace, including the
// computed ones, so unknown input keys can be separated out.
var traceKnownFields = append([]string{
	"id", "qbom_version", "created_at",
	"environment", "circuits", "transpilation", "hardware", "execution", "result",
	"metadata", "parent_id",
}, computedFields...)

// MarshalJSON emits the trace with its computed summary and content hash
// alongside the stored fields, plus any preserved unknown fields.
func (t Trace) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(traceAlias(t))
	if err != nil {
		return nil, err
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, raw := range t.Extra {
		if _, known := merged[key]; !known {
			merged[key] = raw
		}
	}

	summary, err := json.Marshal(t.Summary())
	if err != nil {
		return nil, err
	}
	contentHash, err := json.Marshal(t.ContentHash())
	if err != nil {
		return nil, err
	}
	merged["summary"] = summary
	merged["content_hash"] = contentHash

	return json.Marshal(merged)
}

// UnmarshalJSON loads the stored fields, drops the computed ones (they
// are re-derived on read) and stashes unrecognized fields.
func (t *Trace) UnmarshalJSON(data []byte) error {
	var known traceAlias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	extra, err := collectExtra(data, traceKnownFields)
	if err != nil {
		return err
	}
	*t = Trace(known)
	t.Extra = extra
	return nil
}

// ToJSON serializes the trace, dropping absent optional fields.
func (t Trace) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// FromJSON reloads a trace from its JSON form. The reloaded trace has
// the same content hash as the original.
func FromJSON(data []byte) (Trace, error) {
	var t Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return Trace{}, fmt.Errorf("parse trace: %w", err)
	}
	return t, nil
}

func (t Trace) String() string {
	return fmt.Sprintf("Trace(%s: %s)", t.ID, t.Summary())
}

// ============================================================================
// Hashing helpers
// ============================================================================

// CircuitHash returns a deterministic content hash for a circuit body
// (QASM or any canonical textual representation).
func CircuitHash(content string) string {
	return hashBytes([]byte(content))
}

// HashCounts returns a deterministic hash over a raw counts histogram.
func HashCounts(raw map[string]int) string {
	serialized, _ := json.Marshal(raw) // Map keys are sorted by encoding/json
	return hashBytes(serialized)
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// FormatShots renders a shot count with thousands separators, e.g. "4,096".
func FormatShots(shots int) string {
	s := fmt.Sprintf("%d", shots)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var groups []string
	for len(s) > 3 {
		groups = append(groups, s[len(s)-3:])
		s = s[:len(s)-3]
	}
	groups = append(groups, s)
	for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
		groups[i], groups[j] = groups[j], groups[i]
	}
	out := strings.Join(groups, ",")
	if neg {
		out = "-" + out
	}
	return out
}

// marshalWithExtra marshals a value and merges preserved unknown fields
// back into the encoded object.
func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, raw := range extra {
		if _, known := merged[key]; !known {
			merged[key] = raw
		}
	}
	return json.Marshal(merged)
}

// collectExtra returns the fields of a JSON object not listed in known.
func collectExtra(data []byte, known []string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, key := range known {
		delete(all, key)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}
