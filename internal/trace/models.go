// Package trace provides the core data model for quantum experiment
// provenance. All entities are value objects: once constructed they are
// never mutated, and every derived value (summaries, hashes, probability
// distributions) is computed on read from the frozen fields.
package trace

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ============================================================================
// Environment
// ============================================================================

// Package is a single software dependency captured in the environment.
type Package struct {
	Name    string  `json:"name"`
	Version string  `json:"version"`
	Purl    *string `json:"purl,omitempty"` // Package URL (CycloneDX format)
}

// NewPackage creates a Package. Name and version are required.
func NewPackage(name, version string) (Package, error) {
	if name == "" {
		return Package{}, fmt.Errorf("package name is required")
	}
	if version == "" {
		return Package{}, fmt.Errorf("package version is required: %s", name)
	}
	return Package{Name: name, Version: version}, nil
}

func (p Package) String() string {
	return fmt.Sprintf("%s==%s", p.Name, p.Version)
}

// PackageURL returns the purl, deriving one from name and version when absent.
func (p Package) PackageURL() string {
	if p.Purl != nil {
		return *p.Purl
	}
	return fmt.Sprintf("pkg:golang/%s@%s", p.Name, p.Version)
}

// sdkPriority is the fixed detection order for quantum SDK packages.
var sdkPriority = []string{"qiskit", "cirq", "pennylane", "braket"}

// Environment is a snapshot of the software environment an experiment ran in.
type Environment struct {
	Runtime   string    `json:"runtime"`  // Language runtime version
	Platform  string    `json:"platform"` // OS and architecture
	Packages  []Package `json:"packages,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// QuantumSDK returns the primary quantum SDK detected, as "name==version".
// SDKs are matched by name prefix in a fixed priority order; the second
// return is false when no known SDK package is present.
func (e Environment) QuantumSDK() (string, bool) {
	for _, sdk := range sdkPriority {
		for _, pkg := range e.Packages {
			if strings.HasPrefix(pkg.Name, sdk) {
				return pkg.String(), true
			}
		}
	}
	return "", false
}

// ============================================================================
// Circuit
// ============================================================================

// GateCounts is the gate-type histogram of a circuit. Total may exceed
// single+two because measurement and barrier operations are counted in
// the total but are neither single- nor two-qubit gates.
type GateCounts struct {
	SingleQubit int            `json:"single_qubit"`
	TwoQubit    int            `json:"two_qubit"`
	Total       int            `json:"total"`
	ByName      map[string]int `json:"by_name,omitempty"`
}

// Circuit is a framework-agnostic representation of one quantum program.
type Circuit struct {
	Name      *string    `json:"name,omitempty"`
	NumQubits int        `json:"num_qubits"`
	NumClbits int        `json:"num_clbits"`
	Depth     int        `json:"depth"`
	Gates     GateCounts `json:"gates"`
	Hash      string     `json:"hash"` // Content-addressable hash of circuit

	// Optional detailed representations
	QASM     *string        `json:"qasm,omitempty"`
	JSONRepr map[string]any `json:"json_repr,omitempty"`
}

// NewCircuit creates a Circuit. The qubit count is required and the hash
// must be non-empty so the circuit stays content-addressable.
func NewCircuit(name *string, numQubits, numClbits, depth int, gates GateCounts, hash string) (Circuit, error) {
	if numQubits <= 0 {
		return Circuit{}, fmt.Errorf("circuit qubit count is required")
	}
	if hash == "" {
		return Circuit{}, fmt.Errorf("circuit hash is required")
	}
	return Circuit{
		Name:      name,
		NumQubits: numQubits,
		NumClbits: numClbits,
		Depth:     depth,
		Gates:     gates,
		Hash:      hash,
	}, nil
}

// Summary returns a human-readable one-line description of the circuit.
func (c Circuit) Summary() string {
	name := "circuit"
	if c.Name != nil {
		name = *c.Name
	}
	return fmt.Sprintf("%s (%dq, depth %d, %d gates)", name, c.NumQubits, c.Depth, c.Gates.Total)
}

// ============================================================================
// Transpilation
// ============================================================================

// QubitMapping assigns logical circuit qubits to physical device qubits.
type QubitMapping struct {
	LogicalToPhysical map[int]int `json:"logical_to_physical"`
}

// PhysicalQubits returns the sorted distinct physical qubits in the mapping.
func (m QubitMapping) PhysicalQubits() []int {
	seen := make(map[int]bool, len(m.LogicalToPhysical))
	var qubits []int
	for _, phys := range m.LogicalToPhysical {
		if !seen[phys] {
			seen[phys] = true
			qubits = append(qubits, phys)
		}
	}
	sort.Ints(qubits)
	return qubits
}

// Equal reports whether two mappings assign identical physical qubits.
func (m QubitMapping) Equal(other QubitMapping) bool {
	if len(m.LogicalToPhysical) != len(other.LogicalToPhysical) {
		return false
	}
	for logical, phys := range m.LogicalToPhysical {
		if o, ok := other.LogicalToPhysical[logical]; !ok || o != phys {
			return false
		}
	}
	return true
}

// Transpilation records how a logical circuit was compiled for hardware.
type Transpilation struct {
	// Settings
	OptimizationLevel *int     `json:"optimization_level,omitempty"`
	BasisGates        []string `json:"basis_gates,omitempty"`
	Seed              *int64   `json:"seed,omitempty"`

	// Methods
	LayoutMethod  *string `json:"layout_method,omitempty"`
	RoutingMethod *string `json:"routing_method,omitempty"`

	// Mappings
	InitialLayout *QubitMapping `json:"initial_layout,omitempty"`
	FinalLayout   *QubitMapping `json:"final_layout,omitempty"`

	// Before/after
	InputCircuit  *Circuit `json:"input_circuit,omitempty"`
	OutputCircuit *Circuit `json:"output_circuit,omitempty"`
}

// DepthIncrease returns output depth divided by input depth. The second
// return is false when either circuit is missing or the input depth is 0.
func (t Transpilation) DepthIncrease() (float64, bool) {
	if t.InputCircuit == nil || t.OutputCircuit == nil {
		return 0, false
	}
	if t.InputCircuit.Depth <= 0 {
		return 0, false
	}
	return float64(t.OutputCircuit.Depth) / float64(t.InputCircuit.Depth), true
}

// ============================================================================
// Hardware
// ============================================================================

// QubitProperties holds the calibration metrics of one physical qubit.
// All metrics are optional because hardware does not always report them.
type QubitProperties struct {
	Index        int      `json:"index"`
	T1Us         *float64 `json:"t1_us,omitempty"` // T1 relaxation time in microseconds
	T2Us         *float64 `json:"t2_us,omitempty"` // T2 coherence time in microseconds
	ReadoutError *float64 `json:"readout_error,omitempty"`
	FrequencyGHz *float64 `json:"frequency_ghz,omitempty"`
}

// GateProperties holds the calibration of a gate on specific qubits.
// The (gate, qubits) pair is the natural lookup key.
type GateProperties struct {
	Gate       string   `json:"gate"`
	Qubits     []int    `json:"qubits"`
	Error      *float64 `json:"error,omitempty"`
	DurationNs *float64 `json:"duration_ns,omitempty"`
}

// Calibration is a timestamped snapshot of hardware error characteristics.
type Calibration struct {
	Timestamp time.Time         `json:"timestamp"`
	Qubits    []QubitProperties `json:"qubits,omitempty"`
	Gates     []GateProperties  `json:"gates,omitempty"`
}

// Qubit returns the properties for a specific qubit index, or nil.
func (c Calibration) Qubit(index int) *QubitProperties {
	for i := range c.Qubits {
		if c.Qubits[i].Index == index {
			return &c.Qubits[i]
		}
	}
	return nil
}

// GateError returns the error rate for a gate on specific qubits, or nil.
func (c Calibration) GateError(gate string, qubits []int) *float64 {
	for _, g := range c.Gates {
		if g.Gate == gate && equalQubits(g.Qubits, qubits) {
			return g.Error
		}
	}
	return nil
}

func equalQubits(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Hardware identifies the backend an experiment ran on, plus the
// calibration snapshot taken at execution time.
type Hardware struct {
	Provider    string       `json:"provider"`
	Backend     string       `json:"backend"`
	NumQubits   int          `json:"num_qubits"`
	QubitsUsed  []int        `json:"qubits_used,omitempty"` // Empty for simulators
	IsSimulator bool         `json:"is_simulator"`
	Calibration *Calibration `json:"calibration,omitempty"`
}

// NewHardware creates a Hardware record. The backend name is required.
func NewHardware(provider, backend string, numQubits int, isSimulator bool) (Hardware, error) {
	if backend == "" {
		return Hardware{}, fmt.Errorf("backend name is required")
	}
	return Hardware{
		Provider:    provider,
		Backend:     backend,
		NumQubits:   numQubits,
		IsSimulator: isSimulator,
	}, nil
}

// Summary returns a human-readable backend description.
func (h Hardware) Summary() string {
	if h.IsSimulator {
		return h.Backend + " (simulator)"
	}
	return h.Backend
}

// ============================================================================
// Execution
// ============================================================================

// ErrorMitigation describes a mitigation technique applied to a run.
type ErrorMitigation struct {
	Method     string         `json:"method"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Execution holds run parameters and timing.
type Execution struct {
	JobID           *string          `json:"job_id,omitempty"`
	Shots           int              `json:"shots"`
	Seed            *int64           `json:"seed,omitempty"`
	ErrorMitigation *ErrorMitigation `json:"error_mitigation,omitempty"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewExecution creates an Execution. The shot count is required.
func NewExecution(shots int) (Execution, error) {
	if shots <= 0 {
		return Execution{}, fmt.Errorf("shot count is required")
	}
	return Execution{Shots: shots}, nil
}

// QueueTime returns the time spent waiting in queue. The second return is
// false when submission or start timestamps are missing.
func (e Execution) QueueTime() (time.Duration, bool) {
	if e.SubmittedAt == nil || e.StartedAt == nil {
		return 0, false
	}
	return e.StartedAt.Sub(*e.SubmittedAt), true
}

// ExecutionTime returns the actual run duration. The second return is
// false when start or completion timestamps are missing.
func (e Execution) ExecutionTime() (time.Duration, bool) {
	if e.StartedAt == nil || e.CompletedAt == nil {
		return 0, false
	}
	return e.CompletedAt.Sub(*e.StartedAt), true
}

// ============================================================================
// Result
// ============================================================================

// Counts is a measurement-outcome histogram.
type Counts struct {
	Raw   map[string]int `json:"raw"`
	Shots int            `json:"shots"`
}

// NewCounts creates a Counts histogram. The shot count is required.
func NewCounts(raw map[string]int, shots int) (Counts, error) {
	if shots <= 0 {
		return Counts{}, fmt.Errorf("shot count is required")
	}
	return Counts{Raw: raw, Shots: shots}, nil
}

// Probabilities converts raw counts to outcome probabilities.
func (c Counts) Probabilities() map[string]float64 {
	probs := make(map[string]float64, len(c.Raw))
	if c.Shots <= 0 {
		return probs
	}
	for outcome, count := range c.Raw {
		probs[outcome] = float64(count) / float64(c.Shots)
	}
	return probs
}

// OutcomeProbability is one entry of a ranked probability distribution.
type OutcomeProbability struct {
	Outcome     string  `json:"outcome"`
	Probability float64 `json:"probability"`
}

// TopResults returns up to 5 outcomes sorted by descending probability.
// Ties are broken by outcome bitstring so the ordering is deterministic.
func (c Counts) TopResults() []OutcomeProbability {
	probs := c.Probabilities()
	results := make([]OutcomeProbability, 0, len(probs))
	for outcome, p := range probs {
		results = append(results, OutcomeProbability{Outcome: outcome, Probability: p})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Probability != results[j].Probability {
			return results[i].Probability > results[j].Probability
		}
		return results[i].Outcome < results[j].Outcome
	})
	if len(results) > 5 {
		results = results[:5]
	}
	return results
}

// Result holds the outcome of an execution.
type Result struct {
	Counts   Counts         `json:"counts"`
	Memory   []string       `json:"memory,omitempty"` // Shot-by-shot results if available
	Metadata map[string]any `json:"metadata,omitempty"`
	Hash     string         `json:"hash"` // Hash of raw results for verification

	// Mitigated results (if error mitigation was applied)
	MitigatedCounts *Counts `json:"mitigated_counts,omitempty"`
}

// NewResult creates a Result with its hash derived from the raw counts.
func NewResult(counts Counts) (Result, error) {
	if counts.Shots <= 0 {
		return Result{}, fmt.Errorf("result counts are required")
	}
	return Result{
		Counts: counts,
		Hash:   HashCounts(counts.Raw),
	}, nil
}
