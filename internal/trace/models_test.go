package trace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string    { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestNewPackage(t *testing.T) {
	pkg, err := NewPackage("qiskit", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "qiskit==1.0.0", pkg.String())

	_, err = NewPackage("", "1.0.0")
	assert.Error(t, err)

	_, err = NewPackage("qiskit", "")
	assert.Error(t, err)
}

func TestPackageURL(t *testing.T) {
	pkg := Package{Name: "qiskit", Version: "1.0.0"}
	assert.Equal(t, "pkg:golang/qiskit@1.0.0", pkg.PackageURL())

	pkg.Purl = strPtr("pkg:pypi/qiskit@1.0.0")
	assert.Equal(t, "pkg:pypi/qiskit@1.0.0", pkg.PackageURL())
}

func TestQuantumSDKDetection(t *testing.T) {
	env := Environment{
		Runtime:  "3.11.4",
		Platform: "linux/amd64",
		Packages: []Package{
			{Name: "numpy", Version: "1.26.0"},
			{Name: "cirq", Version: "1.3.0"},
			{Name: "qiskit-aer", Version: "0.13.0"},
		},
	}

	// qiskit prefix wins over cirq despite appearing later in the list.
	sdk, ok := env.QuantumSDK()
	require.True(t, ok)
	assert.Equal(t, "qiskit-aer==0.13.0", sdk)

	noSDK := Environment{Packages: []Package{{Name: "numpy", Version: "1.26.0"}}}
	_, ok = noSDK.QuantumSDK()
	assert.False(t, ok)
}

func TestNewCircuit(t *testing.T) {
	gates := GateCounts{SingleQubit: 1, TwoQubit: 1, Total: 4, ByName: map[string]int{"h": 1, "cx": 1, "measure": 2}}

	c, err := NewCircuit(strPtr("bell"), 2, 2, 3, gates, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "bell (2q, depth 3, 4 gates)", c.Summary())

	_, err = NewCircuit(nil, 0, 0, 1, gates, "abc123")
	assert.Error(t, err)

	_, err = NewCircuit(nil, 2, 2, 1, gates, "")
	assert.Error(t, err)
}

func TestCircuitSummaryUnnamed(t *testing.T) {
	c := Circuit{NumQubits: 3, Depth: 5, Gates: GateCounts{Total: 7}, Hash: "x"}
	assert.Equal(t, "circuit (3q, depth 5, 7 gates)", c.Summary())
}

func TestQubitMappingPhysicalQubits(t *testing.T) {
	m := QubitMapping{LogicalToPhysical: map[int]int{0: 5, 1: 3, 2: 5}}
	assert.Equal(t, []int{3, 5}, m.PhysicalQubits())
}

func TestQubitMappingEqual(t *testing.T) {
	a := QubitMapping{LogicalToPhysical: map[int]int{0: 1, 1: 2}}
	b := QubitMapping{LogicalToPhysical: map[int]int{0: 1, 1: 2}}
	c := QubitMapping{LogicalToPhysical: map[int]int{0: 1, 1: 3}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(QubitMapping{}))
}

func TestDepthIncrease(t *testing.T) {
	input := Circuit{NumQubits: 2, Depth: 3, Hash: "in"}
	output := Circuit{NumQubits: 2, Depth: 9, Hash: "out"}

	tr := Transpilation{InputCircuit: &input, OutputCircuit: &output}
	ratio, ok := tr.DepthIncrease()
	require.True(t, ok)
	assert.InDelta(t, 3.0, ratio, 1e-9)

	_, ok = Transpilation{OutputCircuit: &output}.DepthIncrease()
	assert.False(t, ok)

	zeroDepth := Circuit{NumQubits: 2, Depth: 0, Hash: "in"}
	_, ok = Transpilation{InputCircuit: &zeroDepth, OutputCircuit: &output}.DepthIncrease()
	assert.False(t, ok)
}

func TestCalibrationLookups(t *testing.T) {
	cal := Calibration{
		Timestamp: time.Now().UTC(),
		Qubits: []QubitProperties{
			{Index: 0, T1Us: floatPtr(100), ReadoutError: floatPtr(0.01)},
			{Index: 3, T1Us: floatPtr(80)},
		},
		Gates: []GateProperties{
			{Gate: "cx", Qubits: []int{0, 1}, Error: floatPtr(0.005)},
			{Gate: "cx", Qubits: []int{1, 2}, Error: floatPtr(0.008)},
		},
	}

	q := cal.Qubit(3)
	require.NotNil(t, q)
	assert.Equal(t, 80.0, *q.T1Us)
	assert.Nil(t, cal.Qubit(7))

	err := cal.GateError("cx", []int{1, 2})
	require.NotNil(t, err)
	assert.Equal(t, 0.008, *err)
	assert.Nil(t, cal.GateError("cx", []int{2, 3}))
	assert.Nil(t, cal.GateError("cz", []int{0, 1}))
}

func TestNewHardware(t *testing.T) {
	hw, err := NewHardware("ibm", "ibm_brisbane", 127, false)
	require.NoError(t, err)
	assert.Equal(t, "ibm_brisbane", hw.Summary())

	sim, err := NewHardware("local", "aer_simulator", 32, true)
	require.NoError(t, err)
	assert.Equal(t, "aer_simulator (simulator)", sim.Summary())

	_, err = NewHardware("ibm", "", 127, false)
	assert.Error(t, err)
}

func TestExecutionTimings(t *testing.T) {
	submitted := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	started := submitted.Add(90 * time.Second)
	completed := started.Add(12 * time.Second)

	exe := Execution{Shots: 1024, SubmittedAt: &submitted, StartedAt: &started, CompletedAt: &completed}

	queue, ok := exe.QueueTime()
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, queue)

	run, ok := exe.ExecutionTime()
	require.True(t, ok)
	assert.Equal(t, 12*time.Second, run)

	_, ok = Execution{Shots: 1024, StartedAt: &started}.QueueTime()
	assert.False(t, ok)
	_, ok = Execution{Shots: 1024, StartedAt: &started}.ExecutionTime()
	assert.False(t, ok)
}

func TestNewExecutionRequiresShots(t *testing.T) {
	_, err := NewExecution(0)
	assert.Error(t, err)

	exe, err := NewExecution(4096)
	require.NoError(t, err)
	assert.Equal(t, 4096, exe.Shots)
}

func TestCountsProbabilities(t *testing.T) {
	counts, err := NewCounts(map[string]int{"00": 512, "11": 488, "01": 24}, 1024)
	require.NoError(t, err)

	probs := counts.Probabilities()
	assert.InDelta(t, 0.5, probs["00"], 1e-9)
	assert.InDelta(t, 0.4765625, probs["11"], 1e-9)

	_, err = NewCounts(map[string]int{"0": 1}, 0)
	assert.Error(t, err)
}

func TestTopResults(t *testing.T) {
	counts := Counts{
		Raw: map[string]int{
			"000": 300, "001": 300, "010": 150, "011": 100,
			"100": 80, "101": 50, "110": 20,
		},
		Shots: 1000,
	}

	top := counts.TopResults()
	require.Len(t, top, 5)

	// Equal probabilities tie-break on the outcome bitstring.
	assert.Equal(t, "000", top[0].Outcome)
	assert.Equal(t, "001", top[1].Outcome)
	assert.Equal(t, "010", top[2].Outcome)
	assert.InDelta(t, 0.3, top[0].Probability, 1e-9)

	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].Probability, top[i].Probability)
	}
}

func TestNewResultDerivesHash(t *testing.T) {
	counts, err := NewCounts(map[string]int{"00": 512, "11": 512}, 1024)
	require.NoError(t, err)

	res, err := NewResult(counts)
	require.NoError(t, err)
	assert.Equal(t, HashCounts(counts.Raw), res.Hash)
	assert.Len(t, res.Hash, 16)

	_, err = NewResult(Counts{})
	assert.Error(t, err)
}
