package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csnp/qbom/internal/trace"
)

func issueMessages(issues []ValidationIssue) []string {
	messages := make([]string, 0, len(issues))
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

func TestValidateEmptyTrace(t *testing.T) {
	result := ValidateTrace(trace.New())

	assert.False(t, result.IsValid)
	assert.False(t, result.IsComplete)
	assert.Greater(t, result.ErrorCount(), 0)

	messages := issueMessages(result.Issues)
	assert.Contains(t, messages, "No environment captured")
	assert.Contains(t, messages, "No circuits captured")
	assert.Contains(t, messages, "No hardware information captured")
	assert.Contains(t, messages, "No execution parameters captured")
	assert.Contains(t, messages, "No results captured")
	assert.Contains(t, result.Summary, "error(s)")
}

func TestValidateCompleteTrace(t *testing.T) {
	result := ValidateTrace(fullTrace(t))

	assert.True(t, result.IsValid)
	assert.True(t, result.IsComplete)
	assert.Equal(t, 0, result.ErrorCount())
	assert.Equal(t, 0, result.WarningCount())

	// The full trace still triggers the job-traceability hints at most.
	for _, issue := range result.Issues {
		assert.Equal(t, LevelInfo, issue.Level, issue.Message)
	}
}

func TestValidateSimulatorSkipsTranspilation(t *testing.T) {
	circuit := trace.Circuit{NumQubits: 2, Depth: 3, Gates: trace.GateCounts{Total: 4}, Hash: "abc"}
	hw := trace.Hardware{Provider: "local", Backend: "aer_simulator", NumQubits: 32, IsSimulator: true}

	tr := trace.NewBuilder().
		SetEnvironment(trace.Environment{
			Runtime:  "3.11.4",
			Packages: []trace.Package{{Name: "qiskit", Version: "1.0.0"}, {Name: "numpy", Version: "1.26.0"}, {Name: "scipy", Version: "1.11.0"}},
		}).
		AddCircuit(circuit).
		SetHardware(hw).
		SetExecution(trace.Execution{Shots: 1024}).
		Build()

	result := ValidateTrace(tr)

	messages := issueMessages(result.Issues)
	assert.NotContains(t, messages, "No transpilation captured for hardware execution")
	assert.NotContains(t, messages, "Physical qubits not recorded")
	assert.NotContains(t, messages, "No calibration snapshot captured")
	assert.True(t, result.IsValid)
}

func TestValidateHardwareWithoutCalibration(t *testing.T) {
	tr := fullTrace(t)
	hw := *tr.Hardware
	hw.Calibration = nil
	tr.Hardware = &hw

	result := ValidateTrace(tr)

	assert.False(t, result.IsValid)
	messages := issueMessages(result.Issues)
	assert.Contains(t, messages, "No calibration snapshot captured")
}

func TestValidateExecutionIssues(t *testing.T) {
	tr := fullTrace(t)
	exe := *tr.Execution
	exe.Shots = 0
	exe.JobID = nil
	tr.Execution = &exe

	result := ValidateTrace(tr)

	assert.False(t, result.IsValid)
	messages := issueMessages(result.Issues)
	assert.Contains(t, messages, "Shot count not recorded")
	assert.Contains(t, messages, "Job ID not captured")
}

func TestValidateForPublicationMetadata(t *testing.T) {
	result := ValidateForPublication(fullTrace(t))

	messages := issueMessages(result.Issues)
	assert.Contains(t, messages, "Experiment name not set")
	assert.Contains(t, messages, "No experiment description")
	assert.False(t, result.IsComplete)
	assert.True(t, result.IsValid)
	assert.Contains(t, result.Summary, "before publication")

	named := fullTrace(t)
	named.Metadata = trace.Metadata{Name: strPtr("bell"), Description: strPtr("baseline")}
	result = ValidateForPublication(named)
	messages = issueMessages(result.Issues)
	assert.NotContains(t, messages, "Experiment name not set")
	assert.NotContains(t, messages, "No experiment description")
}

func TestValidateForPublicationUpgradesCircuitRepr(t *testing.T) {
	tr := fullTrace(t)
	c := tr.Circuits[0]
	c.QASM = nil
	c.JSONRepr = nil
	tr.Circuits = []trace.Circuit{c}

	base := ValidateTrace(tr)
	var baseLevel ValidationLevel
	for _, issue := range base.Issues {
		if issue.Category == "Circuit" {
			baseLevel = issue.Level
		}
	}
	assert.Equal(t, LevelInfo, baseLevel)

	pub := ValidateForPublication(tr)
	found := false
	for _, issue := range pub.Issues {
		if issue.Message == "No circuit representation for exact reproduction" {
			found = true
			assert.Equal(t, LevelWarning, issue.Level)
		}
		// The info-level variant must have been replaced, not duplicated.
		assert.NotEqual(t, "No QASM or JSON representation stored", issue.Message)
	}
	assert.True(t, found)
}

func TestValidationSummaryStrings(t *testing.T) {
	complete := ValidateTrace(fullTrace(t))
	require.True(t, complete.IsComplete)
	if complete.InfoCount() == 0 {
		assert.Equal(t, "Trace is complete and ready for publication", complete.Summary)
	} else {
		assert.Contains(t, complete.Summary, "suggestion(s)")
	}

	invalid := ValidateTrace(trace.New())
	assert.Contains(t, invalid.Summary, "must be fixed")
}
