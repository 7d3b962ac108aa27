package export

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/csnp/qbom/internal/trace"
)

func strPtr(s string) *string { return &s }

func exportTrace(t *testing.T) trace.Trace {
	t.Helper()

	hw, err := trace.NewHardware("ibm", "ibm_brisbane", 127, false)
	require.NoError(t, err)
	hw.QubitsUsed = []int{0, 1}
	hw.Calibration = &trace.Calibration{Timestamp: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}

	counts, err := trace.NewCounts(map[string]int{"00": 512, "11": 512}, 1024)
	require.NoError(t, err)
	result, err := trace.NewResult(counts)
	require.NoError(t, err)

	optLevel := 1
	tr := trace.NewBuilder().
		SetEnvironment(trace.Environment{
			Runtime:  "3.11.4",
			Platform: "linux/amd64",
			Packages: []trace.Package{{Name: "qiskit", Version: "1.0.0"}, {Name: "numpy", Version: "1.26.0"}},
		}).
		AddCircuit(trace.Circuit{NumQubits: 2, Depth: 3, Gates: trace.GateCounts{Total: 4}, Hash: "abc123"}).
		SetTranspilation(trace.Transpilation{OptimizationLevel: &optLevel}).
		SetHardware(hw).
		SetExecution(trace.Execution{Shots: 1024}).
		SetResult(result).
		SetMetadata("bell", "baseline bell pair", nil).
		Build()
	tr.Metadata.Paper = strPtr("https://doi.org/10.0000/example")
	return tr
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats() {
		parsed, err := ParseFormat(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, parsed)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestExportJSON(t *testing.T) {
	tr := exportTrace(t)
	data, err := Export(tr, FormatJSON)
	require.NoError(t, err)

	loaded, err := trace.FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, tr.ContentHash(), loaded.ContentHash())
}

func TestExportYAML(t *testing.T) {
	tr := exportTrace(t)
	data, err := Export(tr, FormatYAML)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, tr.ID, doc["id"])
	assert.Equal(t, tr.ContentHash(), doc["content_hash"])
}

func TestExportMsgpackRoundTrip(t *testing.T) {
	tr := exportTrace(t)
	data, err := Export(tr, FormatMsgpack)
	require.NoError(t, err)

	loaded, err := DecodeMsgpack(data)
	require.NoError(t, err)
	assert.Equal(t, tr.ID, loaded.ID)
	assert.Equal(t, tr.ContentHash(), loaded.ContentHash())
}

func TestExportCycloneDX(t *testing.T) {
	tr := exportTrace(t)
	data, err := Export(tr, FormatCycloneDX)
	require.NoError(t, err)

	var sbom map[string]any
	require.NoError(t, json.Unmarshal(data, &sbom))
	assert.Equal(t, "CycloneDX", sbom["bomFormat"])
	assert.Equal(t, "1.5", sbom["specVersion"])
	assert.Equal(t, "urn:uuid:"+tr.ID, sbom["serialNumber"])

	components := sbom["components"].([]any)
	assert.Len(t, components, 2)

	meta := sbom["metadata"].(map[string]any)
	props := meta["properties"].([]any)
	hashProp := props[1].(map[string]any)
	assert.Equal(t, "qbom:content-hash", hashProp["name"])
	assert.Equal(t, tr.ContentHash(), hashProp["value"])

	// Full trace embedded as extension.
	extensions := sbom["extensions"].(map[string]any)
	embedded := extensions["qbom"].(map[string]any)
	assert.Equal(t, tr.ID, embedded["id"])
}

func TestExportSPDX(t *testing.T) {
	tr := exportTrace(t)
	data, err := Export(tr, FormatSPDX)
	require.NoError(t, err)

	var sbom map[string]any
	require.NoError(t, json.Unmarshal(data, &sbom))
	assert.Equal(t, "SPDX-2.3", sbom["spdxVersion"])
	assert.Equal(t, "CC0-1.0", sbom["dataLicense"])
	assert.Equal(t, "bell", sbom["name"])

	// Experiment package plus one per environment package.
	packages := sbom["packages"].([]any)
	assert.Len(t, packages, 3)

	relationships := sbom["relationships"].([]any)
	assert.Len(t, relationships, 3)

	// Paper reference carried as external document ref.
	require.Contains(t, sbom, "externalDocumentRefs")

	annotations := sbom["annotations"].([]any)
	require.Len(t, annotations, 1)
	comment := annotations[0].(map[string]any)["comment"].(string)
	var embedded map[string]any
	require.NoError(t, json.Unmarshal([]byte(comment), &embedded))
	assert.Equal(t, tr.ID, embedded["trace_id"])
	assert.Equal(t, tr.ContentHash(), embedded["content_hash"])
}

func TestWriteFile(t *testing.T) {
	tr := exportTrace(t)
	path := filepath.Join(t.TempDir(), "trace.yaml")
	require.NoError(t, WriteFile(tr, path, FormatYAML))
	assert.FileExists(t, path)
}

func TestPaperStatement(t *testing.T) {
	tr := exportTrace(t)
	statement := PaperStatement(tr)

	assert.Contains(t, statement, "Experiments were performed using qiskit==1.0.0")
	assert.Contains(t, statement, "on the ibm ibm_brisbane quantum processor (127 qubits)")
	assert.Contains(t, statement, "Circuits were transpiled with optimization level 1")
	assert.Contains(t, statement, "Each experiment used 1,024 shots")
	assert.Contains(t, statement, "Hardware calibration data from 2025-06-01T08:00:00Z was used")
	assert.Contains(t, statement, tr.ID)
	assert.Contains(t, statement, tr.ContentHash())
}

func TestPaperStatementSimulator(t *testing.T) {
	hw, err := trace.NewHardware("local", "aer_simulator", 32, true)
	require.NoError(t, err)
	tr := trace.NewBuilder().SetHardware(hw).Build()

	statement := PaperStatement(tr)
	assert.Contains(t, statement, "on the aer_simulator simulator")
}

func TestPaperStatementEmptyTrace(t *testing.T) {
	tr := trace.New()
	statement := PaperStatement(tr)
	assert.Contains(t, statement, tr.ID)
}

func TestVerifyAuthentic(t *testing.T) {
	v := Verify(exportTrace(t))

	assert.True(t, v.Authentic)
	names := make([]string, 0, len(v.Checks))
	for _, c := range v.Checks {
		assert.True(t, c.Passed, c.Name)
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "Result hash matches counts")
}

func TestVerifyDetectsTamperedCounts(t *testing.T) {
	tr := exportTrace(t)
	res := *tr.Result
	res.Counts = trace.Counts{Raw: map[string]int{"00": 1024}, Shots: 1024}
	tr.Result = &res

	v := Verify(tr)
	assert.False(t, v.Authentic)
}

func TestVerifyDetectsInvertedTimestamps(t *testing.T) {
	tr := exportTrace(t)
	started := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	submitted := started.Add(time.Hour) // Submitted after start
	exe := *tr.Execution
	exe.SubmittedAt = &submitted
	exe.StartedAt = &started
	tr.Execution = &exe

	v := Verify(tr)
	assert.False(t, v.Authentic)
}
