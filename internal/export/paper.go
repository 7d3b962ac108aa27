package export

import (
	"fmt"
	"strings"

	"github.com/csnp/qbom/internal/trace"
)

// PaperStatement generates a reproducibility statement suitable for the
// Methods section of a publication, assembled from whatever the trace
// actually captured.
func PaperStatement(t trace.Trace) string {
	var parts []string

	if t.Environment != nil {
		if sdk, ok := t.Environment.QuantumSDK(); ok {
			parts = append(parts, "Experiments were performed using "+sdk)
		}
	}

	if t.Hardware != nil {
		h := t.Hardware
		if h.IsSimulator {
			parts = append(parts, fmt.Sprintf("on the %s simulator", h.Backend))
		} else {
			parts = append(parts, fmt.Sprintf("on the %s %s quantum processor (%d qubits)",
				h.Provider, h.Backend, h.NumQubits))
		}
	}

	if t.Transpilation != nil && t.Transpilation.OptimizationLevel != nil {
		parts = append(parts, fmt.Sprintf("Circuits were transpiled with optimization level %d",
			*t.Transpilation.OptimizationLevel))
	}

	if t.Execution != nil {
		parts = append(parts, fmt.Sprintf("Each experiment used %s shots",
			trace.FormatShots(t.Execution.Shots)))
	}

	if t.Hardware != nil && t.Hardware.Calibration != nil {
		parts = append(parts, fmt.Sprintf("Hardware calibration data from %s was used",
			t.Hardware.Calibration.Timestamp.UTC().Format("2006-01-02T15:04:05Z")))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("Complete QBOM trace: %s (content hash %s)", t.ID, t.ContentHash())
	}

	statement := strings.Join(parts, ". ") + "."
	return statement + fmt.Sprintf("\n\nComplete QBOM trace: %s (content hash %s)", t.ID, t.ContentHash())
}
