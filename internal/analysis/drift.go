package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/csnp/qbom/internal/trace"
)

// Drift significance thresholds. A qubit metric drifting beyond 10% or a
// gate error drifting beyond 15% is considered significant.
const (
	QubitDriftThresholdPercent = 10.0
	GateDriftThresholdPercent  = 15.0
)

// Feasibility describes how likely a reproduction attempt is to match.
type Feasibility string

const (
	FeasibilityHigh    Feasibility = "High"
	FeasibilityMedium  Feasibility = "Medium"
	FeasibilityLow     Feasibility = "Low"
	FeasibilityVeryLow Feasibility = "Very Low"
)

// QubitDrift is the drift analysis for a single qubit, as percent change
// per metric between the original and current calibration.
type QubitDrift struct {
	QubitIndex int `json:"qubit_index"`

	T1Original      *float64 `json:"t1_original,omitempty"`
	T1Current       *float64 `json:"t1_current,omitempty"`
	T1ChangePercent *float64 `json:"t1_change_percent,omitempty"`

	T2Original      *float64 `json:"t2_original,omitempty"`
	T2Current       *float64 `json:"t2_current,omitempty"`
	T2ChangePercent *float64 `json:"t2_change_percent,omitempty"`

	ReadoutOriginal      *float64 `json:"readout_original,omitempty"`
	ReadoutCurrent       *float64 `json:"readout_current,omitempty"`
	ReadoutChangePercent *float64 `json:"readout_change_percent,omitempty"`
}

// HasSignificantDrift reports whether any metric changed by more than 10%.
func (d QubitDrift) HasSignificantDrift() bool {
	for _, change := range []*float64{d.T1ChangePercent, d.T2ChangePercent, d.ReadoutChangePercent} {
		if change != nil && math.Abs(*change) > QubitDriftThresholdPercent {
			return true
		}
	}
	return false
}

// DriftSummary returns a short description of the significant changes.
func (d QubitDrift) DriftSummary() string {
	if !d.HasSignificantDrift() {
		return "Stable"
	}

	var changes []string
	describe := func(label string, change *float64) {
		if change == nil || math.Abs(*change) <= QubitDriftThresholdPercent {
			return
		}
		direction := "+"
		if *change < 0 {
			direction = "-"
		}
		changes = append(changes, fmt.Sprintf("%s %s%.0f%%", label, direction, math.Abs(*change)))
	}
	describe("T1", d.T1ChangePercent)
	describe("T2", d.T2ChangePercent)
	describe("Readout", d.ReadoutChangePercent)

	if len(changes) == 0 {
		return "Minor changes"
	}
	return strings.Join(changes, ", ")
}

// GateDrift is the drift analysis for one calibrated gate.
type GateDrift struct {
	GateName string `json:"gate_name"`
	Qubits   []int  `json:"qubits"`

	ErrorOriginal      *float64 `json:"error_original,omitempty"`
	ErrorCurrent       *float64 `json:"error_current,omitempty"`
	ErrorChangePercent *float64 `json:"error_change_percent,omitempty"`
}

// HasSignificantDrift reports whether the error rate changed by more than 15%.
func (d GateDrift) HasSignificantDrift() bool {
	return d.ErrorChangePercent != nil && math.Abs(*d.ErrorChangePercent) > GateDriftThresholdPercent
}

// DriftAnalysis compares the calibration captured with an experiment to a
// current calibration snapshot.
type DriftAnalysis struct {
	OriginalCalibrationTime *time.Time     `json:"original_calibration_time,omitempty"`
	CurrentCalibrationTime  *time.Time     `json:"current_calibration_time,omitempty"`
	TimeElapsed             *time.Duration `json:"time_elapsed,omitempty"`

	QubitDrift []QubitDrift `json:"qubit_drift"`
	GateDrift  []GateDrift  `json:"gate_drift"`

	// OverallDriftScore is 0-100; higher means more drift.
	OverallDriftScore       float64     `json:"overall_drift_score"`
	ReproductionFeasibility Feasibility `json:"reproduction_feasibility"`

	Recommendations []string `json:"recommendations"`
}

// HasSignificantDrift reports whether the overall drift is concerning.
func (a DriftAnalysis) HasSignificantDrift() bool {
	return a.OverallDriftScore > 20
}

// Summary returns a human-readable one-line summary.
func (a DriftAnalysis) Summary() string {
	timeStr := "unknown time"
	if a.TimeElapsed != nil {
		days := int(a.TimeElapsed.Hours() / 24)
		if days > 0 {
			timeStr = fmt.Sprintf("%d days", days)
		} else {
			timeStr = fmt.Sprintf("%d hours", int(a.TimeElapsed.Hours()))
		}
	}
	return fmt.Sprintf("Drift Score: %.0f/100 | Elapsed: %s | Reproduction: %s",
		a.OverallDriftScore, timeStr, a.ReproductionFeasibility)
}

// percentChange returns (current-original)/original*100, or nil when
// either side lacks the metric.
func percentChange(original, current *float64) *float64 {
	if original == nil || current == nil || *original == 0 {
		return nil
	}
	change := (*current - *original) / *original * 100
	return &change
}

// AnalyzeDrift analyzes calibration drift for a trace.
//
// currentCalibration may be nil, in which case the analysis degrades to
// an elapsed-time heuristic over the captured snapshot. The whole result
// is nil when the trace carries no hardware information at all.
func AnalyzeDrift(t trace.Trace, currentCalibration *trace.Calibration) *DriftAnalysis {
	if t.Hardware == nil {
		return nil
	}

	originalCal := t.Hardware.Calibration

	if originalCal == nil {
		// No original calibration: maximum uncertainty.
		analysis := &DriftAnalysis{
			QubitDrift:              []QubitDrift{},
			GateDrift:               []GateDrift{},
			OverallDriftScore:       100,
			ReproductionFeasibility: FeasibilityVeryLow,
			Recommendations: []string{
				"Original calibration not captured - cannot assess drift",
				"Re-running this experiment will likely produce different results",
				"Consider this a new experiment rather than a reproduction",
			},
		}
		if currentCalibration != nil {
			analysis.CurrentCalibrationTime = &currentCalibration.Timestamp
		}
		return analysis
	}

	if currentCalibration == nil {
		// Elapsed-time heuristic only.
		age := time.Since(originalCal.Timestamp)
		daysOld := int(age.Hours() / 24)

		var feasibility Feasibility
		var driftScore float64
		switch {
		case daysOld > 7:
			feasibility = FeasibilityVeryLow
			driftScore = 80
		case daysOld > 1:
			feasibility = FeasibilityLow
			driftScore = 50
		default:
			feasibility = FeasibilityMedium
			driftScore = 25
		}

		return &DriftAnalysis{
			OriginalCalibrationTime: &originalCal.Timestamp,
			TimeElapsed:             &age,
			QubitDrift:              []QubitDrift{},
			GateDrift:               []GateDrift{},
			OverallDriftScore:       driftScore,
			ReproductionFeasibility: feasibility,
			Recommendations: []string{
				fmt.Sprintf("Calibration is %d days old", daysOld),
				"Fetch current calibration from backend to compare",
				"Hardware properties change daily - expect some variation",
			},
		}
	}

	// Full comparison.
	timeElapsed := currentCalibration.Timestamp.Sub(originalCal.Timestamp)

	var qubitDrift []QubitDrift
	for _, origQ := range originalCal.Qubits {
		currQ := currentCalibration.Qubit(origQ.Index)
		if currQ == nil {
			continue
		}
		qubitDrift = append(qubitDrift, QubitDrift{
			QubitIndex:           origQ.Index,
			T1Original:           origQ.T1Us,
			T1Current:            currQ.T1Us,
			T1ChangePercent:      percentChange(origQ.T1Us, currQ.T1Us),
			T2Original:           origQ.T2Us,
			T2Current:            currQ.T2Us,
			T2ChangePercent:      percentChange(origQ.T2Us, currQ.T2Us),
			ReadoutOriginal:      origQ.ReadoutError,
			ReadoutCurrent:       currQ.ReadoutError,
			ReadoutChangePercent: percentChange(origQ.ReadoutError, currQ.ReadoutError),
		})
	}

	var gateDrift []GateDrift
	for _, origG := range originalCal.Gates {
		for _, currG := range currentCalibration.Gates {
			if currG.Gate != origG.Gate || !equalQubitSlices(currG.Qubits, origG.Qubits) {
				continue
			}
			gateDrift = append(gateDrift, GateDrift{
				GateName:           origG.Gate,
				Qubits:             origG.Qubits,
				ErrorOriginal:      origG.Error,
				ErrorCurrent:       currG.Error,
				ErrorChangePercent: percentChange(origG.Error, currG.Error),
			})
			break
		}
	}

	// Overall drift: mean of all observed |percent changes|, each clamped
	// to [0, 100]. Different metrics are averaged without normalization.
	var driftScores []float64
	for _, qd := range qubitDrift {
		for _, change := range []*float64{qd.T1ChangePercent, qd.T2ChangePercent, qd.ReadoutChangePercent} {
			if change != nil {
				driftScores = append(driftScores, math.Min(math.Abs(*change), 100))
			}
		}
	}
	for _, gd := range gateDrift {
		if gd.ErrorChangePercent != nil {
			driftScores = append(driftScores, math.Min(math.Abs(*gd.ErrorChangePercent), 100))
		}
	}

	overallDrift := 50.0 // Unknown
	if len(driftScores) > 0 {
		overallDrift = stat.Mean(driftScores, nil)
	}

	var feasibility Feasibility
	switch {
	case overallDrift < 10:
		feasibility = FeasibilityHigh
	case overallDrift < 25:
		feasibility = FeasibilityMedium
	case overallDrift < 50:
		feasibility = FeasibilityLow
	default:
		feasibility = FeasibilityVeryLow
	}

	var recommendations []string

	var driftedQubits []string
	for _, qd := range qubitDrift {
		if qd.HasSignificantDrift() {
			driftedQubits = append(driftedQubits, fmt.Sprintf("%d", qd.QubitIndex))
		}
	}
	if len(driftedQubits) > 0 {
		recommendations = append(recommendations,
			"Significant drift on qubits: "+strings.Join(driftedQubits, ", "))
	}

	var driftedGates []string
	for _, gd := range gateDrift {
		if gd.HasSignificantDrift() {
			driftedGates = append(driftedGates, fmt.Sprintf("%s%v", gd.GateName, gd.Qubits))
		}
	}
	if len(driftedGates) > 0 {
		recommendations = append(recommendations,
			"Gate errors changed significantly: "+strings.Join(driftedGates, ", "))
	}

	if days := int(timeElapsed.Hours() / 24); days > 1 {
		recommendations = append(recommendations,
			fmt.Sprintf("Calibration is %d days old - expect variation", days))
	}

	if feasibility == FeasibilityLow || feasibility == FeasibilityVeryLow {
		recommendations = append(recommendations,
			"Consider re-running as a new experiment rather than reproduction")
	}

	return &DriftAnalysis{
		OriginalCalibrationTime: &originalCal.Timestamp,
		CurrentCalibrationTime:  &currentCalibration.Timestamp,
		TimeElapsed:             &timeElapsed,
		QubitDrift:              qubitDrift,
		GateDrift:               gateDrift,
		OverallDriftScore:       overallDrift,
		ReproductionFeasibility: feasibility,
		Recommendations:         recommendations,
	}
}

// ExplainResultDifference explains why two experiments might produce
// different results. When no difference is found across the checked
// dimensions, the variation is attributed to quantum measurement noise.
func ExplainResultDifference(t1, t2 trace.Trace) []string {
	var explanations []string

	if t1.Hardware != nil && t2.Hardware != nil {
		if t1.Hardware.Backend != t2.Hardware.Backend {
			explanations = append(explanations, fmt.Sprintf(
				"Different backends: %s vs %s", t1.Hardware.Backend, t2.Hardware.Backend))
		}

		if !equalQubitSlices(t1.Hardware.QubitsUsed, t2.Hardware.QubitsUsed) {
			explanations = append(explanations, fmt.Sprintf(
				"Different physical qubits: %v vs %v", t1.Hardware.QubitsUsed, t2.Hardware.QubitsUsed))
		}

		if t1.Hardware.Calibration != nil && t2.Hardware.Calibration != nil {
			timeDiff := t2.Hardware.Calibration.Timestamp.Sub(t1.Hardware.Calibration.Timestamp)
			if timeDiff < 0 {
				timeDiff = -timeDiff
			}
			if timeDiff > 24*time.Hour {
				days := timeDiff.Hours() / 24
				explanations = append(explanations, fmt.Sprintf(
					"Calibrations are %.1f days apart - hardware drift likely", days))
			}
		}
	}

	if t1.Transpilation != nil && t2.Transpilation != nil {
		if !equalIntPtr(t1.Transpilation.OptimizationLevel, t2.Transpilation.OptimizationLevel) {
			explanations = append(explanations, fmt.Sprintf(
				"Different optimization levels: %s vs %s",
				formatIntPtr(t1.Transpilation.OptimizationLevel),
				formatIntPtr(t2.Transpilation.OptimizationLevel)))
		}

		if !equalLayouts(t1.Transpilation.FinalLayout, t2.Transpilation.FinalLayout) {
			explanations = append(explanations, "Different qubit mappings after transpilation")
		}
	}

	if t1.Execution != nil && t2.Execution != nil {
		if t1.Execution.Shots != t2.Execution.Shots {
			explanations = append(explanations, fmt.Sprintf(
				"Different shot counts: %d vs %d", t1.Execution.Shots, t2.Execution.Shots))
		}
	}

	if len(t1.Circuits) > 0 && len(t2.Circuits) > 0 {
		if t1.Circuits[0].Hash != t2.Circuits[0].Hash {
			explanations = append(explanations, "Circuit definitions differ - not the same experiment")
		}
	}

	if len(explanations) == 0 {
		explanations = append(explanations,
			"No obvious differences found - variation may be due to quantum noise")
	}

	return explanations
}

func equalQubitSlices(a, b []int) bool {
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

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func formatIntPtr(v *int) string {
	if v == nil {
		return "unset"
	}
	return fmt.Sprintf("%d", *v)
}

func equalLayouts(a, b *trace.QubitMapping) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// BetterQubits suggests calibrated qubits ranked by current quality, for
// re-running an experiment on a drifted device. Qubits are ranked by
// readout error ascending, then T1 descending.
func BetterQubits(cal trace.Calibration, count int) []int {
	qubits := append([]trace.QubitProperties(nil), cal.Qubits...)
	sort.SliceStable(qubits, func(i, j int) bool {
		ri, rj := qubits[i].ReadoutError, qubits[j].ReadoutError
		if ri != nil && rj != nil && *ri != *rj {
			return *ri < *rj
		}
		if (ri == nil) != (rj == nil) {
			return ri != nil
		}
		ti, tj := qubits[i].T1Us, qubits[j].T1Us
		if ti != nil && tj != nil {
			return *ti > *tj
		}
		return ti != nil
	})

	var indices []int
	for _, q := range qubits {
		if len(indices) >= count {
			break
		}
		indices = append(indices, q.Index)
	}
	return indices
}
