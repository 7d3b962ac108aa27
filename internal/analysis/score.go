// Package analysis provides reproducibility scoring, calibration drift
// analysis and trace validation. All entry points are pure functions over
// already-built traces: missing data degrades the output, it never fails.
package analysis

import (
	"fmt"

	"github.com/csnp/qbom/internal/trace"
)

// =============================================================================
// REPRODUCIBILITY SCORE WEIGHTS
// =============================================================================
// Each category contributes a fixed number of points to the 0-100 total:
// - Environment (20): software versions
// - Circuit (20): circuit definition
// - Transpilation (15): how the circuit was compiled
// - Hardware (25): backend and calibration, the most important for real hardware
// - Execution (10): run parameters
// - Results (10): output verification

const (
	EnvironmentMaxPoints   = 20
	CircuitMaxPoints       = 20
	TranspilationMaxPoints = 15
	HardwareMaxPoints      = 25
	ExecutionMaxPoints     = 10
	ResultsMaxPoints       = 10

	// A component is "complete" at or above its near-max threshold.
	environmentCompleteAt   = 18
	circuitCompleteAt       = 18
	transpilationCompleteAt = 13
	hardwareCompleteAt      = 22
	executionCompleteAt     = 8
	resultsCompleteAt       = 8

	// ReproducibleThreshold is the overall percentage at or above which a
	// trace counts as reproducible.
	ReproducibleThreshold = 70.0
)

// ComponentStatus describes how complete one score component is.
type ComponentStatus string

const (
	StatusComplete ComponentStatus = "complete"
	StatusPartial  ComponentStatus = "partial"
	StatusMissing  ComponentStatus = "missing"
)

// ScoreComponent is a single category of the reproducibility score.
type ScoreComponent struct {
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	MaxPoints    int             `json:"max_points"`
	EarnedPoints int             `json:"earned_points"`
	Status       ComponentStatus `json:"status"`
}

// Percentage returns the component's earned fraction as a percentage.
func (c ScoreComponent) Percentage() float64 {
	if c.MaxPoints == 0 {
		return 100.0
	}
	return float64(c.EarnedPoints) / float64(c.MaxPoints) * 100
}

// Score is the complete reproducibility score for a trace.
//
// Grade bands on the overall percentage:
//
//	>= 90 Excellent, >= 70 Good, >= 50 Fair, >= 25 Poor, else Critical.
type Score struct {
	TotalScore      int              `json:"total_score"`
	MaxScore        int              `json:"max_score"`
	Grade           string           `json:"grade"`
	Components      []ScoreComponent `json:"components"`
	Recommendations []string         `json:"recommendations"`
}

// Percentage returns the overall score as a percentage.
func (s Score) Percentage() float64 {
	if s.MaxScore == 0 {
		return 0
	}
	return float64(s.TotalScore) / float64(s.MaxScore) * 100
}

// IsReproducible reports whether the score is Good or better.
func (s Score) IsReproducible() bool {
	return s.Percentage() >= ReproducibleThreshold
}

// Summary returns a human-readable one-liner, e.g. "82/100 (Good)".
func (s Score) Summary() string {
	return fmt.Sprintf("%d/%d (%s)", s.TotalScore, s.MaxScore, s.Grade)
}

func componentStatus(points, completeAt int) ComponentStatus {
	switch {
	case points >= completeAt:
		return StatusComplete
	case points > 0:
		return StatusPartial
	default:
		return StatusMissing
	}
}

// ComputeScore computes the reproducibility score for a trace, with a
// detailed breakdown of what was captured and what is missing. Missing
// data lowers the score and appends recommendations; it never errors.
func ComputeScore(t trace.Trace) Score {
	var components []ScoreComponent
	var recommendations []string

	// Environment (20 points)
	envPoints := 0
	var envStatus ComponentStatus
	if t.Environment != nil {
		env := t.Environment

		// Runtime version (5 points)
		if env.Runtime != "" {
			envPoints += 5
		}

		// Quantum SDK detected (8 points)
		if _, ok := env.QuantumSDK(); ok {
			envPoints += 8
		} else {
			recommendations = append(recommendations, "Install a quantum SDK (qiskit, cirq, pennylane) for better tracking")
		}

		// Multiple packages tracked (7 points)
		switch {
		case len(env.Packages) >= 3:
			envPoints += 7
		case len(env.Packages) >= 1:
			envPoints += 4
		default:
			recommendations = append(recommendations, "Package versions not captured - reproducibility limited")
		}

		envStatus = componentStatus(envPoints, environmentCompleteAt)
	} else {
		envStatus = StatusMissing
		recommendations = append(recommendations, "No environment captured - cannot reproduce software setup")
	}
	components = append(components, ScoreComponent{
		Name:         "Environment",
		Category:     "Software",
		MaxPoints:    EnvironmentMaxPoints,
		EarnedPoints: envPoints,
		Status:       envStatus,
	})

	// Circuit (20 points)
	circuitPoints := 0
	var circuitStatus ComponentStatus
	if len(t.Circuits) > 0 {
		c := t.Circuits[0]

		// Basic circuit info (8 points)
		if c.NumQubits > 0 && c.Depth > 0 {
			circuitPoints += 8
		}

		// Gate counts (5 points)
		if c.Gates.Total > 0 {
			circuitPoints += 5
		}

		// Circuit hash for verification (4 points)
		if c.Hash != "" {
			circuitPoints += 4
		}

		// QASM or JSON representation (3 points)
		if c.QASM != nil || c.JSONRepr != nil {
			circuitPoints += 3
		} else {
			recommendations = append(recommendations, "Consider storing QASM for exact circuit reproduction")
		}

		circuitStatus = componentStatus(circuitPoints, circuitCompleteAt)
	} else {
		circuitStatus = StatusMissing
		recommendations = append(recommendations, "No circuit captured - the core of your experiment is missing")
	}
	components = append(components, ScoreComponent{
		Name:         "Circuit",
		Category:     "Quantum Program",
		MaxPoints:    CircuitMaxPoints,
		EarnedPoints: circuitPoints,
		Status:       circuitStatus,
	})

	// Transpilation (15 points)
	transpPoints := 0
	var transpStatus ComponentStatus
	if t.Transpilation != nil {
		tr := t.Transpilation

		// Optimization level (4 points)
		if tr.OptimizationLevel != nil {
			transpPoints += 4
		}

		// Layout/routing methods (4 points)
		if tr.LayoutMethod != nil || tr.RoutingMethod != nil {
			transpPoints += 4
		}

		// Qubit mapping (4 points), critical for reproduction
		if tr.FinalLayout != nil {
			transpPoints += 4
		} else {
			recommendations = append(recommendations, "Qubit mapping not captured - results depend on physical qubit assignment")
		}

		// Before/after circuit comparison (3 points)
		if tr.InputCircuit != nil && tr.OutputCircuit != nil {
			transpPoints += 3
		}

		transpStatus = componentStatus(transpPoints, transpilationCompleteAt)
	} else {
		transpStatus = StatusMissing
		// Not always applicable: simulators legitimately skip transpilation.
		if t.Hardware != nil && !t.Hardware.IsSimulator {
			recommendations = append(recommendations, "Transpilation not captured - critical for hardware experiments")
		}
	}
	components = append(components, ScoreComponent{
		Name:         "Transpilation",
		Category:     "Circuit Compilation",
		MaxPoints:    TranspilationMaxPoints,
		EarnedPoints: transpPoints,
		Status:       transpStatus,
	})

	// Hardware (25 points), most important for real hardware
	hwPoints := 0
	var hwStatus ComponentStatus
	if t.Hardware != nil {
		h := t.Hardware

		// Backend identification (6 points)
		if h.Backend != "" {
			hwPoints += 6
		}

		// Provider (3 points)
		if h.Provider != "" {
			hwPoints += 3
		}

		// Qubits used (4 points)
		if len(h.QubitsUsed) > 0 {
			hwPoints += 4
		} else if !h.IsSimulator {
			recommendations = append(recommendations, "Physical qubits not recorded - critical for reproduction")
		}

		// Calibration data (12 points): timestamp 3, qubit properties 5, gate errors 4
		if h.Calibration != nil {
			cal := h.Calibration
			if !cal.Timestamp.IsZero() {
				hwPoints += 3
			}
			if len(cal.Qubits) > 0 {
				hwPoints += 5
			}
			if len(cal.Gates) > 0 {
				hwPoints += 4
			}
		} else if !h.IsSimulator {
			recommendations = append(recommendations,
				"No calibration snapshot - hardware state changes daily, reproduction without this is nearly impossible")
		}

		hwStatus = componentStatus(hwPoints, hardwareCompleteAt)
	} else {
		hwStatus = StatusMissing
		recommendations = append(recommendations, "No hardware information - cannot determine where experiment ran")
	}
	components = append(components, ScoreComponent{
		Name:         "Hardware",
		Category:     "Backend & Calibration",
		MaxPoints:    HardwareMaxPoints,
		EarnedPoints: hwPoints,
		Status:       hwStatus,
	})

	// Execution (10 points)
	execPoints := 0
	var execStatus ComponentStatus
	if t.Execution != nil {
		e := t.Execution

		// Shots (5 points)
		if e.Shots > 0 {
			execPoints += 5
		}

		// Job ID for traceability (2 points)
		if e.JobID != nil {
			execPoints += 2
		}

		// Timing info (3 points)
		if e.SubmittedAt != nil || e.CompletedAt != nil {
			execPoints += 3
		}

		execStatus = componentStatus(execPoints, executionCompleteAt)
	} else {
		execStatus = StatusMissing
		recommendations = append(recommendations, "Execution parameters not captured")
	}
	components = append(components, ScoreComponent{
		Name:         "Execution",
		Category:     "Run Parameters",
		MaxPoints:    ExecutionMaxPoints,
		EarnedPoints: execPoints,
		Status:       execStatus,
	})

	// Results (10 points)
	resultPoints := 0
	var resultStatus ComponentStatus
	if t.Result != nil {
		r := t.Result

		// Counts captured (5 points)
		if len(r.Counts.Raw) > 0 {
			resultPoints += 5
		}

		// Result hash for verification (3 points)
		if r.Hash != "" {
			resultPoints += 3
		}

		// Metadata (2 points)
		if len(r.Metadata) > 0 {
			resultPoints += 2
		}

		resultStatus = componentStatus(resultPoints, resultsCompleteAt)
	} else {
		resultStatus = StatusMissing
		recommendations = append(recommendations, "No results captured - cannot verify reproduction")
	}
	components = append(components, ScoreComponent{
		Name:         "Results",
		Category:     "Output Verification",
		MaxPoints:    ResultsMaxPoints,
		EarnedPoints: resultPoints,
		Status:       resultStatus,
	})

	// Final score
	totalScore := 0
	maxScore := 0
	for _, c := range components {
		totalScore += c.EarnedPoints
		maxScore += c.MaxPoints
	}
	percentage := float64(totalScore) / float64(maxScore) * 100

	var grade string
	switch {
	case percentage >= 90:
		grade = "Excellent"
	case percentage >= 70:
		grade = "Good"
	case percentage >= 50:
		grade = "Fair"
	case percentage >= 25:
		grade = "Poor"
	default:
		grade = "Critical"
	}

	return Score{
		TotalScore:      totalScore,
		MaxScore:        maxScore,
		Grade:           grade,
		Components:      components,
		Recommendations: recommendations,
	}
}
