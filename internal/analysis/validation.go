package analysis

import (
	"fmt"
	"strings"

	"github.com/csnp/qbom/internal/trace"
)

// ValidationLevel is the severity of a validation issue.
type ValidationLevel string

const (
	// LevelError must be fixed; it blocks reproducibility.
	LevelError ValidationLevel = "error"
	// LevelWarning should be fixed; it reduces reproducibility.
	LevelWarning ValidationLevel = "warning"
	// LevelInfo is nice to have; it improves documentation.
	LevelInfo ValidationLevel = "info"
)

// ValidationIssue is a single problem found in a trace. Every issue
// carries an actionable fix; that text is part of the contract, not
// just a classification.
type ValidationIssue struct {
	Level    ValidationLevel `json:"level"`
	Category string          `json:"category"`
	Message  string          `json:"message"`
	Fix      string          `json:"fix"`
}

// ValidationResult is the complete validation outcome for a trace.
type ValidationResult struct {
	IsValid    bool              `json:"is_valid"`    // No errors (warnings/info ok)
	IsComplete bool              `json:"is_complete"` // No errors or warnings
	Issues     []ValidationIssue `json:"issues"`
	Summary    string            `json:"summary"`
}

// ErrorCount returns the number of error-level issues.
func (r ValidationResult) ErrorCount() int { return r.countLevel(LevelError) }

// WarningCount returns the number of warning-level issues.
func (r ValidationResult) WarningCount() int { return r.countLevel(LevelWarning) }

// InfoCount returns the number of info-level issues.
func (r ValidationResult) InfoCount() int { return r.countLevel(LevelInfo) }

func (r ValidationResult) countLevel(level ValidationLevel) int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Level == level {
			count++
		}
	}
	return count
}

// ValidateTrace checks a trace for completeness and correctness, walking
// it section by section and emitting categorized issues with guidance.
func ValidateTrace(t trace.Trace) ValidationResult {
	var issues []ValidationIssue

	issues = append(issues, validateEnvironment(t)...)
	issues = append(issues, validateCircuits(t)...)
	issues = append(issues, validateTranspilation(t)...)
	issues = append(issues, validateHardware(t)...)
	issues = append(issues, validateExecution(t)...)
	issues = append(issues, validateResult(t)...)

	return summarizeValidation(issues, false)
}

func validateEnvironment(t trace.Trace) []ValidationIssue {
	if t.Environment == nil {
		return []ValidationIssue{{
			Level:    LevelError,
			Category: "Environment",
			Message:  "No environment captured",
			Fix:      "Start a capture session before running your experiment. The session automatically captures the software environment.",
		}}
	}

	var issues []ValidationIssue
	env := t.Environment

	if env.Runtime == "" {
		issues = append(issues, ValidationIssue{
			Level:    LevelError,
			Category: "Environment",
			Message:  "Runtime version not captured",
			Fix:      "This should be automatic. Check that the session initialized correctly.",
		})
	}

	if _, ok := env.QuantumSDK(); !ok {
		issues = append(issues, ValidationIssue{
			Level:    LevelWarning,
			Category: "Environment",
			Message:  "No quantum SDK detected",
			Fix:      "Install a quantum SDK (qiskit, cirq, pennylane) before running.",
		})
	}

	switch {
	case len(env.Packages) == 0:
		issues = append(issues, ValidationIssue{
			Level:    LevelWarning,
			Category: "Environment",
			Message:  "No package versions captured",
			Fix:      "Package capture should be automatic. Verify the capture installation.",
		})
	case len(env.Packages) < 3:
		issues = append(issues, ValidationIssue{
			Level:    LevelInfo,
			Category: "Environment",
			Message:  "Few packages captured - environment may be incomplete",
			Fix:      "Consider capturing more dependencies for better reproducibility.",
		})
	}

	return issues
}

func validateCircuits(t trace.Trace) []ValidationIssue {
	if len(t.Circuits) == 0 {
		return []ValidationIssue{{
			Level:    LevelError,
			Category: "Circuit",
			Message:  "No circuits captured",
			Fix:      "Ensure your quantum circuit is defined before execution. Circuits are captured during transpilation or execution.",
		}}
	}

	var issues []ValidationIssue
	circuit := t.Circuits[0]

	if circuit.NumQubits == 0 {
		issues = append(issues, ValidationIssue{
			Level:    LevelError,
			Category: "Circuit",
			Message:  "Circuit has 0 qubits",
			Fix:      "Your circuit appears empty. Verify circuit construction.",
		})
	}

	if circuit.Hash == "" {
		issues = append(issues, ValidationIssue{
			Level:    LevelWarning,
			Category: "Circuit",
			Message:  "Circuit hash not computed",
			Fix:      "Circuit verification requires a hash. Check circuit capture.",
		})
	}

	if circuit.QASM == nil && circuit.JSONRepr == nil {
		issues = append(issues, ValidationIssue{
			Level:    LevelInfo,
			Category: "Circuit",
			Message:  "No QASM or JSON representation stored",
			Fix:      "Consider storing QASM for exact circuit reproduction.",
		})
	}

	if circuit.Gates.Total == 0 {
		issues = append(issues, ValidationIssue{
			Level:    LevelWarning,
			Category: "Circuit",
			Message:  "Circuit has no gates",
			Fix:      "An empty circuit won't produce meaningful results.",
		})
	}

	return issues
}

func validateTranspilation(t trace.Trace) []ValidationIssue {
	// Transpilation is only required for real hardware; simulators skip it.
	if t.Hardware == nil || t.Hardware.IsSimulator {
		return nil
	}

	if t.Transpilation == nil {
		return []ValidationIssue{{
			Level:    LevelError,
			Category: "Transpilation",
			Message:  "No transpilation captured for hardware execution",
			Fix:      "Transpilation is critical for reproducibility. Transpile the circuit for the target backend before execution.",
		}}
	}

	var issues []ValidationIssue
	transp := t.Transpilation

	if transp.OptimizationLevel == nil {
		issues = append(issues, ValidationIssue{
			Level:    LevelWarning,
			Category: "Transpilation",
			Message:  "Optimization level not recorded",
			Fix:      "Specify the optimization level when transpiling.",
		})
	}

	if transp.FinalLayout == nil {
		issues = append(issues, ValidationIssue{
			Level:    LevelError,
			Category: "Transpilation",
			Message:  "Final qubit layout not captured",
			Fix:      "The physical qubit mapping is essential for reproduction. Ensure transpilation output includes layout information.",
		})
	}

	return issues
}

func validateHardware(t trace.Trace) []ValidationIssue {
	if t.Hardware == nil {
		return []ValidationIssue{{
			Level:    LevelError,
			Category: "Hardware",
			Message:  "No hardware information captured",
			Fix:      "Ensure you execute on a backend. Hardware information is captured when the job is submitted.",
		}}
	}

	var issues []ValidationIssue
	hw := t.Hardware

	if hw.Backend == "" {
		issues = append(issues, ValidationIssue{
			Level:    LevelError,
			Category: "Hardware",
			Message:  "Backend name not captured",
			Fix:      "Backend identification is required for reproduction.",
		})
	}

	if !hw.IsSimulator {
		// Real hardware requires additional information.
		if len(hw.QubitsUsed) == 0 {
			issues = append(issues, ValidationIssue{
				Level:    LevelError,
				Category: "Hardware",
				Message:  "Physical qubits not recorded",
				Fix:      "For real hardware, knowing which physical qubits were used is essential. Check transpilation output.",
			})
		}

		if hw.Calibration == nil {
			issues = append(issues, ValidationIssue{
				Level:    LevelError,
				Category: "Hardware",
				Message:  "No calibration snapshot captured",
				Fix:      "Calibration data is the most critical piece for hardware reproducibility. Hardware properties change daily. Without this, reproduction is nearly impossible.",
			})
		} else {
			cal := hw.Calibration

			if cal.Timestamp.IsZero() {
				issues = append(issues, ValidationIssue{
					Level:    LevelWarning,
					Category: "Hardware",
					Message:  "Calibration timestamp missing",
					Fix:      "Record when calibration data was captured.",
				})
			}

			if len(cal.Qubits) == 0 {
				issues = append(issues, ValidationIssue{
					Level:    LevelWarning,
					Category: "Hardware",
					Message:  "No qubit properties in calibration",
					Fix:      "Capture T1, T2, and readout error for used qubits.",
				})
			}

			if len(cal.Gates) == 0 {
				issues = append(issues, ValidationIssue{
					Level:    LevelWarning,
					Category: "Hardware",
					Message:  "No gate errors in calibration",
					Fix:      "Capture gate error rates for used gates.",
				})
			}
		}
	}

	return issues
}

func validateExecution(t trace.Trace) []ValidationIssue {
	if t.Execution == nil {
		return []ValidationIssue{{
			Level:    LevelWarning,
			Category: "Execution",
			Message:  "No execution parameters captured",
			Fix:      "Execution parameters (shots, timing) help with reproduction.",
		}}
	}

	var issues []ValidationIssue
	exe := t.Execution

	if exe.Shots == 0 {
		issues = append(issues, ValidationIssue{
			Level:    LevelError,
			Category: "Execution",
			Message:  "Shot count not recorded",
			Fix:      "The number of shots directly affects result statistics. Specify shots when submitting the job.",
		})
	}

	if exe.JobID == nil {
		issues = append(issues, ValidationIssue{
			Level:    LevelInfo,
			Category: "Execution",
			Message:  "Job ID not captured",
			Fix:      "Job IDs enable traceability to cloud provider records.",
		})
	}

	return issues
}

func validateResult(t trace.Trace) []ValidationIssue {
	if t.Result == nil {
		return []ValidationIssue{{
			Level:    LevelWarning,
			Category: "Results",
			Message:  "No results captured",
			Fix:      "Results allow verification of reproduction attempts. Wait for the job result before exporting the trace.",
		}}
	}

	var issues []ValidationIssue
	res := t.Result

	if len(res.Counts.Raw) == 0 {
		issues = append(issues, ValidationIssue{
			Level:    LevelWarning,
			Category: "Results",
			Message:  "No measurement counts captured",
			Fix:      "Capture the raw counts from the job result.",
		})
	}

	if res.Hash == "" {
		issues = append(issues, ValidationIssue{
			Level:    LevelInfo,
			Category: "Results",
			Message:  "Result hash not computed",
			Fix:      "Result hashes enable tamper detection.",
		})
	}

	return issues
}

// ValidateForPublication performs the base validation plus stricter
// publication checks: metadata name/description presence, and a circuit
// textual representation upgraded from info to warning severity.
func ValidateForPublication(t trace.Trace) ValidationResult {
	base := ValidateTrace(t)
	issues := append([]ValidationIssue(nil), base.Issues...)

	if t.Metadata.Name == nil {
		issues = append(issues, ValidationIssue{
			Level:    LevelWarning,
			Category: "Metadata",
			Message:  "Experiment name not set",
			Fix:      "Add a descriptive name for your experiment.",
		})
	}

	if t.Metadata.Description == nil {
		issues = append(issues, ValidationIssue{
			Level:    LevelInfo,
			Category: "Metadata",
			Message:  "No experiment description",
			Fix:      "Add a description explaining the experiment purpose.",
		})
	}

	if len(t.Circuits) > 0 {
		circuit := t.Circuits[0]
		if circuit.QASM == nil && circuit.JSONRepr == nil {
			// Upgrade the missing-representation issue from info to warning.
			filtered := issues[:0]
			for _, issue := range issues {
				if issue.Category == "Circuit" && strings.Contains(issue.Message, "QASM") {
					continue
				}
				filtered = append(filtered, issue)
			}
			issues = append(filtered, ValidationIssue{
				Level:    LevelWarning,
				Category: "Circuit",
				Message:  "No circuit representation for exact reproduction",
				Fix:      "Store the QASM or JSON representation for publication. This allows others to recreate your exact circuit.",
			})
		}
	}

	return summarizeValidation(issues, true)
}

func summarizeValidation(issues []ValidationIssue, publication bool) ValidationResult {
	errorCount := 0
	warningCount := 0
	infoCount := 0
	for _, issue := range issues {
		switch issue.Level {
		case LevelError:
			errorCount++
		case LevelWarning:
			warningCount++
		case LevelInfo:
			infoCount++
		}
	}

	isValid := errorCount == 0
	isComplete := errorCount == 0 && warningCount == 0

	var summary string
	if publication {
		switch {
		case isComplete:
			summary = "Trace is ready for publication"
		case isValid:
			summary = fmt.Sprintf("Trace has %d warning(s) to address before publication", warningCount)
		default:
			summary = fmt.Sprintf("Trace has %d error(s) that block publication", errorCount)
		}
	} else {
		switch {
		case isComplete && infoCount == 0:
			summary = "Trace is complete and ready for publication"
		case isComplete:
			summary = fmt.Sprintf("Trace is valid with %d suggestion(s)", infoCount)
		case isValid:
			summary = fmt.Sprintf("Trace is valid but has %d warning(s)", warningCount)
		default:
			summary = fmt.Sprintf("Trace has %d error(s) that must be fixed", errorCount)
		}
	}

	return ValidationResult{
		IsValid:    isValid,
		IsComplete: isComplete,
		Issues:     issues,
		Summary:    summary,
	}
}
