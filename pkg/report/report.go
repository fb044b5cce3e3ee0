// Package report defines the diagnostics collected while compiling a class.
// Reports are informational records; they never abort a pass by themselves.
package report

import "fmt"

// Stage identifies the compiler stage that produced a report
type Stage int

const (
	Parsing Stage = iota
	Optimization
	Generation
)

var stageNames = map[Stage]string{
	Parsing:      "parsing",
	Optimization: "optimization",
	Generation:   "generation",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Severity classifies a report
type Severity int

const (
	Error Severity = iota
	Warning
	Info
)

var severityNames = map[Severity]string{
	Error:   "error",
	Warning: "warning",
	Info:    "info",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Report is a single diagnostic
type Report struct {
	Stage    Stage
	Severity Severity
	Routine  string // method the report refers to, empty for class-level reports
	Message  string
}

// New creates an error-severity report
func New(stage Stage, routine, message string) Report {
	return Report{Stage: stage, Severity: Error, Routine: routine, Message: message}
}

func (r Report) String() string {
	if r.Routine == "" {
		return fmt.Sprintf("%s %s: %s", r.Stage, r.Severity, r.Message)
	}
	return fmt.Sprintf("%s %s in %s: %s", r.Stage, r.Severity, r.Routine, r.Message)
}

// HasErrors reports whether any report has error severity
func HasErrors(reports []Report) bool {
	for _, r := range reports {
		if r.Severity == Error {
			return true
		}
	}
	return false
}
