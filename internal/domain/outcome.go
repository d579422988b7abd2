package domain

import (
	"fmt"
	"time"
)

// Stage is a state of the per-case orchestration state machine.
type Stage int

const (
	StageIdle Stage = iota
	StageCompiling
	StageConnected
	StageRunning
	StageShutdownRequested
	StageAwaitingExit
	StageComparing
	StagePassed
	StageFailed
	StageErrored
)

// String returns a human-readable representation of the stage.
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "Idle"
	case StageCompiling:
		return "Compiling"
	case StageConnected:
		return "Connected"
	case StageRunning:
		return "Running"
	case StageShutdownRequested:
		return "ShutdownRequested"
	case StageAwaitingExit:
		return "AwaitingExit"
	case StageComparing:
		return "Comparing"
	case StagePassed:
		return "Passed"
	case StageFailed:
		return "Failed"
	case StageErrored:
		return "Errored"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s Stage) Terminal() bool {
	return s == StagePassed || s == StageFailed || s == StageErrored
}

// Status is the verdict of a test case.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	StatusErrored
)

// String returns the lower-case status name used in reports.
func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// MarshalText renders the status for JSON reports.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status written by MarshalText.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "passed":
		*s = StatusPassed
	case "failed":
		*s = StatusFailed
	case "errored":
		*s = StatusErrored
	default:
		return fmt.Errorf("unknown status %q", b)
	}
	return nil
}

// Divergence locates the first difference between two traces.
// Column is -1 for whole-line (textual) or row-count differences.
type Divergence struct {
	Index     int    `json:"index"`
	Column    int    `json:"column"`
	Reference string `json:"reference"`
	Actual    string `json:"actual"`
}

// String renders the divergence for humans.
func (d Divergence) String() string {
	if d.Column >= 0 {
		return fmt.Sprintf("row %d column %d: reference %s, actual %s", d.Index, d.Column, d.Reference, d.Actual)
	}
	return fmt.Sprintf("row %d: reference %q, actual %q", d.Index, d.Reference, d.Actual)
}

// Outcome is the result of one orchestration run.
type Outcome struct {
	Case       string
	Status     Status
	Stage      Stage // last non-terminal stage reached
	Err        error
	Divergence *Divergence
	Messages   Messages
	Duration   time.Duration
}

// Passed reports whether the case passed.
func (o Outcome) Passed() bool { return o.Status == StatusPassed }
