package domain

import "fmt"

// ExitOutcome is what waiting for the simulator produced.
type ExitOutcome struct {
	TimedOut bool
	Code     int
}

// Graceful reports a zero exit code within the timeout.
func (o ExitOutcome) Graceful() bool {
	return !o.TimedOut && o.Code == 0
}

func (o ExitOutcome) String() string {
	if o.TimedOut {
		return "timed out"
	}
	return fmt.Sprintf("exited(%d)", o.Code)
}
