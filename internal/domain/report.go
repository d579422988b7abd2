package domain

import "time"

// CaseReport is the serializable form of an Outcome.
type CaseReport struct {
	Name       string      `json:"name"`
	Status     Status      `json:"status"`
	Stage      string      `json:"stage"`
	Error      string      `json:"error,omitempty"`
	Divergence *Divergence `json:"divergence,omitempty"`
	Messages   Messages    `json:"messages"`
	DurationMS int64       `json:"duration_ms"`
}

// NewCaseReport flattens an outcome for reporting.
func NewCaseReport(o Outcome) CaseReport {
	cr := CaseReport{
		Name:       o.Case,
		Status:     o.Status,
		Stage:      o.Stage.String(),
		Divergence: o.Divergence,
		Messages:   o.Messages,
		DurationMS: o.Duration.Milliseconds(),
	}
	if o.Err != nil {
		cr.Error = o.Err.Error()
	}
	return cr
}

// Summary counts case verdicts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
}

// Report is the result of one suite run. Only the latest report is kept.
type Report struct {
	RunID    string       `json:"run_id"`
	Suite    string       `json:"suite"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Cases    []CaseReport `json:"cases"`
	Summary  Summary      `json:"summary"`
}

// Add appends a case and updates the summary.
func (r *Report) Add(o Outcome) {
	r.Cases = append(r.Cases, NewCaseReport(o))
	r.Summary.Total++
	switch o.Status {
	case StatusPassed:
		r.Summary.Passed++
	case StatusFailed:
		r.Summary.Failed++
	default:
		r.Summary.Errored++
	}
}

// ExitCode maps the summary to a process exit code:
// 0 all passed, 1 some failed, 2 some errored.
func (r *Report) ExitCode() int {
	switch {
	case r.Summary.Errored > 0:
		return 2
	case r.Summary.Failed > 0:
		return 1
	default:
		return 0
	}
}
