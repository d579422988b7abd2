package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/bft-labs/seqharness/internal/domain"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// writeReport renders a run report.
func writeReport(w io.Writer, r domain.Report, format string) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	return writeTextReport(w, r)
}

func writeTextReport(w io.Writer, r domain.Report) error {
	if _, err := fmt.Fprintf(w, "suite %s (run %s)\n", r.Suite, r.RunID); err != nil {
		return err
	}
	for _, c := range r.Cases {
		fmt.Fprintf(w, "%-5s %s (%dms)\n", statusLabel(c.Status), c.Name, c.DurationMS)
		if c.Error != "" {
			fmt.Fprintf(w, "      %s\n", c.Error)
		}
		for _, m := range c.Messages.Warnings {
			fmt.Fprintf(w, "      server warning: %s\n", m)
		}
		for _, m := range c.Messages.Errors {
			fmt.Fprintf(w, "      server error: %s\n", m)
		}
	}
	s := r.Summary
	_, err := fmt.Fprintf(w, "%d cases: %d passed, %d failed, %d errored\n", s.Total, s.Passed, s.Failed, s.Errored)
	return err
}

func statusLabel(s domain.Status) string {
	switch s {
	case domain.StatusPassed:
		return "PASS"
	case domain.StatusFailed:
		return "FAIL"
	default:
		return "ERROR"
	}
}
