package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bft-labs/seqharness/internal/adapters/fs"
	"github.com/bft-labs/seqharness/internal/cliconfig"
	"github.com/bft-labs/seqharness/internal/compare"
	"github.com/bft-labs/seqharness/internal/domain"
)

func newCompareCmd(ro *rootOptions) *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var mode string

	cmd := &cobra.Command{
		Use:   "compare <reference.csv> <actual.csv>",
		Short: "Compare two trace files",
		Long: `Compare two trace files.

The numeric mode parses both files, shifts every row after the first so the
first change lands on tick zero, and compares the rows. The text mode
compares the lines after the header verbatim. Exits 1 on a mismatch.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ro.load(cmd, &cfg); err != nil {
				return err
			}
			if mode != "" {
				cfg.CompareMode = mode
			}
			strategy, err := compare.Select(cfg.CompareMode)
			if err != nil {
				return err
			}
			res, err := strategy.Compare(fs.File(args[0]), fs.File(args[1]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printCompareResult(out, res, args[0], args[1], cfg.FPGAClkFreqMHz)
			if !res.Match {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "compare mode: numeric or text (default from configuration, else numeric)")
	return cmd
}

func printCompareResult(w io.Writer, res compare.Result, refName, actName string, clkMHz float64) {
	if res.Strategy == compare.ModeNumeric {
		fmt.Fprintf(w, "reference %s: %s\n", refName, traceSpan(res.Reference, clkMHz))
		fmt.Fprintf(w, "actual    %s: %s\n", actName, traceSpan(res.Actual, clkMHz))
	} else {
		fmt.Fprintf(w, "reference %s: %d lines\n", refName, len(res.ReferenceLines))
		fmt.Fprintf(w, "actual    %s: %d lines\n", actName, len(res.ActualLines))
	}
	if res.Match {
		fmt.Fprintf(w, "traces match (%s)\n", res.Strategy)
		return
	}
	fmt.Fprintf(w, "traces differ (%s): %s\n", res.Strategy, res.Divergence)
}

// traceSpan describes a normalized trace: its row count and the time from
// the first change to the last row at the given clock.
func traceSpan(t domain.Trace, clkMHz float64) string {
	if len(t) < 2 || clkMHz <= 0 {
		return fmt.Sprintf("%d rows", len(t))
	}
	ticks := t[len(t)-1].Timestamp
	return fmt.Sprintf("%d rows, %d ticks, %.3f us", len(t), ticks, float64(ticks)/clkMHz)
}
