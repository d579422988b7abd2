package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/seqharness/internal/cliconfig"
	"github.com/bft-labs/seqharness/internal/metrics"
	"github.com/bft-labs/seqharness/internal/suite"
	"github.com/bft-labs/seqharness/internal/watch"
	"github.com/bft-labs/seqharness/pkg/log"
)

func newWatchCmd(ro *rootOptions) *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var (
		filters  []string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <suite.yaml>",
		Short: "Run a suite and run it again whenever its files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// flag values only; files and env are layered again on every run
			base := cfg
			logger, err := ro.load(cmd, &cfg)
			if err != nil {
				return err
			}
			s, err := suite.Load(args[0])
			if err != nil {
				return err
			}
			files := append([]string{args[0]}, s.Files()...)
			if ro.cfgPath != "" {
				files = append(files, ro.cfgPath)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := metrics.NewHarnessMetrics(nil)
			out := cmd.OutOrStdout()
			job := func(ctx context.Context) {
				next := base
				runLogger, err := ro.load(cmd, &next)
				if err != nil {
					logger.Error("configuration not reloaded", log.Err(err))
					return
				}
				h := newHarness(next, runLogger, m)
				report, err := h.runSuiteFile(ctx, args[0], filters)
				if err != nil {
					runLogger.Error("suite not run", log.Err(err))
					return
				}
				h.printReport(out, report, ro.format)
			}

			w := watch.New(watch.Config{DebounceDelay: debounce}, logger)
			logger.Info("watching", log.Strings("files", files))
			return w.Run(ctx, files, job)
		},
	}

	addHarnessFlags(cmd.Flags(), &cfg)
	cmd.Flags().StringSliceVar(&filters, "filter", nil, "only run cases whose name matches one of these globs")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounceDelay, "quiet time after a change before running again")
	return cmd
}
