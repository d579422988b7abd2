package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bft-labs/seqharness/internal/adapters/fs"
	"github.com/bft-labs/seqharness/internal/adapters/process"
	"github.com/bft-labs/seqharness/internal/adapters/socket"
	"github.com/bft-labs/seqharness/internal/app"
	"github.com/bft-labs/seqharness/internal/cliconfig"
	"github.com/bft-labs/seqharness/internal/compiler"
	"github.com/bft-labs/seqharness/internal/domain"
	"github.com/bft-labs/seqharness/internal/metrics"
	"github.com/bft-labs/seqharness/internal/ports"
	"github.com/bft-labs/seqharness/internal/suite"
	"github.com/bft-labs/seqharness/pkg/log"
)

func newTestCmd(ro *rootOptions) *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var filters []string

	cmd := &cobra.Command{
		Use:   "test <suite.yaml>",
		Short: "Run a test suite against the server or a managed simulator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ro.load(cmd, &cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			h := newHarness(cfg, logger, nil)
			report, err := h.runSuiteFile(ctx, args[0], filters)
			if err != nil {
				return err
			}
			if err := writeReport(cmd.OutOrStdout(), report, ro.format); err != nil {
				return err
			}
			if code := report.ExitCode(); code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}

	addHarnessFlags(cmd.Flags(), &cfg)
	cmd.Flags().StringSliceVar(&filters, "filter", nil, "only run cases whose name matches one of these globs")
	return cmd
}

// harness wires the orchestrator and its adapters from a validated config.
type harness struct {
	cfg     cliconfig.Config
	logger  log.Logger
	metrics *metrics.HarnessMetrics
	runner  *app.Runner
}

func newHarness(cfg cliconfig.Config, logger log.Logger, m *metrics.HarnessMetrics) *harness {
	if m == nil {
		m = metrics.NewHarnessMetrics(nil)
	}

	opts := app.Options{
		Addr:           cfg.Addr,
		SimulatorPath:  cfg.SimulatorPath,
		SimulatorArgs:  cfg.SimulatorArgs,
		TraceCSV:       cfg.TraceCSV,
		ConnectTimeout: cfg.ConnectTimeout,
		ExitTimeout:    cfg.ExitTimeout,
	}
	if cfg.FSTDump {
		opts.TraceFST = cfg.TraceFST
	}

	dialer := socket.Dialer{Options: socket.Options{Logger: logger}}
	orch := app.NewOrchestrator(opts, ports.CompilerFunc(compiler.Compile), dialer, process.NewManager(logger), logger, m)
	reports := fs.NewReportFileRepository(cfg.ReportDir)

	return &harness{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		runner:  app.NewRunner(orch, reports, m, logger),
	}
}

// runSuiteFile loads a suite, runs the selected cases and exports metrics.
// Errors mean the suite could not run at all; case verdicts are in the report.
func (h *harness) runSuiteFile(ctx context.Context, path string, filters []string) (domain.Report, error) {
	s, err := suite.Load(path)
	if err != nil {
		return domain.Report{}, err
	}
	if s.Defaults.Board == "" {
		s.Defaults.Board = h.cfg.Board
	}
	if s.Defaults.Compare == "" {
		s.Defaults.Compare = h.cfg.CompareMode
	}

	cases, err := s.Select(filters)
	if err != nil {
		return domain.Report{}, err
	}
	tcs, err := s.TestContexts(cases)
	if err != nil {
		return domain.Report{}, err
	}

	report, err := h.runner.RunSuite(ctx, s.Name, tcs)
	if err != nil {
		// the run itself finished; a lost report file is not a verdict
		h.logger.Error("save report", log.Err(err))
	}
	if h.cfg.MetricsFile != "" {
		if err := h.metrics.WriteTextfile(h.cfg.MetricsFile); err != nil {
			h.logger.Error("write metrics", log.String("path", h.cfg.MetricsFile), log.Err(err))
		}
	}
	return report, nil
}

// printReport writes r and logs, rather than returns, output errors.
func (h *harness) printReport(w io.Writer, r domain.Report, format string) {
	if err := writeReport(w, r, format); err != nil {
		h.logger.Error("write report", log.Err(err))
	}
}
