package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/seqharness/internal/cliconfig"
	"github.com/bft-labs/seqharness/pkg/log"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	cfgPath string
	verbose bool
	format  string
	stderr  io.Writer
}

// load layers discovered config files, --config, SEQHARNESS_* variables and
// the flags the user set onto cfg, validates it and returns the logger.
func (ro *rootOptions) load(cmd *cobra.Command, cfg *cliconfig.Config) (log.Logger, error) {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	logger := log.NewConsoleLogger(ro.stderr, ro.verbose)
	if _, err := cliconfig.ApplyConfigFiles(cfg, cliconfig.DiscoverFiles(cliconfig.SearchDirs()), ro.cfgPath, changed, logger); err != nil {
		return nil, err
	}
	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if ro.format != formatText && ro.format != formatJSON {
		return nil, fmt.Errorf("unknown format %q (want %s or %s)", ro.format, formatText, formatJSON)
	}

	if cfg.Verbose && !ro.verbose {
		logger = log.NewConsoleLogger(ro.stderr, true)
	}
	logger.Debug("configuration",
		log.String("addr", cfg.Addr),
		log.String("simulator", cfg.SimulatorPath),
		log.Strings("simulator_args", cfg.SimulatorArgs),
		log.String("trace_csv", cfg.TraceCSV),
		log.String("board", cfg.Board),
		log.String("compare", cfg.CompareMode),
	)
	return logger, nil
}

// addServerFlags binds the flags that locate the server.
func addServerFlags(fs *pflag.FlagSet, cfg *cliconfig.Config) {
	fs.StringVar(&cfg.Host, "host", cfg.Host, "server host name or IP address")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "server TCP port")
}

// addHarnessFlags binds the flags used by commands that run sequences.
func addHarnessFlags(fs *pflag.FlagSet, cfg *cliconfig.Config) {
	addServerFlags(fs, cfg)

	fs.StringVar(&cfg.SimulatorPath, "simulator", cfg.SimulatorPath, "simulator executable to start per case (empty: use a running server)")
	fs.StringSliceVar(&cfg.SimulatorArgs, "sim-args", cfg.SimulatorArgs, "simulator arguments; {csv} {fst} {port} {addr} {board} are substituted")
	fs.StringVar(&cfg.TraceCSV, "trace-csv", cfg.TraceCSV, "CSV trace written by the simulator (empty: use the reply trace)")
	fs.StringVar(&cfg.TraceFST, "trace-fst", cfg.TraceFST, "FST waveform path passed to the simulator")
	fs.BoolVar(&cfg.FSTDump, "fst-dump", cfg.FSTDump, "ask the simulator to dump an FST waveform")

	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "how long to keep dialling a starting simulator")
	fs.DurationVar(&cfg.ExitTimeout, "exit-timeout", cfg.ExitTimeout, "how long to wait for the simulator to exit after shutdown")
	fs.StringVar(&cfg.Board, "board", cfg.Board, "default grad board for cases that do not set one")
	fs.StringVar(&cfg.CompareMode, "compare", cfg.CompareMode, "default compare mode: numeric or text")

	fs.StringVar(&cfg.ReportDir, "report-dir", cfg.ReportDir, "directory for the latest run report")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "write Prometheus textfile metrics here after each run")
}
