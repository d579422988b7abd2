package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bft-labs/seqharness/internal/cliconfig"
	"github.com/bft-labs/seqharness/internal/loopback"
	"github.com/bft-labs/seqharness/pkg/log"
)

func newLoopbackCmd(ro *rootOptions) *cobra.Command {
	cfg := loopback.Config{
		Addr:          fmt.Sprintf("%s:%d", cliconfig.DefaultHost, cliconfig.DefaultPort),
		StartupOffset: loopback.DefaultStartupOffset,
	}
	var behavior string

	cmd := &cobra.Command{
		Use:    "loopback [csv <trace.csv> | both <trace.csv> <trace.fst>]",
		Short:  "Run the reference simulator",
		Hidden: true,
		Long: `Run the reference simulator.

It accepts one connection at a time, turns every run_seq stream back into a
trace and writes it as CSV, then exits when a client sends shutdown. The
positional arguments follow the marga simulator's own convention so it can be
configured as the harness simulator.`,
		Args: func(cmd *cobra.Command, args []string) error {
			switch {
			case len(args) == 0:
				return nil
			case args[0] == "csv" && len(args) == 2:
				return nil
			case args[0] == "both" && len(args) == 3:
				return nil
			}
			return fmt.Errorf("want no arguments, csv <trace.csv> or both <trace.csv> <trace.fst>")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				cfg.CSVPath = args[1]
			}
			if len(args) == 3 {
				cfg.FSTPath = args[2]
			}
			b, err := loopback.ParseBehavior(behavior)
			if err != nil {
				return err
			}
			cfg.Behavior = b
			cfg.Logger = log.NewConsoleLogger(ro.stderr, ro.verbose)

			srv, err := loopback.New(cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	f.StringVar(&cfg.Board, "board", "", "grad board whose latencies are added back to output ticks")
	f.Uint32Var(&cfg.StartupOffset, "offset", cfg.StartupOffset, "tick of the first output row")
	f.BoolVar(&cfg.ReplyTrace, "reply-trace", false, "also return the trace in the run reply")
	f.StringVar(&behavior, "behavior", string(loopback.BehaviorNormal), "normal, hang (ignore shutdown) or drop (never reply)")
	return cmd
}
