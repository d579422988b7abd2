package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bft-labs/seqharness/internal/adapters/socket"
)

const longHelp = `
Hardware-in-the-loop test harness for the marga pulse sequencer.

seqharness compiles buffer programs into instruction streams, drives a marga
server or a locally managed simulator over the msgpack protocol, and compares
the trace the run produced against a reference.

Configuration is read from *.toml files in /etc/seqharness, the user config
directory, next to the executable and in the working directory, then from
--config, SEQHARNESS_* environment variables and finally flags.

Exit codes: 0 all cases passed, 1 a case failed, 2 a case errored or the
command could not run.
`

var exampleUsage = strings.TrimSpace(`
  seqharness test suites/grad.yaml --board ocra1
  seqharness test suites/grad.yaml --filter 'ramp*' --format json
  seqharness compare ref.csv /tmp/marga.csv --mode text
  seqharness compile program.csv -o program.bin --board gpa-fhdo
  seqharness watch suites/grad.yaml --simulator ./Vmarga_model
`)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "seqharness: %v\n", err)
	return 2
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	ro := &rootOptions{stderr: stderr}

	root := &cobra.Command{
		Use:     "seqharness",
		Short:   "Hardware-in-the-loop test harness for the marga pulse sequencer",
		Long:    strings.TrimSpace(longHelp),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s (protocol %d.%d.%d)", getVersion(), runtime.GOOS, runtime.GOARCH,
			socket.VersionMajor, socket.VersionMinor, socket.VersionDebug),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&ro.cfgPath, "config", "", "path to an extra TOML config file, applied after discovered files")
	pf.BoolVarP(&ro.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&ro.format, "format", formatText, "report format: text or json")

	root.AddCommand(
		newTestCmd(ro),
		newCompareCmd(ro),
		newCompileCmd(ro),
		newWatchCmd(ro),
		newLoopbackCmd(ro),
	)
	return root
}
