package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bft-labs/seqharness/internal/compiler"
	"github.com/bft-labs/seqharness/pkg/log"
)

func newCompileCmd(ro *rootOptions) *cobra.Command {
	var (
		output string
		board  string
	)

	cmd := &cobra.Command{
		Use:   "compile <program.csv|program.yaml>",
		Short: "Compile a program into a little-endian instruction stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.NewConsoleLogger(ro.stderr, ro.verbose)

			b, err := compiler.LookupBoard(board)
			if err != nil {
				return err
			}
			prog, err := compiler.LoadProgramFile(args[0])
			if err != nil {
				return err
			}
			words, err := compiler.Compile(b.Apply(prog))
			if err != nil {
				return err
			}

			data := compiler.Bytes(words)
			if output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			logger.Info("program compiled",
				log.String("output", output),
				log.Int("writes", len(prog.Writes)),
				log.Int("words", len(words)),
				log.String("board", b.Name),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	cmd.Flags().StringVar(&board, "board", "", "grad board preset (none, ocra1, gpa-fhdo)")
	return cmd
}
