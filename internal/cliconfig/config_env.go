package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "SEQHARNESS_"

// ApplyEnvConfig applies configuration from environment variables (SEQHARNESS_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("host", env("HOST"), &cfg.Host)
	s.setString("simulator", env("SIMULATOR"), &cfg.SimulatorPath)
	s.setFieldsFromString("sim-args", env("SIMULATOR_ARGS"), &cfg.SimulatorArgs)
	s.setString("trace-csv", env("TRACE_CSV"), &cfg.TraceCSV)
	s.setString("trace-fst", env("TRACE_FST"), &cfg.TraceFST)
	s.setString("board", env("BOARD"), &cfg.Board)
	s.setString("compare", env("COMPARE"), &cfg.CompareMode)
	s.setString("report-dir", env("REPORT_DIR"), &cfg.ReportDir)
	s.setString("metrics-file", env("METRICS_FILE"), &cfg.MetricsFile)

	if err := s.setIntFromString("port", env("PORT"), &cfg.Port); err != nil {
		return err
	}
	if err := s.setFloatFromString("fpga-clk-mhz", env("FPGA_CLK_FREQ_MHZ"), &cfg.FPGAClkFreqMHz); err != nil {
		return err
	}
	if err := s.setDuration("connect-timeout", env("CONNECT_TIMEOUT"), &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("exit-timeout", env("EXIT_TIMEOUT"), &cfg.ExitTimeout); err != nil {
		return err
	}

	s.setBoolFromString("fst-dump", env("FST_DUMP"), &cfg.FSTDump)
	s.setBoolFromString("verbose", env("VERBOSE"), &cfg.Verbose)

	return nil
}
