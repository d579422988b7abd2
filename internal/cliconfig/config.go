package cliconfig

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/seqharness/internal/compiler"
)

const (
	// DefaultHost is the address the marga server (or simulator) listens on.
	DefaultHost = "localhost"
	// DefaultPort is the marga server port.
	DefaultPort = 11111
	// DefaultFPGAClkFreqMHz is the sequencer clock used to convert ticks to time.
	DefaultFPGAClkFreqMHz = 122.88
)

// Compare modes accepted in configuration.
const (
	CompareNumeric = "numeric"
	CompareText    = "text"
)

// Config holds CLI configuration for seqharness.
type Config struct {
	Host           string
	Port           int
	Addr           string // derived from Host and Port during Validate
	FPGAClkFreqMHz float64

	SimulatorPath string
	SimulatorArgs []string
	TraceCSV      string
	TraceFST      string
	FSTDump       bool

	ConnectTimeout time.Duration
	ExitTimeout    time.Duration
	Board          string
	CompareMode    string

	ReportDir   string
	MetricsFile string

	Verbose bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		FPGAClkFreqMHz: DefaultFPGAClkFreqMHz,
		ConnectTimeout: 5 * time.Second,
		ExitTimeout:    time.Second,
		CompareMode:    CompareNumeric,
		ReportDir:      ".",
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	c.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))

	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	if c.ExitTimeout <= 0 {
		return fmt.Errorf("exit timeout must be positive")
	}
	if c.FPGAClkFreqMHz <= 0 {
		return fmt.Errorf("fpga clock frequency must be positive")
	}

	if c.CompareMode == "" {
		c.CompareMode = CompareNumeric
	}
	if c.CompareMode != CompareNumeric && c.CompareMode != CompareText {
		return fmt.Errorf("unknown compare mode %q (want %s or %s)", c.CompareMode, CompareNumeric, CompareText)
	}

	if c.Board != "" {
		if _, err := compiler.LookupBoard(c.Board); err != nil {
			return err
		}
	}

	if c.FSTDump && c.TraceFST == "" {
		return fmt.Errorf("fst dump requested but no fst path configured")
	}

	if c.ReportDir == "" {
		c.ReportDir = "."
	}

	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings replaces a list if the new one is non-empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// setFieldsFromString splits a whitespace separated list.
func (s *configSetter) setFieldsFromString(flag, value string, dst *[]string) {
	s.setStrings(flag, strings.Fields(value), dst)
}
