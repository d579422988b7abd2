package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/seqharness/pkg/log"
)

// AppName names the per-user and site configuration directories.
const AppName = "seqharness"

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Server    ServerSection    `toml:"server"`
	Simulator SimulatorSection `toml:"simulator"`
	Harness   HarnessSection   `toml:"harness"`
	Report    ReportSection    `toml:"report"`
}

// ServerSection is the [server] table.
type ServerSection struct {
	IPAddress      string  `toml:"ip_address"`
	Port           int     `toml:"port"`
	FPGAClkFreqMHz float64 `toml:"fpga_clk_freq_MHz"`
}

// SimulatorSection is the [simulator] table.
type SimulatorSection struct {
	Path    string   `toml:"path"`
	Args    []string `toml:"args"`
	CSV     string   `toml:"csv"`
	FST     string   `toml:"fst"`
	FSTDump *bool    `toml:"fst_dump"`
}

// HarnessSection is the [harness] table.
type HarnessSection struct {
	ConnectTimeout string `toml:"connect_timeout"`
	ExitTimeout    string `toml:"exit_timeout"`
	Board          string `toml:"board"`
	Compare        string `toml:"compare"`
}

// ReportSection is the [report] table.
type ReportSection struct {
	Dir         string `toml:"dir"`
	MetricsFile string `toml:"metrics_file"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("%s: %w", path, err)
	}
	return fc, nil
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// Keys absent from the file leave cfg untouched, so files layer key by key.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", fc.Server.IPAddress, &cfg.Host)
	s.setInt("port", fc.Server.Port, &cfg.Port)
	s.setFloat("fpga-clk-mhz", fc.Server.FPGAClkFreqMHz, &cfg.FPGAClkFreqMHz)

	s.setString("simulator", fc.Simulator.Path, &cfg.SimulatorPath)
	s.setStrings("sim-args", fc.Simulator.Args, &cfg.SimulatorArgs)
	s.setString("trace-csv", fc.Simulator.CSV, &cfg.TraceCSV)
	s.setString("trace-fst", fc.Simulator.FST, &cfg.TraceFST)
	s.setBool("fst-dump", fc.Simulator.FSTDump, &cfg.FSTDump)

	if err := s.setDuration("connect-timeout", fc.Harness.ConnectTimeout, &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("exit-timeout", fc.Harness.ExitTimeout, &cfg.ExitTimeout); err != nil {
		return err
	}
	s.setString("board", fc.Harness.Board, &cfg.Board)
	s.setString("compare", fc.Harness.Compare, &cfg.CompareMode)

	s.setString("report-dir", fc.Report.Dir, &cfg.ReportDir)
	s.setString("metrics-file", fc.Report.MetricsFile, &cfg.MetricsFile)

	return nil
}

// SearchDirs returns the directories scanned for *.toml files, lowest
// precedence first: site config, user config, next to the executable, and
// the working directory.
func SearchDirs() []string {
	dirs := []string{filepath.Join("/etc", AppName)}
	if d, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(d, AppName))
	}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	return dirs
}

// DiscoverFiles lists the *.toml files in dirs, in directory order and
// sorted by name within a directory. Missing directories are skipped.
func DiscoverFiles(dirs []string) []string {
	var files []string
	seen := map[string]bool{}
	for _, dir := range dirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*.toml"))
		if err != nil {
			continue
		}
		sort.Strings(matches)
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	return files
}

// ApplyConfigFiles layers the discovered files and then the explicit one onto
// cfg. Discovered files that fail to parse are logged and skipped; the
// explicit file must exist and parse. It returns the files that were applied.
func ApplyConfigFiles(cfg *Config, discovered []string, explicit string, changed map[string]bool, logger log.Logger) ([]string, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	var applied []string
	for _, p := range discovered {
		fc, err := LoadFileConfig(p)
		if err != nil {
			logger.Warn("skipping config file", log.String("path", p), log.Err(err))
			continue
		}
		if err := ApplyFileConfig(cfg, fc, changed); err != nil {
			logger.Warn("skipping config file", log.String("path", p), log.Err(err))
			continue
		}
		applied = append(applied, p)
	}

	if explicit != "" {
		fc, err := LoadFileConfig(explicit)
		if err != nil {
			return applied, fmt.Errorf("load config: %w", err)
		}
		if err := ApplyFileConfig(cfg, fc, changed); err != nil {
			return applied, fmt.Errorf("load config %s: %w", explicit, err)
		}
		applied = append(applied, explicit)
	}

	if len(applied) == 0 {
		logger.Debug("no configuration files found, using defaults")
	} else {
		logger.Debug("loaded configuration files", log.Strings("files", applied))
	}
	return applied, nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
