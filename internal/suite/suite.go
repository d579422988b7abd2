// Package suite loads YAML test suites and turns their cases into
// orchestrator inputs.
package suite

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bft-labs/seqharness/internal/adapters/fs"
	"github.com/bft-labs/seqharness/internal/app"
	"github.com/bft-labs/seqharness/internal/compare"
	"github.com/bft-labs/seqharness/internal/compiler"
	"github.com/bft-labs/seqharness/internal/domain"
)

// Suite is a named list of test cases loaded from YAML.
type Suite struct {
	// Name identifies the suite in reports.
	Name string `yaml:"name"`

	// Description explains what the suite covers.
	Description string `yaml:"description,omitempty"`

	// Defaults apply to every case that does not set the field itself.
	Defaults Defaults `yaml:"defaults,omitempty"`

	// Cases run in file order.
	Cases []Case `yaml:"cases"`

	// dir is the suite file's directory; relative paths resolve against it.
	dir string
}

// Defaults are suite-wide case settings.
type Defaults struct {
	// Board is the grad board preset ("none", "ocra1", "gpa-fhdo").
	Board string `yaml:"board,omitempty"`

	// Compare is the comparison mode ("numeric" or "text").
	Compare string `yaml:"compare,omitempty"`
}

// Case is one sequence run and the trace it must produce.
type Case struct {
	// Name uniquely identifies the case within the suite.
	Name string `yaml:"name"`

	// Description explains what the case checks.
	Description string `yaml:"description,omitempty"`

	// Program is a .csv or .yaml program file. Exclusive with Buffers.
	Program string `yaml:"program,omitempty"`

	// Buffers is an inline dictionary program. Exclusive with Program.
	Buffers compiler.Dict `yaml:"buffers,omitempty"`

	// Reference is the expected trace. When empty and Program is a CSV
	// file, the program itself is the reference.
	Reference string `yaml:"reference,omitempty"`

	// Board overrides Defaults.Board.
	Board string `yaml:"board,omitempty"`

	// Compare overrides Defaults.Compare.
	Compare string `yaml:"compare,omitempty"`

	// Skip excludes the case from runs.
	Skip bool `yaml:"skip,omitempty"`
}

// Load reads, parses and validates a suite file. Unknown fields are errors.
func Load(p string) (*Suite, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, err
	}
	s.dir = filepath.Dir(p)
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid suite %s: %w", p, err)
	}
	return s, nil
}

// Parse decodes suite YAML without validating it.
func Parse(data []byte) (*Suite, error) {
	var s Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &s, nil
}

// Dir returns the directory relative paths resolve against.
func (s *Suite) Dir() string { return s.dir }

// Files lists the program and reference files the suite reads.
func (s *Suite) Files() []string {
	var out []string
	for _, c := range s.Cases {
		if c.Program != "" {
			out = append(out, s.resolve(c.Program))
		}
		if c.Reference != "" {
			out = append(out, s.resolve(c.Reference))
		}
	}
	return out
}

// Validate checks required fields and cross-field rules.
func (s *Suite) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}
	if err := checkBoard(s.Defaults.Board); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	if err := checkMode(s.Defaults.Compare); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}

	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate name %q", i, c.Name)
		}
		seen[c.Name] = true

		switch {
		case c.Program == "" && len(c.Buffers) == 0:
			return fmt.Errorf("case %s: one of program or buffers is required", c.Name)
		case c.Program != "" && len(c.Buffers) > 0:
			return fmt.Errorf("case %s: program and buffers are exclusive", c.Name)
		}
		if c.Reference == "" && !isCSV(c.Program) {
			return fmt.Errorf("case %s: reference is required unless program is a csv file", c.Name)
		}
		if err := checkBoard(c.Board); err != nil {
			return fmt.Errorf("case %s: %w", c.Name, err)
		}
		if err := checkMode(c.Compare); err != nil {
			return fmt.Errorf("case %s: %w", c.Name, err)
		}
	}
	return nil
}

// Select returns the cases to run: not skipped and, when patterns are given,
// matching at least one glob pattern.
func (s *Suite) Select(patterns []string) ([]Case, error) {
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("bad filter %q: %w", p, err)
		}
	}
	var out []Case
	for _, c := range s.Cases {
		if c.Skip {
			continue
		}
		if len(patterns) > 0 && !matchesAny(patterns, c.Name) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// TestContexts turns cases into orchestrator inputs. Programs are loaded
// lazily, when the case runs.
func (s *Suite) TestContexts(cases []Case) ([]app.TestContext, error) {
	out := make([]app.TestContext, 0, len(cases))
	for _, c := range cases {
		tc, err := s.testContext(c)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", c.Name, err)
		}
		out = append(out, tc)
	}
	return out, nil
}

func (s *Suite) testContext(c Case) (app.TestContext, error) {
	board, err := compiler.LookupBoard(firstNonEmpty(c.Board, s.Defaults.Board))
	if err != nil {
		return app.TestContext{}, err
	}
	strategy, err := compare.Select(firstNonEmpty(c.Compare, s.Defaults.Compare))
	if err != nil {
		return app.TestContext{}, err
	}

	tc := app.TestContext{Case: c.Name, Board: board, Strategy: strategy}
	if c.Program != "" {
		prog := s.resolve(c.Program)
		tc.Program = func() (domain.Program, error) { return compiler.LoadProgramFile(prog) }
	} else {
		dict := c.Buffers
		tc.Program = func() (domain.Program, error) { return compiler.FromDict(dict) }
	}

	ref := c.Reference
	if ref == "" {
		ref = c.Program
	}
	tc.Reference = fs.File(s.resolve(ref))
	return tc, nil
}

func (s *Suite) resolve(p string) string {
	if filepath.IsAbs(p) || s.dir == "" {
		return p
	}
	return filepath.Join(s.dir, p)
}

func checkBoard(name string) error {
	_, err := compiler.LookupBoard(name)
	return err
}

func checkMode(mode string) error {
	_, err := compare.Select(mode)
	return err
}

func isCSV(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".csv")
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
