package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/bft-labs/seqharness/internal/domain"
)

// ReportFileName is the file the latest run report is written to.
const ReportFileName = "last_run.json"

// ReportFileRepository keeps the latest run report as a JSON file. Each Save
// replaces the previous report; no history is kept.
type ReportFileRepository struct {
	dir string
}

func NewReportFileRepository(dir string) *ReportFileRepository {
	return &ReportFileRepository{dir: dir}
}

// Load returns the saved report, or a zero report if none was saved yet.
func (r *ReportFileRepository) Load(ctx context.Context) (domain.Report, error) {
	var report domain.Report
	data, err := os.ReadFile(r.Path())
	switch {
	case errors.Is(err, iofs.ErrNotExist):
		return report, nil
	case err != nil:
		return report, err
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return domain.Report{}, fmt.Errorf("decode %s: %w", r.Path(), err)
	}
	return report, nil
}

// Save writes the report to a temporary file in the same directory and
// renames it over the previous one, so readers never see a partial report.
func (r *ReportFileRepository) Save(ctx context.Context, report domain.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(r.dir, ReportFileName+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		tmp.Close()
		return fmt.Errorf("encode report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), r.Path())
}

// Path returns the report file path.
func (r *ReportFileRepository) Path() string {
	return filepath.Join(r.dir, ReportFileName)
}
