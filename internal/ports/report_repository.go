package ports

import (
	"context"

	"github.com/bft-labs/seqharness/internal/domain"
)

// ReportRepository stores the report of the most recent run.
type ReportRepository interface {
	// Load returns the last saved report, or an empty report and nil error
	// if none exists.
	Load(ctx context.Context) (domain.Report, error)

	// Save replaces the stored report atomically.
	Save(ctx context.Context, report domain.Report) error
}
