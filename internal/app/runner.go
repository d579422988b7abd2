package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/seqharness/internal/domain"
	"github.com/bft-labs/seqharness/internal/ports"
)

// OutcomeRecorder observes finished cases and runs.
type OutcomeRecorder interface {
	ObserveOutcome(o domain.Outcome)
	ObserveRun(r domain.Report)
}

// Runner runs a suite of cases one after another.
type Runner struct {
	orch     *Orchestrator
	reports  ports.ReportRepository
	recorder OutcomeRecorder
	logger   ports.Logger
	now      func() time.Time
}

// NewRunner creates a runner. reports and recorder may be nil.
func NewRunner(orch *Orchestrator, reports ports.ReportRepository, recorder OutcomeRecorder, logger ports.Logger) *Runner {
	return &Runner{
		orch:     orch,
		reports:  reports,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// RunSuite runs every case and returns the report. A failing or panicking
// case never stops the run; a cancelled ctx marks the remaining cases
// errored. The returned error is only about saving the report.
func (r *Runner) RunSuite(ctx context.Context, suite string, cases []TestContext) (domain.Report, error) {
	report := domain.Report{
		RunID:   uuid.NewString(),
		Suite:   suite,
		Started: r.now(),
	}
	logger := r.logger.With(ports.String("run_id", report.RunID))
	logger.Info("suite started", ports.String("suite", suite), ports.Int("cases", len(cases)))

	for _, tc := range cases {
		var out domain.Outcome
		if err := ctx.Err(); err != nil {
			out = domain.Outcome{
				Case:   tc.Case,
				Status: domain.StatusErrored,
				Stage:  domain.StageIdle,
				Err:    &domain.StageError{Stage: domain.StageIdle, Err: err},
			}
		} else {
			out = r.runCase(ctx, tc)
		}

		report.Add(out)
		if r.recorder != nil {
			r.recorder.ObserveOutcome(out)
		}
		fields := []ports.Field{
			ports.String("case", out.Case),
			ports.String("status", out.Status.String()),
			ports.Duration("duration", out.Duration),
		}
		if out.Err != nil {
			fields = append(fields, ports.Err(out.Err))
		}
		logger.Info("case finished", fields...)
	}

	report.Finished = r.now()
	if r.recorder != nil {
		r.recorder.ObserveRun(report)
	}
	logger.Info("suite finished",
		ports.Int("passed", report.Summary.Passed),
		ports.Int("failed", report.Summary.Failed),
		ports.Int("errored", report.Summary.Errored),
	)

	if r.reports != nil {
		if err := r.reports.Save(ctx, report); err != nil {
			return report, fmt.Errorf("save report: %w", err)
		}
	}
	return report, nil
}

// runCase isolates a panic in one case from the rest of the run. The
// orchestrator recovers panics inside a case itself; this catches the rest,
// before the case left Idle.
func (r *Runner) runCase(ctx context.Context, tc TestContext) (out domain.Outcome) {
	defer func() {
		if p := recover(); p != nil {
			out = domain.Outcome{
				Case:   tc.Case,
				Status: domain.StatusErrored,
				Stage:  domain.StageIdle,
				Err:    &domain.StageError{Stage: domain.StageIdle, Err: fmt.Errorf("panic: %v", p)},
			}
		}
	}()
	return r.orch.Run(ctx, tc)
}
