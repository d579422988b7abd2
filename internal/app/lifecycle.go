package app

import (
	"fmt"
	"sync"

	"github.com/bft-labs/seqharness/internal/domain"
	"github.com/bft-labs/seqharness/internal/ports"
)

// EventEmitter is called when a case changes stage.
type EventEmitter interface {
	OnStageChange(caseName string, previous, current domain.Stage, reason string)
}

// Lifecycle is the stage machine of one test case.
type Lifecycle struct {
	mu           sync.RWMutex
	stage        domain.Stage
	caseName     string
	logger       ports.Logger
	eventEmitter EventEmitter
}

// NewLifecycle creates a lifecycle in StageIdle.
func NewLifecycle(caseName string, logger ports.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{
		stage:        domain.StageIdle,
		caseName:     caseName,
		logger:       logger,
		eventEmitter: emitter,
	}
}

// Stage returns the current stage.
func (l *Lifecycle) Stage() domain.Stage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stage
}

// next lists the forward transitions. Every non-terminal stage may also
// move to StageErrored.
var next = map[domain.Stage][]domain.Stage{
	domain.StageIdle:              {domain.StageCompiling},
	domain.StageCompiling:         {domain.StageConnected},
	domain.StageConnected:         {domain.StageRunning},
	domain.StageRunning:           {domain.StageShutdownRequested},
	domain.StageShutdownRequested: {domain.StageAwaitingExit},
	domain.StageAwaitingExit:      {domain.StageComparing},
	domain.StageComparing:         {domain.StagePassed, domain.StageFailed},
}

func allowed(from, to domain.Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == domain.StageErrored {
		return true
	}
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionTo moves to newStage.
// Returns an error wrapping domain.ErrInvalidTransition if the move is not allowed.
func (l *Lifecycle) TransitionTo(newStage domain.Stage, reason string) error {
	l.mu.Lock()
	oldStage := l.stage
	if !allowed(oldStage, newStage) {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, oldStage, newStage)
	}
	l.stage = newStage
	l.mu.Unlock()

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStageChange(l.caseName, oldStage, newStage, reason)
	}

	l.logger.Debug("stage transition",
		ports.String("case", l.caseName),
		ports.Stringer("from", oldStage),
		ports.Stringer("to", newStage),
		ports.String("reason", reason),
	)
	return nil
}
