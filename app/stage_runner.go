package app

import (
	"context"
	"time"

	"abfunnel/internal"
	"abfunnel/internal/errors"
)

// StageRunner executes pipeline stages in order, logging how long each one takes
type StageRunner struct {
	logger *internal.Logger
}

// NewStageRunner creates a new stage runner
func NewStageRunner(logger *internal.Logger) *StageRunner {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &StageRunner{logger: logger}
}

// Run executes one named stage. A cancelled context stops the pipeline before the stage starts.
func (r *StageRunner) Run(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "stage %s not started", name)
	}
	start := time.Now()
	if err := fn(); err != nil {
		r.logger.Debug("Stage %s failed after %s", name, time.Since(start))
		return errors.Wrapf(err, "stage %s failed", name)
	}
	r.logger.Debug("Stage %s finished in %s", name, time.Since(start))
	return nil
}
