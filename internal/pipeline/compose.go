package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"docsift/internal/logging"
)

// Runner is the composable execution unit: a single stage, a Sequence, or a
// Parallel group. Run consumes an envelope and returns a new envelope with
// the runner's results merged in; the input is never mutated.
type Runner interface {
	// Keys lists every stage key this runner can write. Used for
	// construction-time duplicate detection in parallel groups.
	Keys() []string
	Run(ctx context.Context, env *Envelope) (*Envelope, error)
}

// stageRunner adapts one Stage to the Runner interface. A panicking stage is
// contained as a failed StageResult so siblings keep running.
type stageRunner struct {
	stage    Stage
	critical bool
}

// Single wraps one stage as a Runner. A failed result is recorded and
// execution continues.
func Single(s Stage) Runner {
	return &stageRunner{stage: s}
}

// Critical wraps one stage as a Runner whose failure aborts the enclosing
// sequence, returning the partial envelope with the Failed marker set.
func Critical(s Stage) Runner {
	return &stageRunner{stage: s, critical: true}
}

func (r *stageRunner) Keys() []string {
	return []string{r.stage.Key()}
}

func (r *stageRunner) Run(ctx context.Context, env *Envelope) (*Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := r.invokeContained(ctx, env)

	// A result produced under a cancelled context is partial; discard it so
	// the cancellation surfaces instead of a half-merged envelope.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := env.Clone()
	out.set(r.stage.Key(), result)

	logging.Get(logging.CategoryPipeline).Debug("stage completed",
		zap.String("key", r.stage.Key()),
		zap.String("status", string(result.Status)))

	if result.Status == StatusFailed && r.critical {
		out.markFailed()
	}
	return out, nil
}

func (r *stageRunner) invokeContained(ctx context.Context, env *Envelope) (result StageResult) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Get(logging.CategoryPipeline).Error("stage panicked",
				zap.String("key", r.stage.Key()),
				zap.Any("panic", rec))
			result = StageResult{
				Status:      StatusFailed,
				Diagnostics: map[string]string{"panic": fmt.Sprint(rec)},
			}
		}
	}()
	return r.stage.Invoke(ctx, env)
}
