// Package analyze assembles the extraction stages into the full analysis
// pipeline and exposes the run entry points. The graph is fixed:
// Parallel(theory digest, table parser) feeding the report synthesizer.
package analyze

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docsift/internal/config"
	"docsift/internal/extract"
	"docsift/internal/llm"
	"docsift/internal/logging"
	"docsift/internal/pipeline"
	"docsift/internal/report"
)

// Analyzer runs documents through the composed pipeline. It is safe for
// concurrent use; each run is an independent, stateless transform sharing
// only the invoker's permit pool.
type Analyzer struct {
	cfg     config.Config
	invoker *llm.Invoker
	pipe    *pipeline.Sequence
}

// New assembles an analyzer. The client may be nil, in which case extraction
// runs without model assistance and the report stage degrades. Construction
// fails with a ConfigError before any document is processed if the
// configuration or the stage graph is invalid.
func New(cfg config.Config, client llm.Client) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, pipeline.NewConfigError("%v", err)
	}

	var invoker *llm.Invoker
	if client != nil {
		var err error
		invoker, err = llm.NewInvoker(client, llm.Budget{
			MaxConcurrent: cfg.Budget.MaxConcurrent,
			RetryLimit:    cfg.Budget.RetryLimit,
		})
		if err != nil {
			return nil, pipeline.NewConfigError("%v", err)
		}
	}

	theoryOpts := []extract.TheoryOption{
		extract.WithPrefixLines(cfg.Digest.PrefixLines),
	}
	if invoker != nil {
		theoryOpts = append(theoryOpts, extract.WithInvoker(invoker))
	}
	if cfg.Digest.SummarizeFull {
		theoryOpts = append(theoryOpts, extract.WithFullDocument())
	}

	par, err := pipeline.NewParallel(
		pipeline.Single(extract.NewTheoryDigest(theoryOpts...)),
		pipeline.Single(extract.NewTableParser()),
	)
	if err != nil {
		return nil, err
	}

	seq, err := pipeline.NewSequence(
		par,
		pipeline.Single(report.NewSynthesizer(invoker)),
	)
	if err != nil {
		return nil, err
	}

	return &Analyzer{cfg: cfg, invoker: invoker, pipe: seq}, nil
}

// InvokerMetrics returns the invoker's counters, or a zero value when no
// model client is configured.
func (a *Analyzer) InvokerMetrics() llm.Metrics {
	if a.invoker == nil {
		return llm.Metrics{}
	}
	return a.invoker.Metrics()
}

// Run analyzes one document synchronously. A blank document is rejected with
// an InputError before any stage executes; cancellation surfaces as
// ctx.Err() and discards partial work.
func (a *Analyzer) Run(ctx context.Context, document string) (*Result, error) {
	if document == "" {
		return nil, pipeline.NewInputError("document content is required")
	}

	doc := pipeline.NewDocument(document)
	if doc.IsBlank() {
		return nil, pipeline.NewInputError("document contains only whitespace")
	}

	runID := uuid.NewString()
	log := logging.Get(logging.CategoryAnalyze)
	start := time.Now()
	log.Info("analysis started",
		zap.String("run_id", runID),
		zap.Int("lines", doc.Len()))

	env, err := a.pipe.Run(ctx, pipeline.NewEnvelope(doc))
	if err != nil {
		log.Warn("analysis aborted",
			zap.String("run_id", runID),
			zap.Error(err))
		return nil, err
	}

	result := newResult(runID, env)
	log.Info("analysis finished",
		zap.String("run_id", runID),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("degraded", result.Degraded()))
	return result, nil
}

// Outcome carries the result of an asynchronous run.
type Outcome struct {
	Result *Result
	Err    error
}

// Start analyzes one document asynchronously with semantics identical to
// Run; only the caller's blocking behavior differs. The returned channel is
// buffered and receives exactly one Outcome.
func (a *Analyzer) Start(ctx context.Context, document string) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		result, err := a.Run(ctx, document)
		out <- Outcome{Result: result, Err: err}
	}()
	return out
}
