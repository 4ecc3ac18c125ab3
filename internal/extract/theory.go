package extract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"docsift/internal/llm"
	"docsift/internal/logging"
	"docsift/internal/pipeline"
)

// TheoryPayload is the theory digest stage's payload: the non-empty excerpt
// lines and, when the model was consulted successfully, a condensed summary.
type TheoryPayload struct {
	Lines   []string `json:"lines"`
	Summary string   `json:"summary,omitempty"`
}

// IsEmpty reports whether the digest carries no usable content.
func (p TheoryPayload) IsEmpty() bool {
	return len(p.Lines) == 0 && p.Summary == ""
}

// TheoryDigest extracts a bounded prefix of the document's narrative text
// and optionally asks the model for a condensed summary. Without an invoker
// the excerpt itself is the payload; with one, a failed model call degrades
// to the excerpt with a warning instead of failing the stage.
type TheoryDigest struct {
	invoker       *llm.Invoker
	prefixLines   int
	summarizeFull bool
}

// DefaultPrefixLines bounds the narrative excerpt when no override is given.
const DefaultPrefixLines = 20

// TheoryOption customizes a TheoryDigest.
type TheoryOption func(*TheoryDigest)

// WithInvoker enables model-assisted summarization through inv.
func WithInvoker(inv *llm.Invoker) TheoryOption {
	return func(d *TheoryDigest) { d.invoker = inv }
}

// WithPrefixLines overrides the excerpt length.
func WithPrefixLines(n int) TheoryOption {
	return func(d *TheoryDigest) {
		if n > 0 {
			d.prefixLines = n
		}
	}
}

// WithFullDocument sends the whole document to the model instead of only the
// excerpt. The excerpt remains the fallback payload.
func WithFullDocument() TheoryOption {
	return func(d *TheoryDigest) { d.summarizeFull = true }
}

// NewTheoryDigest creates the theory digest stage.
func NewTheoryDigest(opts ...TheoryOption) *TheoryDigest {
	d := &TheoryDigest{prefixLines: DefaultPrefixLines}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Key returns the stage's envelope key.
func (d *TheoryDigest) Key() string {
	return "theory"
}

// Invoke extracts the excerpt and, if a model is configured, condenses it.
func (d *TheoryDigest) Invoke(ctx context.Context, env *pipeline.Envelope) pipeline.StageResult {
	doc := env.Document()

	var excerpt []string
	for _, line := range doc.Prefix(d.prefixLines) {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			excerpt = append(excerpt, trimmed)
		}
	}

	payload := TheoryPayload{Lines: excerpt}
	diags := map[string]string{
		"excerpt_lines": strconv.Itoa(len(excerpt)),
	}
	log := logging.Get(logging.CategoryExtract)

	if d.invoker == nil {
		log.Debug("theory digest extracted without model", zap.Int("lines", len(excerpt)))
		return pipeline.StageResult{
			Kind:        pipeline.KindTheory,
			Payload:     payload,
			Status:      pipeline.StatusOK,
			Diagnostics: diags,
		}
	}

	if len(excerpt) == 0 {
		diags["reason"] = "no narrative text to summarize"
		return pipeline.StageResult{
			Kind:        pipeline.KindTheory,
			Payload:     payload,
			Status:      pipeline.StatusWarning,
			Diagnostics: diags,
		}
	}

	source := strings.Join(excerpt, "\n")
	if d.summarizeFull {
		source = doc.Text()
		diags["summarized"] = "full_document"
	} else {
		diags["summarized"] = "excerpt"
	}

	prompt := fmt.Sprintf(
		"Summarize the theoretical framework of the following text in a concise, structured form:\n\n%s",
		source)

	summary, err := d.invoker.Call(ctx, prompt)
	if err != nil {
		log.Warn("theory summarization failed, falling back to excerpt", zap.Error(err))
		diags["service_error"] = err.Error()
		return pipeline.StageResult{
			Kind:        pipeline.KindTheory,
			Payload:     payload,
			Status:      pipeline.StatusWarning,
			Diagnostics: diags,
		}
	}

	payload.Summary = summary
	return pipeline.StageResult{
		Kind:        pipeline.KindTheory,
		Payload:     payload,
		Status:      pipeline.StatusOK,
		Diagnostics: diags,
	}
}
