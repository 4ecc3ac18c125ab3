// Package report implements the terminal synthesis stage: it folds the
// merged theory and table payloads into one prompt and asks the model for a
// narrative analysis report.
package report

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"docsift/internal/extract"
	"docsift/internal/llm"
	"docsift/internal/logging"
	"docsift/internal/pipeline"
)

// InsufficientInputMessage is returned as the report payload when neither
// theory nor tables carry content. No model call is made in that case.
const InsufficientInputMessage = "Warning: both the theory digest and the table data are empty; " +
	"no meaningful analysis report can be generated."

// Synthesizer reads the theory and tables results from the envelope and
// produces report text through the bounded invoker. Exactly one model call
// per invocation.
type Synthesizer struct {
	invoker *llm.Invoker
}

// NewSynthesizer creates the report stage. A nil invoker is allowed; the
// stage then fails with a diagnostic instead of calling out.
func NewSynthesizer(inv *llm.Invoker) *Synthesizer {
	return &Synthesizer{invoker: inv}
}

// Key returns the stage's envelope key.
func (s *Synthesizer) Key() string {
	return "report"
}

// Invoke synthesizes the report. Empty inputs short-circuit with a warning;
// a model failure degrades the stage to failed with the error recorded in
// diagnostics, leaving the caller to surface partial results.
func (s *Synthesizer) Invoke(ctx context.Context, env *pipeline.Envelope) pipeline.StageResult {
	theory := theoryPayload(env)
	tables := tablePayload(env)

	if theory.IsEmpty() && len(tables) == 0 {
		logging.Get(logging.CategoryReport).Info("skipping report: no usable input")
		return pipeline.StageResult{
			Kind:    pipeline.KindReport,
			Payload: InsufficientInputMessage,
			Status:  pipeline.StatusWarning,
			Diagnostics: map[string]string{
				"reason": "theory and tables both empty",
			},
		}
	}

	if s.invoker == nil {
		return pipeline.StageResult{
			Kind:   pipeline.KindReport,
			Status: pipeline.StatusFailed,
			Diagnostics: map[string]string{
				"error": "no model client configured",
			},
		}
	}

	response, err := s.invoker.Call(ctx, s.buildPrompt(theory, tables))
	if err != nil {
		logging.Get(logging.CategoryReport).Warn("report synthesis failed", zap.Error(err))
		return pipeline.StageResult{
			Kind:   pipeline.KindReport,
			Status: pipeline.StatusFailed,
			Diagnostics: map[string]string{
				"error": err.Error(),
			},
		}
	}

	return pipeline.StageResult{
		Kind:    pipeline.KindReport,
		Payload: response,
		Status:  pipeline.StatusOK,
		Diagnostics: map[string]string{
			"chars": fmt.Sprintf("%d", len(response)),
		},
	}
}

func (s *Synthesizer) buildPrompt(theory extract.TheoryPayload, tables []extract.TableRecord) string {
	var b strings.Builder
	b.WriteString("You are an expert analyst. Based on the following theoretical framework ")
	b.WriteString("and table data, write a clear, well-structured analysis report in Markdown, ")
	b.WriteString("covering background, main theoretical points, data findings, and conclusions.\n\n")

	b.WriteString("## Theoretical Framework\n")
	if theory.Summary != "" {
		b.WriteString(theory.Summary)
	} else if len(theory.Lines) > 0 {
		b.WriteString(strings.Join(theory.Lines, "\n"))
	} else {
		b.WriteString("(no theory content)")
	}
	b.WriteString("\n\n## Table Data\n")
	if len(tables) == 0 {
		b.WriteString("(no table data)\n")
	}
	for i, t := range tables {
		fmt.Fprintf(&b, "\nTable %d (lines %d-%d):\n", i+1, t.Span[0]+1, t.Span[1]+1)
		b.WriteString(extract.RenderTable(t))
	}
	return b.String()
}

func theoryPayload(env *pipeline.Envelope) extract.TheoryPayload {
	r, ok := env.Get("theory")
	if !ok {
		return extract.TheoryPayload{}
	}
	p, ok := r.Payload.(extract.TheoryPayload)
	if !ok {
		return extract.TheoryPayload{}
	}
	return p
}

func tablePayload(env *pipeline.Envelope) []extract.TableRecord {
	r, ok := env.Get("tables")
	if !ok {
		return nil
	}
	p, ok := r.Payload.([]extract.TableRecord)
	if !ok {
		return nil
	}
	return p
}
