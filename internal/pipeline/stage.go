// Package pipeline implements the stage abstraction and composition engine:
// a small combinator algebra that chains stages sequentially or fans them out
// in parallel, merging their results into a single envelope. Stage failures
// are contained as results rather than propagated, so one failing branch
// never aborts its siblings.
package pipeline

import "context"

// Kind tags the payload carried by a StageResult.
type Kind string

const (
	KindTheory   Kind = "theory"
	KindTableSet Kind = "table_set"
	KindReport   Kind = "report"
)

// Status describes how a stage invocation went. Warning means the stage ran
// but its input was insufficient; Failed means it could not produce a payload
// and callers must supply a fallback.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusFailed  Status = "failed"
)

// StageResult is the single envelope entry a stage invocation produces.
type StageResult struct {
	Kind        Kind
	Payload     interface{}
	Status      Status
	Diagnostics map[string]string
}

// WithDiagnostic returns a copy of the result with one diagnostic added.
func (r StageResult) WithDiagnostic(key, value string) StageResult {
	diags := make(map[string]string, len(r.Diagnostics)+1)
	for k, v := range r.Diagnostics {
		diags[k] = v
	}
	diags[key] = value
	r.Diagnostics = diags
	return r
}

// Stage is the unit of composition. Invoke must treat the envelope as
// read-only; it may perform external I/O internally but must not mutate its
// input. Every invocation returns exactly one StageResult.
type Stage interface {
	Key() string
	Invoke(ctx context.Context, env *Envelope) StageResult
}
