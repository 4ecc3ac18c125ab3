package analyze

import (
	"docsift/internal/extract"
	"docsift/internal/pipeline"
)

// Section is one stage's slice of the output envelope. This shape — status,
// content, diagnostics under the keys theory/tables/report — is the stable
// contract between the pipeline core and any presentation layer.
type Section struct {
	Status      string            `json:"status"`
	Content     interface{}       `json:"content"`
	Diagnostics map[string]string `json:"diagnostics,omitempty"`
}

// Result is the serialized analysis envelope for one run.
type Result struct {
	RunID  string  `json:"run_id"`
	Theory Section `json:"theory"`
	Tables Section `json:"tables"`
	Report Section `json:"report"`
	Failed bool    `json:"failed,omitempty"`
}

// Degraded reports whether any section fell short of ok.
func (r *Result) Degraded() bool {
	for _, s := range []Section{r.Theory, r.Tables, r.Report} {
		if s.Status != string(pipeline.StatusOK) {
			return true
		}
	}
	return r.Failed
}

// TableRecords returns the extracted tables, or nil when the tables section
// carries no payload.
func (r *Result) TableRecords() []extract.TableRecord {
	records, _ := r.Tables.Content.([]extract.TableRecord)
	return records
}

// ReportText returns the report content when it is plain text.
func (r *Result) ReportText() string {
	text, _ := r.Report.Content.(string)
	return text
}

// newResult flattens the envelope into the output contract. A stage that
// never ran (critical failure upstream) appears as a failed section so the
// envelope always reports which stages degraded and why.
func newResult(runID string, env *pipeline.Envelope) *Result {
	return &Result{
		RunID:  runID,
		Theory: sectionFor(env, "theory", theoryContent),
		Tables: sectionFor(env, "tables", rawContent),
		Report: sectionFor(env, "report", rawContent),
		Failed: env.Failed(),
	}
}

func sectionFor(env *pipeline.Envelope, key string, content func(pipeline.StageResult) interface{}) Section {
	r, ok := env.Get(key)
	if !ok {
		return Section{
			Status:      string(pipeline.StatusFailed),
			Diagnostics: map[string]string{"reason": "stage did not run"},
		}
	}
	return Section{
		Status:      string(r.Status),
		Content:     content(r),
		Diagnostics: r.Diagnostics,
	}
}

func rawContent(r pipeline.StageResult) interface{} {
	return r.Payload
}

// theoryContent prefers the condensed summary; the excerpt lines are the
// fallback payload.
func theoryContent(r pipeline.StageResult) interface{} {
	p, ok := r.Payload.(extract.TheoryPayload)
	if !ok {
		return r.Payload
	}
	if p.Summary != "" {
		return p.Summary
	}
	return p.Lines
}
