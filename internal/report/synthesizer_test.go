package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsift/internal/extract"
	"docsift/internal/llm"
	"docsift/internal/pipeline"
)

type recordingClient struct {
	lastPrompt string
	response   string
	err        error
}

func (c *recordingClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.lastPrompt = prompt
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}

func newInvoker(t *testing.T, client llm.Client) *llm.Invoker {
	t.Helper()
	inv, err := llm.NewInvokerWithPolicy(client, llm.Budget{MaxConcurrent: 1, RetryLimit: 0},
		llm.RetryPolicy{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	require.NoError(t, err)
	return inv
}

func envWith(t *testing.T, theory extract.TheoryPayload, tables []extract.TableRecord) *pipeline.Envelope {
	t.Helper()
	env := pipeline.NewEnvelope(pipeline.NewDocument("doc"))

	theoryStage := stubStage{key: "theory", result: pipeline.StageResult{
		Kind: pipeline.KindTheory, Status: pipeline.StatusOK, Payload: theory}}
	tablesStage := stubStage{key: "tables", result: pipeline.StageResult{
		Kind: pipeline.KindTableSet, Status: pipeline.StatusOK, Payload: tables}}

	seq, err := pipeline.NewSequence(pipeline.Single(theoryStage), pipeline.Single(tablesStage))
	require.NoError(t, err)
	out, err := seq.Run(context.Background(), env)
	require.NoError(t, err)
	return out
}

type stubStage struct {
	key    string
	result pipeline.StageResult
}

func (s stubStage) Key() string { return s.key }
func (s stubStage) Invoke(ctx context.Context, env *pipeline.Envelope) pipeline.StageResult {
	return s.result
}

func TestSynthesizer_BothEmptyShortCircuits(t *testing.T) {
	client := &recordingClient{response: "should not be called"}
	s := NewSynthesizer(newInvoker(t, client))

	env := envWith(t, extract.TheoryPayload{}, nil)
	result := s.Invoke(context.Background(), env)

	assert.Equal(t, pipeline.StatusWarning, result.Status)
	assert.Equal(t, InsufficientInputMessage, result.Payload)
	assert.Empty(t, client.lastPrompt, "no model call is spent on insufficient input")
}

func TestSynthesizer_GeneratesReport(t *testing.T) {
	client := &recordingClient{response: "# Report\nFindings."}
	s := NewSynthesizer(newInvoker(t, client))

	env := envWith(t,
		extract.TheoryPayload{Lines: []string{"Premise one.", "Premise two."}},
		[]extract.TableRecord{{
			Headers: []string{"A", "B"},
			Rows:    [][]string{{"1", "2"}},
			Span:    [2]int{2, 4},
		}})

	result := s.Invoke(context.Background(), env)

	assert.Equal(t, pipeline.StatusOK, result.Status)
	assert.Equal(t, "# Report\nFindings.", result.Payload)

	// The prompt folds both payloads in.
	assert.Contains(t, client.lastPrompt, "Premise one.")
	assert.Contains(t, client.lastPrompt, "| A | B |")
	assert.Contains(t, client.lastPrompt, "Table 1 (lines 3-5)")
}

func TestSynthesizer_PrefersSummaryOverLines(t *testing.T) {
	client := &recordingClient{response: "ok"}
	s := NewSynthesizer(newInvoker(t, client))

	env := envWith(t,
		extract.TheoryPayload{Lines: []string{"raw line"}, Summary: "condensed summary"},
		nil)
	result := s.Invoke(context.Background(), env)

	assert.Equal(t, pipeline.StatusOK, result.Status)
	assert.Contains(t, client.lastPrompt, "condensed summary")
	assert.NotContains(t, client.lastPrompt, "raw line")
}

func TestSynthesizer_ServiceErrorFails(t *testing.T) {
	client := &recordingClient{err: errors.New("model down")}
	s := NewSynthesizer(newInvoker(t, client))

	env := envWith(t, extract.TheoryPayload{Lines: []string{"content"}}, nil)
	result := s.Invoke(context.Background(), env)

	assert.Equal(t, pipeline.StatusFailed, result.Status)
	assert.Nil(t, result.Payload)
	assert.Contains(t, result.Diagnostics["error"], "model down")
}

func TestSynthesizer_NilInvokerFails(t *testing.T) {
	s := NewSynthesizer(nil)
	env := envWith(t, extract.TheoryPayload{Lines: []string{"content"}}, nil)
	result := s.Invoke(context.Background(), env)

	assert.Equal(t, pipeline.StatusFailed, result.Status)
	assert.Contains(t, result.Diagnostics["error"], "no model client")
}

func TestSynthesizer_TablesOnlyStillGenerates(t *testing.T) {
	client := &recordingClient{response: "ok"}
	s := NewSynthesizer(newInvoker(t, client))

	env := envWith(t, extract.TheoryPayload{},
		[]extract.TableRecord{{Headers: []string{"A"}, Rows: [][]string{{"1"}}}})
	result := s.Invoke(context.Background(), env)

	assert.Equal(t, pipeline.StatusOK, result.Status)
	assert.Contains(t, client.lastPrompt, "(no theory content)")
}
