package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubStage is a configurable stage for engine tests.
type stubStage struct {
	key    string
	delay  time.Duration
	result StageResult
	panics bool
	calls  int32
	invoke func(ctx context.Context, env *Envelope) StageResult
}

func (s *stubStage) Key() string { return s.key }

func (s *stubStage) Invoke(ctx context.Context, env *Envelope) StageResult {
	atomic.AddInt32(&s.calls, 1)
	if s.panics {
		panic("stub stage exploded")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}
	if s.invoke != nil {
		return s.invoke(ctx, env)
	}
	return s.result
}

func okStage(key string, payload interface{}) *stubStage {
	return &stubStage{key: key, result: StageResult{Status: StatusOK, Payload: payload}}
}

func failStage(key string) *stubStage {
	return &stubStage{key: key, result: StageResult{
		Status:      StatusFailed,
		Diagnostics: map[string]string{"error": "stub failure"},
	}}
}

func snapshot(env *Envelope) map[string]StageResult {
	out := make(map[string]StageResult)
	for _, k := range env.Keys() {
		r, _ := env.Get(k)
		out[k] = r
	}
	return out
}

func TestSequence_ThreadsEnvelope(t *testing.T) {
	second := &stubStage{
		key: "b",
		invoke: func(ctx context.Context, env *Envelope) StageResult {
			// The accumulated result of the prior stage is visible.
			prev, ok := env.Get("a")
			require.True(t, ok)
			return StageResult{Status: StatusOK, Payload: prev.Payload.(string) + "+b"}
		},
	}

	seq, err := NewSequence(Single(okStage("a", "a")), Single(second))
	require.NoError(t, err)

	env, err := seq.Run(context.Background(), NewEnvelope(NewDocument("doc")))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, env.Keys())
	got, _ := env.Get("b")
	assert.Equal(t, "a+b", got.Payload)
}

func TestSequence_FailureIsContained(t *testing.T) {
	tail := okStage("c", "ran")
	seq, err := NewSequence(Single(okStage("a", 1)), Single(failStage("b")), Single(tail))
	require.NoError(t, err)

	env, err := seq.Run(context.Background(), NewEnvelope(NewDocument("doc")))
	require.NoError(t, err)

	assert.False(t, env.Failed())
	assert.Equal(t, []string{"a", "b", "c"}, env.Keys())
	assert.EqualValues(t, 1, tail.calls, "a non-critical failure must not stop the sequence")

	b, _ := env.Get("b")
	assert.Equal(t, StatusFailed, b.Status)
}

func TestSequence_CriticalFailureAborts(t *testing.T) {
	tail := okStage("c", "ran")
	seq, err := NewSequence(Single(okStage("a", 1)), Critical(failStage("b")), Single(tail))
	require.NoError(t, err)

	env, err := seq.Run(context.Background(), NewEnvelope(NewDocument("doc")))
	require.NoError(t, err)

	assert.True(t, env.Failed(), "critical failure must set the overall marker")
	assert.Equal(t, []string{"a", "b"}, env.Keys(), "partial envelope up to the critical stage")
	assert.EqualValues(t, 0, tail.calls)
}

func TestSequence_EmptyIsConfigError(t *testing.T) {
	_, err := NewSequence()
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestParallel_DuplicateKeysRejected(t *testing.T) {
	_, err := NewParallel(Single(okStage("x", 1)), Single(okStage("x", 2)))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), `duplicate stage key "x"`)
}

func TestParallel_MergeIndependentOfCompletionOrder(t *testing.T) {
	// Run the same group with permuted branch delays; the merged envelope
	// content must be identical every time.
	delays := [][]time.Duration{
		{0, 10 * time.Millisecond, 20 * time.Millisecond},
		{20 * time.Millisecond, 0, 10 * time.Millisecond},
		{10 * time.Millisecond, 20 * time.Millisecond, 0},
	}

	var reference map[string]StageResult
	for _, perm := range delays {
		a := &stubStage{key: "a", delay: perm[0], result: StageResult{Status: StatusOK, Payload: "pa"}}
		b := &stubStage{key: "b", delay: perm[1], result: StageResult{Status: StatusWarning, Payload: "pb"}}
		c := &stubStage{key: "c", delay: perm[2], result: StageResult{Status: StatusOK, Payload: "pc"}}

		par, err := NewParallel(Single(a), Single(b), Single(c))
		require.NoError(t, err)

		env, err := par.Run(context.Background(), NewEnvelope(NewDocument("doc")))
		require.NoError(t, err)

		assert.Equal(t, []string{"a", "b", "c"}, env.Keys())
		if reference == nil {
			reference = snapshot(env)
			continue
		}
		if diff := cmp.Diff(reference, snapshot(env)); diff != "" {
			t.Fatalf("merged envelope differs across completion orders:\n%s", diff)
		}
	}
}

func TestParallel_FailedBranchDoesNotCancelSiblings(t *testing.T) {
	slow := &stubStage{key: "slow", delay: 30 * time.Millisecond,
		result: StageResult{Status: StatusOK, Payload: "done"}}

	par, err := NewParallel(Single(failStage("bad")), Single(slow))
	require.NoError(t, err)

	env, err := par.Run(context.Background(), NewEnvelope(NewDocument("doc")))
	require.NoError(t, err)

	bad, _ := env.Get("bad")
	assert.Equal(t, StatusFailed, bad.Status)
	good, _ := env.Get("slow")
	assert.Equal(t, StatusOK, good.Status)
	assert.Equal(t, "done", good.Payload)
}

func TestParallel_PanickingBranchIsContained(t *testing.T) {
	boom := &stubStage{key: "boom", panics: true}
	par, err := NewParallel(Single(boom), Single(okStage("ok", "v")))
	require.NoError(t, err)

	env, err := par.Run(context.Background(), NewEnvelope(NewDocument("doc")))
	require.NoError(t, err)

	r, ok := env.Get("boom")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Contains(t, r.Diagnostics["panic"], "exploded")

	good, _ := env.Get("ok")
	assert.Equal(t, StatusOK, good.Status)
}

func TestParallel_CancellationDiscardsPartialBranches(t *testing.T) {
	slow := &stubStage{key: "slow", delay: time.Second,
		result: StageResult{Status: StatusOK, Payload: "late"}}
	fast := okStage("fast", "early")

	par, err := NewParallel(Single(fast), Single(slow))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	env, err := par.Run(ctx, NewEnvelope(NewDocument("doc")))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, env)
}

func TestParallel_BranchesSeeInputSnapshot(t *testing.T) {
	// Each branch receives the pre-fan-out envelope, not sibling results.
	probe := &stubStage{
		key: "probe",
		invoke: func(ctx context.Context, env *Envelope) StageResult {
			_, sawSibling := env.Get("other")
			return StageResult{Status: StatusOK, Payload: sawSibling}
		},
	}
	par, err := NewParallel(Single(okStage("other", "v")), Single(probe))
	require.NoError(t, err)

	env, err := par.Run(context.Background(), NewEnvelope(NewDocument("doc")))
	require.NoError(t, err)

	r, _ := env.Get("probe")
	assert.Equal(t, false, r.Payload)
}

func TestNestedComposition(t *testing.T) {
	par, err := NewParallel(Single(okStage("a", 1)), Single(okStage("b", 2)))
	require.NoError(t, err)

	terminal := &stubStage{
		key: "c",
		invoke: func(ctx context.Context, env *Envelope) StageResult {
			// Terminal stage sees both parallel results.
			_, hasA := env.Get("a")
			_, hasB := env.Get("b")
			return StageResult{Status: StatusOK, Payload: hasA && hasB}
		},
	}

	seq, err := NewSequence(par, Single(terminal))
	require.NoError(t, err)

	env, err := seq.Run(context.Background(), NewEnvelope(NewDocument("doc")))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, env.Keys())
	r, _ := env.Get("c")
	assert.Equal(t, true, r.Payload)
}

func TestEnvelope_CloneIsIndependent(t *testing.T) {
	env := NewEnvelope(NewDocument("doc"))
	env.set("a", StageResult{Status: StatusOK})

	clone := env.Clone()
	clone.set("b", StageResult{Status: StatusOK})
	clone.markFailed()

	assert.Equal(t, 1, env.Len())
	assert.False(t, env.Failed())
	assert.Equal(t, 2, clone.Len())
}

func TestStageResult_WithDiagnostic(t *testing.T) {
	base := StageResult{Status: StatusOK, Diagnostics: map[string]string{"k": "v"}}
	updated := base.WithDiagnostic("extra", "info")

	assert.Equal(t, "info", updated.Diagnostics["extra"])
	_, ok := base.Diagnostics["extra"]
	assert.False(t, ok, "original diagnostics must not be mutated")
}

func TestDocument(t *testing.T) {
	doc := NewDocument("one\r\ntwo\nthree")
	assert.Equal(t, 3, doc.Len())
	assert.Equal(t, []string{"one", "two"}, doc.Prefix(2))
	assert.Equal(t, []string{"one", "two", "three"}, doc.Prefix(10))
	assert.Equal(t, "one\ntwo\nthree", doc.Text())
	assert.False(t, doc.IsBlank())
	assert.True(t, NewDocument("  \n\t\n").IsBlank())

	// Accessors hand out copies.
	lines := doc.Lines()
	lines[0] = "mutated"
	assert.Equal(t, []string{"one", "two", "three"}, doc.Lines())
}
