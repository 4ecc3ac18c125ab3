package llm

import (
	"context"
	"strings"
	"sync/atomic"
	"time"
)

// MockClient simulates a model provider with canned, keyword-routed
// responses. It backs the --mock CLI mode and most tests: a fixed delay
// stands in for network latency and FailFirst injects transient failures to
// exercise the invoker's retry path.
type MockClient struct {
	// Delay simulates per-call latency.
	Delay time.Duration
	// FailFirst makes the first n calls fail before succeeding.
	FailFirst int
	// FailAll makes every call fail.
	FailAll bool
	// Err overrides the error returned by injected failures.
	Err error

	calls int64
}

type mockFailure struct{}

func (mockFailure) Error() string { return "mock model unavailable" }

// NewMockClient creates a mock with the default 100ms latency.
func NewMockClient() *MockClient {
	return &MockClient{Delay: 100 * time.Millisecond}
}

// Complete returns a canned response chosen by prompt keywords.
func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	atomic.AddInt64(&m.calls, 1)

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if m.FailAll || atomic.LoadInt64(&m.calls) <= int64(m.FailFirst) {
		if m.Err != nil {
			return "", m.Err
		}
		return "", mockFailure{}
	}

	return m.respond(prompt), nil
}

// Calls returns how many times Complete has been invoked.
func (m *MockClient) Calls() int64 {
	return atomic.LoadInt64(&m.calls)
}

func (m *MockClient) respond(prompt string) string {
	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, "report"):
		return mockReportResponse
	case strings.Contains(lower, "table"):
		return mockTableResponse
	case strings.Contains(lower, "theory") || strings.Contains(lower, "summar"):
		return mockTheoryResponse
	default:
		return "This is a generic mock response."
	}
}

const mockTheoryResponse = `## Theoretical Framework

- The work builds on established findings in the field.
- The central hypothesis links the observed variables directly.
- A mixed quantitative and qualitative method is applied.
- The data supports the stated hypothesis.`

const mockTableResponse = `## Table Analysis

**Interpretation**: The table shows a clear trend supporting the hypothesis.

**Key findings**: A significant correlation is present (p < 0.05).

**Implications**: The findings matter for further theoretical development.`

const mockReportResponse = `# Analysis Report

## Background
The research background is clear and the theoretical basis is solid.

## Methodology
The method is sound and the data analysis is reasonable.

## Results
The results support the stated hypothesis.

## Conclusion
The conclusions carry both theoretical and practical significance.`
