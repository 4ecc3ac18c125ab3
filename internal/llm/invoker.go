package llm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"docsift/internal/logging"
)

// Budget is the process-wide invocation budget for one pipeline instance.
// Initialized once at construction and never mutated during execution;
// concurrency is enforced through the invoker's permit pool.
type Budget struct {
	MaxConcurrent int
	RetryLimit    int
}

// RetryPolicy controls how failed calls are retried. Backoff doubles per
// attempt starting at BaseDelay and is capped at MaxDelay.
type RetryPolicy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy matches the backoff the upstream providers tolerate.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  5 * time.Second,
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay * (1 << uint(attempt))
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Invoker bounds concurrent access to a model client with a counting permit
// pool and applies one uniform retry policy. A permit is acquired before
// every attempt and released on every exit path, so a failing or cancelled
// call can never leak capacity or starve sibling calls.
type Invoker struct {
	client  Client
	permits chan struct{}
	budget  Budget
	policy  RetryPolicy

	totalCalls  int64
	totalErrors int64
	totalWaitNs int64
	inFlight    int32
}

// NewInvoker creates an invoker over client. A non-positive concurrency
// budget or negative retry limit is a construction error.
func NewInvoker(client Client, budget Budget) (*Invoker, error) {
	return NewInvokerWithPolicy(client, budget, DefaultRetryPolicy())
}

// NewInvokerWithPolicy creates an invoker with a custom retry policy.
func NewInvokerWithPolicy(client Client, budget Budget, policy RetryPolicy) (*Invoker, error) {
	if client == nil {
		return nil, fmt.Errorf("invoker requires a client")
	}
	if budget.MaxConcurrent <= 0 {
		return nil, fmt.Errorf("invoker budget: max_concurrent must be positive, got %d", budget.MaxConcurrent)
	}
	if budget.RetryLimit < 0 {
		return nil, fmt.Errorf("invoker budget: retry_limit must not be negative, got %d", budget.RetryLimit)
	}
	if policy.BaseDelay <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &Invoker{
		client:  client,
		permits: make(chan struct{}, budget.MaxConcurrent),
		budget:  budget,
		policy:  policy,
	}, nil
}

// Budget returns the immutable budget this invoker enforces.
func (inv *Invoker) Budget() Budget {
	return inv.budget
}

// Call issues one model call, retrying up to the budget's retry limit. After
// retry_limit+1 failed attempts it returns a ServiceError wrapping the last
// cause. Context cancellation is observed while waiting for a permit, while
// backing off, and inside the call itself; it surfaces as ctx.Err(), not as
// a ServiceError.
func (inv *Invoker) Call(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	attempts := inv.budget.RetryLimit + 1

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := inv.attempt(ctx, prompt)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err

		if attempt < attempts-1 {
			backoff := inv.policy.delay(attempt)
			logging.Get(logging.CategoryLLM).Debug("retrying model call",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	atomic.AddInt64(&inv.totalErrors, 1)
	return "", &ServiceError{Attempts: attempts, Cause: lastErr}
}

// attempt acquires a permit, issues one call, and releases the permit
// unconditionally.
func (inv *Invoker) attempt(ctx context.Context, prompt string) (string, error) {
	waitStart := time.Now()
	select {
	case inv.permits <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	atomic.AddInt64(&inv.totalWaitNs, int64(time.Since(waitStart)))
	atomic.AddInt32(&inv.inFlight, 1)

	defer func() {
		atomic.AddInt32(&inv.inFlight, -1)
		<-inv.permits
	}()

	atomic.AddInt64(&inv.totalCalls, 1)
	return inv.client.Complete(ctx, prompt)
}

// BatchResult holds the outcome of one prompt in a batch call.
type BatchResult struct {
	Response string
	Err      error
}

// CallAll issues every prompt through the bounded pool and collects one
// result per prompt in input order. One failing prompt never aborts the
// others; cancellation does.
func (inv *Invoker) CallAll(ctx context.Context, prompts []string) []BatchResult {
	results := make([]BatchResult, len(prompts))
	var wg sync.WaitGroup
	for i, prompt := range prompts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := inv.Call(ctx, prompt)
			results[i] = BatchResult{Response: resp, Err: err}
		}()
	}
	wg.Wait()
	return results
}

// Metrics is a point-in-time snapshot of invoker activity.
type Metrics struct {
	MaxConcurrent int
	InFlight      int
	TotalCalls    int64
	TotalErrors   int64
	TotalWait     time.Duration
}

// Metrics returns current counters.
func (inv *Invoker) Metrics() Metrics {
	return Metrics{
		MaxConcurrent: inv.budget.MaxConcurrent,
		InFlight:      int(atomic.LoadInt32(&inv.inFlight)),
		TotalCalls:    atomic.LoadInt64(&inv.totalCalls),
		TotalErrors:   atomic.LoadInt64(&inv.totalErrors),
		TotalWait:     time.Duration(atomic.LoadInt64(&inv.totalWaitNs)),
	}
}

// String returns a human-readable summary.
func (m Metrics) String() string {
	return fmt.Sprintf("in_flight=%d/%d, calls=%d, errors=%d, total_wait=%v",
		m.InFlight, m.MaxConcurrent, m.TotalCalls, m.TotalErrors, m.TotalWait)
}
