package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Parallel invokes all runners concurrently against the same input snapshot,
// waits for every branch to reach a terminal state, and merges results by
// stage key. Keys are disjoint by construction, so the merged content is
// independent of scheduling order. A branch's contained failure never
// cancels its siblings; only caller cancellation tears the group down, in
// which case partial branches are discarded.
type Parallel struct {
	runners []Runner
}

// NewParallel builds a parallel group. Duplicate stage keys across the group
// fail fast with a ConfigError rather than silently overwriting.
func NewParallel(runners ...Runner) (*Parallel, error) {
	if len(runners) == 0 {
		return nil, NewConfigError("parallel group requires at least one runner")
	}
	seen := make(map[string]bool)
	for _, r := range runners {
		for _, key := range r.Keys() {
			if seen[key] {
				return nil, NewConfigError("duplicate stage key %q in parallel group", key)
			}
			seen[key] = true
		}
	}
	return &Parallel{runners: runners}, nil
}

// Keys returns the union of child keys in declaration order.
func (p *Parallel) Keys() []string {
	var keys []string
	for _, r := range p.runners {
		keys = append(keys, r.Keys()...)
	}
	return keys
}

// Run fans the input out to every branch and merges the branch envelopes.
// Each branch operates on its own clone of the input, so no state is shared
// across concurrent stages. Branches only return errors on cancellation;
// stage failures are already contained as StageResults.
func (p *Parallel) Run(ctx context.Context, env *Envelope) (*Envelope, error) {
	branches := make([]*Envelope, len(p.runners))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, r := range p.runners {
		eg.Go(func() error {
			out, err := r.Run(egCtx, env.Clone())
			if err != nil {
				return err
			}
			branches[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// Merge in declaration order. Keys are disjoint, so the merge is
	// commutative; declaration order only fixes the envelope's iteration
	// order for serialization.
	merged := env.Clone()
	for i, branch := range branches {
		for _, key := range p.runners[i].Keys() {
			if r, ok := branch.Get(key); ok {
				merged.set(key, r)
			}
		}
		if branch.Failed() {
			merged.markFailed()
		}
	}
	return merged, nil
}
