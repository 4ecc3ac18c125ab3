package pipeline

import "context"

// Sequence invokes runners in order, threading the accumulated envelope
// forward. A failed stage is recorded and execution continues unless the
// stage was wrapped with Critical, in which case the sequence stops and
// returns the partial envelope with its Failed marker set.
type Sequence struct {
	runners []Runner
}

// NewSequence builds a sequence. At least one runner is required.
func NewSequence(runners ...Runner) (*Sequence, error) {
	if len(runners) == 0 {
		return nil, NewConfigError("sequence requires at least one runner")
	}
	return &Sequence{runners: runners}, nil
}

// Keys returns the union of child keys in declaration order.
func (s *Sequence) Keys() []string {
	var keys []string
	for _, r := range s.runners {
		keys = append(keys, r.Keys()...)
	}
	return keys
}

// Run executes the sequence. Strict happens-before holds between consecutive
// runners. The only errors returned are context cancellation; stage failures
// live inside the envelope.
func (s *Sequence) Run(ctx context.Context, env *Envelope) (*Envelope, error) {
	out := env
	for _, r := range s.runners {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := r.Run(ctx, out)
		if err != nil {
			return nil, err
		}
		out = next
		if out.Failed() {
			return out, nil
		}
	}
	return out, nil
}
