// Package llm provides generative-model clients and the bounded invoker that
// serializes access to them. Clients expose one capability: generate text for
// a prompt. Everything above this package treats the model as an unreliable
// external collaborator.
package llm

import (
	"context"
	"fmt"
)

// Client defines the interface for model providers. Single request/response
// per call, no streaming.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ServiceError reports that a model call exhausted its retry budget. It is
// contained at the owning stage boundary; stages degrade to warning or failed
// rather than letting it propagate.
type ServiceError struct {
	Attempts int
	Cause    error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("model call failed after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}
