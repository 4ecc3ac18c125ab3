package pipeline

// Envelope is the accumulating mapping of stage key to StageResult threaded
// through composition. Insertion order is preserved so sequential output is
// stable; parallel merges write disjoint keys in declaration order. The
// Failed marker is set when a critical stage aborts a sequence.
type Envelope struct {
	doc     Document
	order   []string
	results map[string]StageResult
	failed  bool
}

// NewEnvelope creates an empty envelope around a document.
func NewEnvelope(doc Document) *Envelope {
	return &Envelope{
		doc:     doc,
		results: make(map[string]StageResult),
	}
}

// Document returns the source document.
func (e *Envelope) Document() Document {
	return e.doc
}

// Get returns the result recorded under key.
func (e *Envelope) Get(key string) (StageResult, bool) {
	r, ok := e.results[key]
	return r, ok
}

// Keys returns the recorded stage keys in insertion order.
func (e *Envelope) Keys() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Len returns the number of recorded results.
func (e *Envelope) Len() int {
	return len(e.order)
}

// Failed reports whether a critical stage aborted the run.
func (e *Envelope) Failed() bool {
	return e.failed
}

// set records a result, replacing any prior entry under the same key without
// disturbing insertion order. Only the engine writes to envelopes.
func (e *Envelope) set(key string, r StageResult) {
	if _, exists := e.results[key]; !exists {
		e.order = append(e.order, key)
	}
	e.results[key] = r
}

func (e *Envelope) markFailed() {
	e.failed = true
}

// Clone returns an independent copy. Parallel branches each receive a clone
// so no state is shared across concurrent stages.
func (e *Envelope) Clone() *Envelope {
	out := &Envelope{
		doc:     e.doc,
		order:   make([]string, len(e.order)),
		results: make(map[string]StageResult, len(e.results)),
		failed:  e.failed,
	}
	copy(out.order, e.order)
	for k, v := range e.results {
		out.results[k] = v
	}
	return out
}
