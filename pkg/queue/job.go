package queue

import "context"

// Job defines a queue job handler.
type Job interface {
	// Type returns the type of message that the job handles.
	Type() string

	// Handle processes the job with the given payload.
	Handle(ctx context.Context, payload []byte) error
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	Kind string
	Fn   func(ctx context.Context, payload []byte) error
}

func (j JobFunc) Type() string { return j.Kind }

func (j JobFunc) Handle(ctx context.Context, payload []byte) error {
	return j.Fn(ctx, payload)
}
