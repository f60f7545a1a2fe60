package embedding

import (
	"context"
	"errors"
	"fmt"
)

// Embedder turns texts into vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// ErrVectorCount means a backend returned a different number of vectors than
// texts it was given.
var ErrVectorCount = errors.New("embedding vector count mismatch")

// UpstreamError marks a failure of the remote embedding service itself, the
// only kind of error that may be answered by switching to the deterministic
// embedder.
type UpstreamError struct {
	Backend string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s embedding upstream: %v", e.Backend, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
