// Package pipeline provides the stage abstraction and the data passed
// between framecoder's stages.
package pipeline

import (
	"context"
)

// Stage represents a processing stage in the pipeline.
type Stage[In, Out any] interface {
	Execute(ctx context.Context, input In) (Out, error)
}
