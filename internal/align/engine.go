// Package align computes alignment distances between encoded melodic
// strings, either in process or by invoking an external aligner.
package align

import (
	"context"
	"errors"

	"github.com/franz/fuga/internal/alphabet"
)

// ErrInvocation is returned when a single alignment could not be computed.
// The orchestrator records the affected track as failed and moves on.
var ErrInvocation = errors.New("alignment invocation failed")

// DefaultGapPenalty is the cost of inserting or deleting one symbol
const DefaultGapPenalty = 1.0

// Engine computes the distance between two encoded strings of one track.
// Implementations must be safe for concurrent use.
type Engine interface {
	Distance(ctx context.Context, a, b string, track alphabet.Track) (float64, error)
	Name() string
}
