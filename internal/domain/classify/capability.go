// Package classify assigns a spending category and a canonical vendor
// name to extracted candidates, using ledger history first and a
// semantic capability second. Capability absence degrades the result,
// never the pipeline.
package classify

import (
	"context"
	"errors"
)

// ErrUnavailable signals that the semantic capability cannot serve
// requests right now. Callers retry with backoff before degrading.
var ErrUnavailable = errors.New("classification capability unavailable")

// Capability is a pluggable text-classification provider. Classify
// returns the chosen category with a calibrated score in [0,1]. An
// empty category with a nil error means "no opinion".
type Capability interface {
	Classify(ctx context.Context, text string, candidates []string) (string, float64, error)
}
