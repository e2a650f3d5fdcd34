package ingest

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxFailures bounds the failed attempts of one paginated run.
const DefaultMaxFailures = 100

// ErrRetriesExhausted reports that a paginated run hit its failure bound.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Step performs one fetch-and-commit cycle. It reports done once the source is drained.
type Step func(ctx context.Context) (done bool, err error)

// Retry runs step until it reports done. Failures are counted across the whole run,
// not per step, and are retried immediately. Once maxFailures attempts have failed the
// run aborts with the last error. A step that fails after ctx ends is not counted.
// onFailure, when set, observes every counted failure.
func Retry(ctx context.Context, maxFailures int, step Step, onFailure func(n int, err error)) (int, error) {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return failures, err
		}

		done, err := step(ctx)
		if err == nil {
			if done {
				return failures, nil
			}
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return failures, ctxErr
		}

		failures++
		if onFailure != nil {
			onFailure(failures, err)
		}
		if failures >= maxFailures {
			return failures, fmt.Errorf("%w after %d failures: %w", ErrRetriesExhausted, failures, err)
		}
	}
}
