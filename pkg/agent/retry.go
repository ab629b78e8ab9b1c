package agent

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/hivemind-lab/hivemind/pkg/model"
)

// Do runs fn up to attempts times with a fixed delay between tries. It
// returns the first successful value and the number of attempts used. Once
// every attempt fails the last error is returned as terminal, tagged as a
// timeout or a tool error. Context cancellation stops retrying early.
func Do[T any](ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context) (T, error)) (T, int, error) {
	var zero T
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		v, err := fn(ctx)
		if err == nil {
			return v, i, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if i < attempts && delay > 0 {
			select {
			case <-ctx.Done():
				return zero, i, classify(ctx.Err(), i)
			case <-time.After(delay):
			}
		}
	}

	return zero, attempts, classify(lastErr, attempts)
}

func classify(err error, attempts int) error {
	sentinel := model.ErrToolError
	if errors.Is(err, context.DeadlineExceeded) {
		sentinel = model.ErrToolTimeout
	}
	return goerr.Wrap(sentinel, "all attempts exhausted",
		goerr.V("attempts", attempts), goerr.V("cause", err.Error()))
}
