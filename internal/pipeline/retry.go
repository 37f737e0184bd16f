/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package pipeline

import (
	"context"
	"database/sql/driver"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sheetquery/internal/logging"
)

// RetryOptions configures the retry behavior
type RetryOptions struct {
	MaxAttempts       int           // Total attempts, including the first
	InitialBackoff    time.Duration // Initial backoff duration
	MaxBackoff        time.Duration // Maximum backoff duration
	BackoffMultiplier float64       // Multiplier for exponential backoff
}

// DefaultRetryOptions makes a single attempt. Failures surface immediately
// unless the caller raises MaxAttempts.
var DefaultRetryOptions = RetryOptions{
	MaxAttempts:       1,
	InitialBackoff:    100 * time.Millisecond,
	MaxBackoff:        2 * time.Second,
	BackoffMultiplier: 2.0,
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	var completionErr *CompletionError
	if errors.As(err, &completionErr) {
		return true
	}
	return errors.Is(err, driver.ErrBadConn)
}

// withRetry executes the given operation with retry logic
func withRetry[T any](ctx context.Context, opts RetryOptions, logger *zap.SugaredLogger, op func(context.Context) (T, error)) (T, error) {
	var lastErr error
	var result T
	logger = logging.OrNop(logger)

	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = &CancelledError{Msg: "operation cancelled by context", Err: err}
			}
			return result, lastErr
		}

		result, lastErr = op(ctx)
		if lastErr == nil {
			return result, nil
		}
		if !isRetryableError(lastErr) || attempt == attempts-1 {
			return result, lastErr
		}

		backoff := time.Duration(float64(opts.InitialBackoff) * math.Pow(opts.BackoffMultiplier, float64(attempt)))
		if opts.MaxBackoff > 0 && backoff > opts.MaxBackoff {
			backoff = opts.MaxBackoff
		}
		logger.Warnf("Operation failed on attempt %d with error: %v. Retrying in %v...", attempt+1, lastErr, backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, &CancelledError{Msg: "operation cancelled during backoff", Err: ctx.Err()}
		case <-timer.C:
		}
	}

	return result, lastErr
}
