package engine

import (
	"math/rand"
	"time"
)

// RetryPolicy configures the BlockExecutor's retry behavior for a single
// block. The default N=0 (no retries) applies to arbitrary blocks; fetch and
// agent handlers drive their own retry loop internally and generally leave
// this unset on the Block itself (see SPEC_FULL.md's fetch/agent modules).
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first,
	// mirroring the teacher's "MaxAttempts >= 1 means no retries" contract.
	MaxAttempts int
	InitialMs   int
	MaxDelayMs  int
	Retryable   func(error) bool
}

// Validate mirrors the teacher's RetryPolicy.Validate: MaxAttempts must be
// at least 1, and when both delays are set MaxDelay must not be smaller than
// InitialMs.
func (rp *RetryPolicy) Validate() error {
	if rp == nil {
		return nil
	}
	if rp.MaxAttempts < 1 {
		return NewBlockError(ErrCodeValidation, "retry policy MaxAttempts must be >= 1", nil)
	}
	if rp.MaxDelayMs > 0 && rp.InitialMs > 0 && rp.MaxDelayMs < rp.InitialMs {
		return NewBlockError(ErrCodeValidation, "retry policy MaxDelayMs must be >= InitialMs", nil)
	}
	return nil
}

// computeBackoff returns exponential backoff with jitter, capped at maxMs.
func computeBackoff(attempt, initialMs, maxMs int, rng *rand.Rand) time.Duration {
	if initialMs <= 0 {
		return 0
	}
	exp := initialMs << attempt
	if maxMs > 0 && exp > maxMs {
		exp = maxMs
	}
	jitter := 0
	if rng != nil {
		jitter = rng.Intn(initialMs + 1)
	} else {
		jitter = rand.Intn(initialMs + 1) //nolint:gosec // jitter timing, not security sensitive
	}
	return time.Duration(exp+jitter) * time.Millisecond
}

func (rp *RetryPolicy) shouldRetry(err error) bool {
	if rp == nil || rp.Retryable == nil {
		return false
	}
	return rp.Retryable(err)
}
