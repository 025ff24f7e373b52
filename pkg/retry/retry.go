// Package retry wraps upstream calls that may be throttled.
package retry

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const maxInterval = time.Hour

// Policy bounds the retry budget. Delays double after every attempt.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxRetries: 5, InitialDelay: 2 * time.Second}
}

// Do runs op, retrying only while the failure is a rate limit and the
// budget allows. Any other error is returned unchanged on first sight.
func Do[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultPolicy().InitialDelay
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         ceiling(p),
	}
	b.Reset()

	wrapped := func() (T, error) {
		res, err := op()
		if err != nil && !IsRateLimited(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	res, err := backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Printf("[Retry] rate limited, retrying in %v: %v", wait, err)
		}),
	)
	return res, err
}

// ceiling is the largest single wait the policy can produce.
func ceiling(p Policy) time.Duration {
	d := p.InitialDelay
	for i := 1; i < p.MaxRetries; i++ {
		d *= 2
		if d >= maxInterval {
			return maxInterval
		}
	}
	return d
}

// IsRateLimited reports whether err signals upstream throttling.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == 429 {
		return true
	}

	var httpCoder interface{ HTTPStatusCode() int }
	if errors.As(err, &httpCoder) && httpCoder.HTTPStatusCode() == 429 {
		return true
	}

	var statusCoder interface{ StatusCode() int }
	if errors.As(err, &statusCoder) && statusCoder.StatusCode() == 429 {
		return true
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		if s, ok := status.FromError(e); ok && s.Code() == codes.ResourceExhausted {
			return true
		}
	}
	return false
}
