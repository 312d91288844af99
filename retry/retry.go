// Package retry provides the bounded retry-with-fixed-delay primitive shared by
// transaction confirmation polling and lookup-table visibility polling.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultAttempts is the attempt count used when none is configured.
	DefaultAttempts = 30

	// DefaultDelay is the pause between attempts used when none is configured.
	DefaultDelay = 2 * time.Second
)

// ErrExhausted indicates every attempt failed. The last attempt's error is
// wrapped alongside it.
var ErrExhausted = errors.New("retry: attempts exhausted")

// sleepFunc waits for d or until ctx is done. Tests replace it.
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Policy configures a bounded retry loop.
type Policy struct {
	Attempts int
	Delay    time.Duration
	Message  string
}

// Option mutates a Policy.
type Option func(*Policy)

// WithAttempts sets the maximum number of calls made.
func WithAttempts(n int) Option {
	return func(p *Policy) { p.Attempts = n }
}

// WithDelay sets the fixed pause between calls.
func WithDelay(d time.Duration) Option {
	return func(p *Policy) { p.Delay = d }
}

// WithMessage sets the message logged on each failed attempt.
func WithMessage(msg string) Option {
	return func(p *Policy) { p.Message = msg }
}

// WithPolicy copies every field of an existing policy.
func WithPolicy(src Policy) Option {
	return func(p *Policy) { *p = src }
}

// NewPolicy returns a Policy with defaults applied and opts layered on top.
func NewPolicy(opts ...Option) Policy {
	p := Policy{Attempts: DefaultAttempts, Delay: DefaultDelay, Message: "retrying"}
	for _, o := range opts {
		o(&p)
	}
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// permanentError marks an error that must not be retried.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Do returns it immediately instead of retrying.
// A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do calls f until it succeeds, returns a Permanent error, the context ends,
// or the policy's attempts are used up. Attempts are separated by the fixed delay.
// On exhaustion the returned error wraps both ErrExhausted and f's last error.
func Do[T any](ctx context.Context, logger zerolog.Logger, f func(attempt int) (T, error), opts ...Option) (T, error) {
	p := NewPolicy(opts...)

	var zero T
	var lastErr error
	for i := 1; i <= p.Attempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := f(i)
		if err == nil {
			return result, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		lastErr = err

		if i == p.Attempts {
			break
		}
		logger.Debug().Err(err).Int("attempt", i).Int("max_attempts", p.Attempts).Msg(p.Message)
		if err := sleepFunc(ctx, p.Delay); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.Attempts, lastErr)
}
