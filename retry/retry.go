package retry

import (
	"context"
	"time"
)

const (
	// DefaultMaxRetries is the number of additional attempts after the
	// first, bounding a call at three attempts total.
	DefaultMaxRetries = 2

	// DefaultBaseWait is the wait before the first retry; subsequent waits
	// double up to DefaultMaxWait.
	DefaultBaseWait = 4 * time.Second

	// DefaultMaxWait caps the wait between attempts.
	DefaultMaxWait = 10 * time.Second
)

type config struct {
	maxRetries int
	baseWait   time.Duration
	maxWait    time.Duration
	onRetry    func(attempt int, err error)
}

// Option configures a call to Do.
type Option func(*config)

// WithMaxRetries sets how many times the operation is retried after the
// initial attempt. Zero means a single attempt.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// WithBaseWait sets the wait before the first retry.
func WithBaseWait(d time.Duration) Option {
	return func(c *config) { c.baseWait = d }
}

// WithMaxWait caps the wait between attempts.
func WithMaxWait(d time.Duration) Option {
	return func(c *config) { c.maxWait = d }
}

// WithOnRetry registers a callback invoked before each retry with the
// attempt number just failed (1-based) and its error.
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(c *config) { c.onRetry = fn }
}

// Do runs fn until it succeeds, returns a non-recoverable error, the context
// is done, or maxRetries additional attempts have been spent. The last error
// is returned unwrapped from its classification.
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	cfg := config{
		maxRetries: DefaultMaxRetries,
		baseWait:   DefaultBaseWait,
		maxWait:    DefaultMaxWait,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	wait := cfg.baseWait
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsRecoverable(err) || attempt >= cfg.maxRetries {
			return unwrapClassification(err)
		}
		if cfg.onRetry != nil {
			cfg.onRetry(attempt+1, unwrapClassification(err))
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if wait *= 2; wait > cfg.maxWait {
			wait = cfg.maxWait
		}
	}
}

// unwrapClassification strips the recoverable/non-recoverable wrapper so
// callers see the underlying error.
func unwrapClassification(err error) error {
	switch e := err.(type) {
	case *recoverableError:
		return e.err
	case *NonRecoverableError:
		return e.err
	}
	return err
}
