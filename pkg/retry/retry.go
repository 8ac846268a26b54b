// Package retry re-runs operations that fail with temporary errors, waiting
// an exponentially growing delay between attempts.
//
// A Retrier is built once from a Config and shared by every call that should
// follow the same policy. Each call names its operation so retries show up in
// the logs with enough context to tell them apart.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/NavarchProject/gpurunner/pkg/clock"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// InitialDelay is the delay before the first retry. Default: 1s.
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries. Default: 30s.
	MaxDelay time.Duration

	// Multiplier is the factor by which the delay grows after each retry.
	// Default: 2.
	Multiplier float64

	// Jitter randomizes delays: 0.2 means +/- 20% of the delay.
	Jitter float64

	// Retryable decides whether an error is worth another attempt.
	// If nil, every error is retried.
	Retryable func(error) bool

	// Logger receives a warning for every retry. Default: slog.Default().
	Logger *slog.Logger

	// Clock is used for delays. If nil, uses real time.
	Clock clock.Clock
}

// NetworkConfig returns a configuration suited to transient network
// failures. Only Temporary errors are retried.
func NetworkConfig() Config {
	return Config{
		MaxAttempts:  4,
		InitialDelay: 2 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
		Retryable:    Temporary,
	}
}

// Enabled reports whether the configuration allows more than one attempt.
func (c Config) Enabled() bool {
	return c.MaxAttempts > 1
}

// Temporary reports whether err, or any error it wraps, has a Temporary
// method that returns true.
func Temporary(err error) bool {
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}

// Retrier runs operations under one retry policy. It is safe for
// concurrent use.
type Retrier struct {
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a Retrier. Zero-valued fields of cfg take their defaults.
func New(cfg Config) *Retrier {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = 2.0
	}

	r := &Retrier{cfg: cfg, clock: cfg.Clock, logger: cfg.Logger}
	if r.clock == nil {
		r.clock = clock.Real()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Do calls fn until it succeeds, returns an error Retryable rejects, the
// attempts run out, or ctx is done. It returns the last error from fn,
// joined with ctx.Err() if the context ended the loop.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := newBackoff(r.cfg)

	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(err, lastErr)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if r.cfg.Retryable != nil && !r.cfg.Retryable(err) {
			return err
		}
		if attempt >= r.cfg.MaxAttempts {
			return err
		}

		wait := b.next()
		r.logger.WarnContext(ctx, "operation failed, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", r.cfg.MaxAttempts),
			slog.Duration("delay", wait),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), lastErr)
		case <-r.clock.After(wait):
		}
	}
}

// Value is Do for operations that return a value.
func Value[T any](ctx context.Context, r *Retrier, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, op, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}

// backoff yields the delays of one Do call.
type backoff struct {
	delay      time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64
	rand       func() float64
}

func newBackoff(cfg Config) *backoff {
	return &backoff{
		delay:      cfg.InitialDelay,
		max:        cfg.MaxDelay,
		multiplier: cfg.Multiplier,
		jitter:     cfg.Jitter,
		rand:       rand.Float64,
	}
}

// next returns the wait before the coming retry and grows the delay for the
// one after it. Jitter applies to the returned wait only.
func (b *backoff) next() time.Duration {
	wait := b.delay
	if b.jitter > 0 {
		spread := float64(b.delay) * b.jitter
		wait += time.Duration(b.rand()*2*spread - spread)
	}

	b.delay = time.Duration(float64(b.delay) * b.multiplier)
	if b.delay > b.max {
		b.delay = b.max
	}
	return wait
}
