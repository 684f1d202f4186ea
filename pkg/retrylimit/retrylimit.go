// Package retrylimit throttles and retries Discord REST calls. Requests go
// through an adaptive rate limiter that backs off on 429 and 5xx responses
// and recovers after a quiet period.
//
// Example usage:
//
//	lim := retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5)
//	err := retrylimit.WithRetry(ctx, func(ctx context.Context) error {
//	    _, err := s.ApplicationCommandBulkOverwrite(appID, guildID, cmds, discordgo.WithContext(ctx))
//	    return err
//	}, lim)
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// quietPeriod is how long the limiter waits after a failure before raising
// the rate again.
const quietPeriod = 10 * time.Second

// AdaptiveLimiter is a token bucket whose rate grows on success and shrinks
// on throttling. Safe for concurrent use.
type AdaptiveLimiter struct {
	mu        sync.RWMutex
	limiter   *rate.Limiter
	minLimit  rate.Limit
	maxLimit  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
}

// NewAdaptiveLimiter creates an AdaptiveLimiter.
//
// Parameters:
//   - initial: starting requests per second
//   - min, max: bounds for the rate
//   - stepUp: increment on success
//   - stepDown: multiplier applied on failure (e.g. 0.5 to halve)
func NewAdaptiveLimiter(initial, min, max, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	if initial < 1 {
		initial = 1
	}
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, burstFor(initial)),
		minLimit: min,
		maxLimit: max,
		stepUp:   stepUp,
		stepDown: stepDown,
	}
}

// Wait blocks until a token is available or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// Success raises the rate unless a failure happened recently.
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.lastError) > quietPeriod {
		a.adjustLimit(a.limiter.Limit() + a.stepUp)
	}
}

// RateLimited lowers the rate after throttling or a server error.
func (a *AdaptiveLimiter) RateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = time.Now()
	a.adjustLimit(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// CurrentLimit returns the current requests per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) adjustLimit(l rate.Limit) {
	l = min(max(l, a.minLimit), a.maxLimit)
	if l != a.limiter.Limit() {
		a.limiter.SetLimit(l)
		a.limiter.SetBurst(burstFor(l))
	}
}

func burstFor(l rate.Limit) int { return max(1, int(l)) }

// HTTPError is implemented by errors that carry a status code.
type HTTPError interface {
	error
	StatusCode() int
}

// FatalError stops retries immediately.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Fatal marks err as not retryable.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// StatusCode extracts the HTTP status of a Discord REST error or any
// HTTPError in err's chain. It returns 0 when there is none.
func StatusCode(err error) int {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return rest.Response.StatusCode
	}
	var herr HTTPError
	if errors.As(err, &herr) {
		return herr.StatusCode()
	}
	return 0
}

// Retryable reports whether err is worth another attempt: throttling,
// server errors and network failures are; other 4xx responses and
// FatalError are not.
func Retryable(err error) bool {
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return false
	}
	switch code := StatusCode(err); {
	case code == http.StatusTooManyRequests, code >= 500 && code < 600:
		return true
	case code != 0:
		return false
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts    int           // 0 means DefaultRetryConfig's value
	InitialDelay   time.Duration // first backoff delay
	MaxDelay       time.Duration // backoff cap
	RateLimitDelay time.Duration // fixed pause after a 429
	Multiplier     float64
	Jitter         bool
	// Retryable overrides the default classification.
	Retryable func(error) bool
	OnRetry   func(attempt int, err error)
	Logger    *zap.Logger
}

// DefaultRetryConfig suits interactive REST calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    5,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		RateLimitDelay: time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		Retryable:      Retryable,
		Logger:         zap.NewNop(),
	}
}

// WithRetry runs fn with DefaultRetryConfig.
func WithRetry(ctx context.Context, fn func(context.Context) error, lim *AdaptiveLimiter) error {
	return WithRetryConfig(ctx, fn, lim, DefaultRetryConfig())
}

// WithRetryConfig runs fn until it succeeds, returns a non-retryable error,
// ctx is done or the attempts run out. The last error is returned as is so
// callers can inspect its status code.
func WithRetryConfig(ctx context.Context, fn func(context.Context) error, lim *AdaptiveLimiter, cfg RetryConfig) error {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Retryable == nil {
		cfg.Retryable = Retryable
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = def.Multiplier
	}

	delay := cfg.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn(ctx)
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			if attempt > 1 {
				cfg.Logger.Debug("request succeeded after retry", zap.Int("attempts", attempt))
			}
			return nil
		}
		lastErr = err
		if !cfg.Retryable(err) || attempt == cfg.MaxAttempts {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		code := StatusCode(err)
		wait := delay
		if code == http.StatusTooManyRequests {
			wait = cfg.RateLimitDelay
		}
		if code == http.StatusTooManyRequests || code >= 500 {
			if lim != nil {
				lim.RateLimited()
			}
		}
		if cfg.Jitter {
			wait = addJitter(wait)
		}
		cfg.Logger.Warn("request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("status", code),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}

		if code != http.StatusTooManyRequests {
			delay = min(time.Duration(float64(delay)*cfg.Multiplier), cfg.MaxDelay)
		}
	}

	var fatal *FatalError
	if errors.As(lastErr, &fatal) {
		return fatal.Err
	}
	if cfg.Retryable(lastErr) {
		return fmt.Errorf("giving up after %d attempts: %w", cfg.MaxAttempts, lastErr)
	}
	return lastErr
}

// addJitter adds up to 25% random delay.
func addJitter(d time.Duration) time.Duration {
	if d < 4 {
		return d
	}
	return d + rand.N(d/4)
}
