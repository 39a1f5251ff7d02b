package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"reel-compare/internal/domain"
)

// Policy describes how one pipeline stage retries. Stages differ:
// probe/download use few retries with endpoint rotation, inference uses
// two retries with a higher multiplier, parsing gets a single
// abbreviated-prompt retry handled by the orchestrator itself.
type Policy struct {
	MaxRetries   uint64
	BaseDelay    time.Duration
	MaxInterval  time.Duration
	Multiplier   float64
	JitterFactor float64
	// Timeout bounds every individual attempt. The underlying operation
	// is not guaranteed to stop at the deadline unless it runs through
	// exec.CommandContext; adapters that own an OS process handle kill
	// it, anything else is a known leak until it returns.
	Timeout   time.Duration
	Retryable func(error) bool
}

// Do runs op under the policy, classifying each failure as retryable or
// fatal. Fatal errors abort immediately; retryable ones back off with
// jitter until attempts are exhausted.
func Do[T any](ctx context.Context, log *zerolog.Logger, name string, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	classify := p.Retryable
	if classify == nil {
		classify = Transient
	}

	attempt := func() (T, error) {
		actx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}
		out, err := op(actx)
		if err != nil && !classify(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}

	eb := backoff.NewExponentialBackOff()
	if p.BaseDelay > 0 {
		eb.InitialInterval = p.BaseDelay
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		eb.Multiplier = p.Multiplier
	}
	if p.JitterFactor > 0 {
		eb.RandomizationFactor = p.JitterFactor
	}
	eb.MaxElapsedTime = 0 // bounded by MaxRetries and ctx, not wall clock

	b := backoff.WithContext(backoff.WithMaxRetries(eb, p.MaxRetries), ctx)

	notify := func(err error, wait time.Duration) {
		if log != nil {
			log.Warn().Err(err).Str("op", name).Dur("backoff", wait).Msg("retrying")
		}
	}
	return backoff.RetryNotifyWithData(attempt, b, notify)
}

// Transient is the default retryability predicate: 5xx-like statuses and
// the usual timeout/unavailable/aborted message patterns.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, domain.ErrTimeout) ||
		errors.Is(err, domain.ErrUpstreamTimeout) ||
		errors.Is(err, domain.ErrUpstreamBlocked) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pat := range transientPatterns {
		if strings.Contains(msg, pat) {
			return true
		}
	}
	return false
}

var transientPatterns = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"unavailable",
	"aborted",
	"connection reset",
	"connection refused",
	"temporarily",
	"too many requests",
	"resource exhausted",
	"overloaded",
	"status 429",
	"status 500",
	"status 502",
	"status 503",
	"status 504",
	"http 429",
	"http 500",
	"http 502",
	"http 503",
	"http 504",
	"internal server error",
	"bad gateway",
	"service unavailable",
	"gateway timeout",
}
