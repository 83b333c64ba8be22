package gateway

import (
	"context"
	"errors"
	"time"

	apperrors "giveaway-core-backend/internal/common/errors"
	"giveaway-core-backend/internal/common/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// PolicyConfig parameterizes the outbound call policy for one
// collaborator.
type PolicyConfig struct {
	Timeout          time.Duration
	MaxRetries       int
	BaseDelay        time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Policy wraps every call to a single collaborator with a per-attempt
// timeout, bounded exponential-backoff retries for transient failures,
// and a circuit breaker. One Policy instance per collaborator; the
// breaker state is shared across all of that collaborator's operations.
type Policy struct {
	collaborator string
	timeout      time.Duration
	maxRetries   uint64
	baseDelay    time.Duration
	breaker      *gobreaker.CircuitBreaker
}

func NewPolicy(collaborator string, cfg PolicyConfig) *Policy {
	settings := gobreaker.Settings{
		Name:        collaborator,
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.BreakerThreshold)
		},
		// Caller-side errors (validation, auth, not found, conflict) say
		// nothing about the collaborator's health and must not trip the
		// breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || !countsAsBreakerFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("collaborator", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}

	return &Policy{
		collaborator: collaborator,
		timeout:      cfg.Timeout,
		maxRetries:   uint64(cfg.MaxRetries),
		baseDelay:    cfg.BaseDelay,
		breaker:      gobreaker.NewCircuitBreaker(settings),
	}
}

// Do runs fn under the policy. fn receives a context bounded by the
// per-attempt timeout.
func (p *Policy) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.retry(ctx, operation, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.Newf(apperrors.ErrCodeDependencyUnavailable,
			"%s circuit open", p.collaborator).
			WithDetail("collaborator", p.collaborator).
			WithDetail("operation", operation)
	}
	return err
}

func (p *Policy) retry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		if retryable(err) {
			return err
		}
		// Non-transient and ambiguous outcomes are never retried here:
		// retrying an UNKNOWN publish could double-post.
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.baseDelay

	notify := func(err error, next time.Duration) {
		logger.Warn().
			Err(err).
			Str("collaborator", p.collaborator).
			Str("operation", operation).
			Dur("next_attempt_in", next).
			Msg("Retrying collaborator call")
	}

	return backoff.RetryNotify(op,
		backoff.WithContext(backoff.WithMaxRetries(bo, p.maxRetries), ctx),
		notify)
}

func retryable(err error) bool {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.IsRetryable()
	}
	return false
}

func countsAsBreakerFailure(err error) bool {
	switch apperrors.Code(err) {
	case apperrors.ErrCodeDependencyUnavailable,
		apperrors.ErrCodeUnavailable,
		apperrors.ErrCodeUnknown,
		apperrors.ErrCodeInternal:
		return true
	default:
		return false
	}
}
