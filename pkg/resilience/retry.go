package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryPolicy bounds how an operation is retried. The whole sequence of
// attempts shares one Budget window; each attempt gets at most AttemptTimeout.
type RetryPolicy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	Budget         time.Duration
	BaseBackoff    time.Duration
}

// DefaultRetryPolicy mirrors the gateway's default write settings.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		AttemptTimeout: 15 * time.Second,
		Budget:         15 * time.Second,
		BaseBackoff:    100 * time.Millisecond,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
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

// Do runs fn until it succeeds, returns a permanent error, or the attempts or budget run out.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	p = p.withDefaults()

	budgetCtx, cancelBudget := p.withBudget(ctx)
	defer cancelBudget()

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		attemptTimeout, ok := p.remainingAttemptTimeout(budgetCtx)
		if !ok {
			break
		}

		attemptCtx, cancel := context.WithTimeout(budgetCtx, attemptTimeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}

		lastErr = err
		if IsPermanent(err) {
			return unwrapPermanent(err)
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		wait := time.Duration(attempt+1) * p.BaseBackoff
		if retryAfter, isOpen := CircuitOpenRetryAfter(err); isOpen {
			wait = retryAfter
			if wait <= 0 {
				wait = time.Duration(attempt+1) * 2 * p.BaseBackoff
			}
		}
		if !SleepWithContext(budgetCtx, wait) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
	}

	if lastErr == nil {
		if budgetCtx.Err() != nil {
			return budgetCtx.Err()
		}
		return fmt.Errorf("operation failed without explicit error")
	}
	return lastErr
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = def.AttemptTimeout
	}
	if p.Budget <= 0 {
		p.Budget = p.AttemptTimeout
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = def.BaseBackoff
	}
	return p
}

// withBudget caps total retry time to the policy budget unless ctx ends sooner.
func (p RetryPolicy) withBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	target := time.Now().Add(p.Budget)
	if existing, ok := ctx.Deadline(); ok && existing.Before(target) {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, target)
}

// remainingAttemptTimeout returns per-attempt timeout capped by remaining budget.
func (p RetryPolicy) remainingAttemptTimeout(ctx context.Context) (time.Duration, bool) {
	if ctx.Err() != nil {
		return 0, false
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, false
		}
		if remaining < p.AttemptTimeout {
			return remaining, true
		}
	}
	return p.AttemptTimeout, true
}

func unwrapPermanent(err error) error {
	var p *permanentError
	if errors.As(err, &p) {
		return p.err
	}
	return err
}

// CircuitOpenRetryAfter extracts retry delay from circuit-open errors.
func CircuitOpenRetryAfter(err error) (time.Duration, bool) {
	var openErr *CircuitOpenError
	if errors.As(err, &openErr) {
		return openErr.RetryAfter, true
	}
	if errors.Is(err, ErrCircuitOpen) {
		return 0, true
	}
	return 0, false
}

// SleepWithContext waits for delay or exits early if context is canceled.
func SleepWithContext(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
