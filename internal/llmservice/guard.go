package llmservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docqa/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Guard bounds calls to a remote model: a per-call timeout, a request rate
// limit and a circuit breaker. Every failure it reports wraps
// models.ErrBackendUnavailable.
type Guard struct {
	name    string
	timeout time.Duration
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewGuard(name string, requestsPerMinute int, timeout time.Duration) *Guard {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), max(1, requestsPerMinute/10))
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		IsSuccessful: func(err error) bool {
			var aborted callerAborted
			return err == nil || errors.As(err, &aborted)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})

	return &Guard{name: name, timeout: timeout, limiter: limiter, breaker: breaker}
}

// callerAborted marks a failure caused by the caller giving up, which says
// nothing about the backend's health.
type callerAborted struct{ err error }

func (e callerAborted) Error() string { return e.err.Error() }
func (e callerAborted) Unwrap() error { return e.err }

// Do runs fn under the guard's limits. Failures after the caller's own context
// ends do not count against the breaker.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	parent := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", models.ErrBackendUnavailable, g.name, err)
	}

	_, err := g.breaker.Execute(func() (interface{}, error) {
		err := fn(ctx)
		if err != nil && parent.Err() != nil {
			return nil, callerAborted{err}
		}
		return nil, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.Warn().Str("backend", g.name).Msg("Call rejected by open circuit breaker")
		}
		return fmt.Errorf("%w: %s: %w", models.ErrBackendUnavailable, g.name, err)
	}
	return nil
}

// State exposes the breaker state for health reporting.
func (g *Guard) State() string {
	return g.breaker.State().String()
}

func (g *Guard) Name() string { return g.name }
