// Package resilience wraps every provider call with retry, bounded
// exponential backoff with jitter, a per-provider token-bucket rate
// limiter, and a per-provider circuit breaker. It generalizes a
// per-domain adaptive rate limiter from "one HTTP domain" keying to "one
// provider-call-kind" keying, so every provider call in the system shares
// a single policy implementation.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cardiopath/nets/pkg/models"
)

// ErrCircuitOpen is returned when a provider's circuit breaker is open and
// the call was rejected without being attempted.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// Policy configures retry/backoff/rate-limit/circuit-breaker behavior for
// one provider key.
type Policy struct {
	MaxAttempts      int           // total attempts including the first, >=1
	BaseDelay        time.Duration // first retry delay before jitter
	MaxDelay         time.Duration // backoff ceiling
	RatePerSecond    float64       // token bucket fill rate; 0 disables limiting
	BurstSize        float64       // token bucket capacity; defaults to 1 if 0
	FailureThreshold int           // consecutive failures before opening the breaker; 0 disables
	OpenDuration     time.Duration // how long the breaker stays open before a half-open probe
}

// DefaultPolicy returns a conservative policy suitable for most providers.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:      3,
		BaseDelay:        200 * time.Millisecond,
		MaxDelay:         5 * time.Second,
		RatePerSecond:    10,
		BurstSize:        10,
		FailureThreshold: 5,
		OpenDuration:     30 * time.Second,
	}
}

// Limiter applies Policy-governed resilience around calls keyed by provider
// name. One Limiter is shared by all calls to a given provider so the rate
// limit and circuit breaker state accumulate correctly.
type Limiter struct {
	mu       sync.Mutex
	policies map[string]Policy
	states   map[string]*keyState
	clock    func() time.Time
}

// NewLimiter creates a Limiter. defaultPolicy is used for any key that
// hasn't been configured via SetPolicy.
func NewLimiter(defaultPolicy Policy) *Limiter {
	return &Limiter{
		policies: map[string]Policy{"": defaultPolicy},
		states:   make(map[string]*keyState),
		clock:    time.Now,
	}
}

// SetPolicy overrides the policy used for a specific provider key.
func (l *Limiter) SetPolicy(key string, p Policy) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.policies[key] = p
}

type keyState struct {
	mu             sync.Mutex
	tokens         float64
	lastRefill     time.Time
	consecutiveErr int
	breakerOpen    bool
	nextAttempt    time.Time
}

func (l *Limiter) policyFor(key string) Policy {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.policies[key]; ok {
		return p
	}
	return l.policies[""]
}

func (l *Limiter) stateFor(key string) *keyState {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.states[key]
	if !ok {
		s = &keyState{lastRefill: l.clock()}
		l.states[key] = s
	}
	return s
}

// retryable reports whether err is worth a further attempt. An error
// classified as a *models.PipelineError is retried only for transient
// transport/rate-limit conditions (ProviderUnavailable, or no kind at
// all); an authoritative "not found" (InvalidInput), a malformed response,
// a failed validation, or a cancellation is never retried. An error that
// isn't a PipelineError at all (e.g. a raw network error) is treated as
// transient, matching the conservative default for unclassified failures.
func retryable(err error) bool {
	var pe *models.PipelineError
	if !errors.As(err, &pe) {
		return true
	}
	switch pe.Kind {
	case models.KindProviderMalformed, models.KindInvalidInput, models.KindValidationFailed, models.KindReportFailed, models.KindCancelled:
		return false
	default:
		return true
	}
}

// Call runs fn under key's policy: it waits for a rate-limit token, checks
// the circuit breaker, and on error retries with jittered exponential
// backoff up to MaxAttempts, recording success/failure against the
// breaker. An error classified as authoritative rather than transient
// (see retryable) aborts the retry loop immediately instead of consuming
// the remaining attempts. It returns the first successful result, or the
// last error if every attempt fails.
func Call[T any](ctx context.Context, l *Limiter, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	p := l.policyFor(key)
	s := l.stateFor(key)

	var lastErr error
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if err := s.checkBreaker(p, l.clock()); err != nil {
			return zero, err
		}
		if err := s.acquireToken(p, l.clock(), ctx); err != nil {
			return zero, err
		}
		result, err := fn(ctx)
		if err == nil {
			s.recordSuccess()
			return result, nil
		}
		lastErr = err
		s.recordFailure(p, l.clock())
		if !retryable(err) || attempt == attempts-1 {
			break
		}
		if !sleepWithContext(ctx, backoffDelay(p, attempt)) {
			return zero, ctx.Err()
		}
	}
	return zero, lastErr
}

func (s *keyState) checkBreaker(p Policy, now time.Time) error {
	if p.FailureThreshold <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.breakerOpen {
		if now.Before(s.nextAttempt) {
			return ErrCircuitOpen
		}
		s.breakerOpen = false
	}
	return nil
}

func (s *keyState) acquireToken(p Policy, now time.Time, ctx context.Context) error {
	if p.RatePerSecond <= 0 {
		return nil
	}
	burst := p.BurstSize
	if burst <= 0 {
		burst = 1
	}
	for {
		s.mu.Lock()
		elapsed := now.Sub(s.lastRefill).Seconds()
		if elapsed > 0 {
			s.tokens = math.Min(burst, s.tokens+elapsed*p.RatePerSecond)
			s.lastRefill = now
		}
		if s.tokens >= 1 {
			s.tokens--
			s.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - s.tokens) / p.RatePerSecond * float64(time.Second))
		s.mu.Unlock()
		if !sleepWithContext(ctx, wait) {
			return ctx.Err()
		}
		now = time.Now()
	}
}

func (s *keyState) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveErr = 0
	s.breakerOpen = false
}

func (s *keyState) recordFailure(p Policy, now time.Time) {
	if p.FailureThreshold <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveErr++
	if s.consecutiveErr >= p.FailureThreshold {
		s.breakerOpen = true
		s.nextAttempt = now.Add(p.OpenDuration)
	}
}

// backoffDelay computes a jittered exponential delay for the given attempt
// (0-indexed): base * 2^n clamped to MaxDelay, plus up to 25% jitter.
func backoffDelay(p Policy, attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	delay := base * time.Duration(math.Pow(2, float64(attempt)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	jitter := time.Duration(rand.Int64N(int64(delay)/4 + 1))
	return delay + jitter
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
