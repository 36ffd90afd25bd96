package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var (
	waitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "htrc_ratelimit_wait_seconds",
		Help:    "Time spent waiting for the fetch rate limiter",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
	})

	cooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "htrc_ratelimit_cooldowns_total",
		Help: "Total cooldowns triggered by overload responses",
	})
)

// DefaultCooldown is the pause applied after an overload response.
const DefaultCooldown = 30 * time.Second

// Config holds the pacing parameters.
type Config struct {
	// Rate is requests per second; <= 0 means unlimited.
	Rate float64

	// Burst is the token bucket size; values < 1 become 1.
	Burst int

	// Cooldown is the pause after a 429 or 503 response; zero disables pausing.
	Cooldown time.Duration
}

// Limiter gates fetches. It is safe for concurrent use.
type Limiter struct {
	limiter  *rate.Limiter
	cooldown time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu          sync.Mutex
	pausedUntil time.Time
	cooldowns   int
}

// New creates a limiter.
func New(cfg Config) (*Limiter, error) {
	if cfg.Cooldown < 0 {
		return nil, fmt.Errorf("ratelimit: cooldown must not be negative")
	}

	l := &Limiter{
		cooldown: cfg.Cooldown,
		logger:   log.With().Str("component", "ratelimit").Logger(),
		now:      time.Now,
	}

	if cfg.Rate <= 0 {
		l.limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	return l, nil
}

// Unlimited returns a limiter that never waits and never pauses.
func Unlimited() *Limiter {
	l, _ := New(Config{})
	return l
}

// Wait blocks until the next request may start, honouring any cooldown.
func (l *Limiter) Wait(ctx context.Context) error {
	start := l.now()
	defer func() {
		waitSeconds.Observe(l.now().Sub(start).Seconds())
	}()

	l.mu.Lock()
	pausedUntil := l.pausedUntil
	l.mu.Unlock()

	if d := pausedUntil.Sub(l.now()); d > 0 {
		l.logger.Debug().Dur("wait", d).Msg("Cooling down before next request")
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return l.limiter.Wait(ctx)
}

// Observe records the status of a finished request. Overload statuses start
// a cooldown; everything else is ignored.
func (l *Limiter) Observe(status int) {
	if l.cooldown <= 0 {
		return
	}
	if status != http.StatusTooManyRequests && status != http.StatusServiceUnavailable {
		return
	}
	l.Pause(l.cooldown)
}

// Pause holds all requests for d from now. A shorter pause never cuts an
// active one short.
func (l *Limiter) Pause(d time.Duration) {
	until := l.now().Add(d)

	l.mu.Lock()
	defer l.mu.Unlock()
	if until.After(l.pausedUntil) {
		l.pausedUntil = until
	}
	l.cooldowns++
	cooldownsTotal.Inc()

	l.logger.Warn().
		Dur("cooldown", d).
		Time("resume_at", l.pausedUntil).
		Msg("Server overloaded; pausing fetches")
}

// State returns a snapshot of the limiter.
func (l *Limiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := State{
		Limited:     l.limiter.Limit() != rate.Inf,
		Burst:       l.limiter.Burst(),
		PausedUntil: l.pausedUntil,
		Cooldowns:   l.cooldowns,
	}
	if s.Limited {
		s.Rate = float64(l.limiter.Limit())
	}
	return s
}
