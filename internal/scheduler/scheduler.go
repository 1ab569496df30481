// Package scheduler decides when the next poll cycle runs. It sleeps a
// jittered interval after clean cycles, backs off exponentially after
// transient failures, and stops the run on fatal ones.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bellwood/slotwatch/internal/core"
	"github.com/bellwood/slotwatch/internal/engine"
)

// State is the scheduler's lifecycle phase, observable by callers.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateSleeping
	StateBackoff
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateSleeping:
		return "sleeping"
	case StateBackoff:
		return "backoff"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	DefaultInterval    = 10 * time.Minute
	DefaultJitter      = 0.10
	DefaultBackoffBase = 30 * time.Second
	DefaultBackoffCap  = 15 * time.Minute
	// DefaultMarkupLimit is how many consecutive markup-drift cycles are
	// tolerated before the run stops. Hammering a redesigned site with
	// the old parser helps nobody.
	DefaultMarkupLimit = 3
)

// Runner executes one poll cycle.
type Runner interface {
	RunCycle(ctx context.Context) engine.CycleResult
}

type Scheduler struct {
	runner      Runner
	interval    time.Duration
	jitterFrac  float64
	backoffBase time.Duration
	backoffCap  time.Duration
	markupLimit int
	once        bool
	schedule    cron.Schedule
	clock       Clock
	rng         *rand.Rand

	mu    sync.Mutex
	state State
}

type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithJitter sets the jitter fraction applied to the interval. Jitter
// is never fully disabled; values outside (0, 1] keep the default so
// the poll never degenerates into a fixed-phase hammer.
func WithJitter(frac float64) Option {
	return func(s *Scheduler) {
		if frac > 0 && frac <= 1 {
			s.jitterFrac = frac
		}
	}
}

func WithBackoff(base, cap time.Duration) Option {
	return func(s *Scheduler) {
		if base > 0 {
			s.backoffBase = base
		}
		if cap >= s.backoffBase {
			s.backoffCap = cap
		}
	}
}

func WithMarkupLimit(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.markupLimit = n
		}
	}
}

// WithRunOnce makes the scheduler execute exactly one cycle and stop.
func WithRunOnce() Option {
	return func(s *Scheduler) { s.once = true }
}

// WithCronSchedule replaces interval-based sleeping with cron fire
// times. Backoff still applies: a fire that lands inside a backoff hold
// is skipped.
func WithCronSchedule(schedule cron.Schedule) Option {
	return func(s *Scheduler) { s.schedule = schedule }
}

func WithClock(clock Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithRand seeds the jitter source, used by tests.
func WithRand(rng *rand.Rand) Option {
	return func(s *Scheduler) { s.rng = rng }
}

func New(runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:      runner,
		interval:    DefaultInterval,
		jitterFrac:  DefaultJitter,
		backoffBase: DefaultBackoffBase,
		backoffCap:  DefaultBackoffCap,
		markupLimit: DefaultMarkupLimit,
		clock:       realClock{},
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle phase.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Run drives poll cycles until the context is cancelled, a fatal cycle
// occurs, or (in run-once mode) the first cycle completes. The returned
// error is nil for a clean stop.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := core.LoggerFromContext(ctx)
	defer s.setState(StateStopped)

	backoff := s.backoffBase
	consecutiveMarkup := 0

	for cycle := 1; ; cycle++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.setState(StatePolling)
		cycleID := strconv.Itoa(cycle)
		cycleCtx := core.WithCycleID(ctx, cycleID)
		cycleCtx = core.WithLogger(cycleCtx, logger.With("cycle_id", cycleID))
		result := s.runner.RunCycle(cycleCtx)

		if result.MarkupChanged {
			consecutiveMarkup++
		} else {
			consecutiveMarkup = 0
		}

		switch result.Status {
		case engine.StatusFatal:
			return result.Err

		case engine.StatusOK:
			backoff = s.backoffBase
			if s.once {
				return nil
			}
			wait := s.nextWait()
			s.setState(StateSleeping)
			logger.Debug("sleeping until next poll", "wait", wait.Round(time.Second))
			if err := s.sleep(ctx, wait); err != nil {
				return err
			}

		case engine.StatusTransient:
			if consecutiveMarkup >= s.markupLimit {
				return fmt.Errorf("markup unrecognized for %d consecutive cycles: %w", consecutiveMarkup, result.Err)
			}
			if s.once {
				return result.Err
			}
			wait := s.backoffWait(backoff)
			backoff = nextBackoff(backoff, s.backoffCap)
			s.setState(StateBackoff)
			logger.Warn("backing off after failed cycle",
				"wait", wait.Round(time.Second),
				"error", result.Err,
			)
			if err := s.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
}

// nextWait computes the delay before the next cycle after a clean one:
// cron fire time in cron mode, jittered interval otherwise.
func (s *Scheduler) nextWait() time.Duration {
	now := s.clock.Now()
	if s.schedule != nil {
		return s.schedule.Next(now).Sub(now)
	}
	return jittered(s.interval, s.jitterFrac, s.rng)
}

// backoffWait turns the current backoff delay into an actual wait. In
// cron mode the wait extends to the first fire at or after the hold.
func (s *Scheduler) backoffWait(hold time.Duration) time.Duration {
	if s.schedule == nil {
		return hold
	}
	now := s.clock.Now()
	allowed := now.Add(hold)
	fire := s.schedule.Next(now)
	for fire.Before(allowed) {
		fire = s.schedule.Next(fire)
	}
	return fire.Sub(now)
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	timer := s.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}

// jittered spreads the interval by ±frac so polls never land on a fixed
// phase the site could correlate.
func jittered(interval time.Duration, frac float64, rng *rand.Rand) time.Duration {
	spread := float64(interval) * frac
	offset := (rng.Float64()*2 - 1) * spread
	return interval + time.Duration(offset)
}

func nextBackoff(current, cap time.Duration) time.Duration {
	next := current * 2
	if next > cap {
		return cap
	}
	return next
}
