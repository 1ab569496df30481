// Package engine runs a single poll cycle: acquire a session, extract
// open slots, filter against preferences, and dispatch alerts. Each
// cycle reports a CycleResult; the scheduler decides what happens next
// based on its status.
package engine

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bellwood/slotwatch/internal/appointment"
	"github.com/bellwood/slotwatch/internal/core"
	"github.com/bellwood/slotwatch/internal/filter"
	"github.com/bellwood/slotwatch/internal/icbc"
	"github.com/bellwood/slotwatch/internal/ledger"
	"github.com/bellwood/slotwatch/internal/notify"
	"github.com/bellwood/slotwatch/internal/session"
)

// Status classifies a cycle's outcome for the scheduler.
type Status int

const (
	StatusOK Status = iota
	// StatusTransient covers recoverable failures: transport errors,
	// timeouts, markup drift. The scheduler backs off and retries.
	StatusTransient
	// StatusFatal stops the run: exhausted login attempts, cancelled
	// context.
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTransient:
		return "transient"
	case StatusFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	Candidates int
	Qualifying int
	Notified   int
	Status     Status
	// MarkupChanged is set when this cycle failed on unrecognized page
	// structure; the scheduler promotes repeated occurrences to fatal.
	MarkupChanged bool
	Err           error
}

// Engine wires the per-cycle collaborators together.
type Engine struct {
	sessions   *session.Manager
	extractor  *icbc.Extractor
	filter     *filter.Filter
	dispatcher *notify.Dispatcher
	store      ledger.Ledger
	criteria   icbc.Criteria
	retention  time.Duration
	now        func() time.Time
}

type Option func(*Engine)

// WithClock overrides the engine's time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRetention keeps ledger entries for past slots around this much
// longer before expiry prunes them.
func WithRetention(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.retention = d
		}
	}
}

func New(
	sessions *session.Manager,
	extractor *icbc.Extractor,
	f *filter.Filter,
	dispatcher *notify.Dispatcher,
	store ledger.Ledger,
	criteria icbc.Criteria,
	opts ...Option,
) *Engine {
	e := &Engine{
		sessions:   sessions,
		extractor:  extractor,
		filter:     f,
		dispatcher: dispatcher,
		store:      store,
		criteria:   criteria,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunCycle executes one complete poll cycle. It never panics on
// upstream failure; every error is folded into the returned result.
var tracer = otel.Tracer("slotwatch/engine")

func (e *Engine) RunCycle(ctx context.Context) CycleResult {
	logger := core.LoggerFromContext(ctx)
	started := e.now()

	ctx, span := tracer.Start(ctx, "poll.cycle")
	defer span.End()

	candidates, err := e.collect(ctx)
	if err != nil {
		result := classify(ctx, err)
		span.RecordError(err)
		logger.Error("poll cycle failed",
			"status", result.Status.String(),
			"error", err,
		)
		return result
	}

	qualifying := make([]appointment.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if e.filter.Qualifies(ctx, c) {
			qualifying = append(qualifying, c)
		}
	}

	notified, err := e.dispatcher.Dispatch(ctx, qualifying)
	if err != nil {
		// Delivery bookkeeping failed mid-batch. Report what was
		// notified and let the scheduler retry the remainder.
		logger.Error("dispatch incomplete", "notified", notified, "error", err)
		return CycleResult{
			Candidates: len(candidates),
			Qualifying: len(qualifying),
			Notified:   notified,
			Status:     StatusTransient,
			Err:        err,
		}
	}

	if err := e.store.ExpireOlderThan(ctx, appointment.DateOf(e.now().Add(-e.retention))); err != nil {
		logger.Warn("ledger expiry failed", "error", err)
	}

	span.SetAttributes(
		attribute.Int("slots.candidates", len(candidates)),
		attribute.Int("slots.qualifying", len(qualifying)),
		attribute.Int("slots.notified", notified),
	)
	logger.Info("poll cycle complete",
		"candidates", len(candidates),
		"qualifying", len(qualifying),
		"notified", notified,
		"elapsed", e.now().Sub(started).Round(time.Millisecond),
	)
	return CycleResult{
		Candidates: len(candidates),
		Qualifying: len(qualifying),
		Notified:   notified,
		Status:     StatusOK,
	}
}

// Preview runs the acquire/extract/filter part of a cycle without
// dispatching anything or touching the ledger. Dry runs use it to show
// what a real cycle would have alerted on.
func (e *Engine) Preview(ctx context.Context) (candidates, qualifying []appointment.Candidate, err error) {
	candidates, err = e.collect(ctx)
	if err != nil {
		return nil, nil, err
	}
	qualifying = make([]appointment.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if e.filter.Qualifies(ctx, c) {
			qualifying = append(qualifying, c)
		}
	}
	return candidates, qualifying, nil
}

// collect acquires a session and extracts candidates, re-logging-in at
// most once when the site silently dropped the session.
func (e *Engine) collect(ctx context.Context) ([]appointment.Candidate, error) {
	logger := core.LoggerFromContext(ctx)

	sess, err := e.sessions.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	candidates, err := e.extractor.Extract(ctx, sess, e.criteria)
	if err == nil {
		return candidates, nil
	}

	var extractErr *icbc.ExtractionError
	if !errors.As(err, &extractErr) || extractErr.Kind != icbc.NotAuthenticated {
		return nil, err
	}

	// The session looked fresh but the site bounced us to the login
	// page. Invalidate and retry once with a new login.
	logger.Info("session rejected mid-cycle, re-authenticating")
	e.sessions.Invalidate()
	sess, err = e.sessions.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return e.extractor.Extract(ctx, sess, e.criteria)
}

// classify maps an error to the scheduler-facing status. Only the
// cycle boundary performs this mapping; lower layers return typed
// errors and stay policy-free.
func classify(ctx context.Context, err error) CycleResult {
	result := CycleResult{Status: StatusTransient, Err: err}

	if ctx.Err() != nil {
		result.Status = StatusFatal
		return result
	}

	var authErr *session.AuthError
	if errors.As(err, &authErr) {
		result.Status = StatusFatal
		return result
	}

	var extractErr *icbc.ExtractionError
	if errors.As(err, &extractErr) && extractErr.Kind == icbc.MarkupChanged {
		result.MarkupChanged = true
	}
	return result
}
