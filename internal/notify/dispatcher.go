package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/bellwood/slotwatch/internal/appointment"
	"github.com/bellwood/slotwatch/internal/core"
	"github.com/bellwood/slotwatch/internal/ledger"
)

// Dispatcher fans alerts out to every configured channel and records
// delivered slots in the ledger. A slot counts as notified when at
// least one channel accepted it; if every channel fails the ledger is
// left untouched so the next cycle tries again.
type Dispatcher struct {
	channels   []Channel
	store      ledger.Ledger
	bookingURL string
	now        func() time.Time
}

type DispatcherOption func(*Dispatcher)

// WithClock overrides the dispatcher's time source, used by tests.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(channels []Channel, store ledger.Ledger, bookingURL string, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		channels:   channels,
		store:      store,
		bookingURL: bookingURL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch announces every candidate that has not been notified before.
// Candidates that collapse to the same identity within one batch are
// announced once. It returns the number of slots actually notified.
var tracer = otel.Tracer("slotwatch/notify")

func (d *Dispatcher) Dispatch(ctx context.Context, candidates []appointment.Candidate) (int, error) {
	logger := core.LoggerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "alerts.dispatch")
	defer span.End()

	seenThisBatch := make(map[string]struct{}, len(candidates))
	notified := 0

	for _, candidate := range candidates {
		key := candidate.SeenKey()
		if _, dup := seenThisBatch[key]; dup {
			logger.Debug("skipping duplicate candidate within batch", "key", key)
			continue
		}
		seenThisBatch[key] = struct{}{}

		fresh, err := d.store.IsNew(ctx, key)
		if err != nil {
			return notified, fmt.Errorf("failed to check ledger for %s: %w", key, err)
		}
		if !fresh {
			logger.Debug("slot already notified", "key", key)
			continue
		}

		alert := Alert{
			Candidate:  candidate,
			BookingURL: d.bookingURL,
			FoundAt:    d.now(),
		}

		delivered := d.send(ctx, alert)
		if delivered == 0 {
			logger.Error("all channels failed, slot will be retried next cycle", "key", key)
			continue
		}

		if err := d.store.MarkNotified(ctx, key, candidate.Date, d.now()); err != nil {
			return notified, fmt.Errorf("failed to record notified slot %s: %w", key, err)
		}
		logger.Info("slot announced",
			"key", key,
			"channels_ok", delivered,
			"channels_total", len(d.channels),
		)
		notified++
	}

	return notified, nil
}

// SendTest pushes a synthetic alert through every channel so delivery
// can be verified without waiting for a real opening.
func (d *Dispatcher) SendTest(ctx context.Context, candidate appointment.Candidate) error {
	alert := Alert{
		Candidate:  candidate,
		BookingURL: d.bookingURL,
		FoundAt:    d.now(),
		Test:       true,
	}
	if delivered := d.send(ctx, alert); delivered == 0 {
		return fmt.Errorf("test alert failed on all %d channel(s)", len(d.channels))
	}
	return nil
}

// send delivers one alert to every channel concurrently and returns the
// number of channels that accepted it.
func (d *Dispatcher) send(ctx context.Context, alert Alert) int {
	logger := core.LoggerFromContext(ctx)

	var wg sync.WaitGroup
	results := make([]error, len(d.channels))
	for i, channel := range d.channels {
		wg.Add(1)
		go func(i int, channel Channel) {
			defer wg.Done()
			results[i] = channel.Send(ctx, alert)
		}(i, channel)
	}
	wg.Wait()

	delivered := 0
	for i, err := range results {
		if err != nil {
			logger.Error("channel delivery failed",
				"channel", d.channels[i].Name(),
				"error", err,
			)
			continue
		}
		delivered++
	}
	return delivered
}
