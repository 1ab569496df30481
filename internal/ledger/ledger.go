// Package ledger tracks which qualifying appointments have already
// triggered a notification, within a run and optionally across restarts.
package ledger

import (
	"context"
	"time"

	"github.com/bellwood/slotwatch/internal/appointment"
)

// Ledger is the dedup store. A key is added only after a dispatch attempt
// succeeded (or was explicitly accepted fire-and-forget); a key already
// present is never re-dispatched.
type Ledger interface {
	// IsNew reports whether the key has never been notified.
	IsNew(ctx context.Context, key string) (bool, error)
	// MarkNotified records a delivered notification. Idempotent: marking
	// an already-present key refreshes last-seen and is not an error.
	MarkNotified(ctx context.Context, key string, slotDate appointment.Date, at time.Time) error
	// ExpireOlderThan prunes entries whose slot date is before cutoff.
	// A previously-notified, still-future slot is never expired, so it
	// can never re-fire.
	ExpireOlderThan(ctx context.Context, cutoff appointment.Date) error
	Close() error
}
