// Package notify delivers alerts about newly discovered appointment
// slots. A Dispatcher fans each alert out to the configured channels
// (console, email, SMS) and records delivered slots in the ledger so
// the same opening is never announced twice.
package notify

import (
	"context"
	"time"

	"github.com/bellwood/slotwatch/internal/appointment"
)

// Alert describes a single qualifying slot ready for announcement.
type Alert struct {
	Candidate  appointment.Candidate
	BookingURL string
	FoundAt    time.Time
	// Test marks alerts produced by a delivery check rather than a real
	// polling cycle. Channels may label the payload accordingly.
	Test bool
}

// Channel is a single delivery mechanism for alerts.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert Alert) error
}
