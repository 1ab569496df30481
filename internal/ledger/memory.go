package ledger

import (
	"context"
	"time"

	"github.com/bellwood/slotwatch/internal/appointment"
)

type memoryEntry struct {
	slotDate  appointment.Date
	firstSeen time.Time
	lastSeen  time.Time
}

// MemoryLedger keeps seen keys in a plain map. Only the single poll worker
// writes to it, so no locking is needed; it does not survive restarts and is
// therefore only suitable for continuous mode.
type MemoryLedger struct {
	entries map[string]memoryEntry
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: map[string]memoryEntry{}}
}

func (l *MemoryLedger) IsNew(ctx context.Context, key string) (bool, error) {
	_ = ctx
	if key == "" {
		return false, nil
	}
	_, seen := l.entries[key]
	return !seen, nil
}

func (l *MemoryLedger) MarkNotified(ctx context.Context, key string, slotDate appointment.Date, at time.Time) error {
	_ = ctx
	if key == "" {
		return nil
	}
	entry, ok := l.entries[key]
	if !ok {
		entry = memoryEntry{slotDate: slotDate, firstSeen: at}
	}
	entry.lastSeen = at
	l.entries[key] = entry
	return nil
}

func (l *MemoryLedger) ExpireOlderThan(ctx context.Context, cutoff appointment.Date) error {
	_ = ctx
	for key, entry := range l.entries {
		if entry.slotDate.Before(cutoff) {
			delete(l.entries, key)
		}
	}
	return nil
}

func (l *MemoryLedger) Close() error {
	return nil
}

// Len reports the number of tracked keys. Used to verify expiry bounds
// memory over long runs.
func (l *MemoryLedger) Len() int {
	return len(l.entries)
}
