package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bellwood/slotwatch/internal/appointment"
)

func stores(t *testing.T) map[string]Ledger {
	t.Helper()
	sqlite, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "seen.db"), "")
	if err != nil {
		t.Fatalf("init sqlite ledger: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Ledger{
		"memory": NewMemoryLedger(),
		"sqlite": sqlite,
	}
}

var (
	slotDate = appointment.NewDate(2025, time.March, 1)
	seenAt   = time.Date(2025, time.February, 20, 10, 0, 0, 0, time.UTC)
)

func TestLedgerTracksNotifiedKeys(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			isNew, err := store.IsNew(ctx, "downtown|2025-03-01|09:00|novice")
			if err != nil {
				t.Fatalf("is new failed: %v", err)
			}
			if !isNew {
				t.Fatalf("expected unseen key to be new")
			}

			if err := store.MarkNotified(ctx, "downtown|2025-03-01|09:00|novice", slotDate, seenAt); err != nil {
				t.Fatalf("mark notified failed: %v", err)
			}

			isNew, err = store.IsNew(ctx, "downtown|2025-03-01|09:00|novice")
			if err != nil {
				t.Fatalf("is new failed: %v", err)
			}
			if isNew {
				t.Fatalf("notified key must not be new")
			}
		})
	}
}

func TestMarkNotifiedIsIdempotent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "richmond|2025-03-02|10:30|novice"
			if err := store.MarkNotified(ctx, key, slotDate, seenAt); err != nil {
				t.Fatalf("first mark failed: %v", err)
			}
			if err := store.MarkNotified(ctx, key, slotDate, seenAt.Add(time.Hour)); err != nil {
				t.Fatalf("second mark failed: %v", err)
			}
			isNew, err := store.IsNew(ctx, key)
			if err != nil {
				t.Fatalf("is new failed: %v", err)
			}
			if isNew {
				t.Fatalf("key must stay marked after duplicate marking")
			}
		})
	}
}

func TestExpireOlderThanPrunesPastSlots(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			past := appointment.NewDate(2025, time.February, 10)
			future := appointment.NewDate(2025, time.June, 1)
			if err := store.MarkNotified(ctx, "past-slot", past, seenAt); err != nil {
				t.Fatalf("mark past failed: %v", err)
			}
			if err := store.MarkNotified(ctx, "future-slot", future, seenAt); err != nil {
				t.Fatalf("mark future failed: %v", err)
			}

			if err := store.ExpireOlderThan(ctx, appointment.NewDate(2025, time.March, 1)); err != nil {
				t.Fatalf("expire failed: %v", err)
			}

			isNew, err := store.IsNew(ctx, "past-slot")
			if err != nil || !isNew {
				t.Fatalf("past slot should have been pruned (isNew=%v err=%v)", isNew, err)
			}
			isNew, err = store.IsNew(ctx, "future-slot")
			if err != nil || isNew {
				t.Fatalf("future slot must survive expiry (isNew=%v err=%v)", isNew, err)
			}
		})
	}
}

func TestSQLiteLedgerPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.db")
	first, err := NewSQLiteLedger(path, "")
	if err != nil {
		t.Fatalf("init sqlite ledger: %v", err)
	}
	if err := first.MarkNotified(context.Background(), "persisted", slotDate, seenAt); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	second, err := NewSQLiteLedger(path, "")
	if err != nil {
		t.Fatalf("reopen sqlite ledger: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })
	isNew, err := second.IsNew(context.Background(), "persisted")
	if err != nil {
		t.Fatalf("is new failed: %v", err)
	}
	if isNew {
		t.Fatalf("key must survive process restarts")
	}
}

func TestMemoryLedgerExpiryBoundsSize(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	for day := 1; day <= 20; day++ {
		date := appointment.NewDate(2025, time.January, day)
		if err := l.MarkNotified(ctx, date.String(), date, seenAt); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
	}
	if err := l.ExpireOlderThan(ctx, appointment.NewDate(2025, time.January, 15)); err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if l.Len() != 6 {
		t.Fatalf("expected 6 surviving entries, got %d", l.Len())
	}
}
