package notify_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bellwood/slotwatch/internal/appointment"
	"github.com/bellwood/slotwatch/internal/ledger"
	"github.com/bellwood/slotwatch/internal/notify"
	"github.com/bellwood/slotwatch/internal/notify/email"
	emailmock "github.com/bellwood/slotwatch/internal/notify/email/mock"
	"github.com/bellwood/slotwatch/internal/notify/mock"
)

func testCandidate(t *testing.T, center, date, timeOfDay string) appointment.Candidate {
	t.Helper()
	d, err := appointment.ParseDate(date)
	if err != nil {
		t.Fatalf("parse date %q: %v", date, err)
	}
	tod, err := appointment.ParseTimeOfDay(timeOfDay)
	if err != nil {
		t.Fatalf("parse time %q: %v", timeOfDay, err)
	}
	return appointment.Candidate{
		TestCenter:  center,
		Date:        d,
		Time:        tod,
		LicenseType: appointment.LicenseNovice,
	}
}

func TestDispatchMarksNotifiedSlots(t *testing.T) {
	store := ledger.NewMemoryLedger()
	channel := &mock.Channel{}
	d := notify.NewDispatcher([]notify.Channel{channel}, store, "https://example.com/book")

	candidate := testCandidate(t, "Vancouver Point Grey", "2026-09-10", "8:30 AM")
	notified, err := d.Dispatch(context.Background(), []appointment.Candidate{candidate})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if notified != 1 {
		t.Fatalf("notified = %d, want 1", notified)
	}
	if len(channel.Alerts) != 1 {
		t.Fatalf("channel received %d alerts, want 1", len(channel.Alerts))
	}

	fresh, err := store.IsNew(context.Background(), candidate.SeenKey())
	if err != nil {
		t.Fatalf("IsNew failed: %v", err)
	}
	if fresh {
		t.Error("slot should be recorded in the ledger after dispatch")
	}
}

func TestDispatchSkipsAlreadyNotified(t *testing.T) {
	store := ledger.NewMemoryLedger()
	channel := &mock.Channel{}
	d := notify.NewDispatcher([]notify.Channel{channel}, store, "")

	candidate := testCandidate(t, "Vancouver Point Grey", "2026-09-10", "8:30 AM")
	if _, err := d.Dispatch(context.Background(), []appointment.Candidate{candidate}); err != nil {
		t.Fatalf("first dispatch failed: %v", err)
	}
	notified, err := d.Dispatch(context.Background(), []appointment.Candidate{candidate})
	if err != nil {
		t.Fatalf("second dispatch failed: %v", err)
	}
	if notified != 0 {
		t.Errorf("second dispatch notified %d slots, want 0", notified)
	}
	if len(channel.Alerts) != 1 {
		t.Errorf("channel received %d alerts, want 1", len(channel.Alerts))
	}
}

func TestDispatchCollapsesDuplicatesWithinBatch(t *testing.T) {
	store := ledger.NewMemoryLedger()
	channel := &mock.Channel{}
	d := notify.NewDispatcher([]notify.Channel{channel}, store, "")

	// Same slot presented twice with cosmetic name differences.
	a := testCandidate(t, "Vancouver  Point Grey", "2026-09-10", "8:30 AM")
	b := testCandidate(t, "vancouver point grey", "2026-09-10", "8:30 AM")
	if a.SeenKey() != b.SeenKey() {
		t.Fatalf("test setup: keys differ: %q vs %q", a.SeenKey(), b.SeenKey())
	}

	notified, err := d.Dispatch(context.Background(), []appointment.Candidate{a, b})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if notified != 1 {
		t.Errorf("notified = %d, want 1", notified)
	}
	if len(channel.Alerts) != 1 {
		t.Errorf("channel received %d alerts, want 1", len(channel.Alerts))
	}
}

func TestDispatchAllChannelsFailLeavesLedgerUntouched(t *testing.T) {
	store := ledger.NewMemoryLedger()
	broken := &mock.Channel{ChannelName: "email", Err: errors.New("smtp down")}
	alsoBroken := &mock.Channel{ChannelName: "sms", Err: errors.New("twilio down")}
	d := notify.NewDispatcher([]notify.Channel{broken, alsoBroken}, store, "")

	candidate := testCandidate(t, "Burnaby", "2026-09-12", "1:15 PM")
	notified, err := d.Dispatch(context.Background(), []appointment.Candidate{candidate})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if notified != 0 {
		t.Errorf("notified = %d, want 0", notified)
	}

	fresh, err := store.IsNew(context.Background(), candidate.SeenKey())
	if err != nil {
		t.Fatalf("IsNew failed: %v", err)
	}
	if !fresh {
		t.Error("slot must stay unrecorded when every channel fails")
	}
}

func TestDispatchPartialDeliveryStillMarks(t *testing.T) {
	store := ledger.NewMemoryLedger()
	broken := &mock.Channel{ChannelName: "email", Err: errors.New("smtp down")}
	working := &mock.Channel{ChannelName: "console"}
	d := notify.NewDispatcher([]notify.Channel{broken, working}, store, "")

	candidate := testCandidate(t, "Burnaby", "2026-09-12", "1:15 PM")
	notified, err := d.Dispatch(context.Background(), []appointment.Candidate{candidate})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if notified != 1 {
		t.Errorf("notified = %d, want 1", notified)
	}

	fresh, err := store.IsNew(context.Background(), candidate.SeenKey())
	if err != nil {
		t.Fatalf("IsNew failed: %v", err)
	}
	if fresh {
		t.Error("slot should be recorded when at least one channel delivered")
	}
}

func TestSendTestFlagsAlert(t *testing.T) {
	channel := &mock.Channel{}
	d := notify.NewDispatcher([]notify.Channel{channel}, ledger.NewMemoryLedger(), "")

	candidate := testCandidate(t, "Richmond", "2026-10-01", "9:00 AM")
	if err := d.SendTest(context.Background(), candidate); err != nil {
		t.Fatalf("SendTest failed: %v", err)
	}
	if len(channel.Alerts) != 1 {
		t.Fatalf("channel received %d alerts, want 1", len(channel.Alerts))
	}
	if !channel.Alerts[0].Test {
		t.Error("test alert should carry the Test flag")
	}
}

func TestConsoleChannelWritesAlert(t *testing.T) {
	var buf bytes.Buffer
	channel := notify.NewConsoleChannel(&buf)

	candidate := testCandidate(t, "Richmond", "2026-10-01", "9:00 AM")
	alert := notify.Alert{Candidate: candidate, BookingURL: "https://example.com/book", FoundAt: time.Now()}
	if err := channel.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Richmond", "2026-10-01", "09:00", "https://example.com/book"} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q:\n%s", want, out)
		}
	}
}

func TestEmailChannelRendersHTML(t *testing.T) {
	sender := &emailmock.Sender{}
	channel := notify.NewEmailChannel(sender, "alerts@example.com", []string{"driver@example.com"})

	candidate := testCandidate(t, "Richmond", "2026-10-01", "9:00 AM")
	alert := notify.Alert{Candidate: candidate, BookingURL: "https://example.com/book", FoundAt: time.Now()}
	if err := channel.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(sender.Messages) != 1 {
		t.Fatalf("sender received %d messages, want 1", len(sender.Messages))
	}
	msg := sender.Messages[0]
	if msg.To != "driver@example.com" {
		t.Errorf("To = %q", msg.To)
	}
	if !strings.Contains(msg.Subject, "Richmond") {
		t.Errorf("subject %q missing test center", msg.Subject)
	}
	if !strings.Contains(msg.Body, "<table>") {
		t.Errorf("body should be rendered HTML with a table:\n%s", msg.Body)
	}
	if !strings.Contains(msg.Body, `href="https://example.com/book"`) {
		t.Errorf("body missing booking link:\n%s", msg.Body)
	}
}

var _ email.Sender = (*emailmock.Sender)(nil)
