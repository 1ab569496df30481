package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalDoc = `
login:
  last_name: Tester
  license_number: "1234567"
  keyword: hunter2
booking:
  license_type: N
  city: Vancouver
  earliest_date: 2025-09-03
  centers: [Downtown, Richmond]
notify:
  channels: [console]
`

func writeDoc(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slotwatch.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	doc, err := Load(writeDoc(t, minimalDoc))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if doc.Poll.Interval.Duration != 10*time.Minute {
		t.Errorf("default interval = %v", doc.Poll.Interval.Duration)
	}
	if doc.Poll.Jitter.Duration != time.Minute {
		t.Errorf("default jitter should be 10%% of interval, got %v", doc.Poll.Jitter.Duration)
	}
	if doc.Poll.MarkupFailureLimit != 3 {
		t.Errorf("default markup failure limit = %d", doc.Poll.MarkupFailureLimit)
	}
	if doc.Browser.Headless == nil || !*doc.Browser.Headless {
		t.Errorf("headless should default to true")
	}
	if doc.Browser.LoginURL == "" || doc.Browser.BookingURL == "" {
		t.Errorf("URL defaults missing")
	}
	if doc.Ledger.Table != "seen_slots" {
		t.Errorf("default ledger table = %q", doc.Ledger.Table)
	}
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	_, err := Load(writeDoc(t, "booking:\n  license_type: N\n"))
	if err == nil {
		t.Fatalf("expected missing credential error")
	}
}

func TestLoadRejectsEmailChannelWithoutAddress(t *testing.T) {
	doc := `
login:
  last_name: Tester
  license_number: "1234567"
  keyword: hunter2
notify:
  channels: [email]
  email:
    smtp_host: smtp.example.com
    smtp_port: 587
`
	if _, err := Load(writeDoc(t, doc)); err == nil {
		t.Fatalf("expected email validation error")
	}
}

func TestLoadRejectsUnknownChannel(t *testing.T) {
	doc := `
login:
  last_name: Tester
  license_number: "1234567"
  keyword: hunter2
notify:
  channels: [pager]
`
	if _, err := Load(writeDoc(t, doc)); err == nil {
		t.Fatalf("expected unknown channel error")
	}
}

func TestLoadRejectsBadSchedule(t *testing.T) {
	doc := minimalDoc + "poll:\n  schedule: \"not a cron line\"\n"
	if _, err := Load(writeDoc(t, doc)); err == nil {
		t.Fatalf("expected schedule validation error")
	}
}

func TestLoadAcceptsCronSchedule(t *testing.T) {
	doc := minimalDoc + "poll:\n  schedule: \"*/10 * * * *\"\n  timezone: America/Vancouver\n"
	loaded, err := Load(writeDoc(t, doc))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Poll.Schedule == "" {
		t.Fatalf("schedule not carried through")
	}
}

func TestEnvOverlayWinsOverFile(t *testing.T) {
	t.Setenv("SLOTWATCH_CITY", "Victoria")
	t.Setenv("SLOTWATCH_CENTERS", "Langford , Saanich")
	doc, err := Load(writeDoc(t, minimalDoc))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if doc.Booking.City != "Victoria" {
		t.Errorf("city = %q, want env override", doc.Booking.City)
	}
	if len(doc.Booking.Centers) != 2 || doc.Booking.Centers[0] != "Langford" {
		t.Errorf("centers = %v", doc.Booking.Centers)
	}
}

func TestPreferencesFromDocument(t *testing.T) {
	doc := `
login:
  last_name: Tester
  license_number: "1234567"
  keyword: hunter2
booking:
  license_type: N
  city: Vancouver
  earliest_date: 2025-09-03
  cutoff_date: 2025-11-20
  centers: [Downtown]
`
	loaded, err := Load(writeDoc(t, doc))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	prefs := loaded.Preferences()
	if !prefs.AcceptsCenter("downtown") {
		t.Errorf("expected downtown in preferred set")
	}
	if prefs.CutoffDate.IsZero() {
		t.Errorf("cutoff date not carried through")
	}
	if prefs.EarliestDate.String() != "2025-09-03" {
		t.Errorf("earliest date = %s", prefs.EarliestDate)
	}
}
