package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bellwood/slotwatch/internal/browser"
	"github.com/bellwood/slotwatch/internal/browser/mock"
)

const bookingURL = "https://example.com/booking"

func TestAcquireLogsInOnce(t *testing.T) {
	drv := &mock.Driver{}
	m := NewManager(drv, browser.Credentials{LastName: "T"}, bookingURL)

	s1, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	s2, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	if s1 != s2 {
		t.Errorf("expected session reuse while fresh")
	}
	if len(drv.LoginCalls) != 1 {
		t.Errorf("expected a single login, got %d", len(drv.LoginCalls))
	}
}

func TestAcquireRetriesThenFailsWithAuthError(t *testing.T) {
	drv := &mock.Driver{LoginErr: errors.New("keyword rejected")}
	m := NewManager(drv, browser.Credentials{}, bookingURL)

	_, err := m.Acquire(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if authErr.Attempts != 2 {
		t.Errorf("attempts = %d, want default budget of 2", authErr.Attempts)
	}
	if len(drv.LoginCalls) != 2 {
		t.Errorf("login called %d times, want 2", len(drv.LoginCalls))
	}
}

func TestInvalidateForcesRelogin(t *testing.T) {
	drv := &mock.Driver{}
	m := NewManager(drv, browser.Credentials{}, bookingURL)

	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	m.Invalidate()
	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire after invalidate failed: %v", err)
	}
	if len(drv.LoginCalls) != 2 {
		t.Errorf("expected relogin after invalidate, got %d logins", len(drv.LoginCalls))
	}
}

func TestStaleSessionPingsBookingPage(t *testing.T) {
	now := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	drv := &mock.Driver{Pages: map[string][]browser.Page{
		bookingURL: {{URL: bookingURL, HTML: "<html>booking</html>"}},
	}}
	m := NewManager(drv, browser.Credentials{}, bookingURL, WithClock(clock), WithFreshFor(10*time.Minute))

	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	now = now.Add(11 * time.Minute)
	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire after staleness failed: %v", err)
	}
	if len(drv.LoadCalls) != 1 {
		t.Errorf("expected one freshness ping, got %d loads", len(drv.LoadCalls))
	}
	if len(drv.LoginCalls) != 1 {
		t.Errorf("ping passed, relogin should not happen; got %d logins", len(drv.LoginCalls))
	}
}

func TestStalePingRedirectedToLoginReauthenticates(t *testing.T) {
	now := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	drv := &mock.Driver{Pages: map[string][]browser.Page{
		bookingURL: {{URL: "https://example.com/login", HTML: "<html>login</html>"}},
	}}
	m := NewManager(drv, browser.Credentials{}, bookingURL, WithClock(clock), WithFreshFor(10*time.Minute))

	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	now = now.Add(11 * time.Minute)
	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire after expiry failed: %v", err)
	}
	if len(drv.LoginCalls) != 2 {
		t.Errorf("expected relogin after login redirect, got %d logins", len(drv.LoginCalls))
	}
}
