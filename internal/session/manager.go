// Package session owns authentication against the booking site: it logs in,
// hands out a valid session, and re-authenticates when the site drops one.
// The rest of the engine only ever asks for a valid session and never looks
// inside it.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bellwood/slotwatch/internal/browser"
	"github.com/bellwood/slotwatch/internal/core"
)

// AuthError means login could not be established within the retry budget.
// The scheduler treats it as fatal for the run.
type AuthError struct {
	Attempts int
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Session is an opaque authenticated handle. Validity is the manager's
// business; holders just pass it back to the extractor.
type Session struct {
	establishedAt time.Time
}

// Age reports how long ago the session was established.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.establishedAt)
}

const (
	// defaultLoginAttempts bounds the login sequence per Acquire call.
	// Exceeding it surfaces an AuthError instead of retrying forever.
	defaultLoginAttempts = 2
	// defaultFreshFor is how long a session is trusted without a ping.
	defaultFreshFor = 20 * time.Minute
)

type Manager struct {
	driver     browser.Driver
	creds      browser.Credentials
	bookingURL string

	loginAttempts int
	freshFor      time.Duration
	now           func() time.Time

	current *Session
}

type Option func(*Manager)

// WithLoginAttempts overrides the per-acquire login retry budget.
func WithLoginAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.loginAttempts = n
		}
	}
}

// WithFreshFor overrides how long a session is trusted without a ping.
func WithFreshFor(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.freshFor = d
		}
	}
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(driver browser.Driver, creds browser.Credentials, bookingURL string, opts ...Option) *Manager {
	m := &Manager{
		driver:        driver,
		creds:         creds,
		bookingURL:    bookingURL,
		loginAttempts: defaultLoginAttempts,
		freshFor:      defaultFreshFor,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire returns a session guaranteed valid at return time, or fails with
// *AuthError. A held session is reused while it passes the cheap freshness
// check; a full login round-trip only happens when needed.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	logger := core.LoggerFromContext(ctx)

	if m.current != nil {
		if m.fresh(ctx) {
			return m.current, nil
		}
		logger.Debug("held session went stale, re-authenticating")
		m.current = nil
	}

	var lastErr error
	for attempt := 1; attempt <= m.loginAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := m.driver.SubmitCredentials(ctx, m.creds); err != nil {
			lastErr = err
			logger.Warn("login attempt failed", "attempt", attempt, "error", err)
			continue
		}
		m.current = &Session{establishedAt: m.now()}
		logger.Info("authenticated", "attempt", attempt)
		return m.current, nil
	}
	return nil, &AuthError{Attempts: m.loginAttempts, Err: lastErr}
}

// Invalidate marks the held session stale. The extractor calls this when a
// response indicates the site rejected the session.
func (m *Manager) Invalidate() {
	m.current = nil
}

// fresh is the cheap validity check: recently established sessions are
// trusted outright, older ones get one authenticated ping. No full login
// happens here.
func (m *Manager) fresh(ctx context.Context) bool {
	if m.current == nil {
		return false
	}
	if m.current.Age(m.now()) < m.freshFor {
		return true
	}
	page, err := m.driver.Load(ctx, m.bookingURL)
	if err != nil {
		return false
	}
	return !IsLoginURL(page.URL)
}

// IsLoginURL reports whether a landing URL is the site's login route, which
// is how session expiry manifests.
func IsLoginURL(u string) bool {
	return strings.Contains(u, "login")
}
