// Package browser defines the contract the engine uses to drive the booking
// site. The engine never touches HTTP or markup through anything else, so a
// real browser, a plain HTTP client or a scripted fake are interchangeable.
package browser

import (
	"context"
	"time"
)

// Credentials is the ICBC driver login triple.
type Credentials struct {
	LastName      string
	LicenseNumber string
	Keyword       string
}

// Page is the rendered result of a navigation.
type Page struct {
	// URL is the final address after redirects. Login expiry shows up
	// here as a redirect back to the login route.
	URL  string
	HTML string
}

// Driver is the automation layer: it renders the site and returns raw page
// content. All operations honor the driver's configured timeout; a timeout
// expiry surfaces as an error, never a hang.
type Driver interface {
	// Load navigates to url and returns the resulting page.
	Load(ctx context.Context, url string) (Page, error)
	// SubmitCredentials performs the login sequence. A nil return means
	// the site accepted the credentials.
	SubmitCredentials(ctx context.Context, creds Credentials) error
	// CurrentURL reports where the last navigation landed.
	CurrentURL() string
}

// Options configure a driver implementation.
type Options struct {
	LoginURL   string
	BookingURL string
	Headless   bool
	Timeout    time.Duration
	UserAgent  string
}
