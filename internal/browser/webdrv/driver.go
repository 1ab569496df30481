// Package webdrv drives the booking site over plain HTTP with a cookie jar.
// It is the default automation layer: the booking surface is served as
// markup the engine can fetch and parse without a full browser, and keeping
// the session in a jar lets polls reuse one login.
package webdrv

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/bellwood/slotwatch/internal/browser"
	"github.com/bellwood/slotwatch/internal/retry"
)

const defaultUserAgent = "slotwatch/0.1"

// maxPageBytes bounds how much of a response we will buffer. The booking
// pages are small; anything larger is not a page we can parse anyway.
const maxPageBytes = 4 << 20

type Driver struct {
	client    *http.Client
	opts      browser.Options
	userAgent string

	mu         sync.Mutex
	currentURL string
}

func New(opts browser.Options) (*Driver, error) {
	if opts.LoginURL == "" {
		return nil, fmt.Errorf("login url is required")
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Driver{
		client:    &http.Client{Jar: jar, Timeout: timeout},
		opts:      opts,
		userAgent: ua,
	}, nil
}

func (d *Driver) Load(ctx context.Context, pageURL string) (browser.Page, error) {
	var page browser.Page
	err := retry.Do(ctx, retry.Config{Attempts: 3, BaseDelay: 500 * time.Millisecond}, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", d.userAgent)
		resp, err := d.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("load %s: status %d", pageURL, resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
		if err != nil {
			return err
		}
		page = browser.Page{URL: resp.Request.URL.String(), HTML: string(body)}
		return nil
	})
	if err != nil {
		return browser.Page{}, err
	}
	d.setCurrentURL(page.URL)
	return page, nil
}

func (d *Driver) SubmitCredentials(ctx context.Context, creds browser.Credentials) error {
	form := url.Values{
		"drvrLastName":  {creds.LastName},
		"licenceNumber": {creds.LicenseNumber},
		"keyword":       {creds.Keyword},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.opts.LoginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit credentials: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageBytes))

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("login rejected (status %d)", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("login failed (status %d)", resp.StatusCode)
	}
	finalURL := resp.Request.URL.String()
	d.setCurrentURL(finalURL)
	// The site answers a bad keyword with a 200 that bounces back to the
	// login route.
	if strings.Contains(finalURL, "login") {
		return fmt.Errorf("login rejected: redirected back to %s", finalURL)
	}
	return nil
}

func (d *Driver) CurrentURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentURL
}

func (d *Driver) setCurrentURL(u string) {
	d.mu.Lock()
	d.currentURL = u
	d.mu.Unlock()
}
