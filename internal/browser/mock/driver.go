// Package mock provides a scripted browser driver for tests.
package mock

import (
	"context"
	"fmt"

	"github.com/bellwood/slotwatch/internal/browser"
)

// Driver replays scripted pages and records every call. Pages for a URL are
// consumed in order; the last entry repeats once the script runs out.
type Driver struct {
	Pages      map[string][]browser.Page
	LoadErr    error
	LoginErr   error
	URL        string
	LoadCalls  []string
	LoginCalls []browser.Credentials
}

func (d *Driver) Load(ctx context.Context, url string) (browser.Page, error) {
	_ = ctx
	d.LoadCalls = append(d.LoadCalls, url)
	if d.LoadErr != nil {
		return browser.Page{}, d.LoadErr
	}
	script := d.Pages[url]
	if len(script) == 0 {
		return browser.Page{}, fmt.Errorf("no scripted page for %s", url)
	}
	page := script[0]
	if len(script) > 1 {
		d.Pages[url] = script[1:]
	}
	if page.URL == "" {
		page.URL = url
	}
	d.URL = page.URL
	return page, nil
}

func (d *Driver) SubmitCredentials(ctx context.Context, creds browser.Credentials) error {
	_ = ctx
	d.LoginCalls = append(d.LoginCalls, creds)
	return d.LoginErr
}

func (d *Driver) CurrentURL() string {
	return d.URL
}
