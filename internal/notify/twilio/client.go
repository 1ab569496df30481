// Package twilio is a minimal client for the Twilio Messages API,
// covering only what alert delivery needs.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.twilio.com"

type Client struct {
	hc         *http.Client
	baseURL    string
	accountSID string
	authToken  string
}

func New(accountSID, authToken string) *Client {
	return &Client{
		hc:         &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		accountSID: accountSID,
		authToken:  authToken,
	}
}

// WithBaseURL overrides the API endpoint, used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

// SendSMS posts a single outbound message and returns the message SID.
func (c *Client) SendSMS(ctx context.Context, from, to, body string) (string, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)

	form := url.Values{
		"From": {from},
		"To":   {to},
		"Body": {body},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build twilio request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read twilio response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(payload, &apiErr)
		if apiErr.Message != "" {
			return "", fmt.Errorf("twilio rejected message: %s (code=%d, status=%d)", apiErr.Message, apiErr.Code, resp.StatusCode)
		}
		return "", fmt.Errorf("twilio rejected message (status=%d)", resp.StatusCode)
	}

	var created struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(payload, &created); err != nil {
		return "", fmt.Errorf("failed to decode twilio response: %w", err)
	}
	return created.SID, nil
}
