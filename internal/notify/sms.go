package notify

import (
	"context"
	"fmt"

	"github.com/bellwood/slotwatch/internal/notify/twilio"
)

// SMSChannel delivers alerts as text messages through Twilio.
type SMSChannel struct {
	client *twilio.Client
	from   string
	to     []string
}

func NewSMSChannel(client *twilio.Client, from string, to []string) *SMSChannel {
	return &SMSChannel{client: client, from: from, to: to}
}

func (c *SMSChannel) Name() string { return "sms" }

func (c *SMSChannel) Send(ctx context.Context, alert Alert) error {
	body := Subject(alert)
	if alert.BookingURL != "" {
		body += "\n" + alert.BookingURL
	}
	for _, recipient := range c.to {
		if _, err := c.client.SendSMS(ctx, c.from, recipient, body); err != nil {
			return fmt.Errorf("failed to send alert SMS to %s: %w", recipient, err)
		}
	}
	return nil
}
