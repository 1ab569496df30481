package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/bellwood/slotwatch/internal/notify/email"
)

// EmailChannel delivers alerts through an email.Sender.
type EmailChannel struct {
	sender email.Sender
	from   string
	to     []string
}

func NewEmailChannel(sender email.Sender, from string, to []string) *EmailChannel {
	return &EmailChannel{sender: sender, from: from, to: to}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, alert Alert) error {
	body, err := HTMLBody(alert)
	if err != nil {
		return err
	}
	message := email.Message{
		From:    c.from,
		To:      strings.Join(c.to, ","),
		Subject: Subject(alert),
		Body:    body,
	}
	if err := c.sender.Send(ctx, message); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}
