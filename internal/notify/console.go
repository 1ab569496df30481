package notify

import (
	"context"
	"fmt"
	"io"
	"os"
)

// ConsoleChannel prints alerts to a writer, stdout by default. It is
// the fallback channel when nothing else is configured.
type ConsoleChannel struct {
	out io.Writer
}

func NewConsoleChannel(out io.Writer) *ConsoleChannel {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleChannel{out: out}
}

func (c *ConsoleChannel) Name() string { return "console" }

func (c *ConsoleChannel) Send(ctx context.Context, alert Alert) error {
	_ = ctx
	if _, err := fmt.Fprintf(c.out, "%s\n%s\n", Subject(alert), PlainBody(alert)); err != nil {
		return fmt.Errorf("failed to write console alert: %w", err)
	}
	return nil
}
