package mock

import (
	"context"

	"github.com/bellwood/slotwatch/internal/notify"
)

type Channel struct {
	ChannelName string
	Alerts      []notify.Alert
	Err         error
}

func (c *Channel) Name() string {
	if c.ChannelName == "" {
		return "mock"
	}
	return c.ChannelName
}

func (c *Channel) Send(ctx context.Context, alert notify.Alert) error {
	_ = ctx
	if c.Err != nil {
		return c.Err
	}
	c.Alerts = append(c.Alerts, alert)
	return nil
}
