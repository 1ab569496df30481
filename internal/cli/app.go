package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/bellwood/slotwatch/internal/appointment"
	"github.com/bellwood/slotwatch/internal/browser"
	"github.com/bellwood/slotwatch/internal/browser/webdrv"
	"github.com/bellwood/slotwatch/internal/config"
	"github.com/bellwood/slotwatch/internal/core"
	"github.com/bellwood/slotwatch/internal/engine"
	"github.com/bellwood/slotwatch/internal/filter"
	"github.com/bellwood/slotwatch/internal/icbc"
	"github.com/bellwood/slotwatch/internal/ledger"
	"github.com/bellwood/slotwatch/internal/notify"
	"github.com/bellwood/slotwatch/internal/notify/email/smtp"
	"github.com/bellwood/slotwatch/internal/notify/twilio"
	"github.com/bellwood/slotwatch/internal/scheduler"
	"github.com/bellwood/slotwatch/internal/session"
)

// app holds everything a command needs after the wiring is done.
type app struct {
	cfg        *config.Document
	prefs      appointment.Preferences
	store      ledger.Ledger
	dispatcher *notify.Dispatcher
	engine     *engine.Engine
}

func buildApp(ctx context.Context, configPath string) (*app, error) {
	logger := core.LoggerFromContext(ctx)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	prefs := cfg.Preferences()
	logger.Info("watching for road test openings",
		"license", string(prefs.LicenseType),
		"city", cfg.Booking.City,
		"centers", strings.Join(cfg.Booking.Centers, ", "),
		"earliest", cfg.Booking.EarliestDate,
		"cutoff", cfg.Booking.CutoffDate,
		"channels", strings.Join(cfg.Notify.Channels, ", "),
	)

	driver, err := webdrv.New(browser.Options{
		LoginURL:   cfg.Browser.LoginURL,
		BookingURL: cfg.Browser.BookingURL,
		Headless:   *cfg.Browser.Headless,
		Timeout:    cfg.Browser.Timeout.Duration,
		UserAgent:  cfg.Browser.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize browser driver: %w", err)
	}

	creds := browser.Credentials{
		LastName:      cfg.Login.LastName,
		LicenseNumber: cfg.Login.LicenseNumber,
		Keyword:       cfg.Login.Keyword,
	}
	sessions := session.NewManager(driver, creds, cfg.Browser.BookingURL)

	f, err := filter.New(prefs, cfg.Booking.Rule)
	if err != nil {
		return nil, fmt.Errorf("compile booking rule: %w", err)
	}

	store, err := buildLedger(cfg)
	if err != nil {
		return nil, err
	}

	channels, err := buildChannels(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	dispatcher := notify.NewDispatcher(channels, store, cfg.Browser.BookingURL)
	extractor := icbc.NewExtractor(driver, cfg.Browser.BookingURL)
	criteria := icbc.Criteria{LicenseType: prefs.LicenseType, City: cfg.Booking.City}

	return &app{
		cfg:        cfg,
		prefs:      prefs,
		store:      store,
		dispatcher: dispatcher,
		engine: engine.New(sessions, extractor, f, dispatcher, store, criteria,
			engine.WithRetention(cfg.Ledger.Horizon.Duration)),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// schedulerOptions maps the poll section onto the scheduler.
func (a *app) schedulerOptions(runOnce bool) ([]scheduler.Option, error) {
	poll := a.cfg.Poll
	opts := []scheduler.Option{
		scheduler.WithInterval(poll.Interval.Duration),
		scheduler.WithBackoff(poll.BackoffBase.Duration, poll.BackoffMax.Duration),
		scheduler.WithMarkupLimit(poll.MarkupFailureLimit),
	}
	if poll.Interval.Duration > 0 && poll.Jitter.Duration > 0 {
		opts = append(opts, scheduler.WithJitter(
			float64(poll.Jitter.Duration)/float64(poll.Interval.Duration),
		))
	}
	if poll.Schedule != "" {
		spec := poll.Schedule
		if poll.Timezone != "" {
			spec = "CRON_TZ=" + poll.Timezone + " " + spec
		}
		schedule, err := cron.ParseStandard(spec)
		if err != nil {
			return nil, fmt.Errorf("parse poll schedule: %w", err)
		}
		opts = append(opts, scheduler.WithCronSchedule(schedule))
	}
	if runOnce {
		opts = append(opts, scheduler.WithRunOnce())
	}
	return opts, nil
}

func buildLedger(cfg *config.Document) (ledger.Ledger, error) {
	if cfg.Ledger.Path == "" {
		return ledger.NewMemoryLedger(), nil
	}
	store, err := ledger.NewSQLiteLedger(cfg.Ledger.Path, cfg.Ledger.Table)
	if err != nil {
		return nil, fmt.Errorf("open slot ledger: %w", err)
	}
	return store, nil
}

func buildChannels(cfg *config.Document) ([]notify.Channel, error) {
	var channels []notify.Channel
	for _, name := range cfg.Notify.Channels {
		switch name {
		case "console":
			channels = append(channels, notify.NewConsoleChannel(nil))
		case "email":
			ec := cfg.Notify.Email
			sender := smtp.NewSender(ec.SMTPHost, ec.SMTPPort, ec.SMTPUser, ec.SMTPPassword, ec.TLSMode, ec.InsecureSkipVerify)
			from := ec.From
			if from == "" {
				from = ec.SMTPUser
			}
			channels = append(channels, notify.NewEmailChannel(sender, from, []string{ec.To}))
		case "sms":
			sc := cfg.Notify.SMS
			client := twilio.New(sc.AccountSID, sc.AuthToken)
			channels = append(channels, notify.NewSMSChannel(client, sc.From, []string{sc.To}))
		default:
			return nil, fmt.Errorf("unknown notify channel %q", name)
		}
	}
	return channels, nil
}
