// Package config defines the slotwatch.yaml document, its validation rules
// and the environment overlay. The engine itself never reads files or env
// vars; it is handed the validated structs built here.
package config

import (
	"fmt"
	"net/mail"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/bellwood/slotwatch/internal/appointment"
)

// Document is the top-level structure of a slotwatch.yaml file.
type Document struct {
	Login   LoginConfig   `yaml:"login"`
	Booking BookingConfig `yaml:"booking"`
	Poll    PollConfig    `yaml:"poll"`
	Browser BrowserConfig `yaml:"browser"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// LoginConfig carries the ICBC driver-licensing credentials. The site
// authenticates with last name, licence number and a keyword rather than a
// username/password pair.
type LoginConfig struct {
	LastName      string `yaml:"last_name"`
	LicenseNumber string `yaml:"license_number"`
	Keyword       string `yaml:"keyword"`
}

// BookingConfig is the user's slot preference surface.
type BookingConfig struct {
	LicenseType  string   `yaml:"license_type"`
	City         string   `yaml:"city"`
	EarliestDate string   `yaml:"earliest_date"`
	// CutoffDate, when set, only accepts slots strictly before it. Use it
	// when an appointment is already booked and only earlier slots help.
	CutoffDate string   `yaml:"cutoff_date,omitempty"`
	Centers    []string `yaml:"centers,omitempty"`
	// Rule is an optional expr-lang expression evaluated per candidate and
	// ANDed with the built-in filter, e.g. "time.hour < 12".
	Rule string `yaml:"rule,omitempty"`
}

// PollConfig drives the scheduler. Interval mode is the default; setting
// Schedule switches to cron-driven cycles.
type PollConfig struct {
	Interval Duration `yaml:"interval,omitempty"`
	Jitter   Duration `yaml:"jitter,omitempty"`
	Schedule string   `yaml:"schedule,omitempty"`
	Timezone string   `yaml:"timezone,omitempty"`

	BackoffBase Duration `yaml:"backoff_base,omitempty"`
	BackoffMax  Duration `yaml:"backoff_max,omitempty"`
	// MarkupFailureLimit promotes repeated parse failures to fatal once
	// this many consecutive cycles report them.
	MarkupFailureLimit int `yaml:"markup_failure_limit,omitempty"`
}

// BrowserConfig configures the automation layer the engine polls through.
type BrowserConfig struct {
	LoginURL   string   `yaml:"login_url,omitempty"`
	BookingURL string   `yaml:"booking_url,omitempty"`
	Headless   *bool    `yaml:"headless,omitempty"`
	Timeout    Duration `yaml:"timeout,omitempty"`
	UserAgent  string   `yaml:"user_agent,omitempty"`
}

// LedgerConfig selects the dedup ledger backing store. An empty path keeps
// the ledger in memory, which is only correct for continuous mode; run-once
// deployments need the sqlite path so notifications survive restarts.
type LedgerConfig struct {
	Path  string `yaml:"path,omitempty"`
	Table string `yaml:"table,omitempty"`
	// Horizon prunes entries whose slot date is older than now-horizon.
	Horizon Duration `yaml:"horizon,omitempty"`
}

// NotifyConfig lists the delivery channels in dispatch order.
type NotifyConfig struct {
	Channels []string    `yaml:"channels"`
	Email    EmailConfig `yaml:"email,omitempty"`
	SMS      SMSConfig   `yaml:"sms,omitempty"`
}

type EmailConfig struct {
	From               string `yaml:"from"`
	To                 string `yaml:"to"`
	SMTPHost           string `yaml:"smtp_host"`
	SMTPPort           int    `yaml:"smtp_port"`
	SMTPUser           string `yaml:"smtp_user,omitempty"`
	SMTPPassword       string `yaml:"smtp_password,omitempty"`
	TLSMode            string `yaml:"tls_mode,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty"`
}

type SMSConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"`
	To         string `yaml:"to"`
}

const (
	DefaultLoginURL   = "https://onlinebusiness.icbc.com/webdeas-ui/login;type=driver"
	DefaultBookingURL = "https://onlinebusiness.icbc.com/webdeas-ui/booking"

	defaultInterval           = 10 * time.Minute
	defaultBackoffBase        = 30 * time.Second
	defaultBackoffMax         = 15 * time.Minute
	defaultBrowserTimeout     = 30 * time.Second
	defaultMarkupFailureLimit = 3
	defaultLedgerTable        = "seen_slots"
)

// Load reads and validates a slotwatch document, applying the environment
// overlay on top of the file contents.
func Load(path string) (*Document, error) {
	doc := &Document{}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		// No file is fine; the whole document can come from env vars.
	} else if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse slotwatch document: %w", err)
	}
	applyEnv(doc)
	doc.applyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *Document) applyDefaults() {
	if d.Browser.LoginURL == "" {
		d.Browser.LoginURL = DefaultLoginURL
	}
	if d.Browser.BookingURL == "" {
		d.Browser.BookingURL = DefaultBookingURL
	}
	if d.Browser.Timeout.Duration <= 0 {
		d.Browser.Timeout.Duration = defaultBrowserTimeout
	}
	if d.Browser.Headless == nil {
		headless := true
		d.Browser.Headless = &headless
	}
	if d.Poll.Interval.Duration <= 0 {
		d.Poll.Interval.Duration = defaultInterval
	}
	if d.Poll.Jitter.Duration <= 0 {
		d.Poll.Jitter.Duration = d.Poll.Interval.Duration / 10
	}
	if d.Poll.BackoffBase.Duration <= 0 {
		d.Poll.BackoffBase.Duration = defaultBackoffBase
	}
	if d.Poll.BackoffMax.Duration <= 0 {
		d.Poll.BackoffMax.Duration = defaultBackoffMax
	}
	if d.Poll.MarkupFailureLimit <= 0 {
		d.Poll.MarkupFailureLimit = defaultMarkupFailureLimit
	}
	if d.Ledger.Table == "" {
		d.Ledger.Table = defaultLedgerTable
	}
	if d.Booking.LicenseType == "" {
		d.Booking.LicenseType = "N"
	}
	if len(d.Notify.Channels) == 0 {
		d.Notify.Channels = []string{"console"}
	}
}

// Validate checks the document for the errors worth failing startup over.
func (d *Document) Validate() error {
	if d.Login.LastName == "" {
		return fmt.Errorf("login: last_name is required")
	}
	if d.Login.LicenseNumber == "" {
		return fmt.Errorf("login: license_number is required")
	}
	if d.Login.Keyword == "" {
		return fmt.Errorf("login: keyword is required")
	}

	if _, err := appointment.ParseLicenseType(d.Booking.LicenseType); err != nil {
		return fmt.Errorf("booking: %w", err)
	}
	if d.Booking.EarliestDate != "" {
		if _, err := appointment.ParseDate(d.Booking.EarliestDate); err != nil {
			return fmt.Errorf("booking: earliest_date: %w", err)
		}
	}
	if d.Booking.CutoffDate != "" {
		if _, err := appointment.ParseDate(d.Booking.CutoffDate); err != nil {
			return fmt.Errorf("booking: cutoff_date: %w", err)
		}
	}

	if d.Poll.Schedule != "" {
		if _, err := cron.ParseStandard(d.Poll.Schedule); err != nil {
			return fmt.Errorf("poll: invalid schedule: %w", err)
		}
	}
	if d.Poll.Timezone != "" {
		if _, err := time.LoadLocation(d.Poll.Timezone); err != nil {
			return fmt.Errorf("poll: invalid timezone: %w", err)
		}
	}

	for _, channel := range d.Notify.Channels {
		switch channel {
		case "console":
		case "email":
			if err := d.Notify.Email.validate(); err != nil {
				return fmt.Errorf("notify email: %w", err)
			}
		case "sms":
			if err := d.Notify.SMS.validate(); err != nil {
				return fmt.Errorf("notify sms: %w", err)
			}
		default:
			return fmt.Errorf("notify: unknown channel %q", channel)
		}
	}
	return nil
}

func (c EmailConfig) validate() error {
	if c.To == "" {
		return fmt.Errorf("'to' field is required")
	}
	if _, err := mail.ParseAddress(c.To); err != nil {
		return fmt.Errorf("invalid to address")
	}
	if c.From != "" { // From is optional, but if provided must be valid
		if _, err := mail.ParseAddress(c.From); err != nil {
			return fmt.Errorf("invalid from address")
		}
	}
	if c.SMTPHost == "" {
		return fmt.Errorf("smtp_host is required")
	}
	if c.SMTPPort <= 0 {
		return fmt.Errorf("smtp_port must be positive")
	}
	return nil
}

func (c SMSConfig) validate() error {
	required := map[string]string{
		"account_sid": c.AccountSID,
		"auth_token":  c.AuthToken,
		"from":        c.From,
		"to":          c.To,
	}
	for field, value := range required {
		if value == "" {
			return fmt.Errorf("'%s' field is required", field)
		}
	}
	return nil
}

// Preferences builds the immutable filter criteria from the booking section.
// Call only after Validate.
func (d *Document) Preferences() appointment.Preferences {
	license, _ := appointment.ParseLicenseType(d.Booking.LicenseType)
	var earliest appointment.Date
	if d.Booking.EarliestDate != "" {
		earliest, _ = appointment.ParseDate(d.Booking.EarliestDate)
	}
	prefs := appointment.NewPreferences(license, d.Booking.City, earliest, d.Booking.Centers)
	if d.Booking.CutoffDate != "" {
		prefs.CutoffDate, _ = appointment.ParseDate(d.Booking.CutoffDate)
	}
	return prefs
}
