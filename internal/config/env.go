package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnv overlays SLOTWATCH_* (and conventional SMTP_*/TWILIO_*)
// environment variables on top of the YAML document. Env wins over file so
// secrets can stay out of the config on disk.
func applyEnv(doc *Document) {
	setString(&doc.Login.LastName, "SLOTWATCH_LAST_NAME", "ICBC_LAST_NAME")
	setString(&doc.Login.LicenseNumber, "SLOTWATCH_LICENSE_NUMBER", "ICBC_LICENSE_NUMBER")
	setString(&doc.Login.Keyword, "SLOTWATCH_KEYWORD", "ICBC_KEYWORD")

	setString(&doc.Booking.LicenseType, "SLOTWATCH_LICENSE_TYPE")
	setString(&doc.Booking.City, "SLOTWATCH_CITY")
	setString(&doc.Booking.EarliestDate, "SLOTWATCH_EARLIEST_DATE")
	setString(&doc.Booking.CutoffDate, "SLOTWATCH_CUTOFF_DATE")
	if v := envString("SLOTWATCH_CENTERS", ""); v != "" {
		doc.Booking.Centers = splitCSV(v)
	}
	setString(&doc.Booking.Rule, "SLOTWATCH_RULE")

	setDuration(&doc.Poll.Interval, "SLOTWATCH_INTERVAL")
	setDuration(&doc.Poll.Jitter, "SLOTWATCH_JITTER")
	setString(&doc.Poll.Schedule, "SLOTWATCH_SCHEDULE")
	setString(&doc.Poll.Timezone, "SLOTWATCH_TIMEZONE")

	setString(&doc.Browser.LoginURL, "SLOTWATCH_LOGIN_URL")
	setString(&doc.Browser.BookingURL, "SLOTWATCH_BOOKING_URL")
	setDuration(&doc.Browser.Timeout, "SLOTWATCH_BROWSER_TIMEOUT")
	setString(&doc.Browser.UserAgent, "SLOTWATCH_USER_AGENT")
	if v := strings.TrimSpace(os.Getenv("SLOTWATCH_HEADLESS")); v != "" {
		headless := envBool("SLOTWATCH_HEADLESS", true)
		doc.Browser.Headless = &headless
	}

	setString(&doc.Ledger.Path, "SLOTWATCH_LEDGER_PATH")
	setString(&doc.Ledger.Table, "SLOTWATCH_LEDGER_TABLE")

	if v := envString("SLOTWATCH_CHANNELS", ""); v != "" {
		doc.Notify.Channels = splitCSV(v)
	}
	setString(&doc.Notify.Email.From, "SLOTWATCH_EMAIL_FROM", "EMAIL_SENDER")
	setString(&doc.Notify.Email.To, "SLOTWATCH_EMAIL_TO", "EMAIL_RECIPIENT")
	setString(&doc.Notify.Email.SMTPHost, "SMTP_HOST", "SMTP_SERVER")
	if v := envString("SMTP_PORT", ""); v != "" {
		doc.Notify.Email.SMTPPort = envInt("SMTP_PORT", doc.Notify.Email.SMTPPort)
	}
	setString(&doc.Notify.Email.SMTPUser, "SMTP_USER")
	setString(&doc.Notify.Email.SMTPPassword, "SMTP_PASSWORD", "EMAIL_PASSWORD")
	setString(&doc.Notify.Email.TLSMode, "SMTP_TLS_MODE")
	if v := strings.TrimSpace(os.Getenv("SMTP_INSECURE_SKIP_VERIFY")); v != "" {
		doc.Notify.Email.InsecureSkipVerify = envBool("SMTP_INSECURE_SKIP_VERIFY", false)
	}

	setString(&doc.Notify.SMS.AccountSID, "TWILIO_ACCOUNT_SID")
	setString(&doc.Notify.SMS.AuthToken, "TWILIO_AUTH_TOKEN")
	setString(&doc.Notify.SMS.From, "TWILIO_PHONE_NUMBER")
	setString(&doc.Notify.SMS.To, "SLOTWATCH_SMS_TO", "RECIPIENT_PHONE_NUMBER")
}

func setString(dst *string, keys ...string) {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
			return
		}
	}
}

func setDuration(dst *Duration, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if d, err := parseDuration(v); err == nil {
		dst.Duration = d
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
