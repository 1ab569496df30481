// Package appointment holds the domain types shared across the monitoring
// engine: candidate slots surfaced by the booking site, the user's filter
// preferences, and the normalized identity used for deduplication.
package appointment

import (
	"fmt"
	"strings"
	"time"
)

// LicenseType is the road test class a slot applies to.
type LicenseType string

const (
	// LicenseNovice is the Class 7 (N) road test.
	LicenseNovice LicenseType = "novice"
	// LicenseClass5 is the full Class 5 road test.
	LicenseClass5 LicenseType = "class5"
)

// ParseLicenseType accepts the spellings used in config files and by the
// booking site ("N", "novice", "class 7", "5", "class5").
func ParseLicenseType(raw string) (LicenseType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "n", "novice", "class 7", "class7", "7":
		return LicenseNovice, nil
	case "5", "class 5", "class5":
		return LicenseClass5, nil
	default:
		return "", fmt.Errorf("unknown license type %q", raw)
	}
}

// Candidate is a single open slot reported by the site in one poll. It is
// created fresh each cycle by the extractor and never mutated.
type Candidate struct {
	// TestCenter is the site-provided display name, not yet normalized.
	TestCenter  string
	Date        Date
	Time        TimeOfDay
	LicenseType LicenseType
	// RawIdentity is the site's internal slot id when the markup exposes
	// one. It is informational; dedup identity always comes from SeenKey.
	RawIdentity string
}

// SeenKey is the dedup identity of a candidate. Two slots whose display
// strings differ only in casing, padding or punctuation map to the same key.
func (c Candidate) SeenKey() string {
	return fmt.Sprintf("%s|%s|%s|%s", NormalizeCenter(c.TestCenter), c.Date, c.Time, c.LicenseType)
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s %s %s (%s)", c.TestCenter, c.Date, c.Time, c.LicenseType)
}

// NormalizeCenter lower-cases, trims, collapses internal whitespace and
// strips decorative punctuation from a test center display name. The dedup
// ledger depends on this being stable across polls while the underlying slot
// is unchanged.
func NormalizeCenter(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(name))
	space := false
	for _, r := range name {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == ' ':
			space = true
		case r == '.' || r == ',' || r == '\'' || r == '"' || r == '’':
			// drop
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Date is a civil date with no time zone attached. The booking surface deals
// in local calendar days only.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(raw string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d Date) After(other Date) bool {
	return other.Before(d)
}

// Time returns midnight of the date in loc.
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// TimeOfDay is a local wall-clock time, minute granularity.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay accepts "8:35 AM", "12:05 pm" and 24h "14:10" spellings,
// which is the spread the booking surface uses.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	for _, layout := range []string{"3:04 PM", "3:04PM", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("parse time of day %q", raw)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Preferences are the user's filter criteria, immutable for the process
// lifetime.
type Preferences struct {
	LicenseType LicenseType
	City        string
	// EarliestDate is the first acceptable slot date, inclusive.
	EarliestDate Date
	// Centers is the set of acceptable test centers, keyed by normalized
	// name. Empty means any center in the preferred city.
	Centers map[string]struct{}
	// CutoffDate, when set, requires slots to be strictly earlier. Used
	// when the user already holds a booking and only earlier slots help.
	CutoffDate Date
}

// NewPreferences normalizes the center list into a membership set.
func NewPreferences(license LicenseType, city string, earliest Date, centers []string) Preferences {
	p := Preferences{
		LicenseType:  license,
		City:         city,
		EarliestDate: earliest,
		Centers:      map[string]struct{}{},
	}
	for _, c := range centers {
		if n := NormalizeCenter(c); n != "" {
			p.Centers[n] = struct{}{}
		}
	}
	return p
}

// AcceptsCenter reports whether the normalized center name is in the
// preferred set. An empty set accepts any center.
func (p Preferences) AcceptsCenter(name string) bool {
	if len(p.Centers) == 0 {
		return true
	}
	_, ok := p.Centers[NormalizeCenter(name)]
	return ok
}
