// Package icbc turns the road-test booking page into structured appointment
// candidates. All markup knowledge lives here: the rest of the engine only
// ever sees appointment.Candidate, so drift in the site's markup is
// contained to this package.
package icbc

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/bellwood/slotwatch/internal/appointment"
	"github.com/bellwood/slotwatch/internal/browser"
	"github.com/bellwood/slotwatch/internal/core"
	"github.com/bellwood/slotwatch/internal/session"
)

// ErrorKind classifies extraction failures.
type ErrorKind int

const (
	// NotAuthenticated means the site rejected our session and bounced us
	// to the login page. Recoverable by re-login.
	NotAuthenticated ErrorKind = iota
	// MarkupChanged means the page rendered but none of the structural
	// anchors we rely on were present. Polling is pointless if this
	// keeps happening.
	MarkupChanged
)

func (k ErrorKind) String() string {
	switch k {
	case NotAuthenticated:
		return "not_authenticated"
	case MarkupChanged:
		return "markup_changed"
	default:
		return "unknown"
	}
}

// ExtractionError is a classified failure to read the booking surface.
// Zero open appointments is NOT an ExtractionError; it is a normal, frequent
// outcome reported as an empty candidate list.
type ExtractionError struct {
	Kind   ErrorKind
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed (%s): %s", e.Kind, e.Reason)
}

// Criteria narrows the extraction to the user's booking context.
type Criteria struct {
	LicenseType appointment.LicenseType
	City        string
}

// Extractor reads the booking surface through the automation layer.
type Extractor struct {
	driver     browser.Driver
	bookingURL string
}

func NewExtractor(driver browser.Driver, bookingURL string) *Extractor {
	return &Extractor{driver: driver, bookingURL: bookingURL}
}

// Extract loads the booking page and parses the open slots. The sess
// argument is the proof of authentication; if the site disagrees the error
// comes back as NotAuthenticated and the caller re-acquires.
func (e *Extractor) Extract(ctx context.Context, sess *session.Session, criteria Criteria) ([]appointment.Candidate, error) {
	if sess == nil {
		return nil, &ExtractionError{Kind: NotAuthenticated, Reason: "no session held"}
	}
	page, err := e.driver.Load(ctx, e.bookingURL)
	if err != nil {
		return nil, fmt.Errorf("load booking page: %w", err)
	}
	if session.IsLoginURL(page.URL) {
		return nil, &ExtractionError{Kind: NotAuthenticated, Reason: "redirected to login page"}
	}
	return Parse(ctx, page.HTML, criteria)
}

// Structural anchors. Labelled containers are preferred over positional
// assumptions so partial markup drift degrades instead of breaking.
const (
	listingsSelector  = ".appointment-listings, [data-role='appointment-listings']"
	locationSelector  = ".location-result, [data-role='location']"
	centerSelector    = "h2.location-name, .location-name, h2"
	dateGroupSelector = ".date-group, [data-role='date-group']"
	dateTitleSelector = "h3.date-title, .date-title, h3"
	slotSelector      = "button.time-slot, .time-slot, [data-slot-id]"
	emptySelector     = ".no-appointments, [data-role='no-appointments']"
	loginFormSelector = "form input[type='password']"
)

// Parse extracts candidates from raw booking-page HTML.
func Parse(ctx context.Context, html string, criteria Criteria) ([]appointment.Candidate, error) {
	logger := core.LoggerFromContext(ctx)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ExtractionError{Kind: MarkupChanged, Reason: fmt.Sprintf("unparseable document: %v", err)}
	}

	listings := doc.Find(listingsSelector)
	if listings.Length() == 0 {
		if doc.Find(loginFormSelector).Length() > 0 {
			return nil, &ExtractionError{Kind: NotAuthenticated, Reason: "login form served instead of booking surface"}
		}
		if doc.Find(emptySelector).Length() > 0 {
			return []appointment.Candidate{}, nil
		}
		return nil, &ExtractionError{Kind: MarkupChanged, Reason: "appointment listings container not found"}
	}

	if listings.Find(emptySelector).Length() > 0 {
		return []appointment.Candidate{}, nil
	}

	var candidates []appointment.Candidate
	groups := 0
	badDates := 0
	listings.Find(locationSelector).Each(func(_ int, location *goquery.Selection) {
		center := strings.TrimSpace(location.Find(centerSelector).First().Text())
		if center == "" {
			return
		}
		location.Find(dateGroupSelector).Each(func(_ int, group *goquery.Selection) {
			groups++
			dateText := strings.TrimSpace(group.Find(dateTitleSelector).First().Text())
			date, err := parseSlotDate(dateText)
			if err != nil {
				badDates++
				logger.Warn("skipping date group with unparseable header", "header", dateText)
				return
			}
			group.Find(slotSelector).Each(func(_ int, slot *goquery.Selection) {
				tod, err := appointment.ParseTimeOfDay(slot.Text())
				if err != nil {
					logger.Warn("skipping slot with unparseable time", "text", strings.TrimSpace(slot.Text()))
					return
				}
				id, _ := slot.Attr("data-slot-id")
				candidates = append(candidates, appointment.Candidate{
					TestCenter:  center,
					Date:        date,
					Time:        tod,
					LicenseType: criteria.LicenseType,
					RawIdentity: id,
				})
			})
		})
	})

	// Listings present but every date group is unreadable: that is drift,
	// not an empty calendar.
	if len(candidates) == 0 {
		if groups == 0 {
			return []appointment.Candidate{}, nil
		}
		if badDates == groups {
			return nil, &ExtractionError{Kind: MarkupChanged, Reason: "no date group could be parsed"}
		}
	}
	return candidates, nil
}

var ordinalSuffix = regexp.MustCompile(`(\d+)(st|nd|rd|th)`)

// parseSlotDate reads the date headers the site uses, with or without
// ordinal suffixes: "Thursday, January 22, 2026", "Thursday, January 22nd, 2026".
func parseSlotDate(raw string) (appointment.Date, error) {
	s := strings.TrimSpace(ordinalSuffix.ReplaceAllString(raw, "$1"))
	for _, layout := range []string{"Monday, January 2, 2006", "January 2, 2006", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return appointment.DateOf(t), nil
		}
	}
	return appointment.Date{}, fmt.Errorf("unrecognized date header %q", raw)
}
