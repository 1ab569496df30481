package notify

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Subject returns a short one-line summary suitable for email subjects
// and SMS bodies.
func Subject(alert Alert) string {
	prefix := "Road test opening"
	if alert.Test {
		prefix = "[test] Road test opening"
	}
	return fmt.Sprintf("%s: %s on %s at %s",
		prefix,
		alert.Candidate.TestCenter,
		alert.Candidate.Date,
		alert.Candidate.Time,
	)
}

// PlainBody renders the alert as plain text for console and SMS delivery.
func PlainBody(alert Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A %s road test slot opened up.\n\n", alert.Candidate.LicenseType)
	fmt.Fprintf(&b, "Location: %s\n", alert.Candidate.TestCenter)
	fmt.Fprintf(&b, "Date:     %s\n", alert.Candidate.Date)
	fmt.Fprintf(&b, "Time:     %s\n", alert.Candidate.Time)
	if alert.BookingURL != "" {
		fmt.Fprintf(&b, "\nBook it: %s\n", alert.BookingURL)
	}
	return b.String()
}

// HTMLBody renders the alert as HTML for email delivery. The body is
// authored as markdown and converted, so email clients get real markup
// while the source stays readable.
func HTMLBody(alert Alert) (string, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "## %s\n\n", Subject(alert))
	fmt.Fprintf(&md, "A **%s** road test slot opened up.\n\n", alert.Candidate.LicenseType)
	fmt.Fprintf(&md, "| | |\n|---|---|\n")
	fmt.Fprintf(&md, "| Location | %s |\n", alert.Candidate.TestCenter)
	fmt.Fprintf(&md, "| Date | %s |\n", alert.Candidate.Date)
	fmt.Fprintf(&md, "| Time | %s |\n", alert.Candidate.Time)
	if alert.BookingURL != "" {
		fmt.Fprintf(&md, "\n[Book this slot](%s)\n", alert.BookingURL)
	}
	fmt.Fprintf(&md, "\nFound at %s.\n", alert.FoundAt.Format("2006-01-02 15:04:05 MST"))
	return renderMarkdown(md.String())
}

func renderMarkdown(input string) (string, error) {
	converter := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	var buf bytes.Buffer
	if err := converter.Convert([]byte(input), &buf); err != nil {
		return "", fmt.Errorf("failed to render alert body: %w", err)
	}
	return buf.String(), nil
}
