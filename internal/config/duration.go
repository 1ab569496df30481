package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML fields accept Go duration strings
// plus day ("1d") and week ("2w") units, which read better for long poll
// horizons.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := parseDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// parseDuration parses Go-style duration strings, extended with d (24h)
// and w (7d) units. Examples: "10m", "36h", "3d", "1w2d".
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("duration is required")
	}
	if !strings.ContainsAny(raw, "dw") {
		return time.ParseDuration(raw)
	}

	var b strings.Builder
	rest := raw
	if rest[0] == '+' || rest[0] == '-' {
		b.WriteByte(rest[0])
		rest = rest[1:]
	}
	for len(rest) > 0 {
		numEnd := 0
		for numEnd < len(rest) && (rest[numEnd] == '.' || (rest[numEnd] >= '0' && rest[numEnd] <= '9')) {
			numEnd++
		}
		if numEnd == 0 || numEnd == len(rest) {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		num := rest[:numEnd]
		rest = rest[numEnd:]

		unitEnd := 0
		for unitEnd < len(rest) && !(rest[unitEnd] == '.' || (rest[unitEnd] >= '0' && rest[unitEnd] <= '9')) {
			unitEnd++
		}
		unit := rest[:unitEnd]
		rest = rest[unitEnd:]

		switch unit {
		case "d", "w":
			n, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q", raw)
			}
			hours := n * 24
			if unit == "w" {
				hours *= 7
			}
			b.WriteString(strconv.FormatFloat(hours, 'f', -1, 64))
			b.WriteByte('h')
		default:
			b.WriteString(num)
			b.WriteString(unit)
		}
	}
	return time.ParseDuration(b.String())
}
