// Package filter decides whether a candidate slot qualifies under the
// user's preferences. The built-in conjunction is a pure function; an
// optional expr rule from the config is ANDed on top.
package filter

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bellwood/slotwatch/internal/appointment"
	"github.com/bellwood/slotwatch/internal/core"
)

// Qualifies applies the preference conjunction: license type matches
// exactly, the normalized center is acceptable, the date is on or after the
// earliest acceptable date and, when a cutoff is configured, strictly before
// it. Deterministic and total.
func Qualifies(c appointment.Candidate, prefs appointment.Preferences) bool {
	if c.LicenseType != prefs.LicenseType {
		return false
	}
	if !prefs.AcceptsCenter(c.TestCenter) {
		return false
	}
	if !prefs.EarliestDate.IsZero() && c.Date.Before(prefs.EarliestDate) {
		return false
	}
	if !prefs.CutoffDate.IsZero() && !c.Date.Before(prefs.CutoffDate) {
		return false
	}
	return true
}

// Filter bundles the preferences with an optional compiled rule.
type Filter struct {
	prefs   appointment.Preferences
	program *vm.Program
}

// New compiles the optional rule expression. Rule compile errors are config
// errors and fail startup; rule evaluation errors at poll time only drop the
// candidate.
func New(prefs appointment.Preferences, rule string) (*Filter, error) {
	f := &Filter{prefs: prefs}
	if rule != "" {
		program, err := expr.Compile(rule, expr.Env(map[string]interface{}{}))
		if err != nil {
			return nil, fmt.Errorf("compile booking rule: %w", err)
		}
		f.program = program
	}
	return f, nil
}

// Qualifies reports whether the candidate passes both the preference
// conjunction and the user rule, if one is configured.
func (f *Filter) Qualifies(ctx context.Context, c appointment.Candidate) bool {
	if !Qualifies(c, f.prefs) {
		return false
	}
	if f.program == nil {
		return true
	}
	result, err := expr.Run(f.program, ruleEnv(c))
	if err != nil {
		core.LoggerFromContext(ctx).Warn("booking rule evaluation failed, dropping candidate",
			"candidate", c.String(), "error", err)
		return false
	}
	matched, ok := result.(bool)
	if !ok {
		core.LoggerFromContext(ctx).Warn("booking rule did not return bool, dropping candidate",
			"candidate", c.String())
		return false
	}
	return matched
}

func ruleEnv(c appointment.Candidate) map[string]interface{} {
	return map[string]interface{}{
		"center": map[string]interface{}{
			"value":      c.TestCenter,
			"normalized": appointment.NormalizeCenter(c.TestCenter),
		},
		"date": map[string]interface{}{
			"value": c.Date.String(),
			"year":  c.Date.Year,
			"month": int(c.Date.Month),
			"day":   c.Date.Day,
		},
		"time": map[string]interface{}{
			"value":  c.Time.String(),
			"hour":   c.Time.Hour,
			"minute": c.Time.Minute,
		},
		"license": string(c.LicenseType),
	}
}
