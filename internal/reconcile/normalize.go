// Package reconcile compares a finalized extraction against the firm's
// record store and produces a change set for review. It is strictly
// read-only over the store; applying an approved change set happens
// elsewhere.
package reconcile

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/bardavid-law/intake-cli/internal/registry"
)

var (
	nonDigit      = regexp.MustCompile(`\D`)
	nonIdentifier = regexp.MustCompile(`[^A0-9]`)
)

// US month-first layouts take precedence over day-first, matching how
// the intake forms are filled out.
var dateLayouts = []string{"2006-01-02", "01/02/2006", "02/01/2006", "2006/01/02"}

// Normalize prepares a field value for comparison. Dates canonicalize to
// YYYY-MM-DD, phones reduce to digits, identifiers uppercase and strip
// everything outside [A0-9], and everything else is case folded.
func Normalize(def *registry.FieldDef, value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return ""
	}
	if def != nil {
		switch {
		case def.IsDate():
			return normalizeDate(v)
		case def.Type == "phone":
			return nonDigit.ReplaceAllString(v, "")
		case def.Type == "identifier":
			return nonIdentifier.ReplaceAllString(strings.ToUpper(v), "")
		}
	}
	return cases.Fold().String(v)
}

// normalizeDate returns the canonical form, or the input unchanged when
// no known layout parses it. Unparseable dates still compare byte-wise.
func normalizeDate(v string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return v
}
