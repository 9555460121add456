// Package validate runs the fixed rule set over a merged extraction
// result. It is a pure consumer: it never mutates the result, and
// re-running it on unchanged input yields an identical issue list.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bardavid-law/intake-cli/internal/model"
	"github.com/bardavid-law/intake-cli/internal/registry"
)

// aNumberPattern accepts 8 or 9 digits with an optional A prefix. Eight
// digits usually means a dropped leading zero, flagged separately.
var aNumberPattern = regexp.MustCompile(`(?i)^A?(\d{8,9})$`)

var digitPattern = regexp.MustCompile(`\d`)

// dateFormats are the layouts accepted by date fields before
// normalization canonicalizes them.
var dateFormats = []string{"2006-01-02", "01/02/2006", "01-02-2006", "1/2/2006", "2006/01/02"}

// maxAgeYears bounds a plausible birth date.
const maxAgeYears = 120

// nameFields are checked by the name sanity rules.
var nameFields = []string{"first_name", "middle_name", "last_name"}

// historyOrder fixes the category walk so in-family issue order is
// deterministic.
var historyOrder = []model.HistoryCategory{
	model.HistoryAddress, model.HistoryEmployment, model.HistoryEducation,
	model.HistoryTravel, model.HistoryCriminal,
}

// Run evaluates every rule family against the result. All families
// always run; nothing short-circuits. threshold is the per-field
// confidence floor below which a required field draws a warning.
func Run(result *model.ExtractionResult, docType *registry.DocumentType, threshold float64) model.IssueList {
	var issues model.IssueList
	issues = append(issues, requiredFields(result, docType, threshold)...)
	issues = append(issues, identifierFormat(result)...)
	issues = append(issues, dateFormatRule(result, docType)...)
	issues = append(issues, dateConsistency(result, time.Now())...)
	issues = append(issues, nameSanity(result)...)
	return issues
}

func requiredFields(result *model.ExtractionResult, docType *registry.DocumentType, threshold float64) model.IssueList {
	var issues model.IssueList
	for _, def := range docType.RequiredFields() {
		f, ok := result.Field(def.Key)
		if !ok || strings.TrimSpace(f.Value) == "" {
			issues = append(issues, model.ValidationIssue{
				Severity:  model.SeverityError,
				FieldName: def.Key,
				Code:      model.CodeRequiredMissing,
				Message:   fmt.Sprintf("required field %q not found", def.Key),
			})
			continue
		}
		if f.Confidence < threshold {
			issues = append(issues, model.ValidationIssue{
				Severity:  model.SeverityWarning,
				FieldName: def.Key,
				Code:      model.CodeLowConfidence,
				Message:   fmt.Sprintf("required field %q extracted with low confidence (%.0f%%)", def.Key, f.Confidence*100),
			})
		}
	}
	return issues
}

func identifierFormat(result *model.ExtractionResult) model.IssueList {
	f, ok := result.Field("a_number")
	if !ok || f.Value == "" {
		return nil
	}

	value := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(f.Value))
	m := aNumberPattern.FindStringSubmatch(value)
	if m == nil {
		return model.IssueList{{
			Severity:  model.SeverityError,
			FieldName: "a_number",
			Code:      model.CodeInvalidIdentifier,
			Message:   fmt.Sprintf("invalid A-number format: %q, expected 8-9 digits", value),
		}}
	}
	if len(m[1]) == 8 {
		return model.IssueList{{
			Severity:  model.SeverityWarning,
			FieldName: "a_number",
			Code:      model.CodeIdentifierPadding,
			Message:   fmt.Sprintf("A-number %q has 8 digits, may need a leading zero (A0%s)", value, m[1]),
		}}
	}
	return nil
}

func dateFormatRule(result *model.ExtractionResult, docType *registry.DocumentType) model.IssueList {
	var issues model.IssueList
	for _, def := range docType.Fields {
		if !def.IsDate() {
			continue
		}
		f, ok := result.Field(def.Key)
		if !ok || f.Value == "" {
			continue
		}
		if _, parsed := parseDate(f.Value); !parsed {
			issues = append(issues, model.ValidationIssue{
				Severity:  model.SeverityWarning,
				FieldName: def.Key,
				Code:      model.CodeInvalidDate,
				Message:   fmt.Sprintf("date field %q has unrecognized format: %q", def.Key, f.Value),
			})
		}
	}
	return issues
}

func dateConsistency(result *model.ExtractionResult, now time.Time) model.IssueList {
	var issues model.IssueList

	dob, hasDOB := parseDate(result.FieldValue("date_of_birth"))
	if hasDOB {
		if dob.After(now) {
			issues = append(issues, model.ValidationIssue{
				Severity:  model.SeverityError,
				FieldName: "date_of_birth",
				Code:      model.CodeFutureBirthDate,
				Message:   "date of birth is in the future",
			})
		}
		if now.Year()-dob.Year() > maxAgeYears {
			issues = append(issues, model.ValidationIssue{
				Severity:  model.SeverityError,
				FieldName: "date_of_birth",
				Code:      model.CodeAncientBirthDate,
				Message:   fmt.Sprintf("date of birth is more than %d years ago", maxAgeYears),
			})
		}
	}

	if entry, ok := parseDate(result.FieldValue("date_of_entry")); hasDOB && ok && entry.Before(dob) {
		issues = append(issues, model.ValidationIssue{
			Severity:  model.SeverityError,
			FieldName: "date_of_entry",
			Code:      model.CodeEntryBeforeBirth,
			Message:   "date of entry is before date of birth",
		})
	}
	if marriage, ok := parseDate(result.FieldValue("date_of_marriage")); hasDOB && ok && marriage.Before(dob) {
		issues = append(issues, model.ValidationIssue{
			Severity:  model.SeverityError,
			FieldName: "date_of_marriage",
			Code:      model.CodeMarriageBeforeBirth,
			Message:   "marriage date is before date of birth",
		})
	}

	if hasDOB {
		for _, category := range historyOrder {
			for i, rec := range result.History[category] {
				from, ok := parseDate(rec.FromDate)
				if ok && from.Before(dob) {
					issues = append(issues, model.ValidationIssue{
						Severity:  model.SeverityError,
						FieldName: "date_of_birth",
						Code:      model.CodeHistoryBeforeBirth,
						Message:   fmt.Sprintf("%s record %d starts before date of birth", category, i+1),
					})
				}
			}
		}
	}

	return issues
}

func nameSanity(result *model.ExtractionResult) model.IssueList {
	var issues model.IssueList
	for _, key := range nameFields {
		f, ok := result.Field(key)
		if !ok || f.Value == "" {
			continue
		}
		value := strings.TrimSpace(f.Value)

		if digitPattern.MatchString(value) {
			issues = append(issues, model.ValidationIssue{
				Severity:  model.SeverityWarning,
				FieldName: key,
				Code:      model.CodeNameHasDigits,
				Message:   fmt.Sprintf("name field %q contains digits: %q", key, value),
			})
		}
		if len(value) > 2 && value == strings.ToUpper(value) && value != strings.ToLower(value) {
			issues = append(issues, model.ValidationIssue{
				Severity:  model.SeverityWarning,
				FieldName: key,
				Code:      model.CodeNameAllCaps,
				Message:   fmt.Sprintf("name field %q is all uppercase: %q", key, value),
			})
		}
	}

	// Swap heuristic: a very short last name next to a long first name is
	// the usual sign of a transposed pair. Low confidence rule, warning only.
	first := strings.TrimSpace(result.FieldValue("first_name"))
	last := strings.TrimSpace(result.FieldValue("last_name"))
	if first != "" && last != "" && len(last) < 3 && len(first) > 5 {
		issues = append(issues, model.ValidationIssue{
			Severity:  model.SeverityWarning,
			FieldName: "first_name",
			Code:      model.CodeNameSwap,
			Message:   fmt.Sprintf("first and last names may be swapped: %q %q", first, last),
		})
	}

	return issues
}

// parseDate tries the accepted layouts in order.
func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
