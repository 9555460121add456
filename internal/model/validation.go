package model

// IssueSeverity grades a validation issue.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// Validation issue codes. One code per rule so issues are filterable
// without parsing messages.
const (
	CodeRequiredMissing      = "required_field_missing"
	CodeLowConfidence        = "required_field_low_confidence"
	CodeLowOverallConfidence = "overall_confidence_low"
	CodeInvalidIdentifier    = "invalid_a_number"
	CodeIdentifierPadding    = "a_number_short"
	CodeInvalidDate          = "invalid_date_format"
	CodeFutureBirthDate      = "future_birth_date"
	CodeAncientBirthDate     = "unreasonable_birth_date"
	CodeEntryBeforeBirth     = "entry_before_birth"
	CodeMarriageBeforeBirth  = "marriage_before_birth"
	CodeHistoryBeforeBirth   = "history_before_birth"
	CodeNameAllCaps          = "name_all_caps"
	CodeNameHasDigits        = "name_contains_digits"
	CodeNameSwap             = "possible_name_swap"
)

// ValidationIssue is one finding from a validator rule. Issues are pure
// output: a fresh set is produced on every pass and consumed once.
type ValidationIssue struct {
	Severity  IssueSeverity `json:"severity"`
	FieldName string        `json:"field_name,omitempty"`
	Code      string        `json:"code"`
	Message   string        `json:"message"`
}

// IssueList is one validation pass's findings.
type IssueList []ValidationIssue

// Errors returns only error-severity issues.
func (l IssueList) Errors() IssueList {
	var out IssueList
	for _, i := range l {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// ErrorCount counts error-severity issues.
func (l IssueList) ErrorCount() int {
	return len(l.Errors())
}

// FieldNames returns the distinct non-empty field names implicated by
// error-severity issues, in first-seen order.
func (l IssueList) FieldNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, i := range l {
		if i.Severity != SeverityError || i.FieldName == "" || seen[i.FieldName] {
			continue
		}
		seen[i.FieldName] = true
		names = append(names, i.FieldName)
	}
	return names
}
