package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, ChangeNew, Classify("", "maria"))
	assert.Equal(t, ChangeUnchanged, Classify("maria", "maria"))
	assert.Equal(t, ChangeModified, Classify("maria", "mariam"))
}

func TestChangeSet_ApprovedAndSplit(t *testing.T) {
	cs := &ChangeSet{Changes: []FieldChange{
		{FieldName: "first_name", Classification: ChangeNew, Approved: true},
		{FieldName: "a_number", Classification: ChangeModified, Approved: true, Biographic: true},
		{FieldName: "city", Classification: ChangeModified, Approved: false},
		{FieldName: "email", Classification: ChangeUnchanged, Approved: true},
	}}

	assert.Equal(t, 3, cs.TotalChanges())
	assert.Len(t, cs.ApprovedChanges(), 2)
	assert.Len(t, cs.ContactChanges(), 1)
	assert.Len(t, cs.BiographicChanges(), 1)
	assert.Equal(t, "a_number", cs.BiographicChanges()[0].FieldName)
}

func TestIssueList_FieldNames_ErrorsOnlyDeduped(t *testing.T) {
	l := IssueList{
		{Severity: SeverityError, FieldName: "date_of_birth", Code: CodeRequiredMissing},
		{Severity: SeverityWarning, FieldName: "first_name", Code: CodeNameAllCaps},
		{Severity: SeverityError, FieldName: "date_of_birth", Code: CodeFutureBirthDate},
		{Severity: SeverityError, FieldName: "a_number", Code: CodeInvalidIdentifier},
		{Severity: SeverityError, Code: CodeInvalidDate},
	}

	assert.Equal(t, []string{"date_of_birth", "a_number"}, l.FieldNames())
	assert.Equal(t, 4, l.ErrorCount())
}
