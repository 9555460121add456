package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bardavid-law/intake-cli/internal/model"
)

func TestParseResponse_FencedJSON(t *testing.T) {
	text := "Here is the extraction:\n```json\n" +
		`{"confidence": 0.9, "fields": {"first_name": {"value": "Maria", "confidence": 0.92}}}` +
		"\n```\nLet me know if you need anything else."

	result, err := parseResponse(text, "questionnaire", StrategyStructured)
	require.NoError(t, err)

	f, ok := result.Field("first_name")
	require.True(t, ok)
	assert.Equal(t, "Maria", f.Value)
	assert.Equal(t, 0.92, f.Confidence)
	assert.Equal(t, string(StrategyStructured), f.SourceStrategy)
}

func TestParseResponse_MalformedJSON(t *testing.T) {
	_, err := parseResponse("I could not read the document.", "questionnaire", StrategyStructured)
	assert.Error(t, err)
}

func TestParseResponse_EmptyValuesDropped(t *testing.T) {
	text := `{"fields": {"first_name": {"value": "", "confidence": 0.9}, "last_name": {"value": "Lopez", "confidence": 0.8}}}`

	result, err := parseResponse(text, "questionnaire", StrategyNarrative)
	require.NoError(t, err)
	assert.Len(t, result.Fields, 1)
}

func TestParseResponse_MissingConfidenceDefaults(t *testing.T) {
	text := `{"fields": {"city": {"value": "Queens"}}}`

	result, err := parseResponse(text, "questionnaire", StrategyStructured)
	require.NoError(t, err)

	f, _ := result.Field("city")
	assert.Equal(t, defaultFieldConfidence, f.Confidence)
}

func TestParseResponse_ConfidenceClamped(t *testing.T) {
	text := `{"fields": {"a": {"value": "x", "confidence": 1.7}, "b": {"value": "y", "confidence": -0.2}}}`

	result, err := parseResponse(text, "questionnaire", StrategyStructured)
	require.NoError(t, err)

	a, _ := result.Field("a")
	b, _ := result.Field("b")
	assert.Equal(t, 1.0, a.Confidence)
	assert.Equal(t, 0.0, b.Confidence)
}

func TestParseResponse_FamilyMembers(t *testing.T) {
	text := `{"family_members": [
		{"relationship": "spouse", "data": {"first_name": "Ana", "last_name": "Lopez"}, "confidence": 0.85},
		{"relationship": "parent", "data": {"first_name": "Jose"}, "confidence": 0.7},
		{"relationship": "cousin", "data": {"first_name": "Rey"}},
		{"relationship": "child", "data": {}}
	]}`

	result, err := parseResponse(text, "questionnaire", StrategyStructured)
	require.NoError(t, err)

	// Unknown relationship and empty data are dropped; parent maps to father.
	require.Len(t, result.FamilyMembers, 2)
	assert.Equal(t, model.RelationshipSpouse, result.FamilyMembers[0].Relationship)
	assert.Equal(t, 0.85, result.FamilyMembers[0].Fields["first_name"].Confidence)
	assert.Equal(t, model.RelationshipFather, result.FamilyMembers[1].Relationship)
	assert.False(t, result.FamilyMembers[0].Verified, "extraction never marks candidates verified")
}

func TestParseResponse_NotFoundFieldValuesDropped(t *testing.T) {
	text := `{"family_members": [
		{"relationship": "spouse", "data": {"first_name": "Ana", "a_number": "NOT_FOUND"}}
	]}`

	result, err := parseResponse(text, "questionnaire", StrategyStructured)
	require.NoError(t, err)

	require.Len(t, result.FamilyMembers, 1)
	_, has := result.FamilyMembers[0].Fields["a_number"]
	assert.False(t, has)
}

func TestParseResponse_History(t *testing.T) {
	text := `{"history": {
		"address": [{"data": {"street": "1 Main St"}, "from_date": "2019-01-01", "is_current": true}],
		"employment": [{"data": {"employer": "Acme"}, "from_date": "2015-02-01", "to_date": "2018-12-31"}],
		"hobbies": [{"data": {"name": "chess"}}]
	}}`

	result, err := parseResponse(text, "questionnaire", StrategyStructured)
	require.NoError(t, err)

	require.Len(t, result.History[model.HistoryAddress], 1)
	assert.Equal(t, model.PresentDate, result.History[model.HistoryAddress][0].ToDate)
	assert.True(t, result.History[model.HistoryAddress][0].Current())

	require.Len(t, result.History[model.HistoryEmployment], 1)
	assert.Equal(t, "2018-12-31", result.History[model.HistoryEmployment][0].ToDate)

	// Categories outside the closed set are ignored.
	assert.Len(t, result.History, 2)
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding prose", "Sure! {\"a\": 1} Hope that helps.", `{"a": 1}`},
		{"no json", "no braces here", "no braces here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}
