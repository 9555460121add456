package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverallConfidence_AveragesFields(t *testing.T) {
	r := NewExtractionResult("questionnaire")
	r.SetField(ExtractedField{Name: "first_name", Value: "Ana", Confidence: 0.9})
	r.SetField(ExtractedField{Name: "last_name", Value: "Reyes", Confidence: 0.7})

	assert.InDelta(t, 0.8, r.OverallConfidence(), 1e-9)
}

func TestOverallConfidence_RecomputedAfterSingleFieldMutation(t *testing.T) {
	r := NewExtractionResult("questionnaire")
	r.SetField(ExtractedField{Name: "first_name", Value: "Ana", Confidence: 0.5})
	r.SetField(ExtractedField{Name: "last_name", Value: "Reyes", Confidence: 0.5})
	before := r.OverallConfidence()

	r.SetField(ExtractedField{Name: "last_name", Value: "Reyes", Confidence: 0.9})

	assert.Greater(t, r.OverallConfidence(), before)
}

func TestOverallConfidence_EmptyResultIsZero(t *testing.T) {
	r := NewExtractionResult("passport")
	assert.Zero(t, r.OverallConfidence())
}

func TestLowConfidenceFields_SortedLowestFirst(t *testing.T) {
	r := NewExtractionResult("questionnaire")
	r.SetField(ExtractedField{Name: "a_number", Confidence: 0.4})
	r.SetField(ExtractedField{Name: "date_of_birth", Confidence: 0.2})
	r.SetField(ExtractedField{Name: "first_name", Confidence: 0.95})

	low := r.LowConfidenceFields(0.7)
	assert.Len(t, low, 2)
	assert.Equal(t, "date_of_birth", low[0].Name)
	assert.Equal(t, "a_number", low[1].Name)
}

func TestPruneUnverified_RemovesCandidatesEntirely(t *testing.T) {
	r := NewExtractionResult("questionnaire")
	r.FamilyMembers = []FamilyMemberCandidate{
		{Relationship: RelationshipSpouse, Verified: true},
		{Relationship: RelationshipChild, Verified: false},
		{Relationship: RelationshipChild, Verified: true},
	}

	removed := r.PruneUnverified()
	assert.Equal(t, 1, removed)
	assert.Len(t, r.FamilyMembers, 2)
	for _, fm := range r.FamilyMembers {
		assert.True(t, fm.Verified)
	}
}

func TestKnownRelationship(t *testing.T) {
	assert.True(t, KnownRelationship(RelationshipSpouse))
	assert.True(t, KnownRelationship(RelationshipSibling))
	assert.False(t, KnownRelationship(Relationship("parent")))
	assert.False(t, KnownRelationship(Relationship("")))
}

func TestDisplayName(t *testing.T) {
	fm := FamilyMemberCandidate{Fields: map[string]ExtractedField{
		"first_name": {Name: "first_name", Value: "Luis"},
		"last_name":  {Name: "last_name", Value: "Reyes"},
	}}
	assert.Equal(t, "Luis Reyes", fm.DisplayName())

	fm.Fields["last_name"] = ExtractedField{Name: "last_name"}
	assert.Equal(t, "Luis", fm.DisplayName())
}

func TestHistoryRecord_Current(t *testing.T) {
	assert.True(t, HistoryRecord{ToDate: PresentDate}.Current())
	assert.True(t, HistoryRecord{}.Current())
	assert.False(t, HistoryRecord{ToDate: "2020-05-01"}.Current())
}
