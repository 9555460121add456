package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bardavid-law/intake-cli/internal/model"
	"github.com/bardavid-law/intake-cli/internal/registry"
	"github.com/bardavid-law/intake-cli/pkg/recordstore"
)

func testEngine(t *testing.T, store *fakeSearcher) *Engine {
	t.Helper()
	reg, err := registry.Load()
	require.NoError(t, err)
	return NewEngine(store, reg)
}

func questionnaireResult() *model.ExtractionResult {
	res := model.NewExtractionResult("questionnaire")
	res.SetField(model.ExtractedField{Name: "first_name", Value: "Maria", Confidence: 0.95})
	res.SetField(model.ExtractedField{Name: "last_name", Value: "Lopez", Confidence: 0.93})
	res.SetField(model.ExtractedField{Name: "date_of_birth", Value: "04/12/1990", Confidence: 0.9})
	res.SetField(model.ExtractedField{Name: "country_of_birth", Value: "Ecuador", Confidence: 0.88})
	res.SetField(model.ExtractedField{Name: "a_number", Value: "A123456789", Confidence: 0.97})
	return res
}

func TestEngine_NoMatchClassifiesEverythingNew(t *testing.T) {
	store := &fakeSearcher{}
	cs, err := testEngine(t, store).Reconcile(context.Background(), questionnaireResult(), "intake.pdf")
	require.NoError(t, err)

	assert.Empty(t, cs.ContactID)
	assert.Nil(t, cs.Disambiguate)
	assert.Equal(t, "Maria Lopez", cs.ContactName)
	assert.Equal(t, "intake.pdf", cs.SourceFile)
	require.NotEmpty(t, cs.Changes)
	for _, c := range cs.Changes {
		assert.Equal(t, model.ChangeNew, c.Classification, c.FieldName)
		assert.True(t, c.Approved)
	}
}

func TestEngine_MatchedRecordDiffsWithNormalization(t *testing.T) {
	store := &fakeSearcher{
		byIdentifier: recordsByKey("A123456789", record("003A", "Maria Lopez", nil)),
		records: map[string]*recordstore.Record{
			"003A": {ID: "003A", DisplayName: "Maria Lopez", Attributes: map[string]string{
				"FirstName":    "MARIA",
				"LastName":     "Gonzalez",
				"BirthDate":    "1990-04-12",
				"BirthCountry": "Ecuador",
			}},
		},
	}

	cs, err := testEngine(t, store).Reconcile(context.Background(), questionnaireResult(), "intake.pdf")
	require.NoError(t, err)

	assert.Equal(t, "003A", cs.ContactID)

	byField := map[string]model.FieldChange{}
	for _, c := range cs.Changes {
		byField[c.FieldName] = c
	}

	// Case-folded equal.
	assert.Equal(t, model.ChangeUnchanged, byField["first_name"].Classification)
	// Date formats differ but canonicalize to the same day.
	assert.Equal(t, model.ChangeUnchanged, byField["date_of_birth"].Classification)
	assert.Equal(t, model.ChangeModified, byField["last_name"].Classification)
	// Store has no AlienNumber attribute on this record.
	assert.Equal(t, model.ChangeNew, byField["a_number"].Classification)
	assert.True(t, byField["a_number"].Biographic)

	// Unchanged fields are never pre-approved.
	assert.False(t, byField["first_name"].Approved)
	assert.True(t, byField["last_name"].Approved)
}

func TestEngine_AmbiguousPrimaryMatchDefersToReview(t *testing.T) {
	res := model.NewExtractionResult("questionnaire")
	res.SetField(model.ExtractedField{Name: "first_name", Value: "Jose", Confidence: 0.9})
	res.SetField(model.ExtractedField{Name: "last_name", Value: "Garcia", Confidence: 0.9})

	store := &fakeSearcher{
		byName: recordsByKey("Jose|Garcia",
			record("003D", "Jose Garcia", nil),
			record("003E", "Jose Garcia", nil),
		),
	}

	cs, err := testEngine(t, store).Reconcile(context.Background(), res, "intake.pdf")
	require.NoError(t, err)

	assert.Empty(t, cs.ContactID)
	require.NotNil(t, cs.Disambiguate)
	assert.True(t, cs.Disambiguate.Ambiguous)
	assert.Len(t, cs.Disambiguate.Candidates, 2)
	// No record selected, so every change proposes a new value.
	for _, c := range cs.Changes {
		assert.Equal(t, model.ChangeNew, c.Classification)
	}
}

func TestEngine_FamilyActions(t *testing.T) {
	res := questionnaireResult()
	res.FamilyMembers = []model.FamilyMemberCandidate{
		{
			Relationship: model.RelationshipSpouse,
			Verified:     true,
			Fields: map[string]model.ExtractedField{
				"first_name":    {Name: "first_name", Value: "Ana", Confidence: 0.9},
				"last_name":     {Name: "last_name", Value: "Lopez", Confidence: 0.9},
				"date_of_birth": {Name: "date_of_birth", Value: "1992-01-05", Confidence: 0.85},
				"a_number":      {Name: "a_number", Value: "A987654321", Confidence: 0.9},
			},
		},
		{
			Relationship: model.RelationshipChild,
			Verified:     true,
			Fields: map[string]model.ExtractedField{
				"first_name": {Name: "first_name", Value: "Luis", Confidence: 0.8},
				"last_name":  {Name: "last_name", Value: "Lopez", Confidence: 0.8},
			},
		},
		{
			Relationship: model.RelationshipSibling,
			Verified:     true,
			Fields: map[string]model.ExtractedField{
				"first_name": {Name: "first_name", Value: "Jose", Confidence: 0.8},
				"last_name":  {Name: "last_name", Value: "Garcia", Confidence: 0.8},
			},
		},
	}

	store := &fakeSearcher{
		byIdentifier: recordsByKey("A987654321", record("003F", "Ana Lopez", nil)),
		byName: recordsByKey("Jose|Garcia",
			record("003D", "Jose Garcia", nil),
			record("003E", "Jose Garcia", nil),
		),
	}

	cs, err := testEngine(t, store).Reconcile(context.Background(), res, "intake.pdf")
	require.NoError(t, err)
	require.Len(t, cs.FamilyMembers, 3)

	spouse := cs.FamilyMembers[0]
	assert.Equal(t, model.ActionLinkExisting, spouse.Action)
	require.NotNil(t, spouse.Match)
	assert.Equal(t, "003F", spouse.Match.RecordID)
	assert.Equal(t, model.MatchExactIdentifier, spouse.Match.Method)

	child := cs.FamilyMembers[1]
	assert.Equal(t, model.ActionCreateNew, child.Action)
	assert.Nil(t, child.Match)

	sibling := cs.FamilyMembers[2]
	assert.Equal(t, model.ActionSkip, sibling.Action)
	require.NotNil(t, sibling.Match)
	assert.True(t, sibling.Match.Ambiguous)
	assert.Len(t, sibling.Match.Candidates, 2)
}

func TestEngine_UnverifiedFamilyMembersDropped(t *testing.T) {
	res := questionnaireResult()
	res.FamilyMembers = []model.FamilyMemberCandidate{
		{
			Relationship: model.RelationshipChild,
			Verified:     false,
			Fields: map[string]model.ExtractedField{
				"first_name": {Name: "first_name", Value: "Ghost", Confidence: 0.5},
			},
		},
	}

	cs, err := testEngine(t, &fakeSearcher{}).Reconcile(context.Background(), res, "intake.pdf")
	require.NoError(t, err)
	assert.Empty(t, cs.FamilyMembers)
}

func TestEngine_UnknownDocumentType(t *testing.T) {
	res := model.NewExtractionResult("mystery")
	_, err := testEngine(t, &fakeSearcher{}).Reconcile(context.Background(), res, "intake.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrUnknownDocumentType)
}
