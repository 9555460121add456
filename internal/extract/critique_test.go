package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bardavid-law/intake-cli/internal/model"
	"github.com/bardavid-law/intake-cli/pkg/vision"
)

func mergedResult() *model.ExtractionResult {
	r := model.NewExtractionResult("questionnaire")
	r.SetField(model.ExtractedField{Name: "first_name", Value: "Mario", Confidence: 0.6, SourceStrategy: "structured"})
	r.SetField(model.ExtractedField{Name: "last_name", Value: "Lopez", Confidence: 0.95, SourceStrategy: "structured"})
	return r
}

func TestCritique_AppliesMoreConfidentCorrection(t *testing.T) {
	client := &fakeClient{handler: func(req vision.MessageRequest) (string, error) {
		return `{
			"fields": {"first_name": {"value": "Maria", "confidence": 0.9}},
			"corrections": [{"field": "first_name", "old": "Mario", "new": "Maria", "reason": "handwriting misread"}]
		}`, nil
	}}
	result := mergedResult()

	applied, calls, err := testRunner(client).Critique(context.Background(), testPages(), testDocType(), result)
	require.NoError(t, err)

	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, calls)
	f, _ := result.Field("first_name")
	assert.Equal(t, "Maria", f.Value)
	assert.Equal(t, 0.9, f.Confidence)
	assert.True(t, f.WasCorrected)
	assert.Equal(t, "structured", f.SourceStrategy, "provenance survives a correction")
}

func TestCritique_NeverOverwritesHigherConfidence(t *testing.T) {
	client := &fakeClient{handler: func(req vision.MessageRequest) (string, error) {
		return `{
			"fields": {"last_name": {"value": "Lopes", "confidence": 0.7}},
			"corrections": [{"field": "last_name", "old": "Lopez", "new": "Lopes", "reason": "maybe s not z"}]
		}`, nil
	}}
	result := mergedResult()

	applied, _, err := testRunner(client).Critique(context.Background(), testPages(), testDocType(), result)
	require.NoError(t, err)

	assert.Zero(t, applied)
	f, _ := result.Field("last_name")
	assert.Equal(t, "Lopez", f.Value)
	assert.False(t, f.WasCorrected)
}

func TestCritique_EqualConfidenceDiscarded(t *testing.T) {
	client := &fakeClient{handler: func(req vision.MessageRequest) (string, error) {
		return `{
			"fields": {"last_name": {"value": "Lopes", "confidence": 0.95}},
			"corrections": [{"field": "last_name", "old": "Lopez", "new": "Lopes", "reason": "tie"}]
		}`, nil
	}}
	result := mergedResult()

	applied, _, err := testRunner(client).Critique(context.Background(), testPages(), testDocType(), result)
	require.NoError(t, err)

	assert.Zero(t, applied, "a correction must be strictly more confident to apply")
	f, _ := result.Field("last_name")
	assert.Equal(t, "Lopez", f.Value)
}

func TestCritique_NewFieldFromCorrection(t *testing.T) {
	client := &fakeClient{handler: func(req vision.MessageRequest) (string, error) {
		return `{
			"fields": {"a_number": {"value": "A123456789", "confidence": 0.8}},
			"corrections": [{"field": "a_number", "old": "", "new": "A123456789", "reason": "missed in first pass"}]
		}`, nil
	}}
	result := mergedResult()

	applied, _, err := testRunner(client).Critique(context.Background(), testPages(), testDocType(), result)
	require.NoError(t, err)

	assert.Equal(t, 1, applied)
	f, ok := result.Field("a_number")
	require.True(t, ok)
	assert.Equal(t, "A123456789", f.Value)
	assert.True(t, f.WasCorrected)
}

func TestCritique_BackendFailureLeavesResultUntouched(t *testing.T) {
	client := &fakeClient{handler: func(req vision.MessageRequest) (string, error) {
		return "", errors.New("backend unavailable")
	}}
	result := mergedResult()

	applied, _, err := testRunner(client).Critique(context.Background(), testPages(), testDocType(), result)
	assert.Error(t, err)
	assert.Zero(t, applied)
	f, _ := result.Field("first_name")
	assert.Equal(t, "Mario", f.Value)
}

func TestCritique_PromptCarriesCurrentData(t *testing.T) {
	client := &fakeClient{handler: func(req vision.MessageRequest) (string, error) {
		return `{"corrections": []}`, nil
	}}
	result := mergedResult()

	_, _, err := testRunner(client).Critique(context.Background(), testPages(), testDocType(), result)
	require.NoError(t, err)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], markerCritique)
	assert.Contains(t, client.prompts[0], "Mario")
	assert.Contains(t, client.prompts[0], "Lopez")
}
