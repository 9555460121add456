package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bardavid-law/intake-cli/internal/model"
	"github.com/bardavid-law/intake-cli/internal/registry"
	"github.com/bardavid-law/intake-cli/pkg/vision"
)

func testPages() []vision.Image {
	return []vision.Image{{MediaType: "image/png", Data: "aGVsbG8="}}
}

func testRunner(client vision.Client) *Runner {
	return NewRunner(client, "claude-sonnet-4-5-20250929", 4096, 0, 3)
}

func TestRunStrategies_AllSucceed(t *testing.T) {
	client := &fakeClient{handler: func(req vision.MessageRequest) (string, error) {
		return `{"fields": {"first_name": {"value": "Maria", "confidence": 0.9}}}`, nil
	}}

	results, calls, err := testRunner(client).RunStrategies(context.Background(), testPages(), testDocType(), DefaultStrategies)
	require.NoError(t, err)

	assert.Len(t, results, 3)
	assert.Equal(t, 3, calls)
	// Results come back in strategy order regardless of completion order.
	assert.Equal(t, string(StrategyStructured), results[0].Fields["first_name"].SourceStrategy)
	assert.Equal(t, string(StrategyNarrative), results[1].Fields["first_name"].SourceStrategy)
	assert.Equal(t, string(StrategyFieldByField), results[2].Fields["first_name"].SourceStrategy)
}

func TestRunStrategies_OneFailureIsIsolated(t *testing.T) {
	client := &fakeClient{handler: func(req vision.MessageRequest) (string, error) {
		if strings.Contains(req.Prompt, "describe what you see") {
			return "", errors.New("backend unavailable")
		}
		return `{"fields": {"first_name": {"value": "Maria", "confidence": 0.9}}}`, nil
	}}

	results, _, err := testRunner(client).RunStrategies(context.Background(), testPages(), testDocType(), DefaultStrategies)
	require.NoError(t, err)

	assert.Len(t, results, 2, "narrative failure degrades the count, not the run")
}

func TestRunStrategies_MalformedOutputIsolated(t *testing.T) {
	client := &fakeClient{handler: func(req vision.MessageRequest) (string, error) {
		if strings.Contains(req.Prompt, "section by section") {
			return "not json at all", nil
		}
		return `{"fields": {"first_name": {"value": "Maria", "confidence": 0.9}}}`, nil
	}}

	results, _, err := testRunner(client).RunStrategies(context.Background(), testPages(), testDocType(), DefaultStrategies)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRunStrategies_AllFailIsFatal(t *testing.T) {
	client := &fakeClient{handler: func(req vision.MessageRequest) (string, error) {
		return "", errors.New("backend unavailable")
	}}

	_, _, err := testRunner(client).RunStrategies(context.Background(), testPages(), testDocType(), DefaultStrategies)
	assert.ErrorIs(t, err, ErrAllStrategiesFailed)
}

func TestRunFocused_NamesFieldsInPrompt(t *testing.T) {
	client := &fakeClient{handler: func(req vision.MessageRequest) (string, error) {
		return `{"fields": {"a_number": {"value": "A123456789", "confidence": 0.85}}}`, nil
	}}
	runner := testRunner(client)

	focus := []model.ExtractedField{{Name: "a_number", Value: "A12345678?", Confidence: 0.4}}
	result, calls, err := runner.RunFocused(context.Background(), testPages(), testDocType(), focus)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	f, ok := result.Field("a_number")
	require.True(t, ok)
	assert.Equal(t, "A123456789", f.Value)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], markerFocused)
	assert.Contains(t, client.prompts[0], "a_number")
	assert.Contains(t, client.prompts[0], "A12345678?")
}

func TestDetectType(t *testing.T) {
	reg, err := registry.Load()
	require.NoError(t, err)

	client := &fakeClient{handler: func(req vision.MessageRequest) (string, error) {
		return `{"document_type": "passport"}`, nil
	}}

	key, calls, err := testRunner(client).DetectType(context.Background(), testPages(), reg)
	require.NoError(t, err)
	assert.Equal(t, "passport", key)
	assert.Equal(t, 1, calls)
	assert.Contains(t, client.prompts[0], markerDetect)
}

func TestDetectType_UnknownType(t *testing.T) {
	reg, err := registry.Load()
	require.NoError(t, err)

	client := &fakeClient{handler: func(req vision.MessageRequest) (string, error) {
		return `{"document_type": "tax_return"}`, nil
	}}

	_, _, err = testRunner(client).DetectType(context.Background(), testPages(), reg)
	assert.ErrorIs(t, err, registry.ErrUnknownDocumentType)
}

func TestRunner_UsageAccumulatesAcrossCalls(t *testing.T) {
	client := &fakeClient{}
	r := testRunner(client)

	_, calls, err := r.RunStrategies(context.Background(), testPages(), testDocType(), DefaultStrategies)
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	usage := r.Usage()
	assert.Equal(t, int64(3000), usage.InputTokens)
	assert.Equal(t, int64(300), usage.OutputTokens)
}
