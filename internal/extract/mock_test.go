package extract

import (
	"context"
	"strings"
	"sync"

	"github.com/bardavid-law/intake-cli/internal/registry"
	"github.com/bardavid-law/intake-cli/pkg/vision"
)

// fakeClient scripts vision responses by inspecting the prompt. Prompts
// are recorded for assertions.
type fakeClient struct {
	mu      sync.Mutex
	prompts []string
	handler func(req vision.MessageRequest) (string, error)
}

func (f *fakeClient) CreateMessage(_ context.Context, req vision.MessageRequest) (*vision.MessageResponse, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()

	if f.handler == nil {
		return textResponse("{}"), nil
	}
	text, err := f.handler(req)
	if err != nil {
		return nil, err
	}
	return textResponse(text), nil
}

func (f *fakeClient) promptCount(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.prompts {
		if strings.Contains(p, substr) {
			n++
		}
	}
	return n
}

func textResponse(text string) *vision.MessageResponse {
	return &vision.MessageResponse{
		Content: []vision.ContentBlock{{Type: "text", Text: text}},
		Usage:   vision.TokenUsage{InputTokens: 1000, OutputTokens: 100},
	}
}

// Prompt markers for dispatching scripted responses.
const (
	markerStrategy = "PRIMARY FIELDS TO EXTRACT"
	markerCritique = "review it for errors"
	markerFocused  = "MORE CAREFULLY"
	markerVerify   = "Please VERIFY"
	markerDetect   = "identify its type"
)

func isStrategyPrompt(p string) bool { return strings.Contains(p, markerStrategy) }

func testDocType() *registry.DocumentType {
	return &registry.DocumentType{
		Key:         "questionnaire",
		DisplayName: "Intake Questionnaire",
		Fields: []registry.FieldDef{
			{Key: "first_name", Label: "First Name", Required: true},
			{Key: "last_name", Label: "Last Name", Required: true},
			{Key: "date_of_birth", Label: "Date of Birth", Type: "date", Required: true},
			{Key: "a_number", Label: "A-Number", Type: "identifier"},
		},
	}
}
