package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/bardavid-law/intake-cli/internal/registry"
	"github.com/bardavid-law/intake-cli/pkg/vision"
)

const detectPromptTmpl = `Analyze this document and identify its type.

Known document types:
%s

Respond in JSON: {"document_type": "type_key"}`

// DetectType classifies the document against the registry's known types
// using only the first page. Returns the registry key, or an error when
// the model names a type the registry does not know.
func (r *Runner) DetectType(ctx context.Context, pages []vision.Image, reg *registry.Registry) (string, int, error) {
	var types strings.Builder
	for _, key := range reg.Keys() {
		dt, err := reg.Type(key)
		if err != nil {
			return "", 0, err
		}
		fmt.Fprintf(&types, "- %s: %s\n", key, dt.DisplayName)
	}

	text, calls, err := r.call(ctx, pages[:1], fmt.Sprintf(detectPromptTmpl, types.String()))
	if err != nil {
		return "", calls, eris.Wrap(err, "extract: detect document type")
	}

	var resp struct {
		DocumentType string `json:"document_type"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(text)), &resp); err != nil {
		return "", calls, eris.Wrap(err, "extract: parse detection JSON")
	}

	key := strings.ToLower(strings.TrimSpace(resp.DocumentType))
	if _, err := reg.Type(key); err != nil {
		return "", calls, err
	}
	return key, calls, nil
}
