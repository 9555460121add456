// Package extract implements the multi-pass vision extraction engine:
// parallel strategy passes, consensus merge, self-critique, family member
// verification, and the bounded refinement loop that ties them together.
package extract

import (
	"fmt"
	"strings"

	"github.com/bardavid-law/intake-cli/internal/model"
	"github.com/bardavid-law/intake-cli/internal/registry"
)

// Strategy names a prompting approach for one extraction pass.
type Strategy string

const (
	// StrategyStructured asks for the JSON schema directly.
	StrategyStructured Strategy = "structured"
	// StrategyNarrative asks the model to describe the document first.
	StrategyNarrative Strategy = "narrative"
	// StrategyFieldByField walks the document section by section.
	StrategyFieldByField Strategy = "field_by_field"
)

// DefaultStrategies is the configured strategy order. Order matters: the
// consensus merge breaks exact confidence ties in favor of the earlier
// strategy.
var DefaultStrategies = []Strategy{StrategyStructured, StrategyNarrative, StrategyFieldByField}

const systemPrompt = "You are a legal intake specialist extracting structured data from scanned immigration documents. Extract exactly what is written, never infer. Return valid JSON matching the requested schema."

const responseSchema = `Respond in JSON:
{
    "confidence": 0.0-1.0,
    "fields": {
        "field_key": {"value": "...", "confidence": 0.0-1.0}
    },
    "family_members": [
        {"relationship": "spouse|child|father|mother|sibling", "data": {"first_name": "...", "last_name": "..."}, "confidence": 0.9}
    ],
    "history": {
        "address": [{"data": {"street": "..."}, "from_date": "YYYY-MM-DD", "to_date": "YYYY-MM-DD or present", "confidence": 0.9}],
        "employment": [],
        "education": [],
        "travel": [],
        "criminal": []
    }
}`

const extractionRules = `IMPORTANT RULES:
- Extract exactly what is written, do not infer
- For handwritten text, reflect uncertainty in the confidence score
- Dates: use YYYY-MM-DD format
- A-Numbers: include all 9 digits
- If a field is empty or not visible, omit it`

// BuildPrompt returns the user prompt for one strategy pass over docType.
func BuildPrompt(strategy Strategy, docType *registry.DocumentType) string {
	switch strategy {
	case StrategyNarrative:
		return "First, describe what you see in this document in 2-3 sentences.\n" +
			"Then, extract all information into JSON format.\n\n" +
			basePrompt(docType, "After describing the document, extract all fields.\nLook carefully at each section before extracting.")
	case StrategyFieldByField:
		return basePrompt(docType, `Go through the document section by section:
1. First, find the personal information section
2. Then, find any family member information
3. Then, find any address/employment/education history
4. Finally, note any other important information

Extract each section carefully before moving to the next.`)
	default:
		return basePrompt(docType, "Extract ALL information into this exact JSON structure.\nBe precise, extract exactly what is written.")
	}
}

// BuildFocusPrompt returns the targeted re-extraction prompt naming exactly
// the unclear fields. The current values and confidences are shown so the
// model knows what to second-guess.
func BuildFocusPrompt(docType *registry.DocumentType, focus []model.ExtractedField) string {
	var b strings.Builder
	b.WriteString("I need you to look MORE CAREFULLY at these specific fields that were unclear:\n\nFIELDS TO RE-EXAMINE:\n")
	for _, f := range focus {
		value := f.Value
		if value == "" {
			value = "unknown"
		}
		fmt.Fprintf(&b, "- %s: currently %q (confidence: %.0f%%)\n", f.Name, value, f.Confidence*100)
	}
	b.WriteString(`
Look at the document again. These fields exist but were hard to read.
Try different interpretations. Consider:
- Could characters be misread? (0/O, 1/I, 8/B, 5/S)
- Is there faded or handwritten text?
- Could the value be in a different location?

Return ONLY the re-examined fields in JSON:
{
    "fields": {
        "field_key": {"value": "corrected_value", "confidence": 0.0-1.0}
    }
}`)
	return b.String()
}

func basePrompt(docType *registry.DocumentType, instructions string) string {
	var fields strings.Builder
	for _, f := range docType.Fields {
		fmt.Fprintf(&fields, "- %s: %s\n", f.Key, f.Label)
	}

	return fmt.Sprintf(`Extract all information from this %s.
%s

PRIMARY FIELDS TO EXTRACT:
%s
%s

%s`, docType.DisplayName, instructions, fields.String(), extractionRules, responseSchema)
}
