package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bardavid-law/intake-cli/internal/model"
	"github.com/bardavid-law/intake-cli/internal/registry"
	"github.com/bardavid-law/intake-cli/pkg/vision"
)

const critiquePromptTmpl = `I extracted this data from the document. Please review it for errors.

EXTRACTED FIELDS:
%s

EXTRACTED FAMILY MEMBERS:
%s

CHECK FOR THESE COMMON ERRORS:
1. SWAPPED VALUES: First/last name swapped, dates in wrong fields
2. FORMAT ERRORS: Dates not in YYYY-MM-DD, A-numbers missing digits
3. OCR ERRORS: Numbers misread (0 vs O, 1 vs I, 8 vs B)
4. MISSING DATA: Fields visible in document but not extracted
5. CONFIDENCE TOO HIGH: Handwritten or unclear text marked as high confidence
6. LOGICAL ERRORS: Birth date after entry date, impossible dates

Look at the ORIGINAL DOCUMENT again and compare with my extraction.

Respond with CORRECTED JSON (same format). Include a "corrections" array listing what you fixed:
{
    "confidence": 0.0-1.0,
    "fields": {"field_key": {"value": "...", "confidence": 0.0-1.0}},
    "corrections": [
        {"field": "field_name", "old": "old_value", "new": "new_value", "reason": "why"}
    ]
}

If no corrections are needed, return the same data with an empty corrections array.`

// Critique runs the self-critique pass over a merged result and applies
// any correction whose confidence strictly exceeds the field it replaces.
// High-confidence data is never blindly overwritten; a correction that is
// no more certain than the original is logged and discarded.
//
// Returns the number of applied corrections. Critique failures leave the
// result untouched.
func (r *Runner) Critique(ctx context.Context, pages []vision.Image, docType *registry.DocumentType, result *model.ExtractionResult) (int, int, error) {
	prompt := fmt.Sprintf(critiquePromptTmpl, renderFields(result), renderFamily(result))

	text, calls, err := r.call(ctx, pages, prompt)
	if err != nil {
		return 0, calls, eris.Wrap(err, "extract: critique pass")
	}
	raw, err := decodeRaw(text)
	if err != nil {
		return 0, calls, err
	}

	applied := 0
	for _, c := range raw.Corrections {
		if c.Field == "" || c.New == "" {
			continue
		}
		newValue := c.New
		newConf := defaultFieldConfidence
		if proposed, ok := raw.Fields[c.Field]; ok {
			if proposed.Value != "" {
				newValue = proposed.Value
			}
			newConf = confOrDefault(proposed.Confidence)
		}

		existing, exists := result.Field(c.Field)
		if exists && newConf <= existing.Confidence {
			zap.L().Debug("critique correction discarded",
				zap.String("field", c.Field),
				zap.Float64("existing_confidence", existing.Confidence),
				zap.Float64("critique_confidence", newConf),
			)
			continue
		}

		result.SetField(model.ExtractedField{
			Name:           c.Field,
			Value:          newValue,
			Confidence:     newConf,
			SourceStrategy: existing.SourceStrategy,
			WasCorrected:   true,
		})
		applied++
		zap.L().Info("critique correction applied",
			zap.String("field", c.Field),
			zap.String("reason", c.Reason),
		)
	}

	return applied, calls, nil
}

func renderFields(result *model.ExtractionResult) string {
	var b strings.Builder
	for _, name := range sortFieldNames(result) {
		f := result.Fields[name]
		fmt.Fprintf(&b, "  %s: %q (confidence %.2f)\n", name, f.Value, f.Confidence)
	}
	if b.Len() == 0 {
		return "  (none)"
	}
	return b.String()
}

func renderFamily(result *model.ExtractionResult) string {
	if len(result.FamilyMembers) == 0 {
		return "  (none)"
	}
	var b strings.Builder
	for i, fm := range result.FamilyMembers {
		data, _ := json.Marshal(fm.Fields)
		fmt.Fprintf(&b, "  %d. %s: %s %s\n", i+1, fm.Relationship, fm.DisplayName(), data)
	}
	return b.String()
}
