package extract

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/bardavid-law/intake-cli/internal/model"
)

// rawResponse mirrors the JSON shape the extraction prompts request.
type rawResponse struct {
	Confidence    float64                `json:"confidence"`
	Fields        map[string]rawField    `json:"fields"`
	FamilyMembers []rawFamilyMember      `json:"family_members"`
	History       map[string][]rawRecord `json:"history"`
	Corrections   []rawCorrection        `json:"corrections"`
}

type rawField struct {
	Value      string   `json:"value"`
	Confidence *float64 `json:"confidence"`
}

type rawFamilyMember struct {
	Relationship string            `json:"relationship"`
	Verified     *bool             `json:"verified"`
	Data         map[string]string `json:"data"`
	Confidence   *float64          `json:"confidence"`
	Reason       string            `json:"reason,omitempty"`
}

type rawRecord struct {
	Data       map[string]string `json:"data"`
	FromDate   string            `json:"from_date"`
	ToDate     string            `json:"to_date"`
	IsCurrent  bool              `json:"is_current"`
	Confidence *float64          `json:"confidence"`
}

type rawCorrection struct {
	Field  string `json:"field"`
	Old    string `json:"old"`
	New    string `json:"new"`
	Reason string `json:"reason"`
}

// defaultFieldConfidence is assumed when the model omits a per-field score.
const defaultFieldConfidence = 0.5

// parseResponse decodes one extraction response into an ExtractionResult
// tagged with the producing strategy.
func parseResponse(text string, docType string, strategy Strategy) (*model.ExtractionResult, error) {
	raw, err := decodeRaw(text)
	if err != nil {
		return nil, err
	}

	result := model.NewExtractionResult(docType)
	for key, f := range raw.Fields {
		if f.Value == "" {
			continue
		}
		result.SetField(model.ExtractedField{
			Name:           key,
			Value:          f.Value,
			Confidence:     confOrDefault(f.Confidence),
			SourceStrategy: string(strategy),
		})
	}

	for _, fm := range raw.FamilyMembers {
		candidate, ok := toCandidate(fm, strategy)
		if !ok {
			continue
		}
		result.FamilyMembers = append(result.FamilyMembers, candidate)
	}

	for category, records := range raw.History {
		cat := model.HistoryCategory(category)
		switch cat {
		case model.HistoryAddress, model.HistoryEmployment, model.HistoryEducation,
			model.HistoryTravel, model.HistoryCriminal:
		default:
			continue
		}
		for _, rec := range records {
			if len(rec.Data) == 0 {
				continue
			}
			toDate := rec.ToDate
			if rec.IsCurrent && toDate == "" {
				toDate = model.PresentDate
			}
			result.History[cat] = append(result.History[cat], model.HistoryRecord{
				Category: cat,
				Fields:   rec.Data,
				FromDate: rec.FromDate,
				ToDate:   toDate,
			})
		}
	}

	return result, nil
}

func decodeRaw(text string) (*rawResponse, error) {
	cleaned := cleanJSON(text)
	var raw rawResponse
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, eris.Wrap(err, "extract: parse response JSON")
	}
	return &raw, nil
}

// toCandidate converts a raw family member entry. Entries with no usable
// data or an unknown relationship are dropped. Older prompt formats say
// "parent"; treat that as father unless the data says otherwise.
func toCandidate(fm rawFamilyMember, strategy Strategy) (model.FamilyMemberCandidate, bool) {
	if len(fm.Data) == 0 {
		return model.FamilyMemberCandidate{}, false
	}

	rel := model.Relationship(strings.ToLower(strings.TrimSpace(fm.Relationship)))
	if rel == "parent" {
		rel = model.RelationshipFather
	}
	if !model.KnownRelationship(rel) {
		return model.FamilyMemberCandidate{}, false
	}

	conf := confOrDefault(fm.Confidence)
	fields := make(map[string]model.ExtractedField, len(fm.Data))
	for key, value := range fm.Data {
		if value == "" || strings.EqualFold(value, "NOT_FOUND") {
			continue
		}
		fields[key] = model.ExtractedField{
			Name:           key,
			Value:          value,
			Confidence:     conf,
			SourceStrategy: string(strategy),
		}
	}
	if len(fields) == 0 {
		return model.FamilyMemberCandidate{}, false
	}

	verified := false
	if fm.Verified != nil {
		verified = *fm.Verified
	}
	return model.FamilyMemberCandidate{
		Relationship: rel,
		Fields:       fields,
		Verified:     verified,
	}, true
}

func confOrDefault(c *float64) float64 {
	if c == nil {
		return defaultFieldConfidence
	}
	if *c < 0 {
		return 0
	}
	if *c > 1 {
		return 1
	}
	return *c
}

// cleanJSON strips markdown fences and any prose around the outermost
// JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
