package extract

import (
	"sort"
	"strings"

	"github.com/bardavid-law/intake-cli/internal/model"
)

// Merge combines per-strategy results into one consensus result. Per
// field, the highest-confidence value wins; exact ties go to the result
// earlier in strategy order, never to chance. Family members are deduped
// by (relationship, first, last); history records are unioned.
//
// Results must be given in strategy order. Merge only reads its inputs.
func Merge(docType string, results []*model.ExtractionResult) *model.ExtractionResult {
	merged := model.NewExtractionResult(docType)
	if len(results) == 0 {
		return merged
	}

	for _, res := range results {
		for name, f := range res.Fields {
			best, ok := merged.Field(name)
			// Strictly greater: a tie keeps the earlier strategy's value.
			if !ok || f.Confidence > best.Confidence {
				merged.SetField(f)
			}
		}
	}

	seen := make(map[string]bool)
	for _, res := range results {
		for _, fm := range res.FamilyMembers {
			key := familyKey(fm)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged.FamilyMembers = append(merged.FamilyMembers, fm)
		}
	}

	for _, res := range results {
		for category, records := range res.History {
			merged.History[category] = append(merged.History[category], records...)
		}
	}

	return merged
}

func familyKey(fm model.FamilyMemberCandidate) string {
	return strings.ToLower(string(fm.Relationship) + "|" + fm.FieldValue("first_name") + "|" + fm.FieldValue("last_name"))
}

// sortFieldNames returns the result's field names in sorted order, for
// deterministic rendering of merged data into follow-up prompts.
func sortFieldNames(r *model.ExtractionResult) []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
