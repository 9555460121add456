package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bardavid-law/intake-cli/internal/model"
	"github.com/bardavid-law/intake-cli/pkg/vision"
)

const verifyPromptTmpl = `I found these family members in the document:

%s

Please VERIFY each one by re-reading the family member sections.

For each family member:
1. Confirm they actually exist in the document (not a misread)
2. Extract any MISSING fields: date_of_birth, country_of_birth, a_number, citizenship
3. If a person does not actually exist, mark them "verified": false with a reason

Return verified family members in JSON:
{
    "family_members": [
        {
            "relationship": "spouse|child|father|mother|sibling",
            "verified": true,
            "data": {"first_name": "...", "last_name": "...", "date_of_birth": "YYYY-MM-DD", "country_of_birth": "...", "citizenship": "...", "a_number": "..."},
            "confidence": 0.0-1.0,
            "reason": "only when verified is false"
        }
    ]
}`

// VerifyFamily runs the second-pass existence check over the result's
// family member candidates. Confirmed candidates are marked verified and
// enriched with any newly extracted fields; the rest are physically
// removed from the result. A failed verification call leaves all
// candidates unverified, which prunes them, so the caller sees the
// removal count either way.
//
// Returns (verified count, removed count, backend calls).
func (r *Runner) VerifyFamily(ctx context.Context, pages []vision.Image, result *model.ExtractionResult) (int, int, int, error) {
	if len(result.FamilyMembers) == 0 {
		return 0, 0, 0, nil
	}

	var summary strings.Builder
	for i, fm := range result.FamilyMembers {
		fmt.Fprintf(&summary, "%d. %s: %s\n", i+1, fm.Relationship, fm.DisplayName())
	}

	text, calls, err := r.call(ctx, pages, fmt.Sprintf(verifyPromptTmpl, summary.String()))
	if err != nil {
		return 0, 0, calls, eris.Wrap(err, "extract: family verification")
	}
	raw, err := decodeRaw(text)
	if err != nil {
		return 0, 0, calls, err
	}

	// Index verified entries by identity key, then walk the existing
	// candidates so extraction order is preserved.
	confirmed := make(map[string]model.FamilyMemberCandidate)
	for _, fm := range raw.FamilyMembers {
		if fm.Verified != nil && !*fm.Verified {
			zap.L().Info("family member removed by verification",
				zap.String("relationship", fm.Relationship),
				zap.String("reason", fm.Reason),
			)
			continue
		}
		candidate, ok := toCandidate(fm, "")
		if !ok {
			continue
		}
		candidate.Verified = true
		confirmed[familyKey(candidate)] = candidate
	}

	for i := range result.FamilyMembers {
		fm := &result.FamilyMembers[i]
		v, ok := confirmed[familyKey(*fm)]
		if !ok {
			continue
		}
		fm.Verified = true
		// Enrichment: fill fields the first pass missed, keep existing
		// values over the verifier's.
		for key, field := range v.Fields {
			if _, exists := fm.Fields[key]; !exists {
				fm.Fields[key] = field
			}
		}
	}

	removed := result.PruneUnverified()
	return len(result.FamilyMembers), removed, calls, nil
}
