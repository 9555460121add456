package reconcile

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/bardavid-law/intake-cli/internal/model"
	"github.com/bardavid-law/intake-cli/pkg/recordstore"
)

// Confidence assigned per tier of the lookup cascade.
const (
	confIdentifier = 1.0
	confNameDOB    = 0.9
	confNameOnly   = 0.7
)

// Subject is the identity sought in the record store. BirthDate must
// already be in canonical YYYY-MM-DD form.
type Subject struct {
	FirstName  string
	LastName   string
	BirthDate  string
	Identifier string
}

// Matcher runs the three-tier lookup cascade: exact identifier, then
// name plus date of birth, then name alone. The first tier that returns
// anything decides the outcome; a multi-hit tier yields an ambiguous
// result with every candidate retained, never a guess.
type Matcher struct {
	store recordstore.Searcher
}

func NewMatcher(store recordstore.Searcher) *Matcher {
	return &Matcher{store: store}
}

// Match resolves a subject to at most one record. It returns (nil, nil)
// when no tier produces a hit.
func (m *Matcher) Match(ctx context.Context, s Subject) (*model.MatchResult, error) {
	if s.Identifier != "" {
		recs, err := m.store.SearchByIdentifier(ctx, s.Identifier)
		if err != nil {
			return nil, eris.Wrap(err, "reconcile: identifier search")
		}
		if res := resolve(recs, model.MatchExactIdentifier, confIdentifier); res != nil {
			return res, nil
		}
	}
	if s.FirstName != "" && s.LastName != "" && s.BirthDate != "" {
		recs, err := m.store.SearchByNameDOB(ctx, s.FirstName, s.LastName, s.BirthDate)
		if err != nil {
			return nil, eris.Wrap(err, "reconcile: name and birth date search")
		}
		if res := resolve(recs, model.MatchNameAndDOB, confNameDOB); res != nil {
			return res, nil
		}
	}
	if s.FirstName != "" && s.LastName != "" {
		recs, err := m.store.SearchByName(ctx, s.FirstName, s.LastName)
		if err != nil {
			return nil, eris.Wrap(err, "reconcile: name search")
		}
		if res := resolve(recs, model.MatchNameOnly, confNameOnly); res != nil {
			return res, nil
		}
	}
	return nil, nil
}

// resolve turns one tier's hits into a result: nil for zero hits so the
// cascade continues, accepted for exactly one, ambiguous for several.
func resolve(recs []recordstore.Record, method model.MatchMethod, conf float64) *model.MatchResult {
	switch len(recs) {
	case 0:
		return nil
	case 1:
		return &model.MatchResult{
			RecordID:   recs[0].ID,
			Confidence: conf,
			Method:     method,
		}
	}
	return &model.MatchResult{
		Confidence: conf,
		Method:     method,
		Ambiguous:  true,
		Candidates: toCandidates(recs, conf),
	}
}

func toCandidates(recs []recordstore.Record, conf float64) []model.MatchCandidate {
	out := make([]model.MatchCandidate, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.MatchCandidate{
			RecordID:    r.ID,
			DisplayName: r.DisplayName,
			BirthDate:   r.Attr("BirthDate"),
			Confidence:  conf,
		})
	}
	return out
}
