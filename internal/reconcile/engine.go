package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bardavid-law/intake-cli/internal/model"
	"github.com/bardavid-law/intake-cli/internal/registry"
	"github.com/bardavid-law/intake-cli/pkg/recordstore"
)

// Engine reconciles one extraction result against the record store.
type Engine struct {
	store   recordstore.Searcher
	matcher *Matcher
	reg     *registry.Registry
}

func NewEngine(store recordstore.Searcher, reg *registry.Registry) *Engine {
	return &Engine{store: store, matcher: NewMatcher(store), reg: reg}
}

// Reconcile matches the primary subject, diffs fields against the
// matched record, and resolves every verified family member to an
// action. When the primary match is ambiguous the candidate list is
// surfaced on the change set and no record is selected.
func (e *Engine) Reconcile(ctx context.Context, result *model.ExtractionResult, sourceFile string) (*model.ChangeSet, error) {
	docType, err := e.reg.Type(result.DocumentType)
	if err != nil {
		return nil, err
	}

	cs := &model.ChangeSet{
		ID:           uuid.NewString(),
		ContactName:  subjectName(result),
		DocumentType: result.DocumentType,
		SourceFile:   sourceFile,
		Confidence:   result.OverallConfidence(),
		History:      result.History,
		CreatedAt:    time.Now().UTC(),
	}

	match, err := e.matcher.Match(ctx, subjectOf(result))
	if err != nil {
		return nil, err
	}

	var record *recordstore.Record
	switch {
	case match == nil:
		zap.L().Info("no existing contact found",
			zap.String("name", cs.ContactName),
			zap.String("document_type", cs.DocumentType))
	case match.Ambiguous:
		cs.Disambiguate = match
		zap.L().Warn("ambiguous contact match, deferring to manual resolution",
			zap.String("name", cs.ContactName),
			zap.Int("candidates", len(match.Candidates)))
	default:
		record, err = e.store.GetRecord(ctx, match.RecordID)
		if err != nil {
			return nil, eris.Wrap(err, "reconcile: fetch matched contact")
		}
		cs.ContactID = match.RecordID
	}

	cs.Changes = BuildChanges(result, docType, record)
	cs.FamilyMembers = e.reconcileFamily(ctx, result.FamilyMembers)
	return cs, nil
}

// reconcileFamily runs the same cascade per verified candidate. Policy:
// an accepted match links, no match creates, an ambiguous match skips
// with the candidates retained for manual resolution. A lookup failure
// also skips so one bad call never sinks the whole change set.
func (e *Engine) reconcileFamily(ctx context.Context, members []model.FamilyMemberCandidate) []model.FamilyMemberCandidate {
	var out []model.FamilyMemberCandidate
	for _, fm := range members {
		if !fm.Verified {
			continue
		}
		match, err := e.matcher.Match(ctx, Subject{
			FirstName:  fm.FieldValue("first_name"),
			LastName:   fm.FieldValue("last_name"),
			BirthDate:  normalizeDate(fm.FieldValue("date_of_birth")),
			Identifier: fm.FieldValue("a_number"),
		})
		switch {
		case err != nil:
			zap.L().Warn("family member lookup failed",
				zap.String("name", fm.DisplayName()), zap.Error(err))
			fm.Action = model.ActionSkip
		case match == nil:
			fm.Action = model.ActionCreateNew
		case match.Ambiguous:
			fm.Action = model.ActionSkip
			fm.Match = match
		default:
			fm.Action = model.ActionLinkExisting
			fm.Match = match
		}
		out = append(out, fm)
	}
	return out
}

func subjectOf(result *model.ExtractionResult) Subject {
	return Subject{
		FirstName:  result.FieldValue("first_name"),
		LastName:   result.FieldValue("last_name"),
		BirthDate:  normalizeDate(result.FieldValue("date_of_birth")),
		Identifier: result.FieldValue("a_number"),
	}
}

func subjectName(result *model.ExtractionResult) string {
	first := result.FieldValue("first_name")
	last := result.FieldValue("last_name")
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}
