package extract

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bardavid-law/intake-cli/internal/config"
	"github.com/bardavid-law/intake-cli/internal/model"
	"github.com/bardavid-law/intake-cli/internal/registry"
	"github.com/bardavid-law/intake-cli/internal/validate"
	"github.com/bardavid-law/intake-cli/pkg/vision"
)

// State is one phase of the refinement loop.
type State string

const (
	StateInit              State = "INIT"
	StateStrategyPass      State = "STRATEGY_PASS"
	StateMerge             State = "MERGE"
	StateValidate          State = "VALIDATE"
	StateTargetedReextract State = "TARGETED_REEXTRACT"
	StateDone              State = "DONE"
	StateMaxIterations     State = "MAX_ITERATIONS_REACHED"
)

// Outcome is the finalized product of one document run. Result is never
// nil on success; when the loop hits the iteration cap the best-so-far
// result is still returned, carrying its unresolved issues.
type Outcome struct {
	Result     *model.ExtractionResult
	Issues     model.IssueList
	Metrics    model.ExtractionMetrics
	FinalState State
}

// Orchestrator drives the bounded refinement loop over one document:
// parallel strategy passes, consensus merge, self-critique, validation,
// targeted re-extraction, then family verification. It holds no
// per-document state; each Run works on its own result.
type Orchestrator struct {
	runner *Runner
	reg    *registry.Registry
	cfg    config.ExtractConfig
}

// NewOrchestrator wires the loop. Zero config values fall back to the
// standard thresholds.
func NewOrchestrator(runner *Runner, reg *registry.Registry, cfg config.ExtractConfig) *Orchestrator {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.7
	}
	if cfg.MinOverallConfidence <= 0 {
		cfg.MinOverallConfidence = 0.8
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 3
	}
	if cfg.MaxRetryFields <= 0 {
		cfg.MaxRetryFields = 5
	}
	return &Orchestrator{runner: runner, reg: reg, cfg: cfg}
}

// Run executes the full loop for a document of the given type. A missing
// document type definition is fatal and surfaced immediately; strategy
// failures are absorbed unless every strategy fails.
func (o *Orchestrator) Run(ctx context.Context, pages []vision.Image, docTypeKey string) (*Outcome, error) {
	docType, err := o.reg.Type(docTypeKey)
	if err != nil {
		return nil, err
	}

	metrics := model.ExtractionMetrics{RunID: uuid.NewString()}
	state := StateInit
	log := zap.L().With(
		zap.String("run_id", metrics.RunID),
		zap.String("document_type", docTypeKey),
	)

	// INIT -> STRATEGY_PASS
	state = StateStrategyPass
	results, calls, err := o.runner.RunStrategies(ctx, pages, docType, DefaultStrategies)
	metrics.TotalBackendCalls += calls
	if err != nil {
		return nil, eris.Wrap(err, "extract: strategy pass")
	}
	for _, res := range results {
		metrics.StrategiesUsed = append(metrics.StrategiesUsed, usedStrategy(res))
	}

	// STRATEGY_PASS -> MERGE
	state = StateMerge
	result := Merge(docTypeKey, results)

	corrections, calls, err := o.runner.Critique(ctx, pages, docType, result)
	metrics.TotalBackendCalls += calls
	if err != nil {
		// Critique is an enhancement pass; its failure never aborts a run.
		log.Warn("critique pass failed", zap.Error(err))
	}
	metrics.CritiqueCorrections = corrections

	metrics.LowConfidenceFieldsInitial = len(result.LowConfidenceFields(o.cfg.ConfidenceThreshold))

	// MERGE -> VALIDATE, then loop.
	var issues model.IssueList
	for {
		state = StateValidate
		issues = validate.Run(result, docType, o.cfg.ConfidenceThreshold)
		if metrics.Iterations == 0 {
			metrics.ValidationErrorsInitial = issues.ErrorCount()
		}
		metrics.Iterations++

		log.Info("validation pass",
			zap.Int("iteration", metrics.Iterations),
			zap.Int("errors", issues.ErrorCount()),
			zap.Int("warnings", len(issues)-issues.ErrorCount()),
		)

		if issues.ErrorCount() == 0 {
			state = StateDone
			break
		}
		if metrics.Iterations >= o.cfg.MaxIterations {
			state = StateMaxIterations
			break
		}

		// VALIDATE -> TARGETED_REEXTRACT
		state = StateTargetedReextract
		focus := o.focusFields(result, issues)
		if len(focus) == 0 {
			// Errors with no re-extractable field cannot improve by looping.
			state = StateMaxIterations
			break
		}
		calls = o.reextract(ctx, pages, docType, result, focus, log)
		metrics.TotalBackendCalls += calls
	}

	// Family verification runs once, after the loop settles the fields.
	verified, removed, calls, err := o.runner.VerifyFamily(ctx, pages, result)
	metrics.TotalBackendCalls += calls
	if err != nil {
		log.Warn("family verification failed, candidates dropped", zap.Error(err))
		result.PruneUnverified()
	}
	metrics.FamilyMembersVerified = verified
	if removed > 0 {
		log.Info("unverified family members removed", zap.Int("removed", removed))
	}

	metrics.ValidationErrorsFinal = issues.ErrorCount()
	metrics.LowConfidenceFieldsFinal = len(result.LowConfidenceFields(o.cfg.ConfidenceThreshold))

	if overall := result.OverallConfidence(); overall < o.cfg.MinOverallConfidence {
		log.Warn("overall confidence below threshold",
			zap.Float64("overall", overall),
			zap.Float64("threshold", o.cfg.MinOverallConfidence),
		)
		issues = append(issues, model.ValidationIssue{
			Severity: model.SeverityWarning,
			Code:     model.CodeLowOverallConfidence,
			Message: fmt.Sprintf("overall extraction confidence %.2f is below the %.2f review threshold",
				overall, o.cfg.MinOverallConfidence),
		})
	}

	return &Outcome{
		Result:     result,
		Issues:     issues,
		Metrics:    metrics,
		FinalState: state,
	}, nil
}

// focusFields picks the fields for a targeted pass: every field implicated
// by a current error, then low-confidence fields (lowest first), capped at
// MaxRetryFields.
func (o *Orchestrator) focusFields(result *model.ExtractionResult, issues model.IssueList) []model.ExtractedField {
	var focus []model.ExtractedField
	seen := make(map[string]bool)

	for _, name := range issues.FieldNames() {
		f, _ := result.Field(name)
		f.Name = name
		focus = append(focus, f)
		seen[name] = true
	}
	for _, f := range result.LowConfidenceFields(o.cfg.ConfidenceThreshold) {
		if !seen[f.Name] {
			focus = append(focus, f)
			seen[f.Name] = true
		}
	}

	if len(focus) > o.cfg.MaxRetryFields {
		focus = focus[:o.cfg.MaxRetryFields]
	}
	return focus
}

// reextract runs one focused pass and folds improvements back in. A field
// is only replaced when the new confidence beats the old one, so a bad
// retry can never regress the result.
func (o *Orchestrator) reextract(ctx context.Context, pages []vision.Image, docType *registry.DocumentType, result *model.ExtractionResult, focus []model.ExtractedField, log *zap.Logger) int {
	retried, calls, err := o.runner.RunFocused(ctx, pages, docType, focus)
	if err != nil {
		log.Warn("targeted re-extraction failed", zap.Error(err))
		return calls
	}

	improved := 0
	for name, f := range retried.Fields {
		existing, ok := result.Field(name)
		if !ok || f.Confidence > existing.Confidence {
			f.SourceStrategy = existing.SourceStrategy
			if f.SourceStrategy == "" {
				f.SourceStrategy = "targeted"
			}
			result.SetField(f)
			improved++
		}
	}
	log.Info("targeted re-extraction merged",
		zap.Int("focused", len(focus)),
		zap.Int("improved", improved),
	)
	return calls
}

// usedStrategy reads the producing strategy off any field of a result.
func usedStrategy(res *model.ExtractionResult) string {
	for _, f := range res.Fields {
		if f.SourceStrategy != "" {
			return f.SourceStrategy
		}
	}
	return "unknown"
}
