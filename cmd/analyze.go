package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bardavid-law/intake-cli/internal/cost"
	"github.com/bardavid-law/intake-cli/internal/extract"
	"github.com/bardavid-law/intake-cli/internal/model"
	"github.com/bardavid-law/intake-cli/internal/store"
	"github.com/bardavid-law/intake-cli/pkg/vision"
)

var (
	analyzeFile string
	analyzeType string
)

// analysisReport is what the analyze command prints for one document.
type analysisReport struct {
	DraftID      string                   `json:"draft_id"`
	DocumentType string                   `json:"document_type"`
	FinalState   extract.State            `json:"final_state"`
	ContactID    string                   `json:"contact_id,omitempty"`
	ContactName  string                   `json:"contact_name"`
	TotalChanges int                      `json:"total_changes"`
	Issues       model.IssueList          `json:"issues,omitempty"`
	Metrics      model.ExtractionMetrics  `json:"metrics"`
	Usage        vision.TokenUsage        `json:"usage"`
	EstimatedUSD float64                  `json:"estimated_usd"`
	ChangeSet    *model.ChangeSet         `json:"change_set"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a single intake document",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initAnalyzeEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := analyzeDocument(ctx, env, analyzeFile, analyzeType)
		if err != nil {
			return err
		}

		report.Usage = env.Runner.Usage()
		report.EstimatedUSD = cost.NewCalculator(cost.DefaultRates()).
			Vision(cfg.Anthropic.Model, report.Usage)

		zap.L().Info("analysis complete",
			zap.String("file", analyzeFile),
			zap.String("document_type", report.DocumentType),
			zap.String("final_state", string(report.FinalState)),
			zap.Int("changes", report.TotalChanges),
			zap.Int("backend_calls", report.Metrics.TotalBackendCalls),
			zap.Int64("input_tokens", report.Usage.InputTokens),
			zap.Int64("output_tokens", report.Usage.OutputTokens),
			zap.Float64("estimated_usd", report.EstimatedUSD),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "document path (required)")
	analyzeCmd.Flags().StringVar(&analyzeType, "type", "", "document type key (auto-detected when empty)")
	_ = analyzeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(analyzeCmd)
}

// analyzeDocument runs the full pipeline for one file: ingest, optional
// type detection, the refinement loop, reconciliation, then persists the
// resulting change set as a draft.
func analyzeDocument(ctx context.Context, env *analyzeEnv, path, typeKey string) (*analysisReport, error) {
	doc, err := env.Loader.Load(path)
	if err != nil {
		return nil, err
	}

	if typeKey == "" {
		detected, calls, err := env.Runner.DetectType(ctx, doc.Pages, env.Registry)
		if err != nil {
			return nil, eris.Wrapf(err, "detect document type for %s", path)
		}
		zap.L().Info("document type detected",
			zap.String("file", path),
			zap.String("type", detected),
			zap.Int("calls", calls))
		typeKey = detected
	}

	outcome, err := env.Orchestrator.Run(ctx, doc.Pages, typeKey)
	if err != nil {
		return nil, err
	}

	cs, err := env.Engine.Reconcile(ctx, outcome.Result, path)
	if err != nil {
		return nil, err
	}
	cs.Metrics = &outcome.Metrics

	draft, err := env.Store.SaveChangeSet(ctx, cs)
	if err != nil {
		return nil, err
	}

	return reportFrom(draft, outcome), nil
}

func reportFrom(draft *store.Draft, outcome *extract.Outcome) *analysisReport {
	cs := draft.ChangeSet
	return &analysisReport{
		DraftID:      draft.ID,
		DocumentType: cs.DocumentType,
		FinalState:   outcome.FinalState,
		ContactID:    cs.ContactID,
		ContactName:  cs.ContactName,
		TotalChanges: cs.TotalChanges(),
		Issues:       outcome.Issues,
		Metrics:      outcome.Metrics,
		ChangeSet:    cs,
	}
}
