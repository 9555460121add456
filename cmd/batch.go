package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bardavid-law/intake-cli/internal/cost"
	"github.com/bardavid-law/intake-cli/internal/ingest"
	"github.com/bardavid-law/intake-cli/internal/resilience"
	"github.com/bardavid-law/intake-cli/internal/store"
)

var (
	batchDir   string
	batchLimit int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Analyze every supported document in a directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initAnalyzeEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		paths, err := ingest.ListDocuments(batchDir)
		if err != nil {
			return err
		}
		if batchLimit > 0 && len(paths) > batchLimit {
			paths = paths[:batchLimit]
		}

		return processBatch(ctx, env, paths, cfg.Batch.MaxConcurrentDocuments)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchDir, "dir", "", "directory of documents (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of documents to process")
	_ = batchCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(batchCmd)
}

// processBatch analyzes documents concurrently. A failed document lands
// in the dead letter queue instead of aborting the batch.
func processBatch(ctx context.Context, env *analyzeEnv, paths []string, concurrency int) error {
	if len(paths) == 0 {
		zap.L().Info("no documents found")
		return nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("documents", len(paths)),
		zap.Int("concurrency", concurrency),
	)

	var succeeded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, path := range paths {
		g.Go(func() error {
			report, err := analyzeDocument(gctx, env, path, "")
			if err != nil {
				failed.Add(1)
				zap.L().Error("document analysis failed",
					zap.String("file", path), zap.Error(err))
				if dlqErr := enqueueFailure(gctx, env.Store, path, err); dlqErr != nil {
					zap.L().Error("dlq enqueue failed",
						zap.String("file", path), zap.Error(dlqErr))
				}
				return nil
			}
			succeeded.Add(1)
			zap.L().Info("document analyzed",
				zap.String("file", path),
				zap.String("draft_id", report.DraftID),
				zap.String("final_state", string(report.FinalState)),
				zap.Int("changes", report.TotalChanges))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	usage := env.Runner.Usage()
	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Int64("input_tokens", usage.InputTokens),
		zap.Int64("output_tokens", usage.OutputTokens),
		zap.Float64("estimated_usd", cost.NewCalculator(cost.DefaultRates()).Vision(cfg.Anthropic.Model, usage)),
	)
	return nil
}

func enqueueFailure(ctx context.Context, st store.Store, path string, cause error) error {
	now := time.Now().UTC()
	return st.EnqueueDLQ(ctx, resilience.DLQEntry{
		DocumentPath: path,
		Error:        cause.Error(),
		ErrorType:    resilience.ClassifyError(cause),
		FailedStage:  "analyze",
		MaxRetries:   3,
		NextRetryAt:  now.Add(15 * time.Minute),
		CreatedAt:    now,
		LastFailedAt: now,
	})
}
