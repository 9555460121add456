package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bardavid-law/intake-cli/internal/resilience"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and retry failed documents",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List retryable dead letter entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	},
}

var dlqRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-analyze documents from the dead letter queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initAnalyzeEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Store.DequeueDLQ(ctx, resilience.DLQFilter{})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			zap.L().Info("dead letter queue empty")
			return nil
		}

		for _, entry := range entries {
			report, err := analyzeDocument(ctx, env, entry.DocumentPath, entry.DocumentType)
			if err != nil {
				zap.L().Warn("retry failed",
					zap.String("file", entry.DocumentPath),
					zap.Int("retry_count", entry.RetryCount+1),
					zap.Error(err))
				nextRetry := time.Now().UTC().Add(backoffFor(entry.RetryCount + 1))
				if incErr := env.Store.IncrementDLQRetry(ctx, entry.ID, nextRetry, err.Error()); incErr != nil {
					zap.L().Error("dlq update failed", zap.String("id", entry.ID), zap.Error(incErr))
				}
				continue
			}

			zap.L().Info("retry succeeded",
				zap.String("file", entry.DocumentPath),
				zap.String("draft_id", report.DraftID))
			if rmErr := env.Store.RemoveDLQ(ctx, entry.ID); rmErr != nil {
				zap.L().Error("dlq remove failed", zap.String("id", entry.ID), zap.Error(rmErr))
			}
		}
		return nil
	},
}

// backoffFor doubles the retry delay per attempt: 15m, 30m, 60m, ...
func backoffFor(attempt int) time.Duration {
	d := 15 * time.Minute
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

func init() {
	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqRetryCmd)
	rootCmd.AddCommand(dlqCmd)
}
