package extract

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bardavid-law/intake-cli/internal/model"
	"github.com/bardavid-law/intake-cli/internal/registry"
	"github.com/bardavid-law/intake-cli/internal/resilience"
	"github.com/bardavid-law/intake-cli/pkg/vision"
)

// callTimeout bounds a single backend invocation. A timed-out strategy is
// that strategy's failure, not the run's.
const callTimeout = 3 * time.Minute

// ErrAllStrategiesFailed is returned when no strategy pass produced a
// usable result.
var ErrAllStrategiesFailed = eris.New("extract: all strategies failed")

// Runner fans extraction passes out to the vision backend. Per-strategy
// failures are isolated; the runner itself holds no per-document state and
// is safe for concurrent runs against different documents.
type Runner struct {
	client      vision.Client
	modelName   string
	maxTokens   int
	temperature float64
	concurrency int
	retry       resilience.RetryConfig

	usageMu sync.Mutex
	usage   vision.TokenUsage
}

// NewRunner creates a Runner over the shared vision client.
func NewRunner(client vision.Client, modelName string, maxTokens int, temperature float64, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = len(DefaultStrategies)
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("vision extraction")
	return &Runner{
		client:      client,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		concurrency: concurrency,
		retry:       retry,
	}
}

// RunStrategies executes one extraction pass per strategy against the same
// document pages and returns the successful results in strategy order,
// along with the number of backend calls made. A single failing strategy
// degrades the result count by one; only zero successes is an error.
func (r *Runner) RunStrategies(ctx context.Context, pages []vision.Image, docType *registry.DocumentType, strategies []Strategy) ([]*model.ExtractionResult, int, error) {
	results := make([]*model.ExtractionResult, len(strategies))
	var calls int
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, strategy := range strategies {
		g.Go(func() error {
			res, n, err := r.runOne(gctx, pages, docType, strategy)
			mu.Lock()
			calls += n
			mu.Unlock()
			if err != nil {
				zap.L().Warn("strategy pass failed",
					zap.String("strategy", string(strategy)),
					zap.String("document_type", docType.Key),
					zap.Error(err),
				)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, calls, err
	}

	ordered := results[:0]
	for _, res := range results {
		if res != nil {
			ordered = append(ordered, res)
		}
	}
	if len(ordered) == 0 {
		return nil, calls, ErrAllStrategiesFailed
	}
	return ordered, calls, nil
}

// RunFocused re-extracts only the given fields with a focused prompt and
// returns the (partial) result. Used by the refinement loop.
func (r *Runner) RunFocused(ctx context.Context, pages []vision.Image, docType *registry.DocumentType, focus []model.ExtractedField) (*model.ExtractionResult, int, error) {
	prompt := BuildFocusPrompt(docType, focus)
	text, n, err := r.call(ctx, pages, prompt)
	if err != nil {
		return nil, n, eris.Wrap(err, "extract: focused pass")
	}
	res, err := parseResponse(text, docType.Key, "")
	if err != nil {
		return nil, n, err
	}
	return res, n, nil
}

func (r *Runner) runOne(ctx context.Context, pages []vision.Image, docType *registry.DocumentType, strategy Strategy) (*model.ExtractionResult, int, error) {
	prompt := BuildPrompt(strategy, docType)
	text, n, err := r.call(ctx, pages, prompt)
	if err != nil {
		return nil, n, err
	}
	res, err := parseResponse(text, docType.Key, strategy)
	if err != nil {
		return nil, n, err
	}
	return res, n, nil
}

// Usage reports the tokens consumed by every call made through this
// runner since construction.
func (r *Runner) Usage() vision.TokenUsage {
	r.usageMu.Lock()
	defer r.usageMu.Unlock()
	return r.usage
}

// call sends one prompt plus the document pages to the backend, retrying
// transient failures. The returned count includes retried attempts.
func (r *Runner) call(ctx context.Context, pages []vision.Image, prompt string) (string, int, error) {
	calls := 0
	text, err := resilience.DoVal(ctx, r.retry, func(ctx context.Context) (string, error) {
		calls++
		cctx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		resp, err := r.client.CreateMessage(cctx, vision.MessageRequest{
			Model:       r.modelName,
			MaxTokens:   int64(r.maxTokens),
			System:      systemPrompt,
			Images:      pages,
			Prompt:      prompt,
			Temperature: &r.temperature,
		})
		if err != nil {
			return "", err
		}
		r.usageMu.Lock()
		r.usage.Add(resp.Usage)
		r.usageMu.Unlock()
		return vision.Text(resp), nil
	})
	if err != nil {
		return "", calls, err
	}
	return text, calls, nil
}
