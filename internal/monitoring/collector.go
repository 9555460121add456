// Package monitoring reports a point-in-time view of the local draft
// queue so operators can see how much review work is outstanding.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/bardavid-law/intake-cli/internal/store"
)

// StatusSnapshot holds a point-in-time view of the draft queue.
type StatusSnapshot struct {
	// Draft counts per status.
	DraftsTotal    int `json:"drafts_total"`
	DraftsDraft    int `json:"drafts_draft"`
	DraftsApproved int `json:"drafts_approved"`
	DraftsApplied  int `json:"drafts_applied"`
	DraftsRejected int `json:"drafts_rejected"`

	// DLQ depth.
	DLQDepth int `json:"dlq_depth"`

	// Metadata.
	CollectedAt time.Time `json:"collected_at"`
}

// Collector gathers queue metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new status collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of draft and DLQ state.
func (c *Collector) Collect(ctx context.Context) (*StatusSnapshot, error) {
	snap := &StatusSnapshot{
		CollectedAt: time.Now().UTC(),
	}

	counts, err := c.store.CountChangeSets(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count change sets")
	}
	snap.DraftsDraft = counts[store.StatusDraft]
	snap.DraftsApproved = counts[store.StatusApproved]
	snap.DraftsApplied = counts[store.StatusApplied]
	snap.DraftsRejected = counts[store.StatusRejected]
	for _, n := range counts {
		snap.DraftsTotal += n
	}

	depth, err := c.store.CountDLQ(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count dlq")
	}
	snap.DLQDepth = depth

	return snap, nil
}
