package store

import (
	"context"
	"time"

	"github.com/bardavid-law/intake-cli/internal/model"
	"github.com/bardavid-law/intake-cli/internal/resilience"
)

// ChangeSetStatus tracks a draft through review.
type ChangeSetStatus string

const (
	StatusDraft    ChangeSetStatus = "draft"
	StatusApproved ChangeSetStatus = "approved"
	StatusApplied  ChangeSetStatus = "applied"
	StatusRejected ChangeSetStatus = "rejected"
)

// Draft is a persisted change set with its review status.
type Draft struct {
	ID        string           `json:"id"`
	Status    ChangeSetStatus  `json:"status"`
	ChangeSet *model.ChangeSet `json:"change_set"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ChangeSetFilter specifies criteria for listing drafts.
type ChangeSetFilter struct {
	Status    ChangeSetStatus `json:"status,omitempty"`
	ContactID string          `json:"contact_id,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Store defines persistence for change-set drafts and the dead letter
// queue of failed documents.
type Store interface {
	// Change sets
	SaveChangeSet(ctx context.Context, cs *model.ChangeSet) (*Draft, error)
	UpdateChangeSet(ctx context.Context, cs *model.ChangeSet) error
	UpdateStatus(ctx context.Context, id string, status ChangeSetStatus) error
	GetChangeSet(ctx context.Context, id string) (*Draft, error)
	ListChangeSets(ctx context.Context, filter ChangeSetFilter) ([]Draft, error)
	CountChangeSets(ctx context.Context) (map[ChangeSetStatus]int, error)

	// Dead letter queue
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
