// Package recordstore provides read-side access to the firm's contact
// record store. The reconciliation engine only searches and reads;
// applying an approved change set is a separate, later step.
package recordstore

import "context"

// Record is one contact as returned by the store. Attributes holds the
// flat attribute map for both the contact record and its biographic
// sub-record, keyed by store field name (FirstName, BirthDate,
// AlienNumber, ...).
type Record struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Attributes  map[string]string `json:"attributes"`
}

// Attr returns a single attribute value, or "" if absent.
func (r *Record) Attr(name string) string {
	return r.Attributes[name]
}

// Searcher defines the read-side lookups used by reconciliation.
type Searcher interface {
	// SearchByIdentifier finds contacts by exact alien number.
	SearchByIdentifier(ctx context.Context, identifier string) ([]Record, error)
	// SearchByNameDOB finds contacts matching name and date of birth
	// (YYYY-MM-DD).
	SearchByNameDOB(ctx context.Context, firstName, lastName, dob string) ([]Record, error)
	// SearchByName finds contacts by name alone; may return many.
	SearchByName(ctx context.Context, firstName, lastName string) ([]Record, error)
	// GetRecord fetches one contact with its biographic attributes.
	GetRecord(ctx context.Context, id string) (*Record, error)
}
