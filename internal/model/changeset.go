package model

import "time"

// Classification describes how a proposed value relates to the current
// record-store value. It is a pure function of the two normalized values.
type Classification string

const (
	ChangeNew       Classification = "new"
	ChangeModified  Classification = "modified"
	ChangeUnchanged Classification = "unchanged"
)

// Classify applies the classification invariant to a pair of already
// normalized values.
func Classify(currentNorm, proposedNorm string) Classification {
	switch {
	case currentNorm == "":
		return ChangeNew
	case currentNorm == proposedNorm:
		return ChangeUnchanged
	}
	return ChangeModified
}

// FieldChange is one proposed change to the primary subject's record.
// StoreField is the record-store attribute the field maps to; Biographic
// routes the change to the biographic sub-record on apply.
type FieldChange struct {
	FieldName      string         `json:"field_name"`
	FieldLabel     string         `json:"field_label,omitempty"`
	StoreField     string         `json:"store_field,omitempty"`
	Biographic     bool           `json:"biographic,omitempty"`
	CurrentValue   string         `json:"current_value,omitempty"`
	ProposedValue  string         `json:"proposed_value"`
	Confidence     float64        `json:"confidence"`
	Classification Classification `json:"classification"`
	Approved       bool           `json:"approved"`
}

// HasChange reports whether the change would actually alter the record.
func (c FieldChange) HasChange() bool {
	return c.Classification == ChangeNew || c.Classification == ChangeModified
}

// ChangeSet is the reconciliation output for one document: every field
// classified against the record store, plus the finalized family members
// and history. It is immutable once built except for review overrides
// (approval flags and family actions).
type ChangeSet struct {
	ID            string                              `json:"id"`
	ContactID     string                              `json:"contact_id,omitempty"`
	ContactName   string                              `json:"contact_name"`
	DocumentType  string                              `json:"document_type"`
	SourceFile    string                              `json:"source_file,omitempty"`
	Confidence    float64                             `json:"confidence"`
	Changes       []FieldChange                       `json:"changes"`
	FamilyMembers []FamilyMemberCandidate             `json:"family_members,omitempty"`
	History       map[HistoryCategory][]HistoryRecord `json:"history,omitempty"`
	Disambiguate  *MatchResult                        `json:"disambiguate,omitempty"`
	Metrics       *ExtractionMetrics                  `json:"metrics,omitempty"`
	CreatedAt     time.Time                           `json:"created_at"`
}

// TotalChanges counts changes that would alter the record.
func (cs *ChangeSet) TotalChanges() int {
	n := 0
	for _, c := range cs.Changes {
		if c.HasChange() {
			n++
		}
	}
	return n
}

// ApprovedChanges returns the approved subset that would alter the record.
func (cs *ChangeSet) ApprovedChanges() []FieldChange {
	var out []FieldChange
	for _, c := range cs.Changes {
		if c.Approved && c.HasChange() {
			out = append(out, c)
		}
	}
	return out
}

// ContactChanges returns approved changes that apply to the contact record.
func (cs *ChangeSet) ContactChanges() []FieldChange {
	var out []FieldChange
	for _, c := range cs.ApprovedChanges() {
		if !c.Biographic {
			out = append(out, c)
		}
	}
	return out
}

// BiographicChanges returns approved changes for the biographic sub-record.
func (cs *ChangeSet) BiographicChanges() []FieldChange {
	var out []FieldChange
	for _, c := range cs.ApprovedChanges() {
		if c.Biographic {
			out = append(out, c)
		}
	}
	return out
}
