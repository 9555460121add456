package model

// MatchMethod identifies how a record-store match was established,
// ordered by specificity.
type MatchMethod string

const (
	MatchExactIdentifier MatchMethod = "exact_identifier"
	MatchNameAndDOB      MatchMethod = "name_and_dob"
	MatchNameOnly        MatchMethod = "name_only"
)

// MatchCandidate is one record-store hit considered during matching.
type MatchCandidate struct {
	RecordID    string  `json:"record_id"`
	DisplayName string  `json:"display_name,omitempty"`
	BirthDate   string  `json:"birth_date,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// MatchResult is the accepted match for one person, at most one per
// candidate. When Ambiguous is set, no candidate was accepted and the
// full candidate list is retained for manual resolution.
type MatchResult struct {
	RecordID   string           `json:"record_id,omitempty"`
	Confidence float64          `json:"confidence"`
	Method     MatchMethod      `json:"method"`
	Ambiguous  bool             `json:"ambiguous,omitempty"`
	Candidates []MatchCandidate `json:"candidates,omitempty"`
}
