package model

// ExtractedField is a single extracted value with provenance and confidence.
type ExtractedField struct {
	Name           string  `json:"name"`
	Value          string  `json:"value"`
	Confidence     float64 `json:"confidence"`
	SourceStrategy string  `json:"source_strategy,omitempty"`
	WasCorrected   bool    `json:"was_corrected,omitempty"`
}

// Relationship is the closed set of family relationships recognized on
// intake forms.
type Relationship string

const (
	RelationshipSpouse  Relationship = "spouse"
	RelationshipChild   Relationship = "child"
	RelationshipFather  Relationship = "father"
	RelationshipMother  Relationship = "mother"
	RelationshipSibling Relationship = "sibling"
)

// KnownRelationship reports whether r is one of the recognized values.
// "parent" from older prompt formats is not a valid Relationship; callers
// normalize it before constructing a candidate.
func KnownRelationship(r Relationship) bool {
	switch r {
	case RelationshipSpouse, RelationshipChild, RelationshipFather,
		RelationshipMother, RelationshipSibling:
		return true
	}
	return false
}

// FamilyAction is the reconciliation decision for a family member candidate.
type FamilyAction string

const (
	ActionLinkExisting   FamilyAction = "link_existing"
	ActionCreateNew      FamilyAction = "create_new"
	ActionUpdateExisting FamilyAction = "update_existing"
	ActionSkip           FamilyAction = "skip"
)

// FamilyMemberCandidate is a family member found during extraction.
// Verified is set by the second-pass verifier; Match and Action are set
// only by reconciliation.
type FamilyMemberCandidate struct {
	Relationship Relationship              `json:"relationship"`
	Fields       map[string]ExtractedField `json:"fields"`
	Verified     bool                      `json:"verified"`
	Match        *MatchResult              `json:"match,omitempty"`
	Action       FamilyAction              `json:"action,omitempty"`
}

// FieldValue returns the value of a named field, or "" if absent.
func (fm *FamilyMemberCandidate) FieldValue(name string) string {
	return fm.Fields[name].Value
}

// DisplayName builds "First Last" from the candidate's name fields.
func (fm *FamilyMemberCandidate) DisplayName() string {
	first := fm.FieldValue("first_name")
	last := fm.FieldValue("last_name")
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}

// HistoryCategory classifies a history record.
type HistoryCategory string

const (
	HistoryAddress    HistoryCategory = "address"
	HistoryEmployment HistoryCategory = "employment"
	HistoryEducation  HistoryCategory = "education"
	HistoryTravel     HistoryCategory = "travel"
	HistoryCriminal   HistoryCategory = "criminal"
)

// PresentDate is the sentinel to-date for an ongoing history record.
const PresentDate = "present"

// HistoryRecord is one dated entry in a history category. Records are
// immutable once extracted; reconciliation treats a category atomically.
type HistoryRecord struct {
	Category HistoryCategory   `json:"category"`
	Fields   map[string]string `json:"fields"`
	FromDate string            `json:"from_date,omitempty"`
	ToDate   string            `json:"to_date,omitempty"`
}

// Current reports whether the record is ongoing.
func (h HistoryRecord) Current() bool {
	return h.ToDate == PresentDate || h.ToDate == ""
}

// ExtractionResult holds everything extracted from one document. It is
// created once per document and mutated in place by the merge, critique,
// and re-extraction steps until the orchestrator finalizes it.
type ExtractionResult struct {
	DocumentType  string                              `json:"document_type"`
	Fields        map[string]ExtractedField           `json:"fields"`
	FamilyMembers []FamilyMemberCandidate             `json:"family_members,omitempty"`
	History       map[HistoryCategory][]HistoryRecord `json:"history,omitempty"`
}

// NewExtractionResult creates an empty result for a document type.
func NewExtractionResult(docType string) *ExtractionResult {
	return &ExtractionResult{
		DocumentType: docType,
		Fields:       make(map[string]ExtractedField),
		History:      make(map[HistoryCategory][]HistoryRecord),
	}
}

// SetField stores a field, forcing the map key and field name to agree.
func (r *ExtractionResult) SetField(f ExtractedField) {
	if r.Fields == nil {
		r.Fields = make(map[string]ExtractedField)
	}
	r.Fields[f.Name] = f
}

// Field returns the named field and whether it exists.
func (r *ExtractionResult) Field(name string) (ExtractedField, bool) {
	f, ok := r.Fields[name]
	return f, ok
}

// FieldValue returns the value of a named field, or "" if absent or empty.
func (r *ExtractionResult) FieldValue(name string) string {
	return r.Fields[name].Value
}

// OverallConfidence aggregates per-field confidence into a document score.
// It is always derived from the current field set, never cached, so a
// targeted re-extraction of a single field moves the aggregate.
func (r *ExtractionResult) OverallConfidence() float64 {
	if len(r.Fields) == 0 {
		return 0
	}
	var sum float64
	for _, f := range r.Fields {
		sum += f.Confidence
	}
	return sum / float64(len(r.Fields))
}

// LowConfidenceFields returns fields below the threshold, lowest first.
func (r *ExtractionResult) LowConfidenceFields(threshold float64) []ExtractedField {
	var low []ExtractedField
	for _, f := range r.Fields {
		if f.Confidence < threshold {
			low = append(low, f)
		}
	}
	// Insertion sort; field counts are small. Name breaks confidence ties
	// so map iteration order never leaks into the output.
	for i := 1; i < len(low); i++ {
		for j := i; j > 0 && less(low[j], low[j-1]); j-- {
			low[j], low[j-1] = low[j-1], low[j]
		}
	}
	return low
}

func less(a, b ExtractedField) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence < b.Confidence
	}
	return a.Name < b.Name
}

// PruneUnverified removes family member candidates that failed
// verification. Pruned candidates are gone entirely, not marked skip.
func (r *ExtractionResult) PruneUnverified() int {
	kept := r.FamilyMembers[:0]
	removed := 0
	for _, fm := range r.FamilyMembers {
		if fm.Verified {
			kept = append(kept, fm)
		} else {
			removed++
		}
	}
	r.FamilyMembers = kept
	return removed
}
