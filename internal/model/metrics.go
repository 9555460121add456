package model

// ExtractionMetrics tracks quality and cost across a refinement run.
type ExtractionMetrics struct {
	RunID                      string   `json:"run_id,omitempty"`
	Iterations                 int      `json:"iterations"`
	TotalBackendCalls          int      `json:"total_backend_calls"`
	StrategiesUsed             []string `json:"strategies_used"`
	CritiqueCorrections        int      `json:"critique_corrections"`
	ValidationErrorsInitial    int      `json:"validation_errors_initial"`
	ValidationErrorsFinal      int      `json:"validation_errors_final"`
	LowConfidenceFieldsInitial int      `json:"low_confidence_fields_initial"`
	LowConfidenceFieldsFinal   int      `json:"low_confidence_fields_final"`
	FamilyMembersVerified      int      `json:"family_members_verified"`
}
