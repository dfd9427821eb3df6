package ai

import "time"

// SummaryID identifier type
type SummaryID string

// Summary is a generated narrative stored for auditing and retrieval
type Summary struct {
	ID         SummaryID `json:"id"`
	ClinicID   string    `json:"clinic_id"`
	AnalysisID string    `json:"analysis_id"`
	Narrative  string    `json:"narrative"`
	Model      string    `json:"model,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
