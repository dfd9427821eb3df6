package analysis

import "time"

// AnalysisID identifier type
type AnalysisID string

// Status enum
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// RiskLevel is the canonical ordinal scale every upstream label is folded onto.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// riskRank ordinal position, Low < Medium < High < Critical
var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// Rank returns the ordinal position of the level (-1 when unknown).
func (l RiskLevel) Rank() int {
	if r, ok := riskRank[l]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether l is at or above other on the ordinal scale.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return l.Rank() >= other.Rank() && l.Rank() >= 0
}

// Aggregate Root: Record is one analysis of one image.
// At most one record per (clinic, image) may be processing or completed at a time.
type Record struct {
	ID              AnalysisID `json:"id"`
	ClinicID        string     `json:"clinic_id"`
	ImageID         string     `json:"image_id"`
	Status          Status     `json:"status"`
	RiskLevel       RiskLevel  `json:"risk_level,omitempty"`
	RiskScore       float64    `json:"risk_score"` // 0-100
	Confidence      float64    `json:"confidence"` // 0-100
	Recommendations string     `json:"recommendations,omitempty"`
	RawResult       string     `json:"raw_result,omitempty"` // JSON string from the gateway
	ErrorMessage    string     `json:"error_message,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}
