package inference

import "encoding/json"

// Result is the typed shape of one inference response. The upstream schema is
// not ours, so every field the backend may omit is explicitly optional here
// instead of being probed out of a string-keyed map downstream.
type Result struct {
	RiskLevel       string             `json:"risk_level,omitempty"` // upstream label, not yet folded
	RiskScore       *float64           `json:"risk_score,omitempty"` // 0-1 or 0-100 depending on backend
	Confidence      *float64           `json:"confidence,omitempty"`
	PredictedClass  string             `json:"predicted_class,omitempty"` // CNV | DME | DRUSEN | NORMAL
	Findings        []Finding          `json:"findings,omitempty"`
	SubScores       map[string]float64 `json:"sub_scores,omitempty"` // systemic risk scores keyed by risk name
	Recommendations []string           `json:"recommendations,omitempty"`
	ModelVersion    string             `json:"model_version,omitempty"`
	Raw             json.RawMessage    `json:"-"` // response body as received
}

// Finding is a single localized observation in the image.
type Finding struct {
	Type        string `json:"type"`
	Severity    string `json:"severity,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}
