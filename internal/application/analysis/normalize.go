package analysis

import (
	"math"
	"strings"

	domain "github.com/aurahealth/screening-core/internal/domain/analysis"
	"github.com/aurahealth/screening-core/internal/domain/inference"
)

// riskLevelMap folds the qualitative labels different backends emit onto the
// fixed ordinal scale. Unknown labels fall back to the score thresholds below.
var riskLevelMap = map[string]domain.RiskLevel{
	"minimal":  domain.RiskLow,
	"mild":     domain.RiskLow,
	"low":      domain.RiskLow,
	"moderate": domain.RiskMedium,
	"medium":   domain.RiskMedium,
	"high":     domain.RiskHigh,
	"severe":   domain.RiskCritical,
	"advanced": domain.RiskCritical,
	"critical": domain.RiskCritical,
}

// Normalized is the canonical shape written into an analysis record.
type Normalized struct {
	RiskLevel       domain.RiskLevel
	RiskScore       float64 // 0-100
	Confidence      float64 // 0-100
	Recommendations string
}

// Normalize maps a raw inference result onto the canonical schema: 0-1 scores
// are rescaled to 0-100, labels are folded onto the ordinal scale, and the
// recommendation list is flattened into a single ordered text block.
func Normalize(res *inference.Result) Normalized {
	var n Normalized

	if res.RiskScore != nil {
		n.RiskScore = scaleScore(*res.RiskScore)
	}
	if res.Confidence != nil {
		n.Confidence = scaleScore(*res.Confidence)
	}

	if lvl, ok := riskLevelMap[strings.ToLower(strings.TrimSpace(res.RiskLevel))]; ok {
		n.RiskLevel = lvl
	} else {
		n.RiskLevel = levelFromScore(n.RiskScore)
	}

	n.Recommendations = strings.Join(res.Recommendations, "\n")
	return n
}

// scaleScore rescales fractions to the 0-100 range and clamps the rest.
func scaleScore(v float64) float64 {
	if v <= 1.0 {
		v *= 100
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	// Two decimals are enough; avoids 0.87*100 != 87 float noise.
	return math.Round(v*100) / 100
}

func levelFromScore(score float64) domain.RiskLevel {
	switch {
	case score >= 85:
		return domain.RiskCritical
	case score >= 60:
		return domain.RiskHigh
	case score >= 35:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
