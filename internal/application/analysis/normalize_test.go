package analysis

import (
	"testing"

	domain "github.com/aurahealth/screening-core/internal/domain/analysis"
	"github.com/aurahealth/screening-core/internal/domain/inference"
)

func f(v float64) *float64 { return &v }

func TestNormalizeRescalesFractions(t *testing.T) {
	n := Normalize(&inference.Result{
		RiskLevel:  "Moderate",
		RiskScore:  f(0.87),
		Confidence: f(0.92),
	})

	if n.RiskScore != 87 {
		t.Fatalf("risk score = %v, want 87", n.RiskScore)
	}
	if n.Confidence != 92 {
		t.Fatalf("confidence = %v, want 92", n.Confidence)
	}
	if n.RiskLevel != domain.RiskMedium {
		t.Fatalf("risk level = %v, want %v", n.RiskLevel, domain.RiskMedium)
	}
}

func TestNormalizeKeepsPercentScale(t *testing.T) {
	n := Normalize(&inference.Result{RiskScore: f(42.5)})
	if n.RiskScore != 42.5 {
		t.Fatalf("risk score = %v, want 42.5", n.RiskScore)
	}
}

func TestNormalizeLabelFolding(t *testing.T) {
	cases := map[string]domain.RiskLevel{
		"minimal":  domain.RiskLow,
		"Mild":     domain.RiskLow,
		"moderate": domain.RiskMedium,
		"MEDIUM":   domain.RiskMedium,
		"high":     domain.RiskHigh,
		"Severe":   domain.RiskCritical,
		"advanced": domain.RiskCritical,
		"critical": domain.RiskCritical,
	}
	for label, want := range cases {
		n := Normalize(&inference.Result{RiskLevel: label})
		if n.RiskLevel != want {
			t.Errorf("label %q folded to %v, want %v", label, n.RiskLevel, want)
		}
	}
}

func TestNormalizeUnknownLabelUsesScore(t *testing.T) {
	cases := []struct {
		score float64
		want  domain.RiskLevel
	}{
		{0.10, domain.RiskLow},
		{0.40, domain.RiskMedium},
		{0.70, domain.RiskHigh},
		{0.90, domain.RiskCritical},
	}
	for _, c := range cases {
		n := Normalize(&inference.Result{RiskLevel: "stage-3", RiskScore: f(c.score)})
		if n.RiskLevel != c.want {
			t.Errorf("score %.2f mapped to %v, want %v", c.score, n.RiskLevel, c.want)
		}
	}
}

func TestNormalizeFlattensRecommendations(t *testing.T) {
	n := Normalize(&inference.Result{
		Recommendations: []string{"Refer to specialist", "Repeat imaging in 3 months"},
	})
	want := "Refer to specialist\nRepeat imaging in 3 months"
	if n.Recommendations != want {
		t.Fatalf("recommendations = %q, want %q", n.Recommendations, want)
	}
}

func TestNormalizeClampsOutOfRange(t *testing.T) {
	n := Normalize(&inference.Result{RiskScore: f(140.0), Confidence: f(-3.0)})
	if n.RiskScore != 100 {
		t.Fatalf("risk score = %v, want 100", n.RiskScore)
	}
	if n.Confidence != 0 {
		t.Fatalf("confidence = %v, want 0", n.Confidence)
	}
}
