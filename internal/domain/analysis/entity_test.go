package analysis

import "testing"

func TestRiskLevelOrdering(t *testing.T) {
	if !RiskCritical.AtLeast(RiskHigh) {
		t.Error("Critical should be at least High")
	}
	if !RiskHigh.AtLeast(RiskHigh) {
		t.Error("High should be at least High")
	}
	if RiskMedium.AtLeast(RiskHigh) {
		t.Error("Medium should not be at least High")
	}
	if RiskLevel("Bogus").AtLeast(RiskLow) {
		t.Error("unknown level should never pass a threshold")
	}
}
