package inference

import (
	"encoding/json"
	"testing"
)

func TestDeterministicMockStable(t *testing.T) {
	a := DeterministicMock("img-1", "Fundus")
	b := DeterministicMock("img-1", "Fundus")

	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	if string(aj) != string(bj) {
		t.Fatalf("same input produced different results:\n%s\n%s", aj, bj)
	}
}

func TestDeterministicMockVariesByInput(t *testing.T) {
	base := DeterministicMock("img-1", "Fundus")

	// Across a set of distinct images at least one must differ from the
	// baseline; identical outputs for every image would mean the seed is
	// ignored.
	varied := false
	for _, id := range []string{"img-2", "img-3", "img-4", "img-5", "img-6"} {
		res := DeterministicMock(id, "Fundus")
		if res.PredictedClass != base.PredictedClass || *res.RiskScore != *base.RiskScore {
			varied = true
			break
		}
	}
	if !varied {
		t.Fatal("mock output does not vary with image ref")
	}
}

func TestDeterministicMockShape(t *testing.T) {
	res := DeterministicMock("img-1", "OCT")

	if res.RiskScore == nil || *res.RiskScore < 0 || *res.RiskScore > 1 {
		t.Fatalf("risk score out of range: %v", res.RiskScore)
	}
	if res.Confidence == nil || *res.Confidence < 0 || *res.Confidence > 1 {
		t.Fatalf("confidence out of range: %v", res.Confidence)
	}
	if res.PredictedClass == "" {
		t.Fatal("missing predicted class")
	}
	if len(res.Recommendations) == 0 {
		t.Fatal("missing recommendations")
	}
	if res.ModelVersion == "" {
		t.Fatal("missing model version")
	}
}
