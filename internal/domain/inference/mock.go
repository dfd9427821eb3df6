package inference

import (
	"hash/fnv"
	"math/rand"
)

// octClasses mirrors the class order of the OCT retinal classifier.
var octClasses = []string{"CNV", "DME", "DRUSEN", "NORMAL"}

// baseProbs are the resting class probabilities of the backend's own mock
// predictor; the seeded noise below perturbs them per image.
var baseProbs = [4]float64{0.10, 0.10, 0.15, 0.65}

type mockCondition struct {
	label           string
	finding         Finding
	recommendations []string
	systemic        map[string]float64
}

var mockConditions = map[string]mockCondition{
	"CNV": {
		label: "High",
		finding: Finding{
			Type:        "Choroidal Neovascularization",
			Severity:    "Severe",
			Location:    "Macular region",
			Description: "Abnormal blood vessel growth beneath the retina",
		},
		recommendations: []string{
			"Refer to a retina specialist as soon as possible",
			"Consider anti-VEGF therapy evaluation",
		},
		systemic: map[string]float64{"cardiovascular": 0.3, "hypertension": 0.4, "stroke": 0.3},
	},
	"DME": {
		label: "High",
		finding: Finding{
			Type:        "Diabetic Macular Edema",
			Severity:    "Moderate",
			Location:    "Macular region",
			Description: "Fluid accumulation in the macula due to diabetes",
		},
		recommendations: []string{
			"Refer to a retina specialist for detailed evaluation",
			"Optimize glycemic control and cardiovascular risk factors",
		},
		systemic: map[string]float64{"cardiovascular": 0.4, "diabetes": 0.8, "stroke": 0.5},
	},
	"DRUSEN": {
		label: "Moderate",
		finding: Finding{
			Type:        "Drusen",
			Severity:    "Mild",
			Location:    "Temporal region",
			Description: "Yellow deposits under the retina, early sign of AMD",
		},
		recommendations: []string{
			"Schedule a follow-up examination within 6 months",
			"Consider AREDS2-equivalent supplementation if appropriate",
		},
		systemic: map[string]float64{"cardiovascular": 0.2, "hypertension": 0.3},
	},
	"NORMAL": {
		label: "Minimal",
		finding: Finding{
			Type:        "Normal Retina",
			Severity:    "Healthy",
			Description: "No significant abnormalities detected",
		},
		recommendations: []string{
			"No significant retinal abnormalities detected",
			"Routine re-screening recommended in 12 months",
		},
	},
}

// DeterministicMock is a pure function of its inputs: the same imageRef and
// modality always produce bit-identical output. Used as the fallback when the
// real backend is unavailable, and for stable tests and demos.
func DeterministicMock(imageRef, modality string) *Result {
	h := fnv.New64a()
	h.Write([]byte(imageRef))
	h.Write([]byte{0})
	h.Write([]byte(modality))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	// Perturb the resting probabilities, then renormalize.
	var probs [4]float64
	sum := 0.0
	for i := range baseProbs {
		p := baseProbs[i] + rng.Float64()*0.6 - 0.3
		if p < 0.01 {
			p = 0.01
		}
		probs[i] = p
		sum += p
	}
	best := 0
	for i := range probs {
		probs[i] /= sum
		if probs[i] > probs[best] {
			best = i
		}
	}

	class := octClasses[best]
	cond := mockConditions[class]
	confidence := probs[best]

	// Risk score: distance from a normal read, on the backend's 0-1 scale.
	riskScore := 1.0 - probs[3]
	if class == "NORMAL" {
		riskScore = 1.0 - confidence
	}

	sub := make(map[string]float64, len(cond.systemic))
	for name, factor := range cond.systemic {
		sub[name] = clamp01(probs[best] * factor)
	}

	score := riskScore
	conf := confidence
	return &Result{
		RiskLevel:       cond.label,
		RiskScore:       &score,
		Confidence:      &conf,
		PredictedClass:  class,
		Findings:        []Finding{cond.finding},
		SubScores:       sub,
		Recommendations: append([]string(nil), cond.recommendations...),
		ModelVersion:    "mock-v1.0.0",
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
