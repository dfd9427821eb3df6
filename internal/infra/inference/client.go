package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	domain "github.com/aurahealth/screening-core/internal/domain/inference"
)

// Client calls the AI-core analyze endpoint over HTTP. Transport failures come
// back as the classified sentinels in the inference domain so callers can
// branch on what happened.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "inference",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: cb,
	}
}

// analyzeRequest matches the AI-core /api/analyze body.
type analyzeRequest struct {
	ImageURL  string `json:"image_url"`
	ImageType string `json:"image_type"`
}

// wireResponse absorbs the field-name variance between backend versions; the
// flat fields and the nested risk_assessment shape both occur in the wild.
type wireResponse struct {
	AnalysisID      string        `json:"analysis_id"`
	RiskLevel       string        `json:"risk_level"`
	RiskScore       *float64      `json:"risk_score"`
	Confidence      *float64      `json:"confidence"`
	PredictedClass  string        `json:"predicted_class"`
	Findings        []wireFinding `json:"findings"`
	Recommendations []string      `json:"recommendations"`
	ModelVersion    string        `json:"model_version"`
	RiskAssessment  *struct {
		RiskLevel string   `json:"risk_level"`
		RiskScore *float64 `json:"risk_score"`
	} `json:"risk_assessment"`
	SystemicRisks map[string]struct {
		RiskScore *float64 `json:"risk_score"`
	} `json:"systemic_health_risks"`
}

type wireFinding struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

func (c *Client) Analyze(ctx context.Context, imageURL, modality string) (*domain.Result, error) {
	body, err := json.Marshal(analyzeRequest{ImageURL: imageURL, ImageType: modality})
	if err != nil {
		return nil, err
	}

	out, err := c.breaker.Execute(func() (any, error) {
		return c.doAnalyze(ctx, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", domain.ErrUnreachable)
		}
		return nil, err
	}
	return out.(*domain.Result), nil
}

func (c *Client) doAnalyze(ctx context.Context, body []byte) (*domain.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timeout: %w", domain.ErrUnreachable, context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", domain.ErrUnreachable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", domain.ErrImageNotFound, strings.TrimSpace(string(raw)))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", domain.ErrUnreachable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrMalformedResponse, resp.StatusCode)
	}

	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	res := wire.toResult()
	if res.RiskLevel == "" && res.RiskScore == nil {
		return nil, fmt.Errorf("%w: no risk fields in response", domain.ErrMalformedResponse)
	}
	res.Raw = json.RawMessage(raw)
	return res, nil
}

func (w *wireResponse) toResult() *domain.Result {
	res := &domain.Result{
		RiskLevel:       w.RiskLevel,
		RiskScore:       w.RiskScore,
		Confidence:      w.Confidence,
		PredictedClass:  w.PredictedClass,
		Recommendations: w.Recommendations,
		ModelVersion:    w.ModelVersion,
	}
	// Nested assessment wins only where the flat fields are absent.
	if w.RiskAssessment != nil {
		if res.RiskLevel == "" {
			res.RiskLevel = w.RiskAssessment.RiskLevel
		}
		if res.RiskScore == nil {
			res.RiskScore = w.RiskAssessment.RiskScore
		}
	}
	for _, f := range w.Findings {
		res.Findings = append(res.Findings, domain.Finding{
			Type:        f.Type,
			Severity:    f.Severity,
			Location:    f.Location,
			Description: f.Description,
		})
	}
	if len(w.SystemicRisks) > 0 {
		res.SubScores = make(map[string]float64, len(w.SystemicRisks))
		for name, r := range w.SystemicRisks {
			if r.RiskScore != nil {
				res.SubScores[name] = *r.RiskScore
			}
		}
	}
	return res
}
