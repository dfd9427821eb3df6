package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	analysis "github.com/aurahealth/screening-core/internal/domain/analysis"
)

// WebhookNotifier posts high-risk findings to the clinic's configured webhook.
// Delivery is best effort; the orchestrator fires it off the request path.
type WebhookNotifier struct {
	url  string
	http *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:  url,
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

type alertPayload struct {
	ClinicID   string  `json:"clinic_id"`
	AnalysisID string  `json:"analysis_id"`
	ImageID    string  `json:"image_id"`
	RiskLevel  string  `json:"risk_level"`
	RiskScore  float64 `json:"risk_score"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, rec *analysis.Record) error {
	body, err := json.Marshal(alertPayload{
		ClinicID:   rec.ClinicID,
		AnalysisID: string(rec.ID),
		ImageID:    rec.ImageID,
		RiskLevel:  string(rec.RiskLevel),
		RiskScore:  rec.RiskScore,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("post alert webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}
	return nil
}
