package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/aurahealth/screening-core/internal/application"
	domain "github.com/aurahealth/screening-core/internal/domain/analysis"
	"github.com/aurahealth/screening-core/internal/domain/credits"
	"github.com/aurahealth/screening-core/internal/domain/inference"
)

// Mode decides what happens when the inference backend fails.
type Mode string

const (
	// ModeFallback substitutes a deterministic synthetic result.
	ModeFallback Mode = "fallback"
	// ModeStrict propagates the classified transport error.
	ModeStrict Mode = "strict"
)

// alertThreshold: records at or above this level trigger the async alert.
const alertThreshold = domain.RiskHigh

// Service implements the per-image analysis pipeline:
// dedup → credit deduction → inference → normalization → persistence → alert.
// Service is designed to be used concurrently and is thread-safe.
type Service struct {
	Repo      domain.Repository
	Images    domain.ImageResolver
	Ledger    credits.Ledger
	Inference inference.Client
	Alerts    domain.AlertNotifier
	Clock     application.Clock
	Mode      Mode
	Timeout   time.Duration
}

// StartAnalysis runs one image through the pipeline. A record already in
// processing or completed for the same (clinic, image) is returned unchanged:
// no duplicate work, no double charge.
func (s *Service) StartAnalysis(ctx context.Context, clinic, imageID string) (*domain.Record, error) {
	img, err := s.Images.Resolve(ctx, clinic, imageID)
	if err != nil {
		return nil, err
	}

	// Idempotency check sebelum charge
	existing, err := s.Repo.FindActive(ctx, clinic, imageID)
	if err != nil {
		return nil, fmt.Errorf("dedup check: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	// Reserve the credit before any inference work. Not refunded on downstream
	// failure; observed billing behavior, kept as-is.
	ok, err := s.Ledger.CheckAndDeduct(ctx, clinic, 1)
	if err != nil {
		return nil, fmt.Errorf("credit deduction: %w", err)
	}
	if !ok {
		return nil, credits.ErrInsufficientCredits
	}

	rec := &domain.Record{
		ID:        domain.AnalysisID(uuid.New().String()),
		ClinicID:  clinic,
		ImageID:   imageID,
		Status:    domain.StatusProcessing,
		StartedAt: s.Clock.Now(),
	}
	if err := s.Repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("create analysis record: %w", err)
	}

	res, err := s.callInference(ctx, imageID, img)
	if err != nil {
		s.markFailed(rec, err)
		return nil, err
	}

	norm := Normalize(res)
	rec.RiskLevel = norm.RiskLevel
	rec.RiskScore = norm.RiskScore
	rec.Confidence = norm.Confidence
	rec.Recommendations = norm.Recommendations
	rec.RawResult = rawJSON(res)
	rec.Status = domain.StatusCompleted
	done := s.Clock.Now()
	rec.CompletedAt = &done

	// A persistence failure here must not retroactively fail the call: the
	// clinic has already been charged for a finished inference. Log loudly.
	if err := s.Repo.Save(ctx, rec); err != nil {
		log.Printf("ERROR failed to persist completed analysis clinic=%s analysis=%s image=%s: %v",
			clinic, rec.ID, imageID, err)
	}

	s.dispatchAlert(rec)
	return rec, nil
}

// ImageOutcome reports one image's result inside StartMultiple.
type ImageOutcome struct {
	ImageID string         `json:"image_id"`
	Record  *domain.Record `json:"record,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// StartMultiple invokes StartAnalysis per id. Each failure is captured
// individually; a partial failure never fails the call itself.
func (s *Service) StartMultiple(ctx context.Context, clinic string, imageIDs []string) []ImageOutcome {
	out := make([]ImageOutcome, 0, len(imageIDs))
	for _, id := range imageIDs {
		rec, err := s.StartAnalysis(ctx, clinic, id)
		o := ImageOutcome{ImageID: id, Record: rec}
		if err != nil {
			o.Error = err.Error()
		}
		out = append(out, o)
	}
	return out
}

// Get returns one analysis record, ownership-checked.
func (s *Service) Get(ctx context.Context, clinic string, id domain.AnalysisID) (*domain.Record, error) {
	return s.Repo.Get(ctx, clinic, id)
}

// Latest returns the clinic's most recent records.
func (s *Service) Latest(ctx context.Context, clinic string, limit int) ([]*domain.Record, error) {
	return s.Repo.Latest(ctx, clinic, limit)
}

// callInference runs the gateway call under the configured timeout. In
// fallback mode a transport failure is absorbed by the deterministic mock;
// strict mode propagates the classified error.
func (s *Service) callInference(ctx context.Context, imageID string, img domain.ResolvedImage) (*inference.Result, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := s.Inference.Analyze(cctx, img.URL, img.Modality)
	if err == nil {
		return res, nil
	}
	if s.Mode != ModeStrict && inference.IsTransport(err) {
		log.Printf("inference fallback image=%s modality=%s: %v", imageID, img.Modality, err)
		// Seeded by the stable image id, not the (signed, changing) URL.
		return inference.DeterministicMock(imageID, img.Modality), nil
	}
	return nil, err
}

// markFailed keeps the record instead of discarding it so job counters and
// credit accounting stay consistent with what actually happened.
func (s *Service) markFailed(rec *domain.Record, cause error) {
	rec.Status = domain.StatusFailed
	rec.ErrorMessage = cause.Error()
	done := s.Clock.Now()
	rec.CompletedAt = &done
	if err := s.Repo.Save(context.Background(), rec); err != nil {
		log.Printf("ERROR failed to persist failed analysis clinic=%s analysis=%s: %v", rec.ClinicID, rec.ID, err)
	}
}

// dispatchAlert fires the best-effort high-risk side effect. It must never
// fail or block the caller, so it runs detached with its own deadline.
func (s *Service) dispatchAlert(rec *domain.Record) {
	if s.Alerts == nil || !rec.RiskLevel.AtLeast(alertThreshold) {
		return
	}
	snapshot := *rec
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Alerts.Notify(ctx, &snapshot); err != nil {
			log.Printf("high-risk alert dispatch failed analysis=%s: %v", snapshot.ID, err)
		}
	}()
}

func rawJSON(res *inference.Result) string {
	if len(res.Raw) > 0 {
		return string(res.Raw)
	}
	b, err := json.Marshal(res)
	if err != nil {
		return "{}"
	}
	return string(b)
}
