package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aurahealth/screening-core/internal/domain/ai"
	analysisdomain "github.com/aurahealth/screening-core/internal/domain/analysis"
)

// Service generates and stores narrative summaries for completed analyses.
type Service struct {
	client ai.Client
	repo   ai.Repository
	model  string
}

func NewService(client ai.Client, repo ai.Repository, model string) *Service {
	return &Service{client: client, repo: repo, model: model}
}

// SummarizeAndStore produces a narrative for a completed analysis record and
// persists it. An existing summary for the same analysis is returned as-is.
func (s *Service) SummarizeAndStore(ctx context.Context, rec *analysisdomain.Record) (*ai.Summary, error) {
	if rec.Status != analysisdomain.StatusCompleted {
		return nil, fmt.Errorf("analysis %s is not completed", rec.ID)
	}

	if existing, err := s.repo.LatestByAnalysis(ctx, rec.ClinicID, string(rec.ID)); err == nil && existing != nil {
		return existing, nil
	}

	narrative, err := s.client.Summarize(ctx, rec.RawResult)
	if err != nil {
		return nil, err
	}

	sum := &ai.Summary{
		ID:         ai.SummaryID(uuid.New().String()),
		ClinicID:   rec.ClinicID,
		AnalysisID: string(rec.ID),
		Narrative:  narrative,
		Model:      s.model,
		CreatedAt:  time.Now(),
	}
	if err := s.repo.Save(ctx, sum); err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}
	return sum, nil
}

// ListSummaries pages through a clinic's stored summaries.
func (s *Service) ListSummaries(ctx context.Context, clinic string, page, pageSize int) ([]*ai.Summary, error) {
	return s.repo.Paginate(ctx, clinic, page, pageSize)
}
