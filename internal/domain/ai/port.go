package ai

import "context"

// Client generates a clinician-facing narrative from a normalized result payload.
type Client interface {
	Summarize(ctx context.Context, resultJSON string) (string, error)
}

// Repository port for persisting and querying generated summaries
type Repository interface {
	Save(ctx context.Context, s *Summary) error
	LatestByAnalysis(ctx context.Context, clinic string, analysisID string) (*Summary, error)
	Paginate(ctx context.Context, clinic string, page, pageSize int) ([]*Summary, error)
}
