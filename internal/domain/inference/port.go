package inference

import "context"

// Client port over the external inference endpoint
type Client interface {
	Analyze(ctx context.Context, imageURL string, modality string) (*Result, error)
}
