package analysis

import "context"

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, clinic string, id AnalysisID) (*Record, error)
	// FindActive returns the processing/completed record for (clinic, image),
	// or nil when none exists. This backs the idempotent dedup check.
	FindActive(ctx context.Context, clinic string, imageID string) (*Record, error)
	Latest(ctx context.Context, clinic string, limit int) ([]*Record, error)
}

// ResolvedImage is what the image repository hands back for one image id.
type ResolvedImage struct {
	URL      string
	Modality string // Fundus | OCT
}

// ImageResolver port, ownership-checked lookup of an uploaded image
type ImageResolver interface {
	Resolve(ctx context.Context, clinic string, imageID string) (ResolvedImage, error)
}

// AlertNotifier port for the fire-and-forget high-risk side effect
type AlertNotifier interface {
	Notify(ctx context.Context, rec *Record) error
}
