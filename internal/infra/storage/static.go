package storage

import (
	"context"
	"fmt"
	"strings"

	analysis "github.com/aurahealth/screening-core/internal/domain/analysis"
)

// StaticResolver maps image IDs onto a fixed base URL. Used when images are
// served by an external CDN or in development without object storage.
type StaticResolver struct {
	BaseURL  string
	Modality string
}

func (r *StaticResolver) Resolve(ctx context.Context, clinic string, imageID string) (analysis.ResolvedImage, error) {
	modality := r.Modality
	if modality == "" {
		modality = "Fundus"
	}
	base := strings.TrimRight(r.BaseURL, "/")
	return analysis.ResolvedImage{
		URL:      fmt.Sprintf("%s/%s/%s", base, clinic, imageID),
		Modality: modality,
	}, nil
}
