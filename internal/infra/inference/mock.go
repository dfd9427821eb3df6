package inference

import (
	"context"
	"net/url"
	"path"

	domain "github.com/aurahealth/screening-core/internal/domain/inference"
)

// MockClient serves deterministic synthetic results without any backend.
// Used when no inference endpoint is configured (local development, demos).
type MockClient struct{}

func (MockClient) Analyze(_ context.Context, imageURL, modality string) (*domain.Result, error) {
	return domain.DeterministicMock(stableRef(imageURL), modality), nil
}

// stableRef strips query parameters so presigned URLs of the same object keep
// producing the same synthetic result.
func stableRef(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return imageURL
	}
	return path.Base(u.Path)
}
