package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	analysis "github.com/aurahealth/screening-core/internal/domain/analysis"
)

const presignExpiry = 15 * time.Minute

// ImageStore resolves uploaded retinal images out of a MinIO bucket. Objects
// live under {clinic}/{imageID}; the capture modality rides on object user
// metadata.
type ImageStore struct {
	client     *minio.Client
	bucketName string
	region     string
}

// New buat koneksi MinIO
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*ImageStore, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &ImageStore{client: cli, bucketName: bucket, region: region}, nil
}

// Resolve implements analysis.ImageResolver. It verifies the object exists and
// hands back a short-lived presigned URL the model service can fetch directly.
func (s *ImageStore) Resolve(ctx context.Context, clinic string, imageID string) (analysis.ResolvedImage, error) {
	key := fmt.Sprintf("%s/%s", clinic, imageID)

	stat, err := s.client.StatObject(ctx, s.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && (resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket") {
			return analysis.ResolvedImage{}, analysis.ErrNotFound
		}
		return analysis.ResolvedImage{}, fmt.Errorf("stat image %s: %w", key, err)
	}

	modality := stat.UserMetadata["Modality"]
	if modality == "" {
		modality = "Fundus"
	}

	signed, err := s.client.PresignedGetObject(ctx, s.bucketName, key, presignExpiry, url.Values{})
	if err != nil {
		return analysis.ResolvedImage{}, fmt.Errorf("presign image %s: %w", key, err)
	}

	return analysis.ResolvedImage{URL: signed.String(), Modality: modality}, nil
}
