package backup

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"serverbackup/internal/config"
)

// GCSObjectStore implements ObjectStore for Google Cloud Storage
type GCSObjectStore struct {
	client *storage.Client
	bucket string
}

// NewGCSObjectStore creates a new GCSObjectStore instance
func NewGCSObjectStore(ctx context.Context, cfg *config.GCSConfig) (*GCSObjectStore, error) {
	if cfg == nil {
		return nil, NewConfigError("GCS storage configuration is required", nil)
	}

	var client *storage.Client
	var err error

	if cfg.CredentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(cfg.CredentialsPath))
	} else {
		// Use default credentials (environment or metadata server)
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, NewUploadError("failed to create GCS client", err)
	}

	return &GCSObjectStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Upload pushes the artifact to GCS
func (g *GCSObjectStore) Upload(ctx context.Context, localPath string, objectName string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return NewUploadError("failed to open artifact for upload", err).WithContext("path", localPath)
	}
	defer file.Close()

	writer := g.client.Bucket(g.bucket).Object(objectName).NewWriter(ctx)
	writer.ContentType = "application/octet-stream"

	if _, err := io.Copy(writer, file); err != nil {
		writer.Close()
		return NewUploadError(
			fmt.Sprintf("failed to upload artifact to gs://%s/%s", g.bucket, objectName),
			err,
		).WithContext("bucket", g.bucket).WithContext("object", objectName)
	}

	if err := writer.Close(); err != nil {
		return NewUploadError(
			fmt.Sprintf("failed to finalize upload to gs://%s/%s", g.bucket, objectName),
			err,
		).WithContext("bucket", g.bucket).WithContext("object", objectName)
	}

	return nil
}

// Provider identifies this store as GCS
func (g *GCSObjectStore) Provider() config.StorageProviderType {
	return config.StorageProviderGCS
}
