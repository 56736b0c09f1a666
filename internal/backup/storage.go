package backup

import (
	"context"

	"serverbackup/internal/config"
)

// ObjectStore abstracts the object storage backend used to upload final
// artifacts. One object is uploaded per successful run.
type ObjectStore interface {
	// Upload pushes the local artifact to the bucket under objectName
	Upload(ctx context.Context, localPath string, objectName string) error

	// Provider identifies the backend for logging and reporting
	Provider() config.StorageProviderType
}

// ObjectStoreFactory creates ObjectStore instances from configuration
type ObjectStoreFactory struct{}

// NewObjectStoreFactory creates a new ObjectStoreFactory
func NewObjectStoreFactory() *ObjectStoreFactory {
	return &ObjectStoreFactory{}
}

// CreateObjectStore builds the store for the configured provider
func (f *ObjectStoreFactory) CreateObjectStore(ctx context.Context, cfg *config.StorageConfig) (ObjectStore, error) {
	if cfg == nil {
		return nil, NewConfigError("storage configuration is required", nil)
	}

	switch cfg.Provider {
	case config.StorageProviderS3:
		return NewS3ObjectStore(cfg.S3)
	case config.StorageProviderGCS:
		return NewGCSObjectStore(ctx, cfg.GCS)
	case config.StorageProviderAzure:
		return NewAzureObjectStore(cfg.Azure)
	default:
		return nil, NewConfigError("unsupported storage provider", nil).
			WithContext("provider", string(cfg.Provider))
	}
}
