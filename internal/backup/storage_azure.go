package backup

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"serverbackup/internal/config"
)

// AzureObjectStore implements ObjectStore for Azure Blob Storage
type AzureObjectStore struct {
	serviceURL    azblob.ServiceURL
	containerName string
}

// NewAzureObjectStore creates a new AzureObjectStore instance
func NewAzureObjectStore(cfg *config.AzureConfig) (*AzureObjectStore, error) {
	if cfg == nil {
		return nil, NewConfigError("Azure storage configuration is required", nil)
	}

	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, NewUploadError("failed to create Azure credentials", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName))
	if err != nil {
		return nil, NewUploadError("failed to parse Azure service URL", err)
	}

	return &AzureObjectStore{
		serviceURL:    azblob.NewServiceURL(*serviceURL, pipeline),
		containerName: cfg.ContainerName,
	}, nil
}

// Upload pushes the artifact to Azure Blob Storage
func (a *AzureObjectStore) Upload(ctx context.Context, localPath string, objectName string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return NewUploadError("failed to open artifact for upload", err).WithContext("path", localPath)
	}
	defer file.Close()

	blobURL := a.serviceURL.NewContainerURL(a.containerName).NewBlockBlobURL(objectName)

	_, err = azblob.UploadFileToBlockBlob(ctx, file, blobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 16,
	})
	if err != nil {
		return NewUploadError(
			fmt.Sprintf("failed to upload artifact to azure://%s/%s", a.containerName, objectName),
			err,
		).WithContext("container", a.containerName).WithContext("object", objectName)
	}

	return nil
}

// Provider identifies this store as Azure Blob Storage
func (a *AzureObjectStore) Provider() config.StorageProviderType {
	return config.StorageProviderAzure
}
