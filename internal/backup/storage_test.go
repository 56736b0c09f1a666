package backup

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serverbackup/internal/config"
)

func TestCreateObjectStoreS3(t *testing.T) {
	factory := NewObjectStoreFactory()
	store, err := factory.CreateObjectStore(context.Background(), &config.StorageConfig{
		Provider: config.StorageProviderS3,
		S3: &config.S3Config{
			Bucket:    "backups",
			Region:    "us-east-1",
			AccessKey: "AKIAEXAMPLE",
			SecretKey: "secret",
		},
	})

	require.NoError(t, err)
	assert.Equal(t, config.StorageProviderS3, store.Provider())
}

func TestCreateObjectStoreAzure(t *testing.T) {
	factory := NewObjectStoreFactory()
	store, err := factory.CreateObjectStore(context.Background(), &config.StorageConfig{
		Provider: config.StorageProviderAzure,
		Azure: &config.AzureConfig{
			AccountName:   "backupaccount",
			AccountKey:    base64.StdEncoding.EncodeToString([]byte("account-key")),
			ContainerName: "backups",
		},
	})

	require.NoError(t, err)
	assert.Equal(t, config.StorageProviderAzure, store.Provider())
}

func TestCreateObjectStoreMissingProviderConfig(t *testing.T) {
	factory := NewObjectStoreFactory()

	tests := []struct {
		name string
		cfg  *config.StorageConfig
	}{
		{"nil storage config", nil},
		{"s3 without details", &config.StorageConfig{Provider: config.StorageProviderS3}},
		{"gcs without details", &config.StorageConfig{Provider: config.StorageProviderGCS}},
		{"azure without details", &config.StorageConfig{Provider: config.StorageProviderAzure}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.CreateObjectStore(context.Background(), tt.cfg)
			require.Error(t, err)
			errType, ok := ErrorType(err)
			require.True(t, ok)
			assert.Equal(t, BackupErrorTypeConfig, errType)
		})
	}
}

func TestCreateObjectStoreUnknownProvider(t *testing.T) {
	factory := NewObjectStoreFactory()
	_, err := factory.CreateObjectStore(context.Background(), &config.StorageConfig{Provider: "FTP"})

	require.Error(t, err)
	errType, ok := ErrorType(err)
	require.True(t, ok)
	assert.Equal(t, BackupErrorTypeConfig, errType)
}

func TestAzureStoreInvalidAccountKey(t *testing.T) {
	_, err := NewAzureObjectStore(&config.AzureConfig{
		AccountName:   "backupaccount",
		AccountKey:    "not base64!!",
		ContainerName: "backups",
	})
	require.Error(t, err)
}
