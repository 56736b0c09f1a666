package backup

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"serverbackup/internal/config"
)

// S3ObjectStore implements ObjectStore for Amazon S3
type S3ObjectStore struct {
	client *s3.S3
	bucket string
}

// NewS3ObjectStore creates a new S3ObjectStore instance
func NewS3ObjectStore(cfg *config.S3Config) (*S3ObjectStore, error) {
	if cfg == nil {
		return nil, NewConfigError("S3 storage configuration is required", nil)
	}

	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	// With no static keys configured the SDK falls back to its default
	// credential chain (environment, shared config, instance profile).
	if cfg.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, NewUploadError("failed to create AWS session", err)
	}

	return &S3ObjectStore{
		client: s3.New(sess),
		bucket: cfg.Bucket,
	}, nil
}

// Upload pushes the artifact to S3
func (s *S3ObjectStore) Upload(ctx context.Context, localPath string, objectName string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return NewUploadError("failed to open artifact for upload", err).WithContext("path", localPath)
	}
	defer file.Close()

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectName),
		Body:        file,
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return NewUploadError(
			fmt.Sprintf("failed to upload artifact to s3://%s/%s", s.bucket, objectName),
			err,
		).WithContext("bucket", s.bucket).WithContext("object", objectName)
	}

	return nil
}

// Provider identifies this store as S3
func (s *S3ObjectStore) Provider() config.StorageProviderType {
	return config.StorageProviderS3
}
