package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the complete server backup configuration. It is loaded once at
// process start and treated as immutable for the rest of the run.
type Config struct {
	Name        string               `json:"name" mapstructure:"name"`
	BackupRoot  string               `json:"backup_root" mapstructure:"backup_root"`
	Databases   []DatabaseCredential `json:"databases" mapstructure:"databases"`
	Directories []string             `json:"directories" mapstructure:"directories"`
	Storage     *StorageConfig       `json:"storage,omitempty" mapstructure:"storage"`
	Encryption  EncryptionConfig     `json:"encryption" mapstructure:"encryption"`
	Retention   RetentionConfig      `json:"retention" mapstructure:"retention"`
	Compression CompressionConfig    `json:"compression" mapstructure:"compression"`

	IncludeTimestampInFilename bool `json:"include_timestamp_in_filename" mapstructure:"include_timestamp_in_filename"`

	// KeepEncryptedAfterUpload keeps the encrypted artifact on local disk
	// after a successful upload instead of removing it.
	KeepEncryptedAfterUpload bool `json:"keep_encrypted_after_upload" mapstructure:"keep_encrypted_after_upload"`

	// LockFile, when set, is created exclusively at run start as a
	// defense-in-depth guard against overlapping invocations. Scheduler
	// non-overlap remains the documented precondition.
	LockFile string `json:"lock_file,omitempty" mapstructure:"lock_file"`
}

// DatabaseCredential identifies one database to dump
type DatabaseCredential struct {
	Name     string `json:"name" mapstructure:"name"`
	User     string `json:"user" mapstructure:"user"`
	Password string `json:"password" mapstructure:"password"`
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
}

// RetentionConfig defines the backup retention policy. MaxLocalCopies and
// MaxAgeDays are mutually exclusive; at most one drives keep/delete
// decisions. Partial slots are cleaned up on every sweep regardless.
type RetentionConfig struct {
	MaxLocalCopies int `json:"max_local_copies" mapstructure:"max_local_copies"`
	MaxAgeDays     int `json:"max_age_days" mapstructure:"max_age_days"`
}

// EncryptionConfig defines artifact encryption settings
type EncryptionConfig struct {
	Password string `json:"password,omitempty" mapstructure:"password"`
}

// Enabled reports whether artifact encryption is configured
func (ec *EncryptionConfig) Enabled() bool {
	return ec.Password != ""
}

// CompressionConfig defines archive compression settings
type CompressionConfig struct {
	Algorithm CompressionAlgorithm `json:"algorithm" mapstructure:"algorithm"`
	Level     int                  `json:"level" mapstructure:"level"`
}

// CompressionAlgorithm selects the archive compression codec
type CompressionAlgorithm string

const (
	CompressionGzip CompressionAlgorithm = "GZIP"
	CompressionZstd CompressionAlgorithm = "ZSTD"
	CompressionLZ4  CompressionAlgorithm = "LZ4"
)

// StorageConfig defines the object storage backend for artifact uploads
type StorageConfig struct {
	Provider StorageProviderType `json:"provider" mapstructure:"provider"`
	S3       *S3Config           `json:"s3,omitempty" mapstructure:"s3"`
	GCS      *GCSConfig          `json:"gcs,omitempty" mapstructure:"gcs"`
	Azure    *AzureConfig        `json:"azure,omitempty" mapstructure:"azure"`
}

// StorageProviderType identifies an object storage backend
type StorageProviderType string

const (
	StorageProviderS3    StorageProviderType = "S3"
	StorageProviderGCS   StorageProviderType = "GCS"
	StorageProviderAzure StorageProviderType = "AZURE"
)

// S3Config for Amazon S3 storage
type S3Config struct {
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	Region    string `json:"region" mapstructure:"region"`
	AccessKey string `json:"access_key" mapstructure:"access_key"`
	SecretKey string `json:"secret_key" mapstructure:"secret_key"`
}

// GCSConfig for Google Cloud Storage
type GCSConfig struct {
	Bucket          string `json:"bucket" mapstructure:"bucket"`
	CredentialsPath string `json:"credentials_path" mapstructure:"credentials_path"`
	ProjectID       string `json:"project_id" mapstructure:"project_id"`
}

// AzureConfig for Azure Blob Storage
type AzureConfig struct {
	AccountName   string `json:"account_name" mapstructure:"account_name"`
	AccountKey    string `json:"account_key" mapstructure:"account_key"`
	ContainerName string `json:"container_name" mapstructure:"container_name"`
}

// ValidationError represents a single configuration validation failure
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidationErrors represents a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%d validation errors: %s (and %d more)", len(e), e[0].Error(), len(e)-1)
}

// Add adds a validation error to the collection
func (e *ValidationErrors) Add(field, message string, value interface{}) {
	*e = append(*e, ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	})
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate validates the complete configuration
func (c *Config) Validate() error {
	var errors ValidationErrors

	if c.Name == "" {
		errors.Add("name", "backup name is required", nil)
	}

	if c.BackupRoot == "" {
		errors.Add("backup_root", "backup root directory is required", nil)
	}

	for i, db := range c.Databases {
		if db.Name == "" {
			errors.Add(fmt.Sprintf("databases[%d].name", i), "database name is required", nil)
		}
		if db.User == "" {
			errors.Add(fmt.Sprintf("databases[%d].user", i), "database user is required", db.Name)
		}
		if db.Port < 0 || db.Port > 65535 {
			errors.Add(fmt.Sprintf("databases[%d].port", i), "port must be between 0 and 65535", db.Port)
		}
	}

	for i, dir := range c.Directories {
		if dir == "" {
			errors.Add(fmt.Sprintf("directories[%d]", i), "directory path cannot be empty", nil)
		}
	}

	if err := c.Retention.Validate(); err != nil {
		if validationErrs, ok := err.(ValidationErrors); ok {
			errors = append(errors, validationErrs...)
		} else {
			errors.Add("retention", err.Error(), nil)
		}
	}

	if err := c.Compression.Validate(); err != nil {
		if validationErrs, ok := err.(ValidationErrors); ok {
			errors = append(errors, validationErrs...)
		} else {
			errors.Add("compression", err.Error(), nil)
		}
	}

	if c.Storage != nil {
		if err := c.Storage.Validate(); err != nil {
			if validationErrs, ok := err.(ValidationErrors); ok {
				errors = append(errors, validationErrs...)
			} else {
				errors.Add("storage", err.Error(), nil)
			}
		}
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// Validate validates the retention policy
func (rc *RetentionConfig) Validate() error {
	var errors ValidationErrors

	if rc.MaxLocalCopies < 0 {
		errors.Add("retention.max_local_copies", "max local copies cannot be negative", rc.MaxLocalCopies)
	}

	if rc.MaxAgeDays < 0 {
		errors.Add("retention.max_age_days", "max age days cannot be negative", rc.MaxAgeDays)
	}

	// The two policies are mutually exclusive: one or the other drives
	// keep/delete decisions, never both.
	if rc.MaxLocalCopies > 0 && rc.MaxAgeDays > 0 {
		errors.Add("retention", "max_local_copies and max_age_days are mutually exclusive", nil)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// CountBased reports whether the count-based policy is active
func (rc *RetentionConfig) CountBased() bool {
	return rc.MaxLocalCopies > 0
}

// AgeBased reports whether the age-based policy is active. MaxAgeDays of 0
// means unlimited retention.
func (rc *RetentionConfig) AgeBased() bool {
	return rc.MaxLocalCopies == 0 && rc.MaxAgeDays > 0
}

// Validate validates the compression configuration
func (cc *CompressionConfig) Validate() error {
	var errors ValidationErrors

	switch cc.Algorithm {
	case "", CompressionGzip:
		if cc.Level != 0 && (cc.Level < 1 || cc.Level > 9) {
			errors.Add("compression.level", "gzip compression level must be between 1 and 9", cc.Level)
		}
	case CompressionZstd:
		if cc.Level != 0 && (cc.Level < 1 || cc.Level > 22) {
			errors.Add("compression.level", "zstd compression level must be between 1 and 22", cc.Level)
		}
	case CompressionLZ4:
		if cc.Level != 0 && (cc.Level < 1 || cc.Level > 12) {
			errors.Add("compression.level", "lz4 compression level must be between 1 and 12", cc.Level)
		}
	default:
		errors.Add("compression.algorithm", "invalid compression algorithm", cc.Algorithm)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// Validate validates the storage configuration
func (sc *StorageConfig) Validate() error {
	var errors ValidationErrors

	switch sc.Provider {
	case StorageProviderS3:
		if sc.S3 == nil {
			errors.Add("storage.s3", "s3 configuration is required for the S3 provider", nil)
		} else if sc.S3.Bucket == "" {
			errors.Add("storage.s3.bucket", "bucket is required", nil)
		}
	case StorageProviderGCS:
		if sc.GCS == nil {
			errors.Add("storage.gcs", "gcs configuration is required for the GCS provider", nil)
		} else if sc.GCS.Bucket == "" {
			errors.Add("storage.gcs.bucket", "bucket is required", nil)
		}
	case StorageProviderAzure:
		if sc.Azure == nil {
			errors.Add("storage.azure", "azure configuration is required for the Azure provider", nil)
		} else {
			if sc.Azure.AccountName == "" {
				errors.Add("storage.azure.account_name", "account name is required", nil)
			}
			if sc.Azure.ContainerName == "" {
				errors.Add("storage.azure.container_name", "container name is required", nil)
			}
		}
	default:
		errors.Add("storage.provider", "invalid storage provider, must be 'S3', 'GCS', or 'AZURE'", sc.Provider)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	if c.BackupRoot == "" {
		c.BackupRoot = "/var/backups"
	}

	for i := range c.Databases {
		if c.Databases[i].Host == "" {
			c.Databases[i].Host = "127.0.0.1"
		}
		if c.Databases[i].Port == 0 {
			c.Databases[i].Port = 3306
		}
	}

	c.Compression.SetDefaults()

	if c.Storage != nil {
		c.Storage.SetDefaults()
	}
}

// SetDefaults sets default values for compression configuration
func (cc *CompressionConfig) SetDefaults() {
	if cc.Algorithm == "" {
		cc.Algorithm = CompressionGzip
	}

	if cc.Level == 0 {
		switch cc.Algorithm {
		case CompressionGzip:
			cc.Level = 6
		case CompressionZstd:
			cc.Level = 3
		case CompressionLZ4:
			cc.Level = 1
		}
	}
}

// SetDefaults sets default values for storage configuration
func (sc *StorageConfig) SetDefaults() {
	switch sc.Provider {
	case StorageProviderS3:
		if sc.S3 == nil {
			sc.S3 = &S3Config{}
		}
		if sc.S3.Region == "" {
			sc.S3.Region = "us-east-1"
		}
	case StorageProviderGCS:
		if sc.GCS == nil {
			sc.GCS = &GCSConfig{}
		}
		if sc.GCS.CredentialsPath == "" {
			sc.GCS.CredentialsPath = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
		}
	case StorageProviderAzure:
		if sc.Azure == nil {
			sc.Azure = &AzureConfig{}
		}
	}
}

// LoadFromEnvironment loads configuration overrides from environment variables
func (c *Config) LoadFromEnvironment() {
	if val := os.Getenv("SERVERBACKUP_NAME"); val != "" {
		c.Name = val
	}

	if val := os.Getenv("SERVERBACKUP_ROOT"); val != "" {
		c.BackupRoot = val
	}

	if val := os.Getenv("SERVERBACKUP_ENCRYPTION_PASSWORD"); val != "" {
		c.Encryption.Password = val
	}

	if val := os.Getenv("SERVERBACKUP_MAX_LOCAL_COPIES"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			c.Retention.MaxLocalCopies = parsed
		}
	}

	if val := os.Getenv("SERVERBACKUP_MAX_AGE_DAYS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			c.Retention.MaxAgeDays = parsed
		}
	}

	if val := os.Getenv("SERVERBACKUP_COMPRESSION_ALGORITHM"); val != "" {
		c.Compression.Algorithm = CompressionAlgorithm(strings.ToUpper(val))
	}

	if val := os.Getenv("SERVERBACKUP_LOCK_FILE"); val != "" {
		c.LockFile = val
	}

	if c.Storage != nil {
		c.Storage.LoadFromEnvironment()
	}
}

// LoadFromEnvironment loads storage configuration from environment variables
func (sc *StorageConfig) LoadFromEnvironment() {
	if val := os.Getenv("SERVERBACKUP_STORAGE_PROVIDER"); val != "" {
		sc.Provider = StorageProviderType(strings.ToUpper(val))
	}

	switch sc.Provider {
	case StorageProviderS3:
		if sc.S3 == nil {
			sc.S3 = &S3Config{}
		}
		if val := os.Getenv("SERVERBACKUP_S3_BUCKET"); val != "" {
			sc.S3.Bucket = val
		}
		if val := os.Getenv("SERVERBACKUP_S3_REGION"); val != "" {
			sc.S3.Region = val
		}
		if val := os.Getenv("SERVERBACKUP_S3_ACCESS_KEY"); val != "" {
			sc.S3.AccessKey = val
		}
		if val := os.Getenv("SERVERBACKUP_S3_SECRET_KEY"); val != "" {
			sc.S3.SecretKey = val
		}
	case StorageProviderGCS:
		if sc.GCS == nil {
			sc.GCS = &GCSConfig{}
		}
		if val := os.Getenv("SERVERBACKUP_GCS_BUCKET"); val != "" {
			sc.GCS.Bucket = val
		}
		if val := os.Getenv("SERVERBACKUP_GCS_CREDENTIALS_PATH"); val != "" {
			sc.GCS.CredentialsPath = val
		}
		if val := os.Getenv("SERVERBACKUP_GCS_PROJECT_ID"); val != "" {
			sc.GCS.ProjectID = val
		}
	case StorageProviderAzure:
		if sc.Azure == nil {
			sc.Azure = &AzureConfig{}
		}
		if val := os.Getenv("SERVERBACKUP_AZURE_ACCOUNT_NAME"); val != "" {
			sc.Azure.AccountName = val
		}
		if val := os.Getenv("SERVERBACKUP_AZURE_ACCOUNT_KEY"); val != "" {
			sc.Azure.AccountKey = val
		}
		if val := os.Getenv("SERVERBACKUP_AZURE_CONTAINER_NAME"); val != "" {
			sc.Azure.ContainerName = val
		}
	}
}

// UploadEnabled reports whether an object storage upload is configured
func (c *Config) UploadEnabled() bool {
	return c.Storage != nil && c.Storage.Provider != ""
}
