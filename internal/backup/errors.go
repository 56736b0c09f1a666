package backup

import (
	"errors"
	"fmt"
)

// BackupError represents errors that occur during backup operations
type BackupError struct {
	Type    BackupErrorType        `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *BackupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause error
func (e *BackupError) Unwrap() error {
	return e.Cause
}

// BackupErrorType represents different types of backup errors
type BackupErrorType string

const (
	BackupErrorTypeConfig     BackupErrorType = "CONFIG_ERROR"
	BackupErrorTypeAllocation BackupErrorType = "ALLOCATION_ERROR"
	BackupErrorTypeDump       BackupErrorType = "DUMP_ERROR"
	BackupErrorTypeCopy       BackupErrorType = "COPY_ERROR"
	BackupErrorTypeArchive    BackupErrorType = "ARCHIVE_ERROR"
	BackupErrorTypeEncrypt    BackupErrorType = "ENCRYPT_ERROR"
	BackupErrorTypeUpload     BackupErrorType = "UPLOAD_ERROR"
	BackupErrorTypeRetention  BackupErrorType = "RETENTION_ERROR"
)

// NewBackupError creates a new BackupError
func NewBackupError(errorType BackupErrorType, message string, cause error) *BackupError {
	return &BackupError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *BackupError) WithContext(key string, value interface{}) *BackupError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Common error constructors

func NewConfigError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeConfig, message, cause)
}

func NewAllocationError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeAllocation, message, cause)
}

func NewDumpError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeDump, message, cause)
}

func NewCopyError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeCopy, message, cause)
}

func NewArchiveError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeArchive, message, cause)
}

func NewEncryptError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeEncrypt, message, cause)
}

func NewUploadError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeUpload, message, cause)
}

func NewRetentionError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeRetention, message, cause)
}

// ErrorType extracts the BackupErrorType from an error chain. The second
// return value is false when the chain contains no BackupError.
func ErrorType(err error) (BackupErrorType, bool) {
	var backupErr *BackupError
	if errors.As(err, &backupErr) {
		return backupErr.Type, true
	}
	return "", false
}

// IsRetentionError reports whether an error came from the retention stage.
// Retention errors are non-fatal: a failed cleanup must never be mistaken
// for a failed backup.
func IsRetentionError(err error) bool {
	errType, ok := ErrorType(err)
	return ok && errType == BackupErrorTypeRetention
}
