package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	plaintext := []byte("archive payload with secrets inside")
	artifact := filepath.Join(dir, "backup.tar.gz")
	require.NoError(t, os.WriteFile(artifact, plaintext, 0o644))

	encryptor := NewEncryptor("correct horse battery staple")
	encryptedPath, err := encryptor.EncryptFile(artifact)
	require.NoError(t, err)
	assert.Equal(t, artifact+EncryptedExtension, encryptedPath)

	ciphertext, err := os.ReadFile(encryptedPath)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(ciphertext, plaintext), "ciphertext must not contain the plaintext")

	restored := filepath.Join(dir, "restored.tar.gz")
	require.NoError(t, encryptor.DecryptFile(encryptedPath, restored))

	content, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, plaintext, content)
}

func TestDecryptWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "backup.tar.gz")
	require.NoError(t, os.WriteFile(artifact, []byte("payload"), 0o644))

	encryptedPath, err := NewEncryptor("right").EncryptFile(artifact)
	require.NoError(t, err)

	err = NewEncryptor("wrong").DecryptFile(encryptedPath, filepath.Join(dir, "out"))
	require.Error(t, err)
	errType, ok := ErrorType(err)
	require.True(t, ok)
	assert.Equal(t, BackupErrorTypeEncrypt, errType)
}

func TestEncryptionIsSalted(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.tar.gz")
	second := filepath.Join(dir, "b.tar.gz")
	require.NoError(t, os.WriteFile(first, []byte("identical"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("identical"), 0o644))

	encryptor := NewEncryptor("secret")
	firstEnc, err := encryptor.EncryptFile(first)
	require.NoError(t, err)
	secondEnc, err := encryptor.EncryptFile(second)
	require.NoError(t, err)

	a, err := os.ReadFile(firstEnc)
	require.NoError(t, err)
	b, err := os.ReadFile(secondEnc)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "identical plaintexts must produce distinct ciphertexts")
}

func TestDecryptTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	short := filepath.Join(dir, "short.enc")
	require.NoError(t, os.WriteFile(short, []byte("tiny"), 0o644))

	err := NewEncryptor("secret").DecryptFile(short, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestEncryptedFilePermissions(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "backup.tar.gz")
	require.NoError(t, os.WriteFile(artifact, []byte("payload"), 0o644))

	encryptedPath, err := NewEncryptor("secret").EncryptFile(artifact)
	require.NoError(t, err)

	info, err := os.Stat(encryptedPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
