package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemCopierPreservesStructure(t *testing.T) {
	source := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(source, "conf.d"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(source, "nginx.conf"), []byte("server {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(source, "conf.d", "site.conf"), []byte("listen 80;"), 0o600))

	destRoot := t.TempDir()
	copier := NewFilesystemCopier(nil)
	require.NoError(t, copier.Copy(context.Background(), source, destRoot))

	// The source's absolute path structure is reproduced under destRoot
	copied := filepath.Join(destRoot, source)
	content, err := os.ReadFile(filepath.Join(copied, "nginx.conf"))
	require.NoError(t, err)
	assert.Equal(t, "server {}", string(content))

	info, err := os.Stat(filepath.Join(copied, "conf.d", "site.conf"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFilesystemCopierPreservesSymlinks(t *testing.T) {
	source := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(source, "real.conf"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink("real.conf", filepath.Join(source, "link.conf")))

	destRoot := t.TempDir()
	copier := NewFilesystemCopier(nil)
	require.NoError(t, copier.Copy(context.Background(), source, destRoot))

	target, err := os.Readlink(filepath.Join(destRoot, source, "link.conf"))
	require.NoError(t, err)
	assert.Equal(t, "real.conf", target)
}

func TestFilesystemCopierMissingSource(t *testing.T) {
	copier := NewFilesystemCopier(nil)
	err := copier.Copy(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir())

	require.Error(t, err)
	errType, ok := ErrorType(err)
	require.True(t, ok)
	assert.Equal(t, BackupErrorTypeCopy, errType)
}

func TestFilesystemCopierSourceIsFile(t *testing.T) {
	source := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(source, []byte("x"), 0o644))

	copier := NewFilesystemCopier(nil)
	err := copier.Copy(context.Background(), source, t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestFilesystemCopierCancelled(t *testing.T) {
	source := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(source, "a.txt"), []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	copier := NewFilesystemCopier(nil)
	err := copier.Copy(ctx, source, t.TempDir())
	require.Error(t, err)
}
