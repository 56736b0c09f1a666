package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serverbackup/internal/config"
)

func stageTestTree(t *testing.T) string {
	t.Helper()
	staging := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(staging, "databases"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(staging, "files", "etc", "nginx"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "databases", "appdb.sql"), []byte("CREATE TABLE t (id INT);"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "files", "etc", "nginx", "nginx.conf"), []byte("server {}"), 0o600))
	require.NoError(t, WriteMarker(staging, &Marker{Name: "myhost"}))
	return staging
}

func TestArchiverRoundTrip(t *testing.T) {
	tests := []struct {
		algorithm config.CompressionAlgorithm
		extension string
	}{
		{config.CompressionGzip, ".tar.gz"},
		{config.CompressionZstd, ".tar.zst"},
		{config.CompressionLZ4, ".tar.lz4"},
	}

	for _, tt := range tests {
		t.Run(string(tt.algorithm), func(t *testing.T) {
			archiver := NewArchiver(config.CompressionConfig{Algorithm: tt.algorithm})
			assert.Equal(t, tt.extension, archiver.Extension())

			staging := stageTestTree(t)
			artifact := filepath.Join(t.TempDir(), "backup"+archiver.Extension())
			require.NoError(t, archiver.Create(context.Background(), staging, artifact))

			info, err := os.Stat(artifact)
			require.NoError(t, err)
			assert.Greater(t, info.Size(), int64(0))

			extracted := t.TempDir()
			require.NoError(t, archiver.Extract(context.Background(), artifact, extracted))

			dump, err := os.ReadFile(filepath.Join(extracted, "databases", "appdb.sql"))
			require.NoError(t, err)
			assert.Equal(t, "CREATE TABLE t (id INT);", string(dump))

			conf, err := os.ReadFile(filepath.Join(extracted, "files", "etc", "nginx", "nginx.conf"))
			require.NoError(t, err)
			assert.Equal(t, "server {}", string(conf))

			// The marker travels inside the archive
			assert.True(t, HasMarker(extracted))

			confInfo, err := os.Stat(filepath.Join(extracted, "files", "etc", "nginx", "nginx.conf"))
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), confInfo.Mode().Perm())
		})
	}
}

func TestArchiverHighCompressionLevels(t *testing.T) {
	tests := []config.CompressionConfig{
		{Algorithm: config.CompressionGzip, Level: 9},
		{Algorithm: config.CompressionZstd, Level: 19},
		{Algorithm: config.CompressionLZ4, Level: 9},
	}

	for _, cfg := range tests {
		t.Run(string(cfg.Algorithm), func(t *testing.T) {
			archiver := NewArchiver(cfg)
			staging := stageTestTree(t)
			artifact := filepath.Join(t.TempDir(), "backup"+archiver.Extension())

			require.NoError(t, archiver.Create(context.Background(), staging, artifact))
			require.NoError(t, archiver.Extract(context.Background(), artifact, t.TempDir()))
		})
	}
}

func TestArchiverDefaultsToGzip(t *testing.T) {
	archiver := NewArchiver(config.CompressionConfig{})
	assert.Equal(t, ".tar.gz", archiver.Extension())
}

func TestExtractRejectsUnknownExtension(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "backup.tar.xz")
	require.NoError(t, os.WriteFile(artifact, []byte("junk"), 0o644))

	archiver := NewArchiver(config.CompressionConfig{})
	err := archiver.Extract(context.Background(), artifact, t.TempDir())
	require.Error(t, err)
}

func TestSanitizeExtractPath(t *testing.T) {
	dest := t.TempDir()

	safe, err := sanitizeExtractPath(dest, "databases/appdb.sql")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "databases", "appdb.sql"), safe)

	_, err = sanitizeExtractPath(dest, "../escape.sql")
	require.Error(t, err)
}

func TestArchiverCreateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	archiver := NewArchiver(config.CompressionConfig{})
	staging := stageTestTree(t)
	artifact := filepath.Join(t.TempDir(), "backup.tar.gz")

	err := archiver.Create(ctx, staging, artifact)
	require.Error(t, err)
}
