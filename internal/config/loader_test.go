package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadJSONConfig(t *testing.T) {
	path := writeTempConfig(t, "serverbackup.conf", `{
  "name": "myhost",
  "backup_root": "/var/backups",
  "databases": [
    {"name": "appdb", "user": "backup", "password": "secret"}
  ],
  "directories": ["/etc/nginx"],
  "retention": {"max_local_copies": 3},
  "include_timestamp_in_filename": true
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "myhost", cfg.Name)
	assert.Equal(t, "/var/backups", cfg.BackupRoot)
	require.Len(t, cfg.Databases, 1)
	assert.Equal(t, "appdb", cfg.Databases[0].Name)
	// Defaults applied during load
	assert.Equal(t, "127.0.0.1", cfg.Databases[0].Host)
	assert.Equal(t, 3306, cfg.Databases[0].Port)
	assert.Equal(t, CompressionGzip, cfg.Compression.Algorithm)
	assert.Equal(t, 3, cfg.Retention.MaxLocalCopies)
	assert.True(t, cfg.IncludeTimestampInFilename)
}

func TestLoadYAMLConfig(t *testing.T) {
	path := writeTempConfig(t, "serverbackup.yaml", `
name: yamlhost
backup_root: /srv/backups
databases:
  - name: appdb
    user: backup
directories:
  - /etc/nginx
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "yamlhost", cfg.Name)
	assert.Equal(t, "/srv/backups", cfg.BackupRoot)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.conf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not accessible")
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeTempConfig(t, "broken.conf", `{"name": "myhost",`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadInvalidConfig(t *testing.T) {
	path := writeTempConfig(t, "invalid.conf", `{
  "backup_root": "/var/backups",
  "databases": [{"name": "appdb", "user": "backup"}]
}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("SERVERBACKUP_ROOT", "/override/backups")

	path := writeTempConfig(t, "serverbackup.conf", `{
  "name": "myhost",
  "backup_root": "/var/backups",
  "databases": [{"name": "appdb", "user": "backup"}]
}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/override/backups", cfg.BackupRoot)
}
