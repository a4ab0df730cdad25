package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enzymeml/internal/blob"
	"enzymeml/internal/catalog"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg, err := LoadWith("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"defaults"}, cfg.Sources)
	assert.Equal(t, blob.DriverFilesystem, cfg.BlobConfig().Driver)
	assert.Equal(t, catalog.DriverMemory, cfg.CatalogConfig().Driver)
	assert.Equal(t, 64, cfg.Worker.QueueSize)
}

func TestYAMLThenEnvironment(t *testing.T) {
	path := writeFile(t, "enzymeml.yaml", `
log:
  level: debug
blob:
  driver: s3
  bucket: archives
  endpoint: http://minio:9000
  path_style: true
catalog:
  driver: sqlite
  dsn: /var/lib/enzymeml/runs.db
`)
	cfg, err := LoadWith(path, env(map[string]string{
		"ENZYMEML_BLOB_S3_REGION":    "eu-central-1",
		"ENZYMEML_WORKER_QUEUE_SIZE": "8",
		"ENZYMEML_VERBOSE":           "true",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"defaults", path, "environment"}, cfg.Sources)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Verbose)
	assert.Equal(t, 8, cfg.Worker.QueueSize)

	b := cfg.BlobConfig()
	assert.Equal(t, blob.DriverS3, b.Driver)
	assert.Equal(t, "archives", b.S3.Bucket)
	assert.Equal(t, "eu-central-1", b.S3.Region)
	assert.True(t, b.S3.PathStyle)
	assert.Equal(t, catalog.Config{Driver: catalog.DriverSQLite, DSN: "/var/lib/enzymeml/runs.db"}, cfg.CatalogConfig())
}

func TestTOMLFile(t *testing.T) {
	path := writeFile(t, "enzymeml.toml", `
[catalog]
driver = "postgres"
dsn = "postgres://db/enzymeml"

[metrics]
namespace = "lab"
`)
	cfg, err := LoadWith(path, env(nil))
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Catalog.Driver)
	assert.Equal(t, "lab", cfg.Metrics.Namespace)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestRejectsBadInput(t *testing.T) {
	unknownYAML := writeFile(t, "bad.yaml", "blob:\n  bucket_name: x\n")
	_, err := LoadWith(unknownYAML, env(nil))
	assert.Error(t, err)

	unknownTOML := writeFile(t, "bad.toml", "[blob]\nbucket_name = \"x\"\n")
	_, err = LoadWith(unknownTOML, env(nil))
	assert.Error(t, err)

	_, err = LoadWith(writeFile(t, "cfg.json", "{}"), env(nil))
	assert.Error(t, err)

	_, err = LoadWith("", env(map[string]string{"ENZYMEML_VERBOSE": "sometimes"}))
	assert.Error(t, err)

	_, err = LoadWith("", env(map[string]string{"ENZYMEML_BLOB_DRIVER": "s3"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bucket")

	_, err = LoadWith("", env(map[string]string{"ENZYMEML_CATALOG_DRIVER": "sqlite"}))
	assert.Error(t, err)

	_, err = LoadWith("", env(map[string]string{"ENZYMEML_LOG_LEVEL": "trace"}))
	assert.Error(t, err)
}
