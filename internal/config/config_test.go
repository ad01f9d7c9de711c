package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PLOTLEDGER_STORAGE_DRIVER", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, uint32(1000), cfg.Ledger.GridWidth)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plotledger.yaml")
	doc := `
ledger:
  grid_width: 500
  grid_height: 400
  max_purchase_area: 250
  fee_bps: 100
  maintainer: admin
storage:
  driver: memory
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	t.Setenv("PLOTLEDGER_FEE_BPS", "250")
	t.Setenv("PLOTLEDGER_BLOB_DRIVER", "s3")
	t.Setenv("PLOTLEDGER_BLOB_S3_BUCKET", "zones")
	t.Setenv("PLOTLEDGER_BLOB_S3_PATH_STYLE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(500), cfg.Ledger.GridWidth)
	assert.Equal(t, uint64(250), cfg.Ledger.MaxPurchaseArea)
	assert.Equal(t, uint32(250), cfg.Ledger.FeeBasisPoints)
	assert.Equal(t, "admin", cfg.Ledger.Maintainer)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "zones", cfg.Blob.S3.Bucket)
	assert.True(t, cfg.Blob.S3.PathStyle)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown storage":  {"PLOTLEDGER_STORAGE_DRIVER": "etcd"},
		"postgres no dsn":  {"PLOTLEDGER_STORAGE_DRIVER": "postgres"},
		"fee not a number": {"PLOTLEDGER_FEE_BPS": "lots"},
		"fee above 100%":   {"PLOTLEDGER_FEE_BPS": "10001"},
		"s3 no bucket":     {"PLOTLEDGER_BLOB_DRIVER": "s3"},
		"bad log level":    {"PLOTLEDGER_LOG_LEVEL": "loud"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ledger: [1, 2"), 0o600))
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}
