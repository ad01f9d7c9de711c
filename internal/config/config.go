// Package config loads plotledger settings from an optional YAML file and
// PLOTLEDGER_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Ledger  LedgerConfig  `yaml:"ledger" json:"ledger"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Blob    BlobConfig    `yaml:"blob" json:"blob"`
	Log     LogConfig     `yaml:"log" json:"log"`
}

// LedgerConfig fixes the grid and fee parameters.
type LedgerConfig struct {
	GridWidth       uint32 `yaml:"grid_width" json:"grid_width" validate:"gt=0"`
	GridHeight      uint32 `yaml:"grid_height" json:"grid_height" validate:"gt=0"`
	MaxPurchaseArea uint64 `yaml:"max_purchase_area" json:"max_purchase_area" validate:"gt=1"`
	FeeBasisPoints  uint32 `yaml:"fee_bps" json:"fee_bps" validate:"lte=10000"`
	Maintainer      string `yaml:"maintainer" json:"maintainer"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver      string `yaml:"driver" json:"driver" validate:"oneof=memory sqlite postgres"`
	SQLitePath  string `yaml:"sqlite_path" json:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn" validate:"required_if=Driver postgres"`
}

// BlobConfig selects the content store backend.
type BlobConfig struct {
	Driver string   `yaml:"driver" json:"driver" validate:"oneof=fs s3 memory"`
	FSRoot string   `yaml:"fs_root" json:"fs_root"`
	S3     S3Config `yaml:"s3" json:"s3"`
}

// S3Config configures an S3-compatible bucket.
type S3Config struct {
	Bucket    string `yaml:"bucket" json:"bucket"`
	Region    string `yaml:"region" json:"region"`
	Endpoint  string `yaml:"endpoint" json:"endpoint" validate:"omitempty,url"`
	Prefix    string `yaml:"prefix" json:"prefix"`
	PathStyle bool   `yaml:"path_style" json:"path_style"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Ledger: LedgerConfig{
			GridWidth:       1000,
			GridHeight:      1000,
			MaxPurchaseArea: 1000,
		},
		Storage: StorageConfig{Driver: "sqlite", SQLitePath: "plotledger.db"},
		Blob:    BlobConfig{Driver: "fs", FSRoot: "./contentdata"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load starts from Default, overlays the YAML file at path when path is not
// empty, applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator supplied config path
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Blob.Driver == "s3" && c.Blob.S3.Bucket == "" {
		return errors.New("invalid config: blob.s3.bucket required for s3 driver")
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PLOTLEDGER_STORAGE_DRIVER", &cfg.Storage.Driver)
	str("PLOTLEDGER_SQLITE_PATH", &cfg.Storage.SQLitePath)
	str("PLOTLEDGER_POSTGRES_DSN", &cfg.Storage.PostgresDSN)
	str("PLOTLEDGER_BLOB_DRIVER", &cfg.Blob.Driver)
	str("PLOTLEDGER_BLOB_FS_ROOT", &cfg.Blob.FSRoot)
	str("PLOTLEDGER_BLOB_S3_BUCKET", &cfg.Blob.S3.Bucket)
	str("PLOTLEDGER_BLOB_S3_REGION", &cfg.Blob.S3.Region)
	str("PLOTLEDGER_BLOB_S3_ENDPOINT", &cfg.Blob.S3.Endpoint)
	str("PLOTLEDGER_BLOB_S3_PREFIX", &cfg.Blob.S3.Prefix)
	str("PLOTLEDGER_MAINTAINER", &cfg.Ledger.Maintainer)
	str("PLOTLEDGER_LOG_LEVEL", &cfg.Log.Level)
	str("PLOTLEDGER_LOG_FORMAT", &cfg.Log.Format)

	if v, ok := lookup("PLOTLEDGER_BLOB_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PLOTLEDGER_BLOB_S3_PATH_STYLE: %w", err)
		}
		cfg.Blob.S3.PathStyle = b
	}
	if v, ok := lookup("PLOTLEDGER_FEE_BPS"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("PLOTLEDGER_FEE_BPS: %w", err)
		}
		cfg.Ledger.FeeBasisPoints = uint32(n)
	}
	return nil
}
