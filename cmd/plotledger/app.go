package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"plotledger/internal/blob"
	"plotledger/internal/config"
	"plotledger/internal/core"
	"plotledger/internal/infra/blob/s3"
)

// app holds the per-invocation wiring shared by every subcommand.
type app struct {
	configPath string
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer

	cfg    config.Config
	logger *slog.Logger
	store  core.PersistentStore
	svc    *core.Service
	closed bool
}

var loadConfig = config.Load

func (a *app) open(ctx context.Context) error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(a.stderr, cfg.Log)

	params := core.Params{
		GridWidth:       cfg.Ledger.GridWidth,
		GridHeight:      cfg.Ledger.GridHeight,
		MaxPurchaseArea: cfg.Ledger.MaxPurchaseArea,
		FeeBasisPoints:  cfg.Ledger.FeeBasisPoints,
		Maintainer:      cfg.Ledger.Maintainer,
	}
	store, err := core.OpenPersistentStore(ctx, core.StorageOptions{
		Driver:      core.StorageDriver(cfg.Storage.Driver),
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	}, core.NewDefaultRulesEngine(params))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.store = store

	content, err := blob.Open(ctx, blob.Options{
		Driver: blob.Driver(cfg.Blob.Driver),
		FSRoot: cfg.Blob.FSRoot,
		S3: s3.Config{
			Bucket:    cfg.Blob.S3.Bucket,
			Region:    cfg.Blob.S3.Region,
			Endpoint:  cfg.Blob.S3.Endpoint,
			Prefix:    cfg.Blob.S3.Prefix,
			PathStyle: cfg.Blob.S3.PathStyle,
		},
	})
	if err != nil {
		_ = a.close()
		return fmt.Errorf("open content store: %w", err)
	}

	metrics, err := core.NewPrometheusMetricsRecorder(nil)
	if err != nil {
		_ = a.close()
		return fmt.Errorf("metrics: %w", err)
	}
	a.svc = core.NewService(store, params,
		core.WithLogger(a.logger),
		core.WithMetricsRecorder(metrics),
		core.WithTracer(core.NewOTelTracer(nil)),
		core.WithEventSink(core.LogSink{Logger: a.logger}),
		core.WithContentStore(content),
	)
	a.logger.Debug("ledger opened", "storage", cfg.Storage.Driver, "blob", cfg.Blob.Driver)
	return nil
}

// close releases the store once; later calls are no-ops.
func (a *app) close() error {
	if a.store == nil || a.closed {
		return nil
	}
	a.closed = true
	if closer, ok := a.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
