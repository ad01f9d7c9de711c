// Package blob selects a content store backend.
package blob

import (
	"context"
	"fmt"

	"plotledger/internal/blob/core"
	"plotledger/internal/infra/blob/fs"
	"plotledger/internal/infra/blob/memory"
	"plotledger/internal/infra/blob/s3"
)

type (
	Store  = core.Store
	Info   = core.Info
	Driver = core.Driver
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// Options selects and configures a backend. Driver defaults to fs.
type Options struct {
	Driver Driver
	FSRoot string
	S3     s3.Config
}

// Open constructs the content store described by opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return fs.New(opts.FSRoot)
	case DriverS3:
		return s3.New(ctx, opts.S3)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
