// Package core defines the content-addressed storage abstraction used to keep
// zone artwork and other payloads outside the ledger. The ledger only stores
// the reference returned by Put.
package core

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Driver identifies a concrete content store backend implementation.
type Driver string

const (
	// DriverFilesystem represents the local filesystem implementation.
	DriverFilesystem Driver = "fs" // local filesystem (default, dev)
	// DriverS3 represents an S3 / MinIO compatible implementation.
	DriverS3 Driver = "s3" // S3 / MinIO compatible
	// DriverMemory represents an in-memory implementation typically used in tests.
	DriverMemory Driver = "memory" // in-memory (tests)
)

// RefPrefix prefixes every content reference.
const RefPrefix = "sha256:"

// Info describes a stored payload.
type Info struct {
	Ref         string    `json:"ref"`
	Size        int64     `json:"size_bytes"`
	ContentType string    `json:"content_type,omitempty"`
	StoredAt    time.Time `json:"stored_at"`
}

// Store keeps immutable payloads addressed by the SHA-256 of their bytes.
// Put is idempotent: storing the same bytes twice returns the same ref.
type Store interface {
	Put(ctx context.Context, r io.Reader, contentType string) (Info, error)
	Get(ctx context.Context, ref string) (Info, io.ReadCloser, error)
	Has(ctx context.Context, ref string) (bool, error)
	List(ctx context.Context) ([]Info, error)
	Driver() Driver
}

var (
	// ErrNotFound is returned when no payload exists for a ref.
	ErrNotFound = errors.New("content: not found")
	// ErrInvalidRef is returned for references that are not sha256:<64 hex>.
	ErrInvalidRef = errors.New("content: invalid reference")
)

// RefFor formats a digest as a content reference.
func RefFor(sum []byte) string {
	return RefPrefix + hex.EncodeToString(sum)
}

// Digest validates ref and returns its lowercase hex digest.
func Digest(ref string) (string, error) {
	digest, ok := strings.CutPrefix(ref, RefPrefix)
	if !ok || len(digest) != 64 {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	if _, err := hex.DecodeString(digest); err != nil || strings.ToLower(digest) != digest {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return digest, nil
}
