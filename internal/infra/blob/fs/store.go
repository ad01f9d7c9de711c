// Package fs implements a content Store on the local filesystem.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"plotledger/internal/blob/core"
)

// Store lays payloads out as <root>/<first two hex digits>/<remaining digits>
// with a `.meta` JSON sidecar holding content type and size.
type Store struct {
	root string
}

// New returns a filesystem-backed content store rooted at root, creating it if needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = "./contentdata"
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// Root returns the directory payloads are stored under.
func (s *Store) Root() string { return s.root }

func (s *Store) pathFor(digest string) (dataPath, metaPath string) {
	dataPath = filepath.Join(s.root, digest[:2], digest[2:])
	return dataPath, dataPath + ".meta"
}

type metaFile struct {
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	StoredAt    time.Time `json:"stored_at"`
}

// Put streams r to a temp file while hashing it, then moves it into place.
func (s *Store) Put(_ context.Context, r io.Reader, contentType string) (core.Info, error) {
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return core.Info{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	h := sha256.New()
	size, copyErr := io.Copy(io.MultiWriter(tmp, h), r)
	if copyErr != nil {
		_ = tmp.Close()
		return core.Info{}, copyErr
	}
	if err := tmp.Close(); err != nil {
		return core.Info{}, err
	}
	ref := core.RefFor(h.Sum(nil))
	digest, _ := core.Digest(ref)
	dataPath, metaPath := s.pathFor(digest)
	if mf, err := readMeta(metaPath); err == nil {
		return infoFor(ref, mf), nil
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o750); err != nil {
		return core.Info{}, err
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return core.Info{}, err
	}
	mf := metaFile{ContentType: contentType, Size: size, StoredAt: time.Now().UTC()}
	if err := writeMeta(metaPath, mf); err != nil {
		return core.Info{}, err
	}
	return infoFor(ref, mf), nil
}

func (s *Store) Get(_ context.Context, ref string) (core.Info, io.ReadCloser, error) {
	digest, err := core.Digest(ref)
	if err != nil {
		return core.Info{}, nil, err
	}
	dataPath, metaPath := s.pathFor(digest)
	mf, err := readMeta(metaPath)
	if err != nil {
		return core.Info{}, nil, err
	}
	file, err := os.Open(dataPath) // #nosec G304 -- path derived from a validated digest
	if errors.Is(err, fs.ErrNotExist) {
		return core.Info{}, nil, fmt.Errorf("%w: %s", core.ErrNotFound, ref)
	}
	if err != nil {
		return core.Info{}, nil, err
	}
	return infoFor(ref, mf), file, nil
}

func (s *Store) Has(_ context.Context, ref string) (bool, error) {
	digest, err := core.Digest(ref)
	if err != nil {
		return false, err
	}
	_, metaPath := s.pathFor(digest)
	if _, err := readMeta(metaPath); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List walks the root collecting sidecars, ordered by ref.
func (s *Store) List(_ context.Context) ([]core.Info, error) {
	var infos []core.Info
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".meta") {
			return nil
		}
		rel, err := filepath.Rel(s.root, strings.TrimSuffix(path, ".meta"))
		if err != nil {
			return err
		}
		ref := core.RefPrefix + strings.ReplaceAll(filepath.ToSlash(rel), "/", "")
		if _, err := core.Digest(ref); err != nil {
			return nil
		}
		mf, err := readMeta(path)
		if err != nil {
			return err
		}
		infos = append(infos, infoFor(ref, mf))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Ref < infos[j].Ref })
	return infos, nil
}

func infoFor(ref string, mf metaFile) core.Info {
	return core.Info{Ref: ref, Size: mf.Size, ContentType: mf.ContentType, StoredAt: mf.StoredAt}
}

func writeMeta(path string, mf metaFile) error {
	b, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func readMeta(path string) (metaFile, error) {
	b, err := os.ReadFile(path) // #nosec G304 -- path derived from a validated digest
	if errors.Is(err, fs.ErrNotExist) {
		return metaFile{}, core.ErrNotFound
	}
	if err != nil {
		return metaFile{}, err
	}
	var mf metaFile
	if err := json.Unmarshal(b, &mf); err != nil {
		return metaFile{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return mf, nil
}
