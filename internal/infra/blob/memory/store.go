// Package memory implements an in-memory content Store for tests.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"plotledger/internal/blob/core"
)

type entry struct {
	info core.Info
	data []byte
}

// Store implements core.Store backed by process memory. Intended for tests.
type Store struct {
	mu   sync.RWMutex
	objs map[string]entry
}

// New returns an in-memory content store.
func New() *Store { return &Store{objs: make(map[string]entry)} }

// Driver returns the content driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Put stores the payload under its digest. Storing identical bytes again
// returns the existing entry.
func (s *Store) Put(_ context.Context, r io.Reader, contentType string) (core.Info, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, err
	}
	sum := sha256.Sum256(b)
	ref := core.RefFor(sum[:])
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.objs[ref]; ok {
		return existing.info, nil
	}
	info := core.Info{Ref: ref, Size: int64(len(b)), ContentType: contentType, StoredAt: time.Now().UTC()}
	s.objs[ref] = entry{info: info, data: b}
	return info, nil
}

// Get returns payload info and a reader over a private copy of its bytes.
func (s *Store) Get(_ context.Context, ref string) (core.Info, io.ReadCloser, error) {
	if _, err := core.Digest(ref); err != nil {
		return core.Info{}, nil, err
	}
	s.mu.RLock()
	obj, ok := s.objs[ref]
	s.mu.RUnlock()
	if !ok {
		return core.Info{}, nil, fmt.Errorf("%w: %s", core.ErrNotFound, ref)
	}
	return obj.info, io.NopCloser(bytes.NewReader(append([]byte(nil), obj.data...))), nil
}

// Has reports whether ref is stored.
func (s *Store) Has(_ context.Context, ref string) (bool, error) {
	if _, err := core.Digest(ref); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objs[ref]
	return ok, nil
}

// List returns all stored payloads ordered by ref.
func (s *Store) List(_ context.Context) ([]core.Info, error) {
	s.mu.RLock()
	out := make([]core.Info, 0, len(s.objs))
	for _, obj := range s.objs {
		out = append(out, obj.info)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out, nil
}
