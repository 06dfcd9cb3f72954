package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"appshell/pkg/platform/sentinel"
)

const defaultFileName = "kv.json"

// FileStore keeps every key in one private JSON document on disk
// (directory 0700, file 0600). Writes replace the document atomically
// through a temp file and rename, so a crash mid-write leaves the previous
// document intact. A document that no longer decodes fails reads with
// sentinel.ErrCorrupt and is quarantined by the next write.
type FileStore struct {
	mu   sync.Mutex
	path string
}

type fileDocument struct {
	Keys map[string]string `json:"keys"`
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileName overrides the document name inside the data directory.
func WithFileName(name string) FileOption {
	return func(s *FileStore) {
		if name != "" {
			s.path = filepath.Join(filepath.Dir(s.path), name)
		}
	}
}

// NewFile creates the data directory if needed and returns a store rooted in it.
func NewFile(dir string, opts ...FileOption) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: data directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("file store: create data dir: %w", err)
	}
	s := &FileStore{path: filepath.Join(dir, defaultFileName)}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Path returns the document location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := doc.Keys[key]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return v, nil
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadForWrite()
	if err != nil {
		return err
	}
	doc.Keys[key] = value
	return s.save(doc)
}

func (s *FileStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadForWrite()
	if err != nil {
		return err
	}
	if _, ok := doc.Keys[key]; !ok {
		return nil
	}
	delete(doc.Keys, key)
	return s.save(doc)
}

func (s *FileStore) load() (fileDocument, error) {
	doc := fileDocument{Keys: map[string]string{}}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("file store: read %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("file store: decode %s: %w", s.path, sentinel.ErrCorrupt)
	}
	if doc.Keys == nil {
		doc.Keys = map[string]string{}
	}
	return doc, nil
}

// loadForWrite treats an undecodable document as empty so writes can
// recover. The bad document is moved aside as <path>.corrupt-<unix nanos>
// rather than overwritten.
func (s *FileStore) loadForWrite() (fileDocument, error) {
	doc, err := s.load()
	if !errors.Is(err, sentinel.ErrCorrupt) {
		return doc, err
	}
	aside := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().UnixNano())
	if err := os.Rename(s.path, aside); err != nil {
		return doc, fmt.Errorf("file store: quarantine %s: %w", s.path, err)
	}
	return fileDocument{Keys: map[string]string{}}, nil
}

func (s *FileStore) save(doc fileDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("file store: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".kv-*.tmp")
	if err != nil {
		return fmt.Errorf("file store: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("file store: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("file store: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file store: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("file store: chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("file store: replace document: %w", err)
	}
	return nil
}
