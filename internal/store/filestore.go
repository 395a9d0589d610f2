package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/carlwiddowson/googleadsdashboard/internal/auth"
	"github.com/carlwiddowson/googleadsdashboard/internal/misc"
	"github.com/carlwiddowson/googleadsdashboard/internal/util"
)

// TokenFileName is the file holding the entries inside the auth directory.
const TokenFileName = "google_ads_tokens.json"

// FileStore persists the entries as a JSON object in a single file with 0600 permissions.
type FileStore struct {
	mu      sync.Mutex
	dirLock sync.RWMutex
	baseDir string
}

// NewFileStore creates a file store rooted at dir. A leading ~ is expanded.
func NewFileStore(dir string) *FileStore {
	s := &FileStore{}
	s.SetBaseDir(dir)
	return s
}

// SetBaseDir updates the directory holding the token file.
func (s *FileStore) SetBaseDir(dir string) {
	resolved, err := util.ResolveAuthDir(dir)
	if err != nil {
		resolved = strings.TrimSpace(dir)
	}
	s.dirLock.Lock()
	s.baseDir = resolved
	s.dirLock.Unlock()
}

// Path returns the token file location.
func (s *FileStore) Path() string {
	s.dirLock.RLock()
	defer s.dirLock.RUnlock()
	if s.baseDir == "" {
		return ""
	}
	return filepath.Join(s.baseDir, TokenFileName)
}

// Get implements auth.Store.
func (s *FileStore) Get(_ context.Context) (*auth.TokenSet, error) {
	path := s.Path()
	if path == "" {
		return nil, fmt.Errorf("file store: directory not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("file store: read %s: %w", path, err)
	}
	t, err := decodeEntries(data)
	if err != nil {
		return nil, fmt.Errorf("file store: %s: %w", path, err)
	}
	return t, nil
}

// Put implements auth.Store. The file is replaced atomically.
func (s *FileStore) Put(_ context.Context, t *auth.TokenSet) error {
	if t == nil {
		return errNilTokenSet
	}
	path := s.Path()
	if path == "" {
		return fmt.Errorf("file store: directory not configured")
	}
	raw, err := encodeEntries(t)
	if err != nil {
		return fmt.Errorf("file store: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("file store: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tokens-*.tmp")
	if err != nil {
		return fmt.Errorf("file store: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err = tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file store: chmod temp file: %w", err)
	}
	if _, err = tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file store: write temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("file store: close temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("file store: replace %s: %w", path, err)
	}
	misc.LogSavingCredentials(path)
	return nil
}

// Clear implements auth.Store.
func (s *FileStore) Clear(_ context.Context) error {
	path := s.Path()
	if path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file store: remove %s: %w", path, err)
	}
	return nil
}
