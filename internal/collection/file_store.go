package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore — Store в JSON файле для работы без базы данных.
//
// Файл переписывается целиком при каждом Commit через временный файл
// и rename, поэтому читатель никогда не видит половину снимка.
type FileStore struct {
	path string
	mem  *MemoryStore
}

// NewFileStore создаёт FileStore. Файл создаётся при первом Commit.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, mem: NewMemoryStore()}
}

// Path возвращает путь файла индекса.
func (s *FileStore) Path() string { return s.path }

// Load реализует Store.
func (s *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.mem = NewMemoryStore()
	case err != nil:
		return nil, fmt.Errorf("read index %s: %w", s.path, err)
	default:
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("parse index %s: %w", s.path, err)
		}
		s.mem.restore(&snap)
	}
	return s.mem.Load(ctx)
}

// Commit реализует Store.
func (s *FileStore) Commit(ctx context.Context, cs *Changeset) error {
	if err := s.mem.Commit(ctx, cs); err != nil {
		return err
	}
	return s.flush(ctx)
}

// Reset реализует Store.
func (s *FileStore) Reset(ctx context.Context) error {
	if err := s.mem.Reset(ctx); err != nil {
		return err
	}
	return s.flush(ctx)
}

func (s *FileStore) flush(ctx context.Context) error {
	snap, err := s.mem.Load(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}
