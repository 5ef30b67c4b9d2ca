package collection

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/shaiso/Pipeflow/internal/domain"
)

// Loader загружает содержимое vistrail по URL.
type Loader interface {
	// Valid сообщает, что источник по URL существует.
	Valid(url string) bool

	// Load читает vistrail.
	Load(ctx context.Context, url string) (*domain.Vistrail, error)

	// List возвращает URL всех vistrail в каталоге.
	List(ctx context.Context, dir string) ([]string, error)
}

const (
	fileScheme = "file://"

	// VistrailExt — расширение файлов vistrail, которые видит FileLoader.
	VistrailExt = ".vt.json"
)

// FileURL возвращает URL файла для индекса.
func FileURL(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return fileScheme + filepath.ToSlash(path)
}

// FileLoader читает vistrail из JSON файлов *.vt.json.
type FileLoader struct{}

// NewFileLoader создаёт FileLoader.
func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

func (l *FileLoader) path(url string) (string, bool) {
	if !strings.HasPrefix(url, fileScheme) {
		return "", false
	}
	return filepath.FromSlash(strings.TrimPrefix(url, fileScheme)), true
}

// Valid реализует Loader.
func (l *FileLoader) Valid(url string) bool {
	path, ok := l.path(url)
	if !ok {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Load реализует Loader.
//
// Пустые поля заполняются из файла: имя — из имени файла,
// размер и время изменения — из метаданных файла.
func (l *FileLoader) Load(ctx context.Context, url string) (*domain.Vistrail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, ok := l.path(url)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, url)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vistrail %s: %w", path, err)
	}

	var v domain.Vistrail
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vistrail %s: %w", path, err)
	}

	v.URL = url
	if v.Name == "" {
		v.Name = strings.TrimSuffix(filepath.Base(path), VistrailExt)
	}
	v.Size = info.Size()
	if v.ModifiedAt.IsZero() {
		v.ModifiedAt = info.ModTime().UTC()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = v.ModifiedAt
	}
	return &v, nil
}

// List реализует Loader.
func (l *FileLoader) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*"+VistrailExt))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	slices.Sort(matches)

	urls := make([]string, len(matches))
	for i, m := range matches {
		urls[i] = FileURL(m)
	}
	return urls, nil
}
