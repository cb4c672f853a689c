package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store keeps uploaded archives on local disk until a background job picks
// them up.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save copies f to the store under a UUID filename that keeps the original
// extension. Returns the absolute path of the stored copy.
func (s *Store) Save(f File) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	src, err := f.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	destPath := filepath.Join(s.dir, uuid.New().String()+f.Ext())
	dst, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(destPath)
		return "", fmt.Errorf("write file: %w", err)
	}

	abs, err := filepath.Abs(destPath)
	if err != nil {
		return destPath, nil
	}
	return abs, nil
}

// Open re-wraps a stored copy under its original display name.
func (s *Store) Open(path, displayName string) (File, error) {
	if !s.owns(path) {
		return File{}, fmt.Errorf("%w: %s is outside the upload dir", ErrUnsupportedFileType, path)
	}
	f, err := FromPath(path)
	if err != nil {
		return File{}, err
	}
	if displayName != "" {
		f.Name = displayName
	}
	return f, nil
}

// Remove deletes stored copies, ignoring files that are already gone.
func (s *Store) Remove(paths ...string) {
	for _, p := range paths {
		if p == "" || !s.owns(p) {
			continue
		}
		_ = os.Remove(p)
	}
}

func (s *Store) owns(path string) bool {
	root, err := filepath.Abs(s.dir)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(abs, root+string(filepath.Separator))
}
