// Package upload abstracts the files a user hands to the authoring surface,
// whether they arrive as multipart parts, paths on disk or in-memory bytes.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for uploaded files.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrFileRequired        = errors.New("file is required")
)

// File is a named, re-openable upload.
type File struct {
	Name string
	Size int64
	open func() (io.ReadCloser, error)
}

// Open returns a fresh reader over the file contents.
func (f File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("%w: %s has no content", ErrFileRequired, f.Name)
	}
	return f.open()
}

// ReadAll buffers the whole file, refusing anything above limit bytes.
// A limit <= 0 disables the check.
func (f File) ReadAll(limit int64) ([]byte, error) {
	if limit > 0 && f.Size > limit {
		return nil, fmt.Errorf("%w: %s is %d bytes (max: %d)", ErrFileTooLarge, f.Name, f.Size, limit)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, f.Name, limit)
	}
	return data, nil
}

// Ext returns the lower-cased extension including the dot.
func (f File) Ext() string {
	return Ext(f.Name)
}

// Base returns the filename without directory and extension.
func (f File) Base() string {
	return Base(f.Name)
}

// FromMultipart wraps a multipart part header.
func FromMultipart(h *multipart.FileHeader) File {
	return File{
		Name: filepath.Base(h.Filename),
		Size: h.Size,
		open: func() (io.ReadCloser, error) { return h.Open() },
	}
}

// FromMultipartList wraps every header in order.
func FromMultipartList(headers []*multipart.FileHeader) []File {
	files := make([]File, 0, len(headers))
	for _, h := range headers {
		files = append(files, FromMultipart(h))
	}
	return files
}

// FromPath wraps a file on disk. The size is taken at call time.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%w: %s is a directory", ErrUnsupportedFileType, path)
	}
	return File{
		Name: filepath.Base(path),
		Size: info.Size(),
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// FromBytes wraps in-memory content.
func FromBytes(name string, data []byte) File {
	return File{
		Name: name,
		Size: int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Ext returns the lower-cased extension of name including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// Base returns name without directory and extension.
func Base(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// HasExt reports whether name carries one of exts (case-insensitive).
func HasExt(name string, exts ...string) bool {
	ext := Ext(name)
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
