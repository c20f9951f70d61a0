package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileStorage reads and writes downloaded files below a root directory.
// An empty root resolves paths against the working directory.
type FileStorage struct {
	dir string
}

// NewFileStorage creates a new FileStorage instance with the given root directory.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

// Path returns the location of name on disk.
func (s *FileStorage) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists checks whether a regular file is present at name. A directory at
// name does not count.
func (s *FileStorage) Exists(name string) bool {
	info, err := os.Stat(s.Path(name))
	return err == nil && !info.IsDir()
}

// WriteFile writes data to name, creating parent directories as needed.
func (s *FileStorage) WriteFile(name string, data []byte) error {
	_, err := s.CopyFile(bytes.NewReader(data), name)
	return err
}

// CopyFile copies data from the provided reader to name, creating parent
// directories as needed. The data lands in a temporary file first so readers
// never see a partial file. Returns the number of bytes written.
func (s *FileStorage) CopyFile(src io.Reader, name string) (int64, error) {
	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	tmp := path + ".part"
	dst, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	n, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return n, fmt.Errorf("copy data: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return n, fmt.Errorf("rename file: %w", err)
	}
	return n, nil
}
