// Package osfilesystem implements ports.FileSystem on the local disk.
package osfilesystem

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/user/framecoder/pkg/ports"
)

// Stdio is the path that Create maps to standard output.
const Stdio = "-"

// FileSystem implements ports.FileSystem using the os package.
type FileSystem struct{}

// New creates a new FileSystem.
func New() *FileSystem {
	return &FileSystem{}
}

func (fs *FileSystem) ReadFile(path string) ([]byte, error) {
	if path == Stdio {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// WriteFile writes data to a file, creating parent directories.
func (fs *FileSystem) WriteFile(path string, data []byte) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Create opens path for writing, creating parent directories. "-" returns
// standard output, which Close leaves open. Regular files are also
// io.Seekers, which lets container writers patch headers.
func (fs *FileSystem) Create(path string) (io.WriteCloser, error) {
	if path == Stdio {
		return stdout{os.Stdout}, nil
	}
	if err := ensureParent(path); err != nil {
		return nil, err
	}
	return os.Create(path)
}

// Glob returns the sorted matches of pattern.
func (fs *FileSystem) Glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (fs *FileSystem) MkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func (fs *FileSystem) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (fs *FileSystem) Remove(path string) error {
	return os.Remove(path)
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

type stdout struct {
	io.Writer
}

func (stdout) Close() error { return nil }

var _ ports.FileSystem = (*FileSystem)(nil)
