package cache

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Medium is where the encoded cache lives. Read must return an error
// satisfying errors.Is(err, fs.ErrNotExist) when nothing was written yet.
type Medium interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Location() string
}

// DefaultPath returns ~/.akv_cache.json, the location every akv release has used.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".akv_cache.json")
	}
	return filepath.Join(os.TempDir(), "akv_cache.json")
}

// FileMedium stores the cache in a single file and replaces it atomically.
type FileMedium struct {
	Path string
}

// NewFileMedium creates a file-backed medium.
func NewFileMedium(path string) *FileMedium {
	return &FileMedium{Path: path}
}

func (f *FileMedium) Location() string {
	return f.Path
}

func (f *FileMedium) Read() ([]byte, error) {
	return os.ReadFile(f.Path)
}

// Write stores data in a temporary file next to the target and renames it
// into place, so readers see either the old or the new snapshot.
func (f *FileMedium) Write(data []byte) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temporary cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to flush temporary cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary cache file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return fmt.Errorf("failed to set cache file permissions: %w", err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	committed = true
	return nil
}

// MemoryMedium keeps the cache in memory. Tests use it instead of a file.
type MemoryMedium struct {
	mu     sync.Mutex
	data   []byte
	exists bool

	// ReadErr and WriteErr, when set, are returned by Read and Write.
	ReadErr  error
	WriteErr error
	// Writes counts successful writes.
	Writes int
}

// NewMemoryMedium returns an empty medium, optionally pre-loaded with data.
func NewMemoryMedium(initial []byte) *MemoryMedium {
	m := &MemoryMedium{}
	if initial != nil {
		m.data = append([]byte(nil), initial...)
		m.exists = true
	}
	return m
}

func (m *MemoryMedium) Location() string {
	return "memory"
}

func (m *MemoryMedium) Read() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	if !m.exists {
		return nil, fs.ErrNotExist
	}
	return append([]byte(nil), m.data...), nil
}

func (m *MemoryMedium) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.data = append([]byte(nil), data...)
	m.exists = true
	m.Writes++
	return nil
}

// Bytes returns a copy of the last written data.
func (m *MemoryMedium) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}
