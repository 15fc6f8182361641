package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// ErrNoData is returned by Backend.Load when nothing is stored under a key.
var ErrNoData = errors.New("no data")

// Backend is a flat key-value store. Values are replaced whole.
type Backend interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
	Close() error
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// OpenBackend opens the named backend rooted at dir. The sqlite backend
// keeps everything in dir/sessions.db.
func OpenBackend(kind, dir string) (Backend, error) {
	switch kind {
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dir, "sessions.db"))
	case BackendFile, "":
		return NewFileBackend(dir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}

// FileBackend stores each key as <dir>/<key>.json.
type FileBackend struct {
	dir string
}

var unsafeKey = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, unsafeKey.ReplaceAllString(key, "_")+".json")
}

func (b *FileBackend) Load(key string) ([]byte, error) {
	data, err := os.ReadFile(b.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoData
	}
	return data, err
}

// Save writes through a temp file and renames it into place so a crash never
// leaves a half-written array behind.
func (b *FileBackend) Save(key string, data []byte) error {
	tmp, err := os.CreateTemp(b.dir, ".sessions-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), b.path(key)); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (b *FileBackend) Close() error { return nil }

func (b *FileBackend) Dir() string { return b.dir }

type MemoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Load(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNoData
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBackend) Save(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
