package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Storage keys.
const (
	TokenKey = "token"
	UserKey  = "user"
)

// Storage is durable key/value storage for the session. Only this package
// reads or writes it.
type Storage interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error
}

// FileStorage keeps session entries in a JSON file on the local filesystem.
type FileStorage struct {
	path string
	mu   sync.Mutex
}

type fileContents struct {
	Version int               `json:"version"`
	Entries map[string]string `json:"entries"`
}

// NewFileStorage creates file-backed storage.
// If baseDir is empty, uses ~/.orgctl/
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".orgctl")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	fs := &FileStorage{path: filepath.Join(baseDir, "session.json")}

	log.Debug().Str("path", fs.path).Msg("session storage initialized")

	return fs, nil
}

// Path returns the location of the session file.
func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	contents, err := f.load()
	if err != nil {
		return "", false, err
	}

	value, ok := contents.Entries[key]
	return value, ok, nil
}

func (f *FileStorage) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	contents, err := f.load()
	if err != nil {
		return err
	}

	contents.Entries[key] = value

	return f.save(contents)
}

func (f *FileStorage) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	contents, err := f.load()
	if err != nil {
		return err
	}

	if _, ok := contents.Entries[key]; !ok {
		return nil
	}
	delete(contents.Entries, key)

	return f.save(contents)
}

// load reads the session file. A missing file is an empty session, and so
// is one that can't be parsed, which is removed.
func (f *FileStorage) load() (*fileContents, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return emptyContents(), nil
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var contents fileContents
	if err := json.Unmarshal(data, &contents); err != nil {
		log.Warn().Err(err).Str("path", f.path).Msg("session file is unreadable, discarding it")
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove unreadable session: %w", err)
		}
		return emptyContents(), nil
	}

	if contents.Entries == nil {
		contents.Entries = make(map[string]string)
	}

	return &contents, nil
}

func emptyContents() *fileContents {
	return &fileContents{Version: 1, Entries: make(map[string]string)}
}

// save writes the session file atomically.
func (f *FileStorage) save(contents *fileContents) error {
	data, err := json.MarshalIndent(contents, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tempPath := f.path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	if err := os.Rename(tempPath, f.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// MemoryStorage keeps session entries in memory.
// This implementation is for testing and throwaway sessions - data is lost on exit.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryStorage creates empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.entries[key]
	return value, ok, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = value
	return nil
}

func (m *MemoryStorage) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}
