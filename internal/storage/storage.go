// Package storage provides the durable local key-value store backing device
// identity and device token persistence. It plays the role the browser's
// localStorage plays for the web client: two opaque string keys, no expiry.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Keys persisted by the client.
const (
	KeyDeviceID    = "device_id"
	KeyDeviceToken = "device_token"
)

// Store is a durable string key-value store. Implementations must make a Get
// following a Set from the same caller observe that Set; no ordering is
// guaranteed across independent callers racing on the same key.
type Store interface {
	// Get returns the stored value for key, or "" when the key is absent.
	Get(key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
}

// FileStore persists keys as a JSON object in a single file under the user
// config directory, mirroring how the CLI keeps its credentials.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// DefaultDir returns the directory holding client state: VOTE_STORAGE_DIR if
// set, else $XDG_CONFIG_HOME/wcmvpvs, else ~/.config/wcmvpvs.
func DefaultDir() string {
	if v := os.Getenv("VOTE_STORAGE_DIR"); v != "" {
		return v
	}
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "wcmvpvs")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "wcmvpvs")
}

// NewFileStore creates a store rooted at dir (DefaultDir when empty).
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultDir()
	}
	return &FileStore{path: filepath.Join(dir, "device.json")}
}

// Get implements Store.
func (s *FileStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.read()
	if err != nil {
		return "", err
	}
	return m[key], nil
}

// Set implements Store.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.read()
	if err != nil {
		return err
	}
	m[key] = value
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o600)
}

func (s *FileStore) read() (map[string]string, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read storage file: %w", err)
	}
	m := map[string]string{}
	if err := json.Unmarshal(b, &m); err != nil {
		// Corrupt state file: start over rather than wedging every caller.
		return map[string]string{}, nil
	}
	return m, nil
}
