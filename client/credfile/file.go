package credfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultDirName  = "deepseek-platform"
	defaultFileName = "credential.json"
)

// FileStore keeps the credential in a JSON file under the user config
// directory. Writes go through a temp file + rename so a crash mid-write never
// leaves a truncated entry behind.
type FileStore struct {
	path string
}

type credentialFile struct {
	Token string `json:"token"`
}

// NewFileStore builds a FileStore at an explicit path. Empty path resolves to
// the default location under os.UserConfigDir.
func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("credfile: resolve config dir: %w", err)
		}
		path = filepath.Join(dir, defaultDirName, defaultFileName)
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load reads the persisted credential.
func (s *FileStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("credfile: read: %w", err)
	}

	var cf credentialFile
	if err := json.Unmarshal(data, &cf); err != nil {
		// A corrupt entry is equivalent to an absent one; the session will
		// simply start anonymous.
		return "", ErrNotFound
	}
	if strings.TrimSpace(cf.Token) == "" {
		return "", ErrNotFound
	}
	return cf.Token, nil
}

// Save atomically replaces the persisted credential.
func (s *FileStore) Save(token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("credfile: empty token")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("credfile: mkdir: %w", err)
	}

	data, err := json.Marshal(credentialFile{Token: token})
	if err != nil {
		return fmt.Errorf("credfile: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credential-*")
	if err != nil {
		return fmt.Errorf("credfile: temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("credfile: write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("credfile: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("credfile: close: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("credfile: rename: %w", err)
	}
	return nil
}

// Clear removes the persisted credential.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("credfile: remove: %w", err)
	}
	return nil
}
