package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const sessionFile = "session.json"

// Store persists a single session record in the app directory.
// Writes are atomic (temp file + rename) so a crash never leaves a
// half-written record behind.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. An empty dir defaults to
// ~/.conquiz.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".conquiz")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Load reads the persisted session. A missing file yields (nil, nil);
// a corrupted record yields an error so the caller can treat it as an
// unrecoverable local fault.
func (s *Store) Load() (*Session, error) {
	data, err := os.ReadFile(s.path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("corrupted session record: %w", err)
	}
	return &sess, nil
}

// Save writes the session atomically. A device id is assigned on first save
// and survives logins.
func (s *Store) Save(sess *Session) error {
	if sess.DeviceID == "" {
		if prev, err := s.Load(); err == nil && prev != nil && prev.DeviceID != "" {
			sess.DeviceID = prev.DeviceID
		} else {
			sess.DeviceID = uuid.NewString()
		}
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path())
}

// Clear removes the persisted record. Missing file is not an error.
func (s *Store) Clear() error {
	err := os.Remove(s.path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *Store) path() string {
	return filepath.Join(s.dir, sessionFile)
}
