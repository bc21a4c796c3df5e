// Package store persists captured sessions as plain text files.
//
// A session is a single file in the data directory named by its id. The file
// is the whole record: there is no index or metadata alongside it. One capture
// process appends to a file while any number of gateway requests read it.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidID is returned for ids that cannot name a file in the data directory.
var ErrInvalidID = errors.New("invalid session id")

// Store is a directory of session files.
type Store struct {
	dataDir string
	metaDir string
}

// New creates a store over dataDir, with server logs kept in metaDir.
func New(dataDir, metaDir string) *Store {
	return &Store{
		dataDir: dataDir,
		metaDir: metaDir,
	}
}

// DataDir returns the session directory.
func (s *Store) DataDir() string {
	return s.dataDir
}

// EnsureDirectories creates the data and meta directories. It is idempotent.
func (s *Store) EnsureDirectories() error {
	for _, dir := range []string{s.dataDir, s.metaDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// NewID returns a random session id.
func (s *Store) NewID() string {
	return uuid.NewString()
}

// ValidateID reports whether id can safely name a session file.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidID)
	case id == "." || strings.Contains(id, ".."):
		return fmt.Errorf("%w: %q contains '..'", ErrInvalidID, id)
	case strings.ContainsAny(id, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidID, id)
	case strings.ContainsRune(id, 0):
		return fmt.Errorf("%w: contains a null byte", ErrInvalidID)
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dataDir, id)
}

// OpenForAppend opens the session file for appending, creating it if needed.
// Existing content is never truncated.
func (s *Store) OpenForAppend(id string) (*Writer, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(s.path(id), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open session %s: %w", id, err)
	}

	return &Writer{id: id, file: f}, nil
}

// DiscardIfEmpty removes the session file when it holds no bytes.
// It reports whether the file was removed. A missing file is not an error.
func (s *Store) DiscardIfEmpty(id string) (bool, error) {
	if err := ValidateID(id); err != nil {
		return false, err
	}

	path := s.path(id)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat session %s: %w", id, err)
	}
	if info.Size() > 0 {
		return false, nil
	}

	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("remove session %s: %w", id, err)
	}
	return true, nil
}

// List returns the ids of all sessions in directory order.
// The order is whatever the filesystem reports and is not sorted.
func (s *Store) List() ([]string, error) {
	dir, err := os.Open(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("open data directory: %w", err)
	}
	defer dir.Close()

	entries, err := dir.ReadDir(-1)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read data directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ids = append(ids, entry.Name())
	}
	return ids, nil
}

// Exists reports whether a session file named id exists.
func (s *Store) Exists(id string) bool {
	if ValidateID(id) != nil {
		return false
	}
	info, err := os.Stat(s.path(id))
	return err == nil && !info.IsDir()
}

// ReadLines returns the lines of session id. The boolean is false when no
// such session exists. A single trailing newline does not produce an extra
// empty line, and an empty file has no lines.
func (s *Store) ReadLines(id string) ([]string, bool, error) {
	if ValidateID(id) != nil {
		return nil, false, nil
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read session %s: %w", id, err)
	}

	return SplitLines(string(data)), true, nil
}

// SplitLines splits content on "\n", dropping the terminator of the last line.
// Only an empty file has no lines; "\n" is a single empty line.
func SplitLines(content string) []string {
	if content == "" {
		return []string{}
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}
