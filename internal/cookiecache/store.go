package cookiecache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"

	"github.com/sso-tools/sso-grabber/internal/constants"
)

// loadedSetsCacheSize bounds the in-memory cache of loaded cookie sets.
// A single process rarely touches more than a handful of identities.
const loadedSetsCacheSize = 16

// Store reads and writes per-identity cookie files under a single directory.
type Store struct {
	fs  afero.Fs
	dir string

	// loaded caches parsed cookie sets by key so repeated loads within
	// one process don't re-read and re-parse the file.
	loaded *lru.Cache[string, []Record]
}

// NewStore creates a store rooted at dir on the real filesystem.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithFs(afero.NewOsFs(), dir)
}

// NewStoreWithFs creates a store rooted at dir on the given filesystem.
func NewStoreWithFs(fs afero.Fs, dir string) (*Store, error) {
	loaded, err := lru.New[string, []Record](loadedSetsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie set cache: %w", err)
	}

	return &Store{
		fs:     fs,
		dir:    dir,
		loaded: loaded,
	}, nil
}

// Path returns the cookie file path for a cache key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key+constants.ExtensionJSON)
}

// Load reads the cookie set stored under key.
// A missing file is not an error: it loads as an empty set.
func (s *Store) Load(key string) ([]Record, error) {
	if records, ok := s.loaded.Get(key); ok {
		return records, nil
	}

	data, err := afero.ReadFile(s.fs, s.Path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	var records []Record
	if err = json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode cookie file: %w", err)
	}

	s.loaded.Add(key, records)

	return records, nil
}

// Save overwrites the cookie set stored under key.
func (s *Store) Save(key string, records []Record) error {
	if err := s.fs.MkdirAll(s.dir, constants.CookieFolderPermissions); err != nil {
		return fmt.Errorf("failed to create cookie directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cookie set: %w", err)
	}

	if err = afero.WriteFile(s.fs, s.Path(key), data, constants.CookieFilePermissions); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}

	s.loaded.Add(key, records)

	return nil
}
