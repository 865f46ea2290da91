package cache

import (
	"errors"
	"io/fs"

	dserrors "github.com/systmms/akv/internal/errors"
	"github.com/systmms/akv/internal/logging"
)

// Store loads and saves a Cache through a Medium. It holds no cache state of
// its own; callers load, mutate and save explicitly.
type Store struct {
	medium Medium
	logger *logging.Logger
}

// NewStore creates a store over medium. A nil logger discards warnings.
func NewStore(medium Medium, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{medium: medium, logger: logger}
}

// Location describes where the cache is persisted.
func (s *Store) Location() string {
	return s.medium.Location()
}

// Exists reports whether a cache has been persisted before. An unreadable
// file counts as existing.
func (s *Store) Exists() bool {
	_, err := s.medium.Read()
	return !errors.Is(err, fs.ErrNotExist)
}

// Load returns the persisted cache. A missing, unreadable or corrupt cache
// yields an empty one; corruption is logged as a warning.
func (s *Store) Load() *Cache {
	c, err := s.LoadStrict()
	if err != nil {
		s.logger.Warn("%v", err)
	}
	return c
}

// LoadStrict behaves like Load but also returns the *CorruptError that Load
// only logs. The returned cache is never nil.
func (s *Store) LoadStrict() (*Cache, error) {
	data, err := s.medium.Read()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("No cache at %s, starting empty", s.medium.Location())
			return New(), nil
		}
		return New(), &CorruptError{Location: s.medium.Location(), Err: err}
	}

	c, err := Decode(data)
	if err != nil {
		return New(), &CorruptError{Location: s.medium.Location(), Err: err}
	}
	s.logger.Debug("Loaded %d vaults from %s", c.Len(), s.medium.Location())
	return c, nil
}

// Save persists c atomically. Failure here is fatal for the command.
func (s *Store) Save(c *Cache) error {
	data, err := Encode(c)
	if err != nil {
		return err
	}
	if err := s.medium.Write(data); err != nil {
		return dserrors.UserError{
			Message:    "Failed to save the name cache",
			Details:    err.Error(),
			Suggestion: "Check that " + s.medium.Location() + " is writable, or set cache_file in the akv config",
			Err:        err,
		}
	}
	s.logger.Debug("Saved %d vaults to %s", c.Len(), s.medium.Location())
	return nil
}
