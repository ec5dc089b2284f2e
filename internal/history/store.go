// Package history keeps decoded results and their annotated images on disk.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/codereader/internal/utils"
)

const (
	// DefaultMaxCount is the number of entries kept unless configured.
	DefaultMaxCount = 100

	dbFileName = "history.json"
	imageDir   = "images"
	imageExt   = ".png"

	timestampFormat = "02.01.2006  15:04:05"
)

// ErrNotFound is returned for unknown entry ids.
var ErrNotFound = errors.New("history: entry not found")

// Entry is one recorded scan.
type Entry struct {
	ID        string    `json:"id" yaml:"id"`
	Value     string    `json:"value" yaml:"value"`
	Format    string    `json:"format" yaml:"format"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	HasImage  bool      `json:"has_image" yaml:"has_image"`
}

// FormatTimestamp renders the entry time the way it is shown in lists.
func (e Entry) FormatTimestamp() string {
	return e.Timestamp.Local().Format(timestampFormat)
}

// Options configures a Store.
type Options struct {
	Dir string
	// MaxCount bounds the number of entries; zero or less keeps everything.
	MaxCount   int
	SaveImages bool
	Logger     *slog.Logger
}

// Store is a file-backed, newest-first list of entries.
type Store struct {
	dir        string
	saveImages bool
	logger     *slog.Logger

	mu       sync.RWMutex
	maxCount int
	entries  []Entry
	now      func() time.Time
}

// Open loads the store in opts.Dir, creating the directory if needed.
func Open(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, errors.New("history: empty directory")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Join(opts.Dir, imageDir), 0o750); err != nil {
		return nil, fmt.Errorf("history: create directory: %w", err)
	}

	s := &Store{
		dir:        opts.Dir,
		saveImages: opts.SaveImages,
		logger:     logger,
		maxCount:   opts.MaxCount,
		now:        time.Now,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	if kept, dropped := trim(s.entries, s.maxCount, 0); len(dropped) > 0 {
		if err := s.commitLocked(kept, dropped); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Insert records a result. img is saved alongside when image saving is
// enabled and img is not nil. Entries beyond the maximum count are dropped,
// oldest first, together with their images.
func (s *Store) Insert(value, format string, img image.Image) (Entry, error) {
	e := Entry{
		ID:     uuid.NewString(),
		Value:  value,
		Format: format,
	}

	// The image is written under the lock so that Purge never sees a file
	// whose entry is not recorded yet.
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveImages && img != nil {
		if err := utils.SaveImage(s.imagePath(e.ID), img); err != nil {
			return Entry{}, fmt.Errorf("history: save image: %w", err)
		}
		e.HasImage = true
	}

	e.Timestamp = s.now().UTC().Truncate(time.Second)
	kept, dropped := trim(s.entries, s.maxCount, 1)
	entries := append([]Entry{e}, kept...)
	if err := s.commitLocked(entries, dropped); err != nil {
		s.removeImage(e)
		return Entry{}, err
	}
	s.logger.Debug("history entry added", "id", e.ID, "format", format)
	return e, nil
}

// List returns all entries, newest first.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...)
}

// Count returns the number of entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Get returns the entry with the given id.
func (s *Store) Get(id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.entries[i], nil
	}
	return Entry{}, ErrNotFound
}

// Remove deletes an entry and its image.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	entries := make([]Entry, 0, len(s.entries)-1)
	entries = append(entries, s.entries[:i]...)
	entries = append(entries, s.entries[i+1:]...)
	return s.commitLocked(entries, s.entries[i:i+1])
}

// RemoveAll clears the history.
func (s *Store) RemoveAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commitLocked(nil, s.entries)
}

// MaxCount returns the configured maximum number of entries.
func (s *Store) MaxCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxCount
}

// SetMaxCount changes the maximum and trims the history if needed.
func (s *Store) SetMaxCount(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kept, dropped := trim(s.entries, n, 0); len(dropped) > 0 {
		if err := s.commitLocked(kept, dropped); err != nil {
			return err
		}
	}
	s.maxCount = n
	return nil
}

// ImagePath returns the path of the image stored for id.
func (s *Store) ImagePath(id string) (string, error) {
	e, err := s.Get(id)
	if err != nil {
		return "", err
	}
	if !e.HasImage {
		return "", fmt.Errorf("history: entry %s has no image: %w", id, ErrNotFound)
	}
	return s.imagePath(id), nil
}

// Image loads the image stored for id.
func (s *Store) Image(id string) (image.Image, error) {
	path, err := s.ImagePath(id)
	if err != nil {
		return nil, err
	}
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("history: load image: %w", err)
	}
	return img, nil
}

// Purge deletes image files that no entry refers to and returns how many
// were removed. It holds the read lock throughout, so inserts wait for it.
func (s *Store) Purge() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keep := make(map[string]bool, len(s.entries))
	for _, e := range s.entries {
		if e.HasImage {
			keep[e.ID+imageExt] = true
		}
	}

	files, err := os.ReadDir(filepath.Join(s.dir, imageDir))
	if err != nil {
		return 0, fmt.Errorf("history: read image directory: %w", err)
	}

	removed := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), imageExt) || keep[f.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, imageDir, f.Name())); err != nil {
			s.logger.Warn("failed to remove orphaned image", "file", f.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func (s *Store) indexLocked(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// trim splits entries into the newest ones that leave room for reserve more
// under maxCount and the oldest ones that must go. entries is not modified.
func trim(entries []Entry, maxCount, reserve int) (kept, dropped []Entry) {
	if maxCount <= 0 {
		return entries, nil
	}
	limit := max(maxCount-reserve, 0)
	if len(entries) <= limit {
		return entries, nil
	}
	return entries[:limit:limit], entries[limit:]
}

// commitLocked writes entries to disk and only then makes them current and
// deletes the images of dropped.
func (s *Store) commitLocked(entries, dropped []Entry) error {
	if err := s.writeLocked(entries); err != nil {
		return err
	}
	s.entries = entries
	for _, e := range dropped {
		s.logger.Debug("removing history entry", "id", e.ID)
		s.removeImage(e)
	}
	return nil
}

func (s *Store) removeImage(e Entry) {
	if !e.HasImage {
		return
	}
	if err := os.Remove(s.imagePath(e.ID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove history image", "id", e.ID, "error", err)
	}
}

func (s *Store) imagePath(id string) string {
	return filepath.Join(s.dir, imageDir, id+imageExt)
}

func (s *Store) load() error {
	data, err := os.ReadFile(filepath.Join(s.dir, dbFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("history: read: %w", err)
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return fmt.Errorf("history: parse %s: %w", dbFileName, err)
	}
	return nil
}

func (s *Store) writeLocked(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("history: encode: %w", err)
	}

	path := filepath.Join(s.dir, dbFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("history: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("history: write: %w", err)
	}
	return nil
}
