package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ethan-hawksley/yt-play/internal/resolver"
	"github.com/ethan-hawksley/yt-play/internal/shared"
)

const manifestName = "manifest.json"

// Store reads and writes playlist manifests under a cache root.
//
// Layout: <root>/<source>/<playlist id>/manifest.json next to the
// playlist's audio files. Saves are atomic; a crash mid-save leaves
// either the old manifest or the new one, never a blend.
type Store struct {
	root   string
	logger *log.Logger
}

// NewStore creates the cache root if needed and returns a store rooted there.
func NewStore(root string, logger *log.Logger) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("cache root must not be empty")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache root: %w", err)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Store{root: root, logger: logger}, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// PlaylistDir returns the directory holding a playlist's files.
func (s *Store) PlaylistDir(key resolver.Key) string {
	return filepath.Join(s.root, string(key.Source), key.ID)
}

// ManifestPath returns the manifest location for a playlist.
func (s *Store) ManifestPath(key resolver.Key) string {
	return filepath.Join(s.PlaylistDir(key), manifestName)
}

// TrackPath returns the absolute path of a cached track's audio file.
func (s *Store) TrackPath(key resolver.Key, t Track) string {
	return filepath.Join(s.PlaylistDir(key), t.File)
}

// Load returns the manifest for a playlist key.
//
// A playlist that has never been synced yields an empty manifest, not
// an error. Persisted state that exists but cannot be parsed fails with
// shared.ErrCorruptManifest; the cache is never silently discarded.
func (s *Store) Load(key resolver.Key) (*Manifest, error) {
	path := s.ManifestPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Manifest{Key: key}, nil
		}
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrCorruptManifest, path, err)
	}
	if m.Key != key {
		return nil, fmt.Errorf("%w: %s: manifest key %s does not match %s", shared.ErrCorruptManifest, path, m.Key, key)
	}

	return &m, nil
}

// Save atomically persists a manifest. The playlist directory is
// created if this is the first save.
func (s *Store) Save(m *Manifest) error {
	path := s.ManifestPath(m.Key)

	w, err := newAtomicWriter(path)
	if err != nil {
		return fmt.Errorf("failed to stage manifest write: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		w.Abort()
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		w.Abort()
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := w.Commit(); err != nil {
		return fmt.Errorf("failed to commit manifest: %w", err)
	}

	return nil
}

// Lock acquires the per-playlist sync lock, creating the playlist
// directory if needed. Callers must Unlock when done.
func (s *Store) Lock(key resolver.Key, timeout time.Duration) (*FileLock, error) {
	dir := s.PlaylistDir(key)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create playlist directory: %w", err)
	}

	lock := NewFileLock(filepath.Join(dir, manifestName))
	if err := lock.Lock(timeout); err != nil {
		return nil, err
	}
	return lock, nil
}

// DeleteTrackFile removes a track's audio file. A file that is already
// gone is not an error.
func (s *Store) DeleteTrackFile(key resolver.Key, t Track) error {
	if t.File == "" {
		return nil
	}
	err := os.Remove(s.TrackPath(key, t))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// RemovePlaylist deletes a playlist's directory, files and manifest
// included. Returns shared.ErrPlaylistNotCached if nothing is cached.
func (s *Store) RemovePlaylist(key resolver.Key) error {
	dir := s.PlaylistDir(key)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", shared.ErrPlaylistNotCached, key)
		}
		return err
	}
	return os.RemoveAll(dir)
}

// Purge deletes every cached playlist while leaving the cache root (and
// anything else in it, like the history database) in place.
func (s *Store) Purge() error {
	for _, source := range []resolver.Source{resolver.SourceYouTube, resolver.SourceYouTubeMusic} {
		dir := filepath.Join(s.root, string(source))
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dir, err)
		}
	}
	return nil
}

// List loads every manifest under the cache root, ordered by source
// then playlist identifier. Corrupt manifests are logged and skipped so
// one bad playlist does not hide the rest.
func (s *Store) List() ([]*Manifest, error) {
	var manifests []*Manifest

	for _, source := range []resolver.Source{resolver.SourceYouTube, resolver.SourceYouTubeMusic} {
		sourceDir := filepath.Join(s.root, string(source))
		entries, err := os.ReadDir(sourceDir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read cache directory: %w", err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			key := resolver.Key{Source: source, ID: entry.Name()}
			m, err := s.Load(key)
			if err != nil {
				s.logger.Warn("skipping unreadable manifest", "key", key, "error", err)
				continue
			}
			if m.Empty() {
				continue
			}
			manifests = append(manifests, m)
		}
	}

	return manifests, nil
}
