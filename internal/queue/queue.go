// package queue builds playback queues from cached manifests.
package queue

import (
	"math/rand"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ethan-hawksley/yt-play/internal/manifest"
	"github.com/ethan-hawksley/yt-play/internal/shared"
)

// Build returns the absolute paths of a playlist's cached audio files
// in playback order.
//
// Without shuffle the queue follows manifest order, which tracks the
// remote listing as of the last sync. With shuffle the queue is a fresh
// pseudo-random permutation on every call; the permutation is never
// persisted. Tracks whose files are missing on disk are skipped with a
// warning rather than handed to the player.
func Build(store *manifest.Store, m *manifest.Manifest, shuffleRequested bool, logger *log.Logger) []string {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	paths := make([]string, 0, len(m.Tracks))
	for _, t := range m.Tracks {
		path := store.TrackPath(m.Key, t)
		if _, err := os.Stat(path); err != nil {
			logger.Warn("skipping track with missing file", "title", t.Title, "file", t.File)
			continue
		}
		paths = append(paths, path)
	}

	if shuffleRequested {
		shuffle(paths)
	}

	return paths
}

// shuffle permutes the queue in place. A fresh time-seeded source per
// call keeps successive invocations independent.
func shuffle(paths []string) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	rng.Shuffle(len(paths), func(i, j int) {
		paths[i], paths[j] = paths[j], paths[i]
	})
}
