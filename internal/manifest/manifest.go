// package manifest persists per-playlist cache state.
//
// Each playlist owns a directory under the cache root containing its
// downloaded audio files plus a manifest.json describing them. The
// manifest is the single source of truth for what is cached; files on
// disk that no manifest row references are garbage from interrupted
// downloads and may be cleaned at any time.
package manifest

import (
	"time"

	"github.com/ethan-hawksley/yt-play/internal/resolver"
)

// Track records one downloaded playlist entry.
type Track struct {
	// VideoID is the remote identifier, unique within a playlist.
	VideoID string `json:"video_id"`
	Title   string `json:"title"`
	// File is the audio filename within the playlist directory. The
	// extension is whatever the downloader produced, so the name is
	// recorded at download time rather than derived.
	File string `json:"file"`
	// Position is the track's index in the remote listing as of the
	// last sync. Playback order follows it unless shuffle is requested.
	Position     int       `json:"position"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// Manifest is the full persisted cache state for one playlist.
type Manifest struct {
	Key       resolver.Key `json:"key"`
	Title     string       `json:"title"`
	CreatedAt time.Time    `json:"created_at"`
	SyncedAt  time.Time    `json:"synced_at"`
	Tracks    []Track      `json:"tracks"`
}

// Empty reports whether the playlist has never completed a sync. A
// synced playlist with zero tracks is not empty in this sense; it is a
// cached playlist that happens to have no entries.
func (m *Manifest) Empty() bool {
	return m.SyncedAt.IsZero()
}

// HasTrack reports whether a remote identifier is already cached.
func (m *Manifest) HasTrack(videoID string) bool {
	for _, t := range m.Tracks {
		if t.VideoID == videoID {
			return true
		}
	}
	return false
}

// TrackByID returns the cached track for a remote identifier.
func (m *Manifest) TrackByID(videoID string) (Track, bool) {
	for _, t := range m.Tracks {
		if t.VideoID == videoID {
			return t, true
		}
	}
	return Track{}, false
}

// VideoIDs returns the cached identifiers in manifest order.
func (m *Manifest) VideoIDs() []string {
	ids := make([]string, len(m.Tracks))
	for i, t := range m.Tracks {
		ids[i] = t.VideoID
	}
	return ids
}
