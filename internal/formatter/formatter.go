// package formatter renders cached playlist manifests to various formats (plain text, M3U, JSON)
package formatter

import (
	"bytes"
	"fmt"
	"time"

	"github.com/ethan-hawksley/yt-play/internal/manifest"
	"github.com/ethan-hawksley/yt-play/internal/shared"
)

// Format names accepted by [Export].
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatM3U  = "m3u"
)

// Export renders a manifest in the named format. An empty format falls
// back to plain text.
func Export(store *manifest.Store, m *manifest.Manifest, format string) ([]byte, error) {
	switch format {
	case FormatText, "":
		return ExportToText(m)
	case FormatJSON:
		return ExportToJSON(m)
	case FormatM3U:
		return ExportToM3U(store, m)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (expected %s, %s, or %s)", shared.ErrInvalidFlag, format, FormatText, FormatJSON, FormatM3U)
	}
}

// ExportToText converts a manifest to a numbered plain text track list
// headed by sync metadata.
func ExportToText(m *manifest.Manifest) ([]byte, error) {
	var buf bytes.Buffer

	title := m.Title
	if title == "" {
		title = m.Key.String()
	}
	buf.WriteString(fmt.Sprintf("Playlist: %s\n", title))
	buf.WriteString(fmt.Sprintf("URL: %s\n", m.Key.PlaylistURL()))
	if !m.SyncedAt.IsZero() {
		buf.WriteString(fmt.Sprintf("Synced: %s\n", m.SyncedAt.Format(time.RFC3339)))
	}
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(m.Tracks)))

	for i, track := range m.Tracks {
		buf.WriteString(fmt.Sprintf("%d. %s [%s]\n", i+1, track.Title, track.VideoID))
	}

	return buf.Bytes(), nil
}

// ExportToM3U converts a manifest to extended M3U, one EXTINF line and
// absolute file path per track, playable by most media players.
func ExportToM3U(store *manifest.Store, m *manifest.Manifest) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("#EXTM3U\n")
	for _, track := range m.Tracks {
		buf.WriteString(fmt.Sprintf("#EXTINF:-1,%s\n", track.Title))
		buf.WriteString(store.TrackPath(m.Key, track) + "\n")
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a manifest to indented JSON, the same document
// the store persists.
func ExportToJSON(m *manifest.Manifest) ([]byte, error) {
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate manifest JSON: %w", err)
	}
	return data, nil
}
