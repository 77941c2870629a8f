// package resolver turns playlist URLs into stable cache keys.
//
// A key combines the source (YouTube or YouTube Music) with the remote
// playlist identifier, so the same playlist resolves to the same cache
// entry no matter which URL shape the user pastes.
package resolver

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/ethan-hawksley/yt-play/internal/shared"
)

// Source tags which site a playlist came from. The two sites share
// identifiers but are kept distinct in cache keys.
type Source string

const (
	SourceYouTube      Source = "youtube"
	SourceYouTubeMusic Source = "ytmusic"
)

// playlistIDPattern matches the identifier carried in the list query
// parameter (e.g. "PLrAXtmErZgOeiKm4sgNOknGvNjby9efdf").
var playlistIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{2,}$`)

// Key is the normalized identity of a playlist, used to locate its
// cache directory and manifest.
type Key struct {
	Source Source `json:"source"`
	ID     string `json:"id"`
}

// Resolve parses a playlist URL and returns its cache key.
//
// Recognized hosts are youtube.com (with www. and m. variants), youtu.be,
// and music.youtube.com. The playlist identifier is taken from the list
// query parameter, so plain playlist URLs and watch URLs that carry a
// list parameter both resolve.
func Resolve(raw string) (Key, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %s", shared.ErrInvalidURL, raw)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Key{}, fmt.Errorf("%w: %s", shared.ErrInvalidURL, raw)
	}

	source, ok := sourceForHost(parsed.Hostname())
	if !ok {
		return Key{}, fmt.Errorf("%w: unsupported host %q", shared.ErrInvalidURL, parsed.Hostname())
	}

	id := parsed.Query().Get("list")
	if id == "" {
		return Key{}, fmt.Errorf("%w: no list parameter in %s", shared.ErrInvalidURL, raw)
	}
	if !playlistIDPattern.MatchString(id) {
		return Key{}, fmt.Errorf("%w: malformed playlist identifier %q", shared.ErrInvalidURL, id)
	}

	return Key{Source: source, ID: id}, nil
}

// sourceForHost maps a hostname to its source tag.
func sourceForHost(host string) (Source, bool) {
	switch strings.ToLower(host) {
	case "music.youtube.com":
		return SourceYouTubeMusic, true
	case "youtube.com", "www.youtube.com", "m.youtube.com", "youtu.be":
		return SourceYouTube, true
	default:
		return "", false
	}
}

// String renders the key in source/id form for logs and history rows.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Source, k.ID)
}

// PlaylistURL reconstructs the canonical playlist page for the key.
// Listing always uses this form, so a watch URL with a list parameter
// syncs the whole playlist rather than the single video.
func (k Key) PlaylistURL() string {
	host := "www.youtube.com"
	if k.Source == SourceYouTubeMusic {
		host = "music.youtube.com"
	}
	return fmt.Sprintf("https://%s/playlist?list=%s", host, k.ID)
}

// WatchURL returns the playable URL for a single video on the key's
// source site, the form handed to the downloader for per-track fetches.
func (k Key) WatchURL(videoID string) string {
	host := "www.youtube.com"
	if k.Source == SourceYouTubeMusic {
		host = "music.youtube.com"
	}
	return fmt.Sprintf("https://%s/watch?v=%s", host, videoID)
}

// ParseKey parses the source/id form produced by [Key.String].
func ParseKey(s string) (Key, error) {
	source, id, found := strings.Cut(s, "/")
	if !found || id == "" {
		return Key{}, fmt.Errorf("%w: malformed key %q", shared.ErrInvalidURL, s)
	}
	switch Source(source) {
	case SourceYouTube, SourceYouTubeMusic:
	default:
		return Key{}, fmt.Errorf("%w: unknown source %q", shared.ErrInvalidURL, source)
	}
	if !playlistIDPattern.MatchString(id) {
		return Key{}, fmt.Errorf("%w: malformed playlist identifier %q", shared.ErrInvalidURL, id)
	}
	return Key{Source: Source(source), ID: id}, nil
}
