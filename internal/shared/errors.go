package shared

import "fmt"

var (
	// Input validation errors
	ErrInvalidURL      = fmt.Errorf("unrecognized playlist URL")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// External tool errors
	ErrMissingTool = fmt.Errorf("required tool not found")

	// Cache and manifest errors
	ErrCorruptManifest   = fmt.Errorf("corrupt playlist manifest")
	ErrPlaylistNotCached = fmt.Errorf("playlist not cached")
	ErrLockTimeout       = fmt.Errorf("timed out waiting for cache lock")

	// Sync errors
	ErrListingFailed  = fmt.Errorf("playlist listing failed")
	ErrDownloadFailed = fmt.Errorf("track download failed")

	// Playback errors
	ErrPlaybackFailed      = fmt.Errorf("playback failed")
	ErrPlaybackInterrupted = fmt.Errorf("playback interrupted")
)
