package engine

import (
	"fmt"

	"github.com/ethan-hawksley/yt-play/internal/resolver"
)

// ProgressUpdate represents a progress event during a sync.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ListRemote Phase = iota
	DiffCache
	DownloadTracks
	RemoveTracks
	SaveManifest
	Complete
)

func (p Phase) String() string {
	switch p {
	case ListRemote:
		return "list_remote"
	case DiffCache:
		return "diff_cache"
	case DownloadTracks:
		return "download_tracks"
	case RemoveTracks:
		return "remove_tracks"
	case SaveManifest:
		return "save_manifest"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func listingUpdate(key resolver.Key) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ListRemote,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlist listing (%s)...", key),
	}
}

func listedUpdate(title string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ListRemote,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", title, count),
	}
}

func diffUpdate(missing, removed, kept int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DiffCache,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Sync plan: %d to download, %d to remove, %d already cached", missing, removed, kept),
	}
}

func downloadStartUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadTracks,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Downloading %d tracks...", total),
	}
}

func downloadDoneUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, title),
	}
}

func downloadFailedUpdate(step, total int, title string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, title, err),
	}
}

func removingUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RemoveTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Removing %d tracks no longer in the playlist...", count),
	}
}

func savingUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveManifest,
		Step:    1,
		Total:   1,
		Message: "Saving manifest...",
	}
}

func completeUpdate(res *Result) ProgressUpdate {
	msg := fmt.Sprintf("Sync complete: %d added, %d removed, %d kept", res.Added, res.Removed, res.Kept)
	if len(res.Failed) > 0 {
		msg = fmt.Sprintf("%s, %d failed", msg, len(res.Failed))
	}
	return ProgressUpdate{
		Phase:   Complete,
		Step:    1,
		Total:   1,
		Message: msg,
		Data:    res,
	}
}
