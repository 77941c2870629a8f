package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ethan-hawksley/yt-play/internal/manifest"
	"github.com/ethan-hawksley/yt-play/internal/resolver"
	"github.com/ethan-hawksley/yt-play/internal/shared"
	"github.com/ethan-hawksley/yt-play/internal/ytdlp"
)

const (
	defaultWorkers     = 3
	maxWorkers         = 8
	defaultLockTimeout = 10 * time.Second
)

// Lister fetches the remote state of a playlist.
type Lister interface {
	ListPlaylist(ctx context.Context, url string) (*ytdlp.Listing, error)
}

// Downloader fetches a single video as audio into dir and returns the
// resulting filename.
type Downloader interface {
	Download(ctx context.Context, url, videoID, dir string) (string, error)
}

// Journal records completed sync runs for later inspection. Recording
// failures are logged, never fatal.
type Journal interface {
	RecordRun(ctx context.Context, run *Result) error
}

// Syncer is the sync surface consumed by the CLI layer.
type Syncer interface {
	Sync(ctx context.Context, prog chan<- ProgressUpdate, key resolver.Key) (*Result, error)
}

// Mode describes how a sync treated the cache.
type Mode int

const (
	// FirstRun populates a playlist that has never been synced.
	FirstRun Mode = iota
	// Refresh reconciles an existing cache against the remote listing.
	Refresh
)

func (m Mode) String() string {
	switch m {
	case FirstRun:
		return "first_run"
	case Refresh:
		return "refresh"
	default:
		return ""
	}
}

// ItemFailure describes a track that could not be downloaded this run.
type ItemFailure struct {
	VideoID string
	Title   string
	Err     error
}

// Result summarizes a completed sync.
type Result struct {
	RunID     string
	Key       resolver.Key
	Title     string
	Mode      Mode
	Added     int           // Tracks downloaded this run
	Removed   int           // Cached tracks that vanished from the remote
	Kept      int           // Cached tracks still present remotely
	Failed    []ItemFailure // Tracks skipped after exhausting retries
	StartedAt time.Time
	Duration  time.Duration
}

// downloadJob is one missing track to fetch.
type downloadJob struct {
	entry ytdlp.Entry
}

// downloadResult is the outcome of one download attempt.
type downloadResult struct {
	entry ytdlp.Entry
	file  string
	err   error
}

// Options configures an Engine. Store, Lister, and Downloader are
// required; the rest falls back to defaults.
type Options struct {
	Store      *manifest.Store
	Lister     Lister
	Downloader Downloader
	// Journal is optional; sync runs are not recorded when nil.
	Journal Journal
	Logger  *log.Logger
	// Workers bounds concurrent downloads (default 3, capped at 8).
	Workers int
	// LockTimeout bounds the wait for the per-playlist lock.
	LockTimeout time.Duration
}

// Engine implements Syncer over a manifest store and the external
// downloader. Workers never touch the manifest; a single aggregation
// loop applies their results before one atomic save.
type Engine struct {
	store       *manifest.Store
	lister      Lister
	downloader  Downloader
	journal     Journal
	logger      *log.Logger
	workers     int
	lockTimeout time.Duration
}

// NewEngine creates an Engine from options, filling in defaults for any
// zero fields.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		store:       opts.Store,
		lister:      opts.Lister,
		downloader:  opts.Downloader,
		journal:     opts.Journal,
		logger:      opts.Logger,
		workers:     opts.Workers,
		lockTimeout: opts.LockTimeout,
	}

	if e.logger == nil {
		e.logger = shared.NewLogger(nil)
	}
	if e.workers <= 0 {
		e.workers = defaultWorkers
	}
	if e.workers > maxWorkers {
		e.workers = maxWorkers
	}
	if e.lockTimeout == 0 {
		e.lockTimeout = defaultLockTimeout
	}

	return e
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(prog chan<- ProgressUpdate, update ProgressUpdate) {
	if prog == nil {
		return
	}
	select {
	case prog <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// Sync reconciles one playlist's cache against its remote listing.
//
// The first sync of a playlist downloads everything; a refresh downloads
// only tracks missing locally, deletes tracks that vanished remotely, and
// leaves the rest alone. The manifest is written exactly once, after all
// downloads settle, so an aborted sync never leaves it half-updated.
func (e *Engine) Sync(ctx context.Context, prog chan<- ProgressUpdate, key resolver.Key) (*Result, error) {
	if e.store == nil {
		return nil, fmt.Errorf("manifest store not initialized")
	}
	if e.lister == nil {
		return nil, fmt.Errorf("playlist lister not initialized")
	}
	if e.downloader == nil {
		return nil, fmt.Errorf("downloader not initialized")
	}

	started := time.Now()

	lock, err := e.store.Lock(key, e.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			e.logger.Warn("failed to release playlist lock", "playlist", key.String(), "error", err)
		}
	}()

	m, err := e.store.Load(key)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:     shared.GenerateID(),
		Key:       key,
		Mode:      Refresh,
		StartedAt: started.UTC(),
	}
	if m.Empty() {
		result.Mode = FirstRun
	}

	e.sendProgress(prog, listingUpdate(key))
	listing, err := e.lister.ListPlaylist(ctx, key.PlaylistURL())
	if err != nil {
		return nil, err
	}

	if listing.Title != "" {
		m.Title = listing.Title
	}
	result.Title = m.Title
	e.sendProgress(prog, listedUpdate(m.Title, len(listing.Entries)))

	missing, removed, kept := diff(m, listing)
	result.Kept = kept
	e.logger.Debug("sync plan",
		"playlist", key.String(),
		"mode", result.Mode.String(),
		"missing", len(missing),
		"removed", len(removed),
		"kept", kept,
	)
	e.sendProgress(prog, diffUpdate(len(missing), len(removed), kept))

	downloaded, failures := e.downloadAll(ctx, prog, key, missing)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.Added = len(downloaded)
	result.Failed = failures

	if len(removed) > 0 {
		e.sendProgress(prog, removingUpdate(len(removed)))
	}
	for _, t := range removed {
		if err := e.store.DeleteTrackFile(key, t); err != nil {
			e.logger.Warn("failed to delete track file", "video", t.VideoID, "file", t.File, "error", err)
		}
	}
	result.Removed = len(removed)

	m.Tracks = rebuild(m, listing, downloaded)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = started.UTC()
	}
	m.SyncedAt = time.Now().UTC()

	e.sendProgress(prog, savingUpdate())
	if err := e.store.Save(m); err != nil {
		return nil, err
	}

	result.Duration = time.Since(started)

	if e.journal != nil {
		if err := e.journal.RecordRun(ctx, result); err != nil {
			e.logger.Warn("failed to record sync run", "run", result.RunID, "error", err)
		}
	}

	e.sendProgress(prog, completeUpdate(result))
	return result, nil
}

// downloadAll fetches the missing tracks on a bounded worker pool and
// returns the successfully downloaded tracks keyed by video ID.
func (e *Engine) downloadAll(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	key resolver.Key,
	entries []ytdlp.Entry,
) (map[string]manifest.Track, []ItemFailure) {
	downloaded := make(map[string]manifest.Track, len(entries))
	if len(entries) == 0 {
		return downloaded, nil
	}

	dir := e.store.PlaylistDir(key)

	e.sendProgress(prog, downloadStartUpdate(len(entries)))

	jobs := make(chan downloadJob, len(entries))
	results := make(chan downloadResult, len(entries))

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go e.downloadWorker(ctx, &wg, key, dir, jobs, results)
	}

	go func() {
		for _, entry := range entries {
			select {
			case <-ctx.Done():
				close(jobs)
				return
			default:
			}
			jobs <- downloadJob{entry: entry}
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var failures []ItemFailure

	completed := 0
	for res := range results {
		completed++

		if res.err != nil {
			failures = append(failures, ItemFailure{
				VideoID: res.entry.ID,
				Title:   res.entry.Title,
				Err:     res.err,
			})
			e.logger.Warn("download failed", "video", res.entry.ID, "title", res.entry.Title, "error", res.err)
			e.sendProgress(prog, downloadFailedUpdate(completed, len(entries), res.entry.Title, res.err))
			continue
		}

		downloaded[res.entry.ID] = manifest.Track{
			VideoID:      res.entry.ID,
			Title:        res.entry.Title,
			File:         res.file,
			DownloadedAt: time.Now().UTC(),
		}
		e.sendProgress(prog, downloadDoneUpdate(completed, len(entries), res.entry.Title))
	}

	return downloaded, failures
}

// downloadWorker is a worker goroutine that downloads tracks from the
// jobs channel.
func (e *Engine) downloadWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	key resolver.Key,
	dir string,
	jobs <-chan downloadJob,
	results chan<- downloadResult,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		file, err := e.downloader.Download(ctx, key.WatchURL(job.entry.ID), job.entry.ID, dir)
		results <- downloadResult{entry: job.entry, file: file, err: err}
	}
}

// diff splits the remote listing against the cached manifest: missing
// holds remote entries with no cached track, removed holds cached tracks
// that vanished from the listing, kept counts the overlap. Duplicate
// listing entries collapse to their first occurrence.
func diff(m *manifest.Manifest, listing *ytdlp.Listing) (missing []ytdlp.Entry, removed []manifest.Track, kept int) {
	seen := make(map[string]bool, len(listing.Entries))
	for _, entry := range listing.Entries {
		if seen[entry.ID] {
			continue
		}
		seen[entry.ID] = true

		if m.HasTrack(entry.ID) {
			kept++
		} else {
			missing = append(missing, entry)
		}
	}

	for _, t := range m.Tracks {
		if !seen[t.VideoID] {
			removed = append(removed, t)
		}
	}

	return missing, removed, kept
}

// rebuild assembles the new track list in remote-listing order. Kept
// tracks carry their original file and download time; entries that
// failed to download are left out and picked up by a later sync.
func rebuild(m *manifest.Manifest, listing *ytdlp.Listing, downloaded map[string]manifest.Track) []manifest.Track {
	tracks := make([]manifest.Track, 0, len(listing.Entries))
	seen := make(map[string]bool, len(listing.Entries))

	for _, entry := range listing.Entries {
		if seen[entry.ID] {
			continue
		}
		seen[entry.ID] = true

		if t, ok := m.TrackByID(entry.ID); ok {
			t.Position = len(tracks)
			tracks = append(tracks, t)
			continue
		}
		if t, ok := downloaded[entry.ID]; ok {
			t.Position = len(tracks)
			tracks = append(tracks, t)
		}
	}

	return tracks
}
