package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ethan-hawksley/yt-play/internal/manifest"
	"github.com/ethan-hawksley/yt-play/internal/resolver"
	"github.com/ethan-hawksley/yt-play/internal/shared"
	"github.com/ethan-hawksley/yt-play/internal/ytdlp"
)

type fakeLister struct {
	mu      sync.Mutex
	listing *ytdlp.Listing
	err     error
	calls   int
	lastURL string
}

func (f *fakeLister) ListPlaylist(ctx context.Context, url string) (*ytdlp.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastURL = url
	if f.err != nil {
		return nil, f.err
	}
	return f.listing, nil
}

// fakeDownloader names downloads the way yt-dlp's output template does
// and tracks per-video call counts and peak concurrency.
type fakeDownloader struct {
	mu      sync.Mutex
	errs    map[string]error
	calls   map[string]int
	onCall  func(videoID string)
	delay   time.Duration
	current int
	maxSeen int
}

func (f *fakeDownloader) Download(ctx context.Context, url, videoID, dir string) (string, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[videoID]++
	f.current++
	if f.current > f.maxSeen {
		f.maxSeen = f.current
	}
	onCall := f.onCall
	err := f.errs[videoID]
	delay := f.delay
	f.mu.Unlock()

	if onCall != nil {
		onCall(videoID)
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.current--
	f.mu.Unlock()

	if err != nil {
		return "", err
	}
	return trackFile(videoID), nil
}

func (f *fakeDownloader) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

type fakeJournal struct {
	mu   sync.Mutex
	runs []*Result
	err  error
}

func (f *fakeJournal) RecordRun(ctx context.Context, run *Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return f.err
}

func trackFile(videoID string) string {
	return fmt.Sprintf("Track %s [%s].opus", videoID, videoID)
}

func listingOf(title string, ids ...string) *ytdlp.Listing {
	entries := make([]ytdlp.Entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, ytdlp.Entry{ID: id, Title: "Track " + id, Position: len(entries)})
	}
	return &ytdlp.Listing{ID: "PLtest", Title: title, Entries: entries}
}

func newTestStore(t *testing.T) *manifest.Store {
	t.Helper()

	store, err := manifest.NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

// touchTrackFiles writes a stub audio file for every track in the cached
// manifest so file deletion can be observed.
func touchTrackFiles(t *testing.T, store *manifest.Store, key resolver.Key) {
	t.Helper()

	m, err := store.Load(key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, tr := range m.Tracks {
		if err := os.WriteFile(store.TrackPath(key, tr), []byte("audio"), 0644); err != nil {
			t.Fatalf("failed to write track file: %v", err)
		}
	}
}

func TestSync_FirstRunDownloadsAll(t *testing.T) {
	store := newTestStore(t)
	key := resolver.Key{Source: resolver.SourceYouTube, ID: "PLtest"}
	lister := &fakeLister{listing: listingOf("Road Trip", "aaa", "bbb", "ccc")}
	dl := &fakeDownloader{}
	journal := &fakeJournal{}

	eng := NewEngine(Options{Store: store, Lister: lister, Downloader: dl, Journal: journal})

	result, err := eng.Sync(context.Background(), nil, key)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if result.Mode != FirstRun {
		t.Errorf("Mode = %s, want %s", result.Mode, FirstRun)
	}
	if result.Added != 3 {
		t.Errorf("Added = %d, want 3", result.Added)
	}
	if result.Kept != 0 || result.Removed != 0 {
		t.Errorf("Kept = %d, Removed = %d, want 0, 0", result.Kept, result.Removed)
	}
	if len(result.Failed) != 0 {
		t.Errorf("Failed = %v, want none", result.Failed)
	}
	if result.Title != "Road Trip" {
		t.Errorf("Title = %q, want %q", result.Title, "Road Trip")
	}
	if result.RunID == "" {
		t.Error("RunID should not be empty")
	}

	if lister.lastURL != key.PlaylistURL() {
		t.Errorf("listed URL = %q, want %q", lister.lastURL, key.PlaylistURL())
	}
	if dl.totalCalls() != 3 {
		t.Errorf("download calls = %d, want 3", dl.totalCalls())
	}

	m, err := store.Load(key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Empty() {
		t.Fatal("manifest should be synced after first run")
	}
	if m.Title != "Road Trip" {
		t.Errorf("manifest title = %q, want %q", m.Title, "Road Trip")
	}
	if len(m.Tracks) != 3 {
		t.Fatalf("manifest tracks = %d, want 3", len(m.Tracks))
	}
	for i, wantID := range []string{"aaa", "bbb", "ccc"} {
		tr := m.Tracks[i]
		if tr.VideoID != wantID {
			t.Errorf("track %d = %s, want %s", i, tr.VideoID, wantID)
		}
		if tr.Position != i {
			t.Errorf("track %s position = %d, want %d", tr.VideoID, tr.Position, i)
		}
		if tr.File != trackFile(wantID) {
			t.Errorf("track %s file = %q, want %q", tr.VideoID, tr.File, trackFile(wantID))
		}
		if tr.DownloadedAt.IsZero() {
			t.Errorf("track %s has no download time", tr.VideoID)
		}
	}

	if len(journal.runs) != 1 {
		t.Fatalf("journal runs = %d, want 1", len(journal.runs))
	}
	if journal.runs[0].RunID != result.RunID {
		t.Errorf("journal run = %s, want %s", journal.runs[0].RunID, result.RunID)
	}
}

func TestSync_RefreshAddsAndRemoves(t *testing.T) {
	store := newTestStore(t)
	key := resolver.Key{Source: resolver.SourceYouTube, ID: "PLtest"}
	lister := &fakeLister{listing: listingOf("Road Trip", "aaa", "bbb", "ccc")}
	dl := &fakeDownloader{}

	eng := NewEngine(Options{Store: store, Lister: lister, Downloader: dl})

	if _, err := eng.Sync(context.Background(), nil, key); err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}
	touchTrackFiles(t, store, key)

	before, err := store.Load(key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	keptAt := map[string]time.Time{}
	for _, tr := range before.Tracks {
		keptAt[tr.VideoID] = tr.DownloadedAt
	}

	// aaa vanished remotely, ddd is new.
	lister.listing = listingOf("Road Trip", "bbb", "ccc", "ddd")

	result, err := eng.Sync(context.Background(), nil, key)
	if err != nil {
		t.Fatalf("refresh Sync() error = %v", err)
	}

	if result.Mode != Refresh {
		t.Errorf("Mode = %s, want %s", result.Mode, Refresh)
	}
	if result.Added != 1 {
		t.Errorf("Added = %d, want 1", result.Added)
	}
	if result.Removed != 1 {
		t.Errorf("Removed = %d, want 1", result.Removed)
	}
	if result.Kept != 2 {
		t.Errorf("Kept = %d, want 2", result.Kept)
	}

	if got := dl.calls["ddd"]; got != 1 {
		t.Errorf("downloads of ddd = %d, want 1", got)
	}
	for _, id := range []string{"aaa", "bbb", "ccc"} {
		if got := dl.calls[id]; got != 1 {
			t.Errorf("downloads of %s = %d, want 1 (first run only)", id, got)
		}
	}

	m, err := store.Load(key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(m.Tracks) != 3 {
		t.Fatalf("manifest tracks = %d, want 3", len(m.Tracks))
	}
	for i, wantID := range []string{"bbb", "ccc", "ddd"} {
		if m.Tracks[i].VideoID != wantID {
			t.Errorf("track %d = %s, want %s", i, m.Tracks[i].VideoID, wantID)
		}
		if m.Tracks[i].Position != i {
			t.Errorf("track %s position = %d, want %d", m.Tracks[i].VideoID, m.Tracks[i].Position, i)
		}
	}

	// Kept tracks carry their original download time.
	for _, id := range []string{"bbb", "ccc"} {
		tr, ok := m.TrackByID(id)
		if !ok {
			t.Fatalf("track %s missing from manifest", id)
		}
		if !tr.DownloadedAt.Equal(keptAt[id]) {
			t.Errorf("track %s download time changed across refresh", id)
		}
	}

	removed, ok := before.TrackByID("aaa")
	if !ok {
		t.Fatal("seed manifest should contain aaa")
	}
	if _, err := os.Stat(store.TrackPath(key, removed)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("removed track file should be deleted, stat err = %v", err)
	}
	keptTrack, _ := m.TrackByID("bbb")
	if _, err := os.Stat(store.TrackPath(key, keptTrack)); err != nil {
		t.Errorf("kept track file should survive refresh, stat err = %v", err)
	}
}

func TestSync_RefreshUnchangedRemoteIsNoop(t *testing.T) {
	store := newTestStore(t)
	key := resolver.Key{Source: resolver.SourceYouTubeMusic, ID: "PLsame"}
	lister := &fakeLister{listing: listingOf("Focus", "aaa", "bbb")}
	dl := &fakeDownloader{}

	eng := NewEngine(Options{Store: store, Lister: lister, Downloader: dl})

	if _, err := eng.Sync(context.Background(), nil, key); err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}
	first, err := store.Load(key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	result, err := eng.Sync(context.Background(), nil, key)
	if err != nil {
		t.Fatalf("refresh Sync() error = %v", err)
	}

	if result.Added != 0 || result.Removed != 0 {
		t.Errorf("Added = %d, Removed = %d, want 0, 0", result.Added, result.Removed)
	}
	if result.Kept != 2 {
		t.Errorf("Kept = %d, want 2", result.Kept)
	}
	if dl.totalCalls() != 2 {
		t.Errorf("download calls = %d, want 2 (first run only)", dl.totalCalls())
	}

	second, err := store.Load(key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(second.Tracks) != len(first.Tracks) {
		t.Fatalf("tracks = %d, want %d", len(second.Tracks), len(first.Tracks))
	}
	for i := range first.Tracks {
		got, want := second.Tracks[i], first.Tracks[i]
		if got.VideoID != want.VideoID || got.File != want.File || got.Position != want.Position {
			t.Errorf("track %d changed across no-op refresh: %+v != %+v", i, got, want)
		}
		if !got.DownloadedAt.Equal(want.DownloadedAt) {
			t.Errorf("track %d download time changed across no-op refresh", i)
		}
	}
	if !second.SyncedAt.After(first.SyncedAt) {
		t.Error("SyncedAt should advance on refresh")
	}
}

func TestSync_ListingFailureLeavesCacheUntouched(t *testing.T) {
	store := newTestStore(t)
	key := resolver.Key{Source: resolver.SourceYouTube, ID: "PLtest"}
	lister := &fakeLister{listing: listingOf("Road Trip", "aaa", "bbb")}
	dl := &fakeDownloader{}

	eng := NewEngine(Options{Store: store, Lister: lister, Downloader: dl})

	if _, err := eng.Sync(context.Background(), nil, key); err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}
	touchTrackFiles(t, store, key)
	before, err := store.Load(key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	lister.err = fmt.Errorf("%w: network is down", shared.ErrListingFailed)

	_, err = eng.Sync(context.Background(), nil, key)
	if !errors.Is(err, shared.ErrListingFailed) {
		t.Fatalf("Sync() error = %v, want ErrListingFailed", err)
	}

	after, err := store.Load(key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !after.SyncedAt.Equal(before.SyncedAt) {
		t.Error("failed listing must not advance SyncedAt")
	}
	if len(after.Tracks) != len(before.Tracks) {
		t.Errorf("tracks = %d, want %d", len(after.Tracks), len(before.Tracks))
	}
	for _, tr := range after.Tracks {
		if _, err := os.Stat(store.TrackPath(key, tr)); err != nil {
			t.Errorf("track file %s should be untouched, stat err = %v", tr.File, err)
		}
	}
	if dl.totalCalls() != 2 {
		t.Errorf("download calls = %d, want 2 (none during failed refresh)", dl.totalCalls())
	}
}

func TestSync_DownloadFailureSkipsTrack(t *testing.T) {
	store := newTestStore(t)
	key := resolver.Key{Source: resolver.SourceYouTube, ID: "PLtest"}
	lister := &fakeLister{listing: listingOf("Road Trip", "aaa", "bbb", "ccc")}
	dl := &fakeDownloader{
		errs: map[string]error{
			"bbb": fmt.Errorf("%w: bbb: video unavailable", shared.ErrDownloadFailed),
		},
	}
	journal := &fakeJournal{}

	eng := NewEngine(Options{Store: store, Lister: lister, Downloader: dl, Journal: journal})

	result, err := eng.Sync(context.Background(), nil, key)
	if err != nil {
		t.Fatalf("Sync() error = %v (per-track failures must not abort)", err)
	}

	if result.Added != 2 {
		t.Errorf("Added = %d, want 2", result.Added)
	}
	if len(result.Failed) != 1 {
		t.Fatalf("Failed = %d, want 1", len(result.Failed))
	}
	failure := result.Failed[0]
	if failure.VideoID != "bbb" {
		t.Errorf("failed video = %s, want bbb", failure.VideoID)
	}
	if !errors.Is(failure.Err, shared.ErrDownloadFailed) {
		t.Errorf("failure error = %v, want ErrDownloadFailed", failure.Err)
	}

	m, err := store.Load(key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.HasTrack("bbb") {
		t.Error("failed track must not enter the manifest")
	}
	if len(m.Tracks) != 2 {
		t.Fatalf("manifest tracks = %d, want 2", len(m.Tracks))
	}
	for i, wantID := range []string{"aaa", "ccc"} {
		if m.Tracks[i].VideoID != wantID {
			t.Errorf("track %d = %s, want %s", i, m.Tracks[i].VideoID, wantID)
		}
		if m.Tracks[i].Position != i {
			t.Errorf("track %s position = %d, want %d", m.Tracks[i].VideoID, m.Tracks[i].Position, i)
		}
	}

	if len(journal.runs) != 1 || len(journal.runs[0].Failed) != 1 {
		t.Error("journal should record the failed track")
	}

	// The failed track is retried by the next sync.
	dl.mu.Lock()
	dl.errs = nil
	dl.mu.Unlock()

	retry, err := eng.Sync(context.Background(), nil, key)
	if err != nil {
		t.Fatalf("retry Sync() error = %v", err)
	}
	if retry.Added != 1 {
		t.Errorf("retry Added = %d, want 1", retry.Added)
	}
	if retry.Kept != 2 {
		t.Errorf("retry Kept = %d, want 2", retry.Kept)
	}
	if got := dl.calls["bbb"]; got != 2 {
		t.Errorf("downloads of bbb = %d, want 2", got)
	}

	m, err = store.Load(key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for i, wantID := range []string{"aaa", "bbb", "ccc"} {
		if m.Tracks[i].VideoID != wantID {
			t.Errorf("track %d = %s, want %s", i, m.Tracks[i].VideoID, wantID)
		}
	}
}

func TestSync_JournalErrorIsNotFatal(t *testing.T) {
	store := newTestStore(t)
	key := resolver.Key{Source: resolver.SourceYouTube, ID: "PLtest"}
	lister := &fakeLister{listing: listingOf("Road Trip", "aaa")}
	journal := &fakeJournal{err: errors.New("disk full")}

	eng := NewEngine(Options{Store: store, Lister: lister, Downloader: &fakeDownloader{}, Journal: journal})

	result, err := eng.Sync(context.Background(), nil, key)
	if err != nil {
		t.Fatalf("Sync() error = %v, journal failures must not abort", err)
	}
	if result.Added != 1 {
		t.Errorf("Added = %d, want 1", result.Added)
	}

	m, err := store.Load(key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Empty() {
		t.Error("manifest should be saved even when the journal fails")
	}
}

func TestSync_DuplicateListingEntries(t *testing.T) {
	store := newTestStore(t)
	key := resolver.Key{Source: resolver.SourceYouTube, ID: "PLtest"}
	listing := listingOf("Loops", "aaa", "bbb")
	listing.Entries = append(listing.Entries, ytdlp.Entry{ID: "aaa", Title: "Track aaa", Position: 2})
	lister := &fakeLister{listing: listing}
	dl := &fakeDownloader{}

	eng := NewEngine(Options{Store: store, Lister: lister, Downloader: dl})

	result, err := eng.Sync(context.Background(), nil, key)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if result.Added != 2 {
		t.Errorf("Added = %d, want 2", result.Added)
	}
	if got := dl.calls["aaa"]; got != 1 {
		t.Errorf("downloads of aaa = %d, want 1", got)
	}

	m, err := store.Load(key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(m.Tracks) != 2 {
		t.Errorf("manifest tracks = %d, want 2 (duplicate collapsed)", len(m.Tracks))
	}
}

func TestSync_WorkerPool(t *testing.T) {
	t.Run("defaults and cap", func(t *testing.T) {
		if eng := NewEngine(Options{}); eng.workers != defaultWorkers {
			t.Errorf("workers = %d, want %d", eng.workers, defaultWorkers)
		}
		if eng := NewEngine(Options{Workers: 99}); eng.workers != maxWorkers {
			t.Errorf("workers = %d, want cap %d", eng.workers, maxWorkers)
		}
	})

	t.Run("bounded concurrency", func(t *testing.T) {
		store := newTestStore(t)
		key := resolver.Key{Source: resolver.SourceYouTube, ID: "PLtest"}
		lister := &fakeLister{listing: listingOf("Big", "aaa", "bbb", "ccc", "ddd", "eee", "fff")}
		dl := &fakeDownloader{delay: 20 * time.Millisecond}

		eng := NewEngine(Options{Store: store, Lister: lister, Downloader: dl, Workers: 2})

		if _, err := eng.Sync(context.Background(), nil, key); err != nil {
			t.Fatalf("Sync() error = %v", err)
		}

		dl.mu.Lock()
		maxSeen := dl.maxSeen
		dl.mu.Unlock()
		if maxSeen > 2 {
			t.Errorf("peak concurrent downloads = %d, want <= 2", maxSeen)
		}
		if dl.totalCalls() != 6 {
			t.Errorf("download calls = %d, want 6", dl.totalCalls())
		}
	})
}

func TestSync_CancelledBeforeSaveKeepsCacheUnsynced(t *testing.T) {
	store := newTestStore(t)
	key := resolver.Key{Source: resolver.SourceYouTube, ID: "PLtest"}
	lister := &fakeLister{listing: listingOf("Road Trip", "aaa", "bbb", "ccc", "ddd")}

	ctx, cancel := context.WithCancel(context.Background())
	dl := &fakeDownloader{onCall: func(string) { cancel() }}

	eng := NewEngine(Options{Store: store, Lister: lister, Downloader: dl, Workers: 1})

	_, err := eng.Sync(ctx, nil, key)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Sync() error = %v, want context.Canceled", err)
	}

	m, loadErr := store.Load(key)
	if loadErr != nil {
		t.Fatalf("Load() error = %v", loadErr)
	}
	if !m.Empty() {
		t.Error("cancelled first run must not save the manifest")
	}
}

func TestSync_LockContention(t *testing.T) {
	store := newTestStore(t)
	key := resolver.Key{Source: resolver.SourceYouTube, ID: "PLtest"}

	held, err := store.Lock(key, time.Second)
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer held.Unlock()

	eng := NewEngine(Options{
		Store:       store,
		Lister:      &fakeLister{listing: listingOf("Road Trip", "aaa")},
		Downloader:  &fakeDownloader{},
		LockTimeout: 50 * time.Millisecond,
	})

	_, err = eng.Sync(context.Background(), nil, key)
	if !errors.Is(err, shared.ErrLockTimeout) {
		t.Fatalf("Sync() error = %v, want ErrLockTimeout", err)
	}
}

func TestSync_ProgressUpdates(t *testing.T) {
	store := newTestStore(t)
	key := resolver.Key{Source: resolver.SourceYouTube, ID: "PLtest"}
	lister := &fakeLister{listing: listingOf("Road Trip", "aaa", "bbb")}

	eng := NewEngine(Options{Store: store, Lister: lister, Downloader: &fakeDownloader{}})

	prog := make(chan ProgressUpdate, 100)
	result, err := eng.Sync(context.Background(), prog, key)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	close(prog)

	var updates []ProgressUpdate
	for u := range prog {
		updates = append(updates, u)
	}
	if len(updates) == 0 {
		t.Fatal("expected progress updates")
	}

	if updates[0].Phase != ListRemote {
		t.Errorf("first phase = %s, want %s", updates[0].Phase, ListRemote)
	}
	last := updates[len(updates)-1]
	if last.Phase != Complete {
		t.Errorf("last phase = %s, want %s", last.Phase, Complete)
	}
	if res, ok := last.Data.(*Result); !ok || res.RunID != result.RunID {
		t.Errorf("completion update should carry the run result, got %#v", last.Data)
	}

	seen := map[Phase]bool{}
	for _, u := range updates {
		seen[u.Phase] = true
	}
	for _, phase := range []Phase{ListRemote, DiffCache, DownloadTracks, SaveManifest, Complete} {
		if !seen[phase] {
			t.Errorf("phase %s never reported", phase)
		}
	}
}

func TestSync_NotInitialized(t *testing.T) {
	key := resolver.Key{Source: resolver.SourceYouTube, ID: "PLtest"}

	if _, err := NewEngine(Options{}).Sync(context.Background(), nil, key); err == nil {
		t.Error("Sync() with no dependencies should fail")
	}

	store := newTestStore(t)
	eng := NewEngine(Options{Store: store, Lister: &fakeLister{listing: listingOf("X")}})
	if _, err := eng.Sync(context.Background(), nil, key); err == nil {
		t.Error("Sync() without a downloader should fail")
	}
}
