// Package engine reconciles cached playlists against their remote listings with real-time progress reporting.
//
// # Sync Flow
//
// [Engine.Sync] runs one playlist through a fixed sequence:
//
//  1. Acquire the playlist lock and load the cached manifest
//     - A playlist that has never been synced runs as [FirstRun]
//     - An existing cache runs as [Refresh]
//  2. Fetch the remote listing
//     - Listing failure aborts the sync with the cache untouched
//  3. Diff remote entries against cached tracks by video ID
//     - Missing tracks are downloaded on a bounded worker pool
//     - Vanished tracks are dropped and their audio files deleted
//     - Kept tracks are never re-downloaded
//  4. Rebuild the track list in remote order and save the manifest once
//
// # Progress Reporting
//
// Every phase emits [ProgressUpdate] values on an optional channel.
// Updates use select with default to prevent blocking.
//
// # Failure Handling
//
// A track that cannot be downloaded is skipped for the run, surfaced in
// [Result.Failed], and picked up again by the next sync. Only structural
// failures (lock timeout, corrupt manifest, listing failure) abort a sync,
// and none of them mutate the cache.
//
// # Implementation
//
// [Engine] depends on:
//   - [manifest.Store] : manifest persistence and track file paths
//   - [Lister] and [Downloader] : the yt-dlp adapter (ytdlp.Client)
//   - [Journal] : optional sync run history (history.Repository)
package engine
