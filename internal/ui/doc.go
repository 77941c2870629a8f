// Package ui implements the interactive sync progress view using bubbletea's Elm architecture.
//
// The view follows one sync from listing through downloads to the saved
// manifest:
//  1. Spinner while the remote listing is fetched and diffed
//  2. Progress bar with per-track result lines during downloads
//  3. Rolling tail of failed tracks
//
// The [Model] implements bubbletea's standard Init/Update/View pattern.
// Progress updates flow through a channel from the sync engine, providing
// non-blocking status reporting. Pressing q or ctrl+c cancels the sync
// context; the view quits once the engine returns.
//
// The end-of-sync summary is rendered by [RenderSummary] after the view
// exits. The plain-log path uses the same renderer, so a piped invocation
// gets the identical report without ANSI styling.
package ui
