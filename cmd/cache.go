package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ethan-hawksley/yt-play/internal/formatter"
	"github.com/ethan-hawksley/yt-play/internal/resolver"
	"github.com/ethan-hawksley/yt-play/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheList prints every cached playlist with its track count and last
// sync time.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd.String("config")); err != nil {
		return err
	}
	store, err := r.openStore()
	if err != nil {
		return err
	}

	manifests, err := store.List()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(manifests, cmd.Bool("pretty"))
	}

	if len(manifests) == 0 {
		r.writePlain("No cached playlists under %s.\n", store.Root())
		return nil
	}

	for _, m := range manifests {
		title := m.Title
		if title == "" {
			title = m.Key.String()
		}
		r.writePlain("%s\n", title)
		r.writePlain("  URL:    %s\n", m.Key.PlaylistURL())
		r.writePlain("  Tracks: %d\n", len(m.Tracks))
		if !m.SyncedAt.IsZero() {
			r.writePlain("  Synced: %s\n", m.SyncedAt.Format(time.RFC3339))
		}
	}

	return nil
}

// CacheShow renders one playlist's manifest as text, JSON, or M3U.
func (r *Runner) CacheShow(ctx context.Context, cmd *cli.Command) error {
	rawURL := cmd.StringArg("url")
	if rawURL == "" {
		return fmt.Errorf("%w: playlist URL", shared.ErrMissingArgument)
	}

	if err := r.loadConfig(cmd.String("config")); err != nil {
		return err
	}
	store, err := r.openStore()
	if err != nil {
		return err
	}

	key, err := resolver.Resolve(rawURL)
	if err != nil {
		return err
	}

	m, err := store.Load(key)
	if err != nil {
		return err
	}
	if m.Empty() {
		return fmt.Errorf("%w: %s (sync it first with 'yt-play %s')", shared.ErrPlaylistNotCached, key, rawURL)
	}

	out, err := formatter.Export(store, m, cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.writePlain("%s", out); err != nil {
		return err
	}

	if cmd.Bool("open") {
		if err := shared.OpenBrowser(m.Key.PlaylistURL()); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	}

	return nil
}

// CacheClean deletes one playlist's cached audio and manifest, or the
// whole cache with --all. Without --force it only reports what would
// be removed.
func (r *Runner) CacheClean(ctx context.Context, cmd *cli.Command) error {
	rawURL := cmd.StringArg("url")
	all := cmd.Bool("all")
	force := cmd.Bool("force")

	if rawURL == "" && !all {
		return fmt.Errorf("%w: playlist URL (or --all)", shared.ErrMissingArgument)
	}

	if err := r.loadConfig(cmd.String("config")); err != nil {
		return err
	}
	store, err := r.openStore()
	if err != nil {
		return err
	}

	if all {
		if !force {
			r.writePlain("This removes every cached playlist under %s.\n", store.Root())
			r.writePlain("Re-run with --force to confirm.\n")
			return nil
		}
		if err := store.Purge(); err != nil {
			return err
		}
		r.logger.Info("cache purged", "root", store.Root())
		r.writePlain("✓ Cache cleared: %s\n", store.Root())
		return nil
	}

	key, err := resolver.Resolve(rawURL)
	if err != nil {
		return err
	}

	if !force {
		r.writePlain("This removes the cached audio and manifest at %s.\n", store.PlaylistDir(key))
		r.writePlain("Re-run with --force to confirm.\n")
		return nil
	}

	if err := store.RemovePlaylist(key); err != nil {
		return err
	}
	r.logger.Info("cached playlist removed", "key", key.String())
	r.writePlain("✓ Removed cached playlist %s\n", key)
	return nil
}

// cacheCommand handles cached playlist inspection and cleanup.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and manage the playlist cache",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List cached playlists",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
					configFlag(),
				},
				Action: r.CacheList,
			},
			{
				Name:      "show",
				Usage:     "Show one playlist's cached tracks",
				ArgsUsage: "<playlist URL>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, json, or m3u",
						Value:   formatter.FormatText,
					},
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the playlist page in the browser",
					},
					configFlag(),
				},
				Action: r.CacheShow,
			},
			{
				Name:      "clean",
				Usage:     "Delete a playlist's cached audio and manifest",
				ArgsUsage: "<playlist URL>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Actually delete instead of reporting",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Delete the entire cache",
					},
					configFlag(),
				},
				Action: r.CacheClean,
			},
		},
	}
}
