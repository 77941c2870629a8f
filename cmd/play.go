package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/ethan-hawksley/yt-play/internal/engine"
	"github.com/ethan-hawksley/yt-play/internal/manifest"
	"github.com/ethan-hawksley/yt-play/internal/queue"
	"github.com/ethan-hawksley/yt-play/internal/resolver"
	"github.com/ethan-hawksley/yt-play/internal/shared"
	"github.com/ethan-hawksley/yt-play/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// Play is the root action: resolve the playlist URL, sync its cache when
// needed, and hand the cached tracks to mpv.
//
// The first play of a playlist downloads everything. Later plays reuse
// the cache as-is unless --refresh asks for a sync against the remote
// listing. Interrupting playback is a clean exit.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	rawURL := cmd.StringArg("url")
	if rawURL == "" {
		return fmt.Errorf("%w: playlist URL (see 'yt-play --help')", shared.ErrMissingArgument)
	}

	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if err := r.loadConfig(cmd.String("config")); err != nil {
		return err
	}

	key, err := resolver.Resolve(rawURL)
	if err != nil {
		return err
	}
	r.logger.Debug("resolved playlist", "source", key.Source, "id", key.ID)

	client := r.mediaTool(cmd.String("yt-dlp-args"))
	mpv := r.audioTool(cmd.String("mpv-args"))
	if err := client.Installed(); err != nil {
		return err
	}
	if err := mpv.Installed(); err != nil {
		return err
	}

	store, err := r.openStore()
	if err != nil {
		return err
	}

	m, err := store.Load(key)
	if err != nil {
		if errors.Is(err, shared.ErrCorruptManifest) {
			return fmt.Errorf("%w (reset it with 'yt-play cache clean %s --force')", err, rawURL)
		}
		return err
	}

	if m.Empty() || cmd.Bool("refresh") {
		if _, err := r.runSync(ctx, cmd, store, client, key); err != nil {
			if errors.Is(err, context.Canceled) {
				r.writePlain("Sync cancelled.\n")
				return nil
			}
			return err
		}
		if m, err = store.Load(key); err != nil {
			return err
		}
	} else {
		r.logger.Debug("playlist cached, skipping sync", "tracks", len(m.Tracks))
	}

	tracks := queue.Build(store, m, cmd.Bool("shuffle"), r.logger)
	if len(tracks) == 0 {
		title := m.Title
		if title == "" {
			title = key.String()
		}
		r.writePlain("Nothing to play: %s has no cached tracks.\n", title)
		return nil
	}

	r.logger.Info("starting playback", "playlist", m.Title, "tracks", len(tracks), "shuffle", cmd.Bool("shuffle"))

	if err := mpv.Play(ctx, tracks); err != nil {
		if errors.Is(err, shared.ErrPlaybackInterrupted) {
			r.logger.Debug("playback interrupted by user")
			return nil
		}
		return err
	}

	return nil
}

// runSync performs one sync of the playlist, through the interactive
// view on a terminal or plain progress logs otherwise. The journal is
// best-effort; a broken history database never blocks a sync.
func (r *Runner) runSync(ctx context.Context, cmd *cli.Command, store *manifest.Store, client mediaClient, key resolver.Key) (*engine.Result, error) {
	var journal engine.Journal
	db, repo, err := r.openHistory()
	if err != nil {
		r.logger.Warn("sync history unavailable", "error", err)
	} else {
		defer db.Close()
		journal = repo
	}

	syncer := r.buildSyncer(store, client, journal)

	if r.useView(cmd) {
		result, err := r.syncWithView(ctx, syncer, key)
		if err != nil {
			return nil, err
		}
		r.writePlain("%s\n", ui.RenderSummary(result))
		return result, nil
	}

	return r.syncPlain(ctx, syncer, key)
}

// syncWithView drives the sync behind the bubbletea progress view.
func (r *Runner) syncWithView(ctx context.Context, syncer engine.Syncer, key resolver.Key) (*engine.Result, error) {
	syncCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The view owns the terminal; park logs in a file until it exits.
	logPath := filepath.Join(os.TempDir(), "yt-play-sync.log")
	if restore, err := shared.RedirectLogger(r.logger, logPath); err == nil {
		defer restore()
	}

	model := ui.NewModel(syncCtx, cancel, syncer, key)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return nil, fmt.Errorf("failed to run sync view: %w", err)
	}

	return model.Result()
}

// syncPlain drives the sync with line-per-update progress output.
func (r *Runner) syncPlain(ctx context.Context, syncer engine.Syncer, key resolver.Key) (*engine.Result, error) {
	progressCh := make(chan engine.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case engine.Complete:
				// rendered by the summary below
			case engine.DownloadTracks:
				if update.Step == 0 {
					r.writePlain("\n%s\n", update.Message)
				} else {
					r.writePlain("  %s\n", update.Message)
				}
			default:
				r.writePlain("%s\n", update.Message)
			}
		}
	}()

	result, err := syncer.Sync(ctx, progressCh, key)
	close(progressCh)
	<-done

	if err != nil {
		return nil, err
	}

	r.writePlain("\n%s\n", ui.RenderSummary(result))
	return result, nil
}

// useView reports whether the interactive progress view should drive
// the sync: stdout must be a terminal and neither --no-ui nor --verbose
// may be set.
func (r *Runner) useView(cmd *cli.Command) bool {
	if cmd.Bool("no-ui") || cmd.Bool("verbose") {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func playFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "refresh",
			Aliases: []string{"r"},
			Usage:   "Sync with the remote listing before playing",
		},
		&cli.BoolFlag{
			Name:    "shuffle",
			Aliases: []string{"s"},
			Usage:   "Play in a fresh random order",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Debug logging (disables the progress view)",
		},
		&cli.BoolFlag{
			Name:  "no-ui",
			Usage: "Plain progress logs instead of the interactive view",
		},
		&cli.StringFlag{
			Name:  "yt-dlp-args",
			Usage: "Extra arguments for every yt-dlp invocation (whitespace-split)",
		},
		&cli.StringFlag{
			Name:  "mpv-args",
			Usage: "Extra arguments for mpv (whitespace-split)",
		},
		configFlag(),
	}
}
