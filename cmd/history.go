package main

import (
	"context"
	"fmt"

	"github.com/ethan-hawksley/yt-play/internal/resolver"
	"github.com/ethan-hawksley/yt-play/internal/shared"
	"github.com/urfave/cli/v3"
)

// History prints recent sync runs, newest first, with per-track failure
// lines for runs that had any. The filter argument is a playlist URL or
// a source/id key as printed by cache list.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd.String("config")); err != nil {
		return err
	}

	var keyFilter string
	if raw := cmd.StringArg("url"); raw != "" {
		key, err := resolver.Resolve(raw)
		if err != nil {
			key, err = resolver.ParseKey(raw)
		}
		if err != nil {
			return fmt.Errorf("%w: %q is not a playlist URL or source/id key", shared.ErrInvalidURL, raw)
		}
		keyFilter = key.String()
	}

	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repo.ListRuns(keyFilter, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, cmd.Bool("pretty"))
	}

	if len(runs) == 0 {
		r.writePlain("No sync runs recorded.\n")
		return nil
	}

	for _, run := range runs {
		title := run.Title
		if title == "" {
			title = run.PlaylistKey
		}
		r.writePlain("%s  %s\n", run.StartedAt.Local().Format("2006-01-02 15:04"), title)
		r.writePlain("  %s: %d added, %d removed, %d kept", run.Mode, run.Added, run.Removed, run.Kept)
		if run.Failed > 0 {
			r.writePlain(", %d failed", run.Failed)
		}
		r.writePlain(" (%s)\n", shared.FormatDuration(run.Duration))

		if run.Failed > 0 {
			failures, err := repo.Failures(run.ID)
			if err != nil {
				r.logger.Warn("failed to load run failures", "run", run.ID, "error", err)
				continue
			}
			for _, f := range failures {
				r.writePlain("    ✗ %s [%s]: %s\n", f.Title, f.VideoID, f.Error)
			}
		}
	}

	return nil
}

// historyCommand reports past sync runs from the journal.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show recent playlist sync runs",
		ArgsUsage: "[playlist URL or key]",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "url"},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 20,
			},
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
		Action: r.History,
	}
}
