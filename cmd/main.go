package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethan-hawksley/yt-play/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})
	app := newApp(runner)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

// newApp assembles the root command: `yt-play <playlist URL>` plays a
// playlist, subcommands manage the cache and its sync history.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "yt-play",
		Usage:     "Download YouTube playlists and play them through mpv",
		Version:   "0.4.0",
		ArgsUsage: "<playlist URL>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "url"},
		},
		Flags:    playFlags(),
		Action:   r.Play,
		Commands: r.register(),
	}
}
