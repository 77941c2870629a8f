package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ethan-hawksley/yt-play/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file if missing, checks the external tools,
// and initializes the sync history database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if configPath == "" {
		var err error
		if configPath, err = shared.DefaultConfigPath(); err != nil {
			return err
		}
	}

	if _, err := os.Stat(configPath); err == nil {
		r.writePlain("Config file exists: %s\n", configPath)
	} else {
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		r.writePlain("✓ Config file created: %s\n", configPath)
	}

	if err := r.loadConfig(configPath); err != nil {
		return err
	}

	client := r.mediaTool("")
	if err := client.Installed(); err != nil {
		r.writePlain("✗ yt-dlp: %v\n", err)
	} else if version, err := client.Version(ctx); err == nil {
		r.writePlain("✓ yt-dlp %s\n", version)
	} else {
		r.writePlain("✓ yt-dlp found (version check failed: %v)\n", err)
	}

	mpv := r.audioTool("")
	if err := mpv.Installed(); err != nil {
		r.writePlain("✗ mpv: %v\n", err)
	} else {
		r.writePlain("✓ mpv found\n")
	}

	db, _, err := r.openHistory()
	if err != nil {
		return fmt.Errorf("failed to initialize history database: %w", err)
	}
	db.Close()

	historyPath, err := r.config.HistoryPath()
	if err != nil {
		return err
	}
	r.writePlain("✓ History database ready: %s\n", historyPath)

	cacheDir, err := r.config.CacheDir()
	if err != nil {
		return err
	}
	r.writePlainln("Cache directory: %s", cacheDir)
	r.writePlain("Play something: yt-play 'https://www.youtube.com/playlist?list=...'\n")

	return nil
}

// setupCommand prepares the config file, tools, and history database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file and verify external tools",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}
