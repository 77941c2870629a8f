package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ethan-hawksley/yt-play/internal/engine"
	"github.com/ethan-hawksley/yt-play/internal/history"
	"github.com/ethan-hawksley/yt-play/internal/manifest"
	"github.com/ethan-hawksley/yt-play/internal/player"
	"github.com/ethan-hawksley/yt-play/internal/retry"
	"github.com/ethan-hawksley/yt-play/internal/shared"
	"github.com/ethan-hawksley/yt-play/internal/ytdlp"
	"github.com/urfave/cli/v3"
)

// mediaClient is the yt-dlp surface the commands use.
type mediaClient interface {
	Installed() error
	Version(ctx context.Context) (string, error)
	ListPlaylist(ctx context.Context, url string) (*ytdlp.Listing, error)
	Download(ctx context.Context, url, videoID, dir string) (string, error)
}

// audioPlayer is the mpv surface the commands use.
type audioPlayer interface {
	Installed() error
	Play(ctx context.Context, queue []string) error
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	store      *manifest.Store
	client     mediaClient
	player     audioPlayer
	syncer     engine.Syncer
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
// Nil dependencies are built lazily from the resolved config.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Store      *manifest.Store
	Client     mediaClient
	Player     audioPlayer
	Syncer     engine.Syncer
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		store:      opts.Store,
		client:     opts.Client,
		player:     opts.Player,
		syncer:     opts.Syncer,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		cacheCommand, historyCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig resolves the effective config once per invocation. An
// explicit path (flag or RunnerOpts) wins over YT_PLAY_CONFIG and the
// per-user config file; a pre-set config skips resolution entirely.
func (r *Runner) loadConfig(path string) error {
	if r.config != nil {
		return nil
	}
	if path == "" {
		path = r.configPath
	}

	config, err := shared.ResolveConfig(path)
	if err != nil {
		return err
	}

	r.config = config
	return nil
}

// openStore returns the manifest store rooted at the configured cache
// directory, creating it on first use.
func (r *Runner) openStore() (*manifest.Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	dir, err := r.config.CacheDir()
	if err != nil {
		return nil, err
	}

	store, err := manifest.NewStore(dir, r.logger)
	if err != nil {
		return nil, err
	}

	r.store = store
	return store, nil
}

// mediaTool returns the yt-dlp client, appending any whitespace-split
// passthrough arguments from the command line to the configured ones.
func (r *Runner) mediaTool(extraArgs string) mediaClient {
	if r.client != nil {
		return r.client
	}

	args := append([]string{}, r.config.Tools.YtDlpArgs...)
	args = append(args, strings.Fields(extraArgs)...)

	retryCfg := retryConfig(r.config.Sync.MaxRetries)

	r.client = ytdlp.NewClient(&ytdlp.Options{
		Path:        r.config.Tools.YtDlp,
		ExtraArgs:   args,
		ListTimeout: time.Duration(r.config.Sync.ListTimeoutSec) * time.Second,
		RateLimit:   r.config.Sync.RateLimit,
		Retry:       &retryCfg,
		Logger:      r.logger,
	})
	return r.client
}

// audioTool returns the mpv player, appending any whitespace-split
// passthrough arguments from the command line to the configured ones.
func (r *Runner) audioTool(extraArgs string) audioPlayer {
	if r.player != nil {
		return r.player
	}

	args := append([]string{}, r.config.Tools.MpvArgs...)
	args = append(args, strings.Fields(extraArgs)...)

	r.player = player.NewPlayer(&player.Options{
		Path:      r.config.Tools.Mpv,
		ExtraArgs: args,
		Logger:    r.logger,
	})
	return r.player
}

// openHistory opens the sync history database, running migrations on
// first use. The caller owns the returned handle.
func (r *Runner) openHistory() (*sql.DB, *history.Repository, error) {
	path, err := r.config.HistoryPath()
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, nil, err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, err
	}

	return db, history.NewRepository(db), nil
}

// buildSyncer assembles the sync engine over the store and the yt-dlp
// client. The journal may be nil; runs simply go unrecorded.
func (r *Runner) buildSyncer(store *manifest.Store, client mediaClient, journal engine.Journal) engine.Syncer {
	if r.syncer != nil {
		return r.syncer
	}

	return engine.NewEngine(engine.Options{
		Store:       store,
		Lister:      client,
		Downloader:  client,
		Journal:     journal,
		Logger:      r.logger,
		Workers:     r.config.Sync.Workers,
		LockTimeout: time.Duration(r.config.Sync.LockTimeoutSec) * time.Second,
	})
}

func retryConfig(maxRetries int) retry.Config {
	cfg := retry.DefaultConfig()
	if maxRetries > 0 {
		cfg.MaxRetries = maxRetries
	}
	return cfg
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// configFlag is declared per command so every subcommand accepts it in
// the same position-independent way.
func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
	}
}
