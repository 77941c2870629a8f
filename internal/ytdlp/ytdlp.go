// package ytdlp shells out to yt-dlp for playlist listings and track downloads.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ethan-hawksley/yt-play/internal/retry"
	"github.com/ethan-hawksley/yt-play/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultPath            = "yt-dlp"
	defaultListTimeout     = 2 * time.Minute
	defaultDownloadTimeout = 10 * time.Minute
	defaultRateLimit       = 2.0

	// outputTemplate names downloads "<title> [<video id>].<ext>" so a
	// file on disk can always be matched back to its remote identifier.
	outputTemplate = "%(title)s [%(id)s].%(ext)s"
)

// CommandRunner abstracts subprocess execution so tests can stand in
// for the real binary.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Entry is one item of a remote playlist listing.
type Entry struct {
	ID       string
	Title    string
	Position int
}

// Listing is the remote state of a playlist at the time of the call.
type Listing struct {
	ID      string
	Title   string
	Entries []Entry
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	// Path is the yt-dlp executable, a bare name resolved on PATH or an
	// absolute path.
	Path string
	// ExtraArgs are appended to every yt-dlp invocation.
	ExtraArgs []string
	// ListTimeout bounds a single listing attempt.
	ListTimeout time.Duration
	// DownloadTimeout bounds a single download attempt.
	DownloadTimeout time.Duration
	// RateLimit is the allowed download starts per second.
	RateLimit float64
	// Retry overrides the default per-call retry policy.
	Retry *retry.Config
	// Logger defaults to a stderr logger.
	Logger *log.Logger
	// Runner defaults to real subprocess execution.
	Runner CommandRunner
}

// Client invokes yt-dlp with retry, rate limiting, and timeout policy
// applied uniformly to every call.
type Client struct {
	path            string
	extraArgs       []string
	listTimeout     time.Duration
	downloadTimeout time.Duration
	limiter         *rate.Limiter
	retryCfg        retry.Config
	logger          *log.Logger
	runner          CommandRunner
}

// NewClient creates a Client from options, filling in defaults for any
// zero fields.
func NewClient(opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}

	c := &Client{
		path:            opts.Path,
		extraArgs:       opts.ExtraArgs,
		listTimeout:     opts.ListTimeout,
		downloadTimeout: opts.DownloadTimeout,
		logger:          opts.Logger,
		runner:          opts.Runner,
	}

	if c.path == "" {
		c.path = defaultPath
	}
	if c.listTimeout == 0 {
		c.listTimeout = defaultListTimeout
	}
	if c.downloadTimeout == 0 {
		c.downloadTimeout = defaultDownloadTimeout
	}
	if c.logger == nil {
		c.logger = shared.NewLogger(nil)
	}
	if c.runner == nil {
		c.runner = execRunner{}
	}

	limit := opts.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	c.limiter = rate.NewLimiter(rate.Limit(limit), 1)

	if opts.Retry != nil {
		c.retryCfg = *opts.Retry
	} else {
		c.retryCfg = retry.DefaultConfig()
	}

	return c
}

// Installed verifies the yt-dlp binary is reachable. Absence is a
// startup failure, reported with install guidance.
func (c *Client) Installed() error {
	if _, err := exec.LookPath(c.path); err != nil {
		return fmt.Errorf("%w: %s (install yt-dlp or set tools.yt_dlp in the config)", shared.ErrMissingTool, c.path)
	}
	return nil
}

// Version returns the installed yt-dlp version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	stdout, stderr, err := c.runner.Run(ctx, "", c.path, "--version")
	if err != nil {
		return "", &ToolError{Op: "version", Stderr: stderrTail(stderr), Err: err}
	}
	return strings.TrimSpace(string(stdout)), nil
}

// ListPlaylist fetches the remote listing for a playlist URL using
// yt-dlp's flat playlist mode. Transient failures are retried; the
// final error wraps shared.ErrListingFailed.
func (c *Client) ListPlaylist(ctx context.Context, url string) (*Listing, error) {
	args := []string{"--flat-playlist", "-J", "--no-warnings"}
	args = append(args, c.extraArgs...)
	args = append(args, url)

	var listing *Listing
	err := retry.Do(ctx, c.retryCfg, Retryable, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.listTimeout)
		defer cancel()

		stdout, stderr, err := c.runner.Run(callCtx, "", c.path, args...)
		if err != nil {
			if callCtx.Err() == context.DeadlineExceeded {
				return &ToolError{Op: "list", Stderr: "listing timed out", Err: context.DeadlineExceeded}
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &ToolError{Op: "list", Stderr: stderrTail(stderr), Err: err}
		}

		parsed, parseErr := parseListing(stdout)
		if parseErr != nil {
			return parseErr
		}
		listing = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrListingFailed, err)
	}

	return listing, nil
}

// Download fetches one video as audio into dir and returns the
// resulting filename. The rate limiter paces every attempt, retries
// included, and the final error wraps shared.ErrDownloadFailed.
func (c *Client) Download(ctx context.Context, url, videoID, dir string) (string, error) {
	args := []string{"-x", "--no-playlist", "--no-warnings", "-o", outputTemplate}
	args = append(args, c.extraArgs...)
	args = append(args, url)

	var filename string
	err := retry.Do(ctx, c.retryCfg, Retryable, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
		defer cancel()

		_, stderr, err := c.runner.Run(callCtx, dir, c.path, args...)
		if err != nil {
			if callCtx.Err() == context.DeadlineExceeded {
				return &ToolError{Op: "download", Stderr: "download timed out", Err: context.DeadlineExceeded}
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &ToolError{Op: "download", Stderr: stderrTail(stderr), Err: err}
		}

		located, err := LocateDownload(dir, videoID)
		if err != nil {
			return err
		}
		filename = located
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", shared.ErrDownloadFailed, videoID, err)
	}

	return filename, nil
}

// LocateDownload finds the audio file for a video in dir by its
// "[<video id>]" filename marker. In-progress download artifacts are
// ignored.
func LocateDownload(dir, videoID string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	marker := "[" + videoID + "]"
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if isDownloadArtifact(name) {
			continue
		}
		if strings.Contains(name, marker) {
			return name, nil
		}
	}

	return "", fmt.Errorf("no downloaded file for %s in %s", videoID, dir)
}

// isDownloadArtifact reports whether a filename is an in-progress or
// bookkeeping file rather than finished audio.
func isDownloadArtifact(name string) bool {
	for _, suffix := range []string{".part", ".ytdl", ".tmp", ".lock", ".json"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return strings.HasPrefix(name, ".")
}

// ytdlpPlaylist mirrors yt-dlp's -J output for a playlist.
type ytdlpPlaylist struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Entries []ytdlpEntry `json:"entries"`
}

// ytdlpEntry is a single video in yt-dlp's JSON output.
type ytdlpEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// parseListing decodes yt-dlp's JSON into a Listing. Entries without an
// identifier (deleted videos render as null or id-less stubs) are
// dropped; positions index the usable entries in remote order.
func parseListing(data []byte) (*Listing, error) {
	var playlist ytdlpPlaylist
	if err := json.Unmarshal(data, &playlist); err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}

	entries := make([]Entry, 0, len(playlist.Entries))
	for _, entry := range playlist.Entries {
		if entry.ID == "" {
			continue
		}
		entries = append(entries, Entry{
			ID:       entry.ID,
			Title:    entry.Title,
			Position: len(entries),
		})
	}

	return &Listing{
		ID:      playlist.ID,
		Title:   playlist.Title,
		Entries: entries,
	}, nil
}

// ToolError describes a failed yt-dlp invocation.
type ToolError struct {
	Op     string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("yt-dlp %s: %v: %s", e.Op, e.Err, e.Stderr)
	}
	return fmt.Sprintf("yt-dlp %s: %v", e.Op, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Retryable classifies yt-dlp failures for the retry loop. Rate
// limiting and network noise deserve another attempt; a video that no
// longer exists never will.
func Retryable(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return !permanentOutput(toolErr.Stderr)
	}
	return true
}

// permanentOutput matches stderr patterns for failures no retry can fix.
func permanentOutput(s string) bool {
	s = strings.ToLower(s)
	for _, marker := range []string{
		"private video",
		"video unavailable",
		"removed by the uploader",
		"account associated with this video has been terminated",
		"does not exist",
	} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// stderrTail keeps error messages readable by trimming yt-dlp's stderr
// to its final lines.
func stderrTail(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if len(s) <= 400 {
		return s
	}
	return "..." + s[len(s)-400:]
}
