// package player hands a playback queue to mpv and waits for it.
package player

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/charmbracelet/log"
	"github.com/ethan-hawksley/yt-play/internal/shared"
)

const defaultPath = "mpv"

// mpv exits with this code when it was terminated by a signal, which in
// our flow means the user interrupted playback.
const exitCodeSignal = 4

// Runner starts the player process and blocks until it exits. The real
// implementation wires the process to the terminal so mpv's keyboard
// controls work.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// Interrupt rather than kill on cancellation so mpv restores the
	// terminal state before exiting.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	return cmd.Run()
}

// Options configures a Player. Zero values fall back to defaults.
type Options struct {
	// Path is the mpv executable.
	Path string
	// ExtraArgs are appended to every mpv invocation, before the queue.
	ExtraArgs []string
	// Logger defaults to a stderr logger.
	Logger *log.Logger
	// Runner defaults to real subprocess execution.
	Runner Runner
}

// Player plays ordered queues of local audio files through mpv.
type Player struct {
	path      string
	extraArgs []string
	logger    *log.Logger
	runner    Runner
}

// NewPlayer creates a Player from options, filling in defaults for any
// zero fields.
func NewPlayer(opts *Options) *Player {
	if opts == nil {
		opts = &Options{}
	}

	p := &Player{
		path:      opts.Path,
		extraArgs: opts.ExtraArgs,
		logger:    opts.Logger,
		runner:    opts.Runner,
	}

	if p.path == "" {
		p.path = defaultPath
	}
	if p.logger == nil {
		p.logger = shared.NewLogger(nil)
	}
	if p.runner == nil {
		p.runner = execRunner{}
	}

	return p
}

// Installed verifies the mpv binary is reachable. Absence is a startup
// failure, reported with install guidance.
func (p *Player) Installed() error {
	if _, err := exec.LookPath(p.path); err != nil {
		return fmt.Errorf("%w: %s (install mpv or set tools.mpv in the config)", shared.ErrMissingTool, p.path)
	}
	return nil
}

// Play hands the whole queue to a single mpv process and blocks until
// it exits. Queue order is the playback order; mpv is never asked to
// shuffle. A user interrupt surfaces as shared.ErrPlaybackInterrupted,
// which callers treat as a clean exit.
func (p *Player) Play(ctx context.Context, queue []string) error {
	if len(queue) == 0 {
		return nil
	}

	args := []string{"--no-video"}
	args = append(args, p.extraArgs...)
	args = append(args, queue...)

	p.logger.Debug("starting playback", "player", p.path, "tracks", len(queue))

	err := p.runner.Run(ctx, p.path, args...)
	if err == nil {
		return nil
	}

	if ctx.Err() != nil || exitedBySignal(err) {
		return fmt.Errorf("%w: %v", shared.ErrPlaybackInterrupted, err)
	}

	return fmt.Errorf("%w: %s: %v", shared.ErrPlaybackFailed, p.path, err)
}

// exitedBySignal reports whether mpv died to a signal, either directly
// or via its signal exit code.
func exitedBySignal(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	if exitErr.ExitCode() == exitCodeSignal {
		return true
	}
	// A killed process reports -1 with the signal in the wait status.
	return exitErr.ExitCode() == -1
}
