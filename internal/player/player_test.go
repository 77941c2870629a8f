package player

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ethan-hawksley/yt-play/internal/shared"
)

// fakeRunner records the invocation and returns a scripted result.
type fakeRunner struct {
	err   error
	name  string
	args  []string
	calls int
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) error {
	f.calls++
	f.name = name
	f.args = args
	return f.err
}

func TestPlay(t *testing.T) {
	t.Run("passes the whole queue to one invocation", func(t *testing.T) {
		runner := &fakeRunner{}
		p := NewPlayer(&Options{Runner: runner, Path: "mpv"})

		queue := []string{"/cache/youtube/PL1/a.opus", "/cache/youtube/PL1/b.opus"}
		if err := p.Play(context.Background(), queue); err != nil {
			t.Fatalf("Play returned error: %v", err)
		}

		if runner.calls != 1 {
			t.Fatalf("expected 1 invocation, got %d", runner.calls)
		}
		if runner.name != "mpv" {
			t.Errorf("player binary = %q", runner.name)
		}
		want := []string{"--no-video", "/cache/youtube/PL1/a.opus", "/cache/youtube/PL1/b.opus"}
		if len(runner.args) != len(want) {
			t.Fatalf("args = %v, want %v", runner.args, want)
		}
		for i := range want {
			if runner.args[i] != want[i] {
				t.Errorf("arg %d = %q, want %q", i, runner.args[i], want[i])
			}
		}
	})

	t.Run("extra args come before the queue", func(t *testing.T) {
		runner := &fakeRunner{}
		p := NewPlayer(&Options{Runner: runner, ExtraArgs: []string{"--volume=50"}})

		if err := p.Play(context.Background(), []string{"/cache/a.opus"}); err != nil {
			t.Fatalf("Play returned error: %v", err)
		}
		if runner.args[0] != "--no-video" || runner.args[1] != "--volume=50" || runner.args[2] != "/cache/a.opus" {
			t.Errorf("args = %v", runner.args)
		}
	})

	t.Run("empty queue plays nothing", func(t *testing.T) {
		runner := &fakeRunner{}
		p := NewPlayer(&Options{Runner: runner})

		if err := p.Play(context.Background(), nil); err != nil {
			t.Fatalf("Play returned error: %v", err)
		}
		if runner.calls != 0 {
			t.Errorf("expected no invocation for empty queue, got %d", runner.calls)
		}
	})

	t.Run("interrupt is surfaced as ErrPlaybackInterrupted", func(t *testing.T) {
		runner := &fakeRunner{err: fmt.Errorf("signal: interrupt")}
		p := NewPlayer(&Options{Runner: runner})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := p.Play(ctx, []string{"/cache/a.opus"})
		if !errors.Is(err, shared.ErrPlaybackInterrupted) {
			t.Errorf("expected ErrPlaybackInterrupted, got %v", err)
		}
	})

	t.Run("player failure is surfaced as ErrPlaybackFailed", func(t *testing.T) {
		runner := &fakeRunner{err: fmt.Errorf("exit status 2")}
		p := NewPlayer(&Options{Runner: runner})

		err := p.Play(context.Background(), []string{"/cache/a.opus"})
		if !errors.Is(err, shared.ErrPlaybackFailed) {
			t.Errorf("expected ErrPlaybackFailed, got %v", err)
		}
	})
}

func TestInstalled(t *testing.T) {
	t.Run("present tool", func(t *testing.T) {
		p := NewPlayer(&Options{Path: "sh"})
		if err := p.Installed(); err != nil {
			t.Errorf("expected sh to be found: %v", err)
		}
	})

	t.Run("missing tool", func(t *testing.T) {
		p := NewPlayer(&Options{Path: "definitely-not-a-real-player"})
		err := p.Installed()
		if !errors.Is(err, shared.ErrMissingTool) {
			t.Errorf("expected ErrMissingTool, got %v", err)
		}
	})
}
