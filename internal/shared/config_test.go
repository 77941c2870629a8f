package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Tools.YtDlp != "yt-dlp" {
			t.Errorf("expected yt-dlp tool name yt-dlp, got %s", config.Tools.YtDlp)
		}

		if config.Tools.Mpv != "mpv" {
			t.Errorf("expected mpv tool name mpv, got %s", config.Tools.Mpv)
		}

		if config.Sync.Workers != 3 {
			t.Errorf("expected 3 sync workers, got %d", config.Sync.Workers)
		}

		if config.Sync.MaxRetries != 3 {
			t.Errorf("expected 3 max retries, got %d", config.Sync.MaxRetries)
		}

		if config.Cache.Dir != "" {
			t.Errorf("expected empty cache dir (per-user default), got %s", config.Cache.Dir)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Tools.YtDlp != defaultConfig.Tools.YtDlp {
			t.Errorf("created config yt-dlp name doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig fills defaults for partial files", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[cache]
dir = "/media/music"

[tools]
yt_dlp = "/opt/yt-dlp/yt-dlp"

[sync]
workers = 5
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Cache.Dir != "/media/music" {
			t.Errorf("expected cache dir /media/music, got %s", config.Cache.Dir)
		}

		if config.Tools.YtDlp != "/opt/yt-dlp/yt-dlp" {
			t.Errorf("expected custom yt-dlp path, got %s", config.Tools.YtDlp)
		}

		if config.Tools.Mpv != "mpv" {
			t.Errorf("expected mpv to default, got %s", config.Tools.Mpv)
		}

		if config.Sync.Workers != 5 {
			t.Errorf("expected 5 workers, got %d", config.Sync.Workers)
		}

		if config.Sync.MaxRetries != 3 {
			t.Errorf("expected max retries to default to 3, got %d", config.Sync.MaxRetries)
		}
	})

	t.Run("LoadConfig rejects malformed TOML", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := os.WriteFile(configPath, []byte("[cache\ndir = oops"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if err == nil {
			t.Fatal("expected error for malformed config")
		}
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("ResolveConfig", func(t *testing.T) {
		t.Run("missing default file falls back to defaults", func(t *testing.T) {
			t.Setenv("YT_PLAY_CONFIG", "")
			t.Setenv("XDG_CONFIG_HOME", t.TempDir())

			config, err := ResolveConfig("")
			if err != nil {
				t.Fatalf("expected defaults for missing config, got error: %v", err)
			}
			if config.Tools.YtDlp != "yt-dlp" {
				t.Errorf("expected default yt-dlp name, got %s", config.Tools.YtDlp)
			}
		})

		t.Run("explicit missing path is an error", func(t *testing.T) {
			_, err := ResolveConfig(filepath.Join(t.TempDir(), "nope.toml"))
			if err == nil {
				t.Fatal("expected error for explicit missing path")
			}
			if !errors.Is(err, ErrMissingConfig) {
				t.Errorf("expected ErrMissingConfig, got %v", err)
			}
		})

		t.Run("environment overrides file values", func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.toml")
			if err := os.WriteFile(configPath, []byte("[tools]\nmpv = \"mpv-from-file\"\n"), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			t.Setenv("YT_PLAY_MPV", "mpv-from-env")
			t.Setenv("YT_PLAY_CACHE_DIR", "/env/cache")
			t.Setenv("YT_PLAY_WORKERS", "7")

			config, err := ResolveConfig(configPath)
			if err != nil {
				t.Fatalf("failed to resolve config: %v", err)
			}

			if config.Tools.Mpv != "mpv-from-env" {
				t.Errorf("expected env mpv override, got %s", config.Tools.Mpv)
			}
			if config.Cache.Dir != "/env/cache" {
				t.Errorf("expected env cache dir, got %s", config.Cache.Dir)
			}
			if config.Sync.Workers != 7 {
				t.Errorf("expected 7 workers from env, got %d", config.Sync.Workers)
			}
		})
	})

	t.Run("HistoryPath defaults under cache root", func(t *testing.T) {
		config := DefaultConfig()
		config.Cache.Dir = "/media/music"

		path, err := config.HistoryPath()
		if err != nil {
			t.Fatalf("failed to resolve history path: %v", err)
		}
		if path != filepath.Join("/media/music", "history.db") {
			t.Errorf("expected history.db under cache root, got %s", path)
		}

		config.Database.Path = "/elsewhere/history.db"
		path, err = config.HistoryPath()
		if err != nil {
			t.Fatalf("failed to resolve history path: %v", err)
		}
		if path != "/elsewhere/history.db" {
			t.Errorf("expected explicit database path, got %s", path)
		}
	})
}
