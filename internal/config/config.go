// Package config loads cadence's TOML configuration.
package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const appName = "cadence"

type Config struct {
	// LibraryDir holds the database and thumbnail blobs. Empty means
	// the XDG data directory.
	LibraryDir string `koanf:"library_dir"`

	// Roots are the directories scanned for audio files.
	Roots []string `koanf:"roots"`

	// Session persistence.
	SaveSessionOnExit       bool `koanf:"save_session_on_exit"`
	ResumePlaybackOnStartup bool `koanf:"resume_playback_on_startup"`

	// Substitutions for empty tag values; "%s" becomes the file
	// extension.
	DefaultAlbumName  string `koanf:"default_album_name"`
	DefaultArtistName string `koanf:"default_artist_name"`

	// Watch keeps a scanner running that reacts to filesystem changes.
	Watch bool `koanf:"watch"`

	// ProgressBatch is the number of files between scan progress ticks;
	// zero keeps the built-in default.
	ProgressBatch int `koanf:"progress_batch"`
}

// Load reads config.toml from ~/.config/cadence and then from the
// working directory; later files win.
func Load() (*Config, error) {
	k := koanf.New(".")

	for _, path := range configPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{
		SaveSessionOnExit: true,
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if cfg.LibraryDir == "" {
		cfg.LibraryDir = filepath.Join(xdg.DataHome, appName)
	}
	cfg.LibraryDir = expandPath(cfg.LibraryDir)

	for i, root := range cfg.Roots {
		cfg.Roots[i] = expandPath(root)
	}
	return cfg, nil
}

func configPaths() []string {
	paths := []string{}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", appName, "config.toml"))
	}
	paths = append(paths, "config.toml")
	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
