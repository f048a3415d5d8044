package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.LibraryDir, "library dir must default to the XDG data directory")
	assert.True(t, cfg.SaveSessionOnExit, "save_session_on_exit defaults to true")
	assert.False(t, cfg.ResumePlaybackOnStartup, "resume_playback_on_startup defaults to false")
}

func TestLoadFromWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	err := os.WriteFile("config.toml", []byte(`
library_dir = "/tmp/cadence-test-lib"
roots = ["/music", "/more-music"]
save_session_on_exit = false
default_artist_name = "[unknown %s artist]"
progress_batch = 50
`), 0o644)
	require.NoError(t, err)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/cadence-test-lib", cfg.LibraryDir)
	assert.Equal(t, []string{"/music", "/more-music"}, cfg.Roots)
	assert.False(t, cfg.SaveSessionOnExit)
	assert.Equal(t, "[unknown %s artist]", cfg.DefaultArtistName)
	assert.Equal(t, 50, cfg.ProgressBatch)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home+"/music", expandPath("~/music"))
	assert.Equal(t, "/absolute/path", expandPath("/absolute/path"))
	assert.Equal(t, "", expandPath(""))
}
