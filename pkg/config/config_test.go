package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	d, err := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Equal(t, Defaults{}, d)
}

func TestLoadReadsKnownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xdccdlrc")
	contents := "server = irc.example.net:6667\nchannel = anime\nnick_prefix = watcher\ndownload_dir = /tmp/downloads\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Defaults{
		ServerAddr:  "irc.example.net:6667",
		Channel:     "anime",
		NickPrefix:  "watcher",
		DownloadDir: "/tmp/downloads",
	}, d)
}

func TestMergePrefersNonEmptyOverride(t *testing.T) {
	base := Defaults{ServerAddr: "irc.example.net:6667", Channel: "anime"}
	override := Defaults{Channel: "music"}
	got := base.Merge(override)
	assert.Equal(t, "irc.example.net:6667", got.ServerAddr)
	assert.Equal(t, "music", got.Channel)
}
