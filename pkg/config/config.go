// Package config loads xdccdl's optional rc file: an INI document
// carrying defaults for the IRC network, channel, nick, and download
// directory, so the CLI does not need to repeat them on every
// invocation (spec.md §7.3 / SPEC_FULL.md §7.3).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// Defaults holds the values an rc file may supply. Any field left empty
// was not set in the file; callers layer flag values on top.
type Defaults struct {
	ServerAddr  string
	Channel     string
	NickPrefix  string
	DownloadDir string
}

// DefaultPath returns the conventional rc file location, $HOME/.xdccdlrc.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".xdccdlrc"
	}
	return filepath.Join(home, ".xdccdlrc")
}

// Load reads an rc file at path and returns its Defaults. A missing file
// is not an error: it returns a zero Defaults, since the rc file is
// entirely optional (spec.md §7.3 precedence: flags > file > built-in
// defaults).
func Load(path string) (Defaults, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Defaults{}, nil
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return Defaults{}, fmt.Errorf("config: loading %s: %w", path, err)
	}

	section := cfg.Section("")
	return Defaults{
		ServerAddr:  section.Key("server").String(),
		Channel:     section.Key("channel").String(),
		NickPrefix:  section.Key("nick_prefix").String(),
		DownloadDir: section.Key("download_dir").String(),
	}, nil
}

// Merge returns a copy of d with any field overridden by a corresponding
// non-empty field in override, implementing the flags-over-file
// precedence spec.md §7.3 calls for.
func (d Defaults) Merge(override Defaults) Defaults {
	out := d
	if override.ServerAddr != "" {
		out.ServerAddr = override.ServerAddr
	}
	if override.Channel != "" {
		out.Channel = override.Channel
	}
	if override.NickPrefix != "" {
		out.NickPrefix = override.NickPrefix
	}
	if override.DownloadDir != "" {
		out.DownloadDir = override.DownloadDir
	}
	return out
}
