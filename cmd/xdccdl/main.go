// Command xdccdl requests one or more XDCC packs from an IRC bot and
// downloads them over DCC, showing per-file progress bars. It is a thin
// CLI over pkg/xdcc; resolving a show name to bot/pack pairs (the
// original tool's catalog search) is out of scope here.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/xdccdl/xdccdl/pkg/config"
	"github.com/xdccdl/xdccdl/pkg/xdcc"
)

func main() {
	serverAddr := flag.String("server", "", "irc server host:port")
	channel := flag.String("channel", "", "irc channel, without leading #")
	nickPrefix := flag.String("nick", "xdccdl", "nickname prefix; a random suffix is appended")
	dir := flag.String("dir", ".", "download directory")
	configPath := flag.String("config", config.DefaultPath(), "rc file path")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Usage = usage
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	defaults, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xdccdl: %v\n", err)
		os.Exit(1)
	}
	resolved := defaults.Merge(config.Defaults{
		ServerAddr: *serverAddr,
		Channel:    *channel,
	})
	// -nick and -dir always hold a value, so they override the rc file only
	// when given explicitly; their defaults apply when the file is silent.
	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	if explicit["nick"] || resolved.NickPrefix == "" {
		resolved.NickPrefix = *nickPrefix
	}
	if explicit["dir"] || resolved.DownloadDir == "" {
		resolved.DownloadDir = *dir
	}

	if resolved.ServerAddr == "" || resolved.Channel == "" {
		fmt.Fprintln(os.Stderr, "xdccdl: -server and -channel are required (or set them in the rc file)")
		flag.Usage()
		os.Exit(1)
	}

	packs, err := parsePacks(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "xdccdl: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	req := xdcc.DownloadRequest{
		ServerAddr: resolved.ServerAddr,
		Channel:    resolved.Channel,
		NickPrefix: resolved.NickPrefix,
		Packs:      packs,
		TargetDir:  resolved.DownloadDir,
	}

	if err := xdcc.Run(context.Background(), req); err != nil {
		fmt.Fprintf(os.Stderr, "xdccdl: %v\n", err)
		os.Exit(1)
	}
}

// parsePacks turns "bot/pack" positional arguments into PackRequests.
func parsePacks(args []string) ([]xdcc.PackRequest, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one bot/pack argument is required")
	}
	packs := make([]xdcc.PackRequest, 0, len(args))
	for _, arg := range args {
		bot, pack, ok := strings.Cut(arg, "/")
		if !ok || bot == "" || pack == "" {
			return nil, fmt.Errorf("invalid bot/pack argument %q, want BOT/PACK", arg)
		}
		packs = append(packs, xdcc.PackRequest{Bot: bot, Pack: pack})
	}
	return packs, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] BOT/PACK [BOT/PACK ...]\n\n", os.Args[0])
	flag.PrintDefaults()
}
