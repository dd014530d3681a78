// Package xdcc is the entry orchestrator: it accepts a resolved
// DownloadRequest, wires a session.Controller to a progress.Reporter, and
// runs the download to completion, per spec.md §4.6.
package xdcc

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/xdccdl/xdccdl/pkg/progress"
	"github.com/xdccdl/xdccdl/pkg/session"
)

// PackRequest is one (bot, pack-number) pair to request from the network.
type PackRequest struct {
	Bot  string
	Pack string // decimal pack number as text, e.g. "42"
}

// DownloadRequest is the resolved input a front-end hands to the core:
// every field has already been validated and defaulted by the caller.
type DownloadRequest struct {
	ServerAddr string // host:port
	Channel    string // without leading '#'
	NickPrefix string
	Packs      []PackRequest
	TargetDir  string
}

// TermWidth overrides the terminal width progress bars are elided to. Zero
// means "let pkg/progress pick a default".
var TermWidth = 0

// Output is where progress bars are rendered. Defaults to os.Stdout; tests
// may redirect it to io.Discard.
var Output io.Writer = os.Stdout

// Run resolves req into a session.Config, drives one Controller to
// completion, and returns its terminal error, if any. Per spec.md §4.6, a
// nil error means every pack either completed or was already complete;
// any worker failure (surfaced by the controller as its last error) is
// reported here as a non-nil error.
func Run(ctx context.Context, req DownloadRequest) error {
	if len(req.Packs) == 0 {
		return fmt.Errorf("xdcc: no packs requested")
	}
	if err := os.MkdirAll(req.TargetDir, 0o755); err != nil {
		return fmt.Errorf("xdcc: creating target directory %s: %w", req.TargetDir, err)
	}

	reporter := progress.New(len(req.Packs), TermWidth, Output)
	defer reporter.Close()

	cfg := session.Config{
		ServerAddr: req.ServerAddr,
		Channel:    req.Channel,
		NickPrefix: req.NickPrefix,
		Dir:        req.TargetDir,
		Packs:      toSessionPacks(req.Packs),
	}

	ctrl := session.NewController(cfg, reporter, reporter)
	return ctrl.Run(ctx)
}

func toSessionPacks(packs []PackRequest) []session.PackRequest {
	out := make([]session.PackRequest, len(packs))
	for i, p := range packs {
		out[i] = session.PackRequest{Bot: p.Bot, Pack: p.Pack}
	}
	return out
}
