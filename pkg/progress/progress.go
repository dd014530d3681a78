// Package progress renders per-transfer and session-level progress to the
// terminal using a multi-bar renderer, per spec.md §4.5. The terminal
// library is a replaceable dependency; the only contract this package
// exposes is that concurrent writers never interleave and bars update
// promptly.
package progress

import (
	"fmt"
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/xdccdl/xdccdl/pkg/dcc"
)

const maxLabelFraction = 2 // elide when label is wider than 1/maxLabelFraction of the terminal

// Reporter multiplexes per-transfer byte counts and session status messages
// onto a terminal multi-bar renderer.
type Reporter struct {
	p         *mpb.Progress
	status    *mpb.Bar
	statusCh  chan string
	termWidth int
}

// New creates a Reporter with a pack-count status bar sized to totalPacks.
// Bar frames are written to out (os.Stdout in normal use, io.Discard in
// tests that only care about the channel contract).
func New(totalPacks int, termWidth int, out io.Writer) *Reporter {
	if termWidth <= 0 {
		termWidth = 80
	}
	r := &Reporter{
		p:         mpb.New(mpb.WithWidth(64), mpb.WithOutput(out)),
		statusCh:  make(chan string, 64),
		termWidth: termWidth,
	}
	r.status = r.p.AddBar(int64(totalPacks),
		mpb.PrependDecorators(decor.Name("session")),
		mpb.AppendDecorators(decor.Percentage()),
	)
	go r.drainStatus(totalPacks)
	return r
}

// Status enqueues a session-level status string (spec.md §3,
// "ProgressEvent ... a session-level status string"). Safe for concurrent
// callers (controller and workers alike): the underlying channel is
// multi-producer, single-consumer.
func (r *Reporter) Status(msg string) {
	r.statusCh <- msg
}

func (r *Reporter) drainStatus(totalPacks int) {
	finished := 0
	for msg := range r.statusCh {
		switch msg {
		case "Episode Finished Downloading":
			finished++
			r.status.SetCurrent(int64(finished))
		case "Success":
			r.status.SetCurrent(int64(totalPacks))
			return
		}
	}
	r.status.Abort(false)
}

// Transfer creates a byte-granularity bar for offer and returns the channel
// the caller's worker should emit ProgressEvents on: positive values set
// the bar absolutely, dcc.Done finalizes it. The caller is responsible for
// closing the returned channel once the worker exits; closing it without
// sending dcc.Done aborts the bar.
func (r *Reporter) Transfer(offer dcc.Offer) chan int64 {
	label := elideMiddle(offer.Filename, r.termWidth/maxLabelFraction)
	total := int64(offer.SizeBytes)
	bar := r.p.AddBar(total,
		mpb.PrependDecorators(decor.Name(label, decor.WCSyncSpaceR)),
		mpb.AppendDecorators(decor.CountersKibiByte("% .2f / % .2f")),
	)

	ch := make(chan int64, 16)
	go func() {
		for v := range ch {
			if v == dcc.Done {
				bar.SetCurrent(total)
				return
			}
			bar.SetCurrent(v)
		}
		bar.Abort(false)
	}()
	return ch
}

// Close stops accepting status updates and waits for all bars to finish
// rendering. Call after every transfer worker has exited. If "Success" was
// never reported, the status bar is aborted rather than completed.
func (r *Reporter) Close() {
	close(r.statusCh)
	r.p.Wait()
}

// elideMiddle trims s to fit within width by keeping a prefix and suffix
// and inserting "..." in the middle, matching the original tool's
// terminal-width-aware bar labels (see DESIGN.md, pkg/progress entry).
// For widths below 8 it keeps only the first width bytes, with no "...".
func elideMiddle(s string, width int) string {
	if width <= 0 || len(s) <= width {
		return s
	}
	if width < 8 {
		return s[:width]
	}
	half := (width - 3) / 2
	return fmt.Sprintf("%s...%s", s[:half], s[len(s)-half:])
}
