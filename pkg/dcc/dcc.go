// Package dcc performs a single active DCC SEND download: connecting to
// the sender's TCP endpoint and streaming bytes to disk.
package dcc

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/xdccdl/xdccdl/pkg/ircmsg"
)

const bufferSize = 4096

// Done is the sentinel progress value emitted once a transfer finishes, per
// spec.md §3 ("ProgressEvent ... a per-transfer 'complete' sentinel").
const Done int64 = -1

var (
	// ErrPrematureEOF is returned when the sender closes the connection
	// before the declared size has been streamed.
	ErrPrematureEOF = errors.New("dcc: peer closed connection before declared size was reached")
	// ErrFileTooLarge is returned when an on-disk partial file is already
	// larger than the offer's declared size (spec.md §8, undefined-by-source
	// boundary, treated here as an error rather than silently overwritten).
	ErrFileTooLarge = errors.New("dcc: existing file is larger than the offer's declared size")
)

// Offer is a value-copy of an accepted DCC SEND, handed by value to exactly
// one worker (spec.md §3, "Ownership").
type Offer = ircmsg.Offer

// ExistingLength reports the size of any partial download already present
// for offer in dir, or 0 if no such file exists.
func ExistingLength(dir string, offer Offer) (int64, error) {
	path := filepath.Join(dir, offer.Filename)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Run performs one active DCC download to completion or failure, per
// spec.md §4.3. progress receives one strictly increasing byte count per
// chunk written, followed by Done on success; it is never closed by Run
// (the caller, which also created the channel, owns that).
func Run(offer Offer, dir string, progress chan<- int64) error {
	path := filepath.Join(dir, offer.Filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("dcc: opening %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("dcc: stat %s: %w", path, err)
	}
	written := uint64(info.Size())
	if written > offer.SizeBytes {
		return ErrFileTooLarge
	}

	if written == offer.SizeBytes {
		log.Debugf("[WORKER][%s] already complete, skipping transfer", offer.Filename)
		progress <- Done
		return nil
	}

	addr := net.JoinHostPort(offer.PeerAddr, offer.PeerPort)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dcc: connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	log.Debugf("[WORKER][%s] connected to %s, resuming at %d/%d", offer.Filename, addr, written, offer.SizeBytes)

	buf := make([]byte, bufferSize)
	for written < offer.SizeBytes {
		n, err := conn.Read(buf)
		if n == 0 {
			if err == nil || err == io.EOF {
				return ErrPrematureEOF
			}
			return fmt.Errorf("dcc: reading from %s: %w", addr, err)
		}
		if _, werr := file.Write(buf[:n]); werr != nil {
			return fmt.Errorf("dcc: writing %s: %w", path, werr)
		}
		written += uint64(n)
		progress <- int64(written)
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("dcc: flushing %s: %w", path, err)
	}
	progress <- Done
	log.Debugf("[WORKER][%s] complete (%d bytes)", offer.Filename, written)
	return nil
}
