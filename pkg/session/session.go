// Package session implements the IRC/DCC request-reply state machine that
// drives a single XDCC download session: login, per-pack request/offer
// negotiation, and shutdown. This is the core of the engine (spec.md §4.4).
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/xdccdl/xdccdl/internal/linebuf"
	"github.com/xdccdl/xdccdl/pkg/dcc"
	"github.com/xdccdl/xdccdl/pkg/ircmsg"
)

const (
	readChunkTimeout = 300 * time.Millisecond

	loginTickPeriod    = 500 * time.Millisecond
	loginTickThreshold = 5

	requestTickPeriod    = 3000 * time.Millisecond
	requestTickThreshold = 5

	waitPollPeriod = 1 * time.Second
)

var (
	ErrLoginTimeout   = errors.New("session: login did not complete within the timeout")
	ErrRequestTimeout = errors.New("session: pack request received no reply within the timeout")
	ErrSocketClosed   = errors.New("session: irc connection closed")
)

// PackRequest is one (bot, pack-number) pair to request from the network.
type PackRequest struct {
	Bot  string
	Pack string // decimal pack number as text, e.g. "42"
}

// Config is everything a Controller needs to run one download session.
type Config struct {
	ServerAddr string // host:port
	Channel    string // without leading '#'
	NickPrefix string
	Packs      []PackRequest
	Dir        string
}

// StatusSink receives session-level status strings (spec.md §3).
type StatusSink interface {
	Status(msg string)
}

// TransferSink creates the progress channel a newly accepted offer's
// worker should emit byte counts on.
type TransferSink interface {
	Transfer(offer dcc.Offer) chan int64
}

// Controller drives one IRC connection through login, the per-pack
// request loop, and shutdown, per spec.md §4.4. It owns the IRC socket
// exclusively; each accepted offer is handed by value to its own worker.
type Controller struct {
	cfg      Config
	status   StatusSink
	transfer TransferSink

	conn   net.Conn
	framer *linebuf.Framer

	hasJoined       bool
	waitForPrevious bool
	resumePending   bool

	// offers is parallel to cfg.Packs up to the current cursor: offers[k]
	// is the accepted DccOffer for cfg.Packs[k], appended as soon as the
	// DCC SEND line for pack k arrives (spec.md §3, ConnectionState).
	offers []dcc.Offer

	wg      sync.WaitGroup
	errMu   sync.Mutex
	lastErr error
}

// NewController builds a Controller ready to Run.
func NewController(cfg Config, status StatusSink, transfer TransferSink) *Controller {
	return &Controller{cfg: cfg, status: status, transfer: transfer}
}

// Run executes the full Login -> Requesting -> ShuttingDown state machine
// to completion, spawning one worker goroutine per accepted offer and
// joining them all before returning. It returns the first fatal error
// encountered by the controller itself, or the last worker error if every
// controller step succeeded but a transfer failed.
func (c *Controller) Run(ctx context.Context) error {
	c.status.Status("Connecting")
	conn, err := net.Dial("tcp", c.cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("session: dialing %s: %w", c.cfg.ServerAddr, err)
	}
	c.conn = conn
	c.framer = linebuf.New()
	defer c.wg.Wait()
	defer c.conn.Close()

	if err := c.login(); err != nil {
		return err
	}
	c.status.Status("Connected")

	if err := c.requestLoop(ctx); err != nil {
		return err
	}

	return c.shutdown()
}

// login drives NICK/USER registration through MODE/PING/JOIN confirmation,
// per spec.md §4.4 "Login phase".
func (c *Controller) login() error {
	nick := fmt.Sprintf("%s%d", c.cfg.NickPrefix, rand.Intn(1<<16))
	if err := c.send(fmt.Sprintf("NICK %s\r\n", nick)); err != nil {
		return err
	}
	if err := c.send(fmt.Sprintf("USER %s 0 * %s\r\n", nick, nick)); err != nil {
		return err
	}

	deadline := time.Now().Add(loginTickPeriod)
	timeouts := 0
	for {
		msg, ok, err := c.readLine()
		if err != nil {
			return err
		}
		if ok {
			switch msg.Kind {
			case ircmsg.Ping:
				if err := c.send(ircmsg.Pong(msg.Token)); err != nil {
					return err
				}
				if !c.hasJoined {
					if err := c.joinChannel(); err != nil {
						return err
					}
				}
			case ircmsg.ModeConfirmation:
				if !c.hasJoined {
					if err := c.joinChannel(); err != nil {
						return err
					}
				}
			case ircmsg.JoinConfirmation:
				c.hasJoined = true
				return nil
			}
			continue
		}

		if time.Now().After(deadline) {
			if err := c.joinChannel(); err != nil {
				return err
			}
			deadline = deadline.Add(loginTickPeriod)
			timeouts++
			if timeouts >= loginTickThreshold {
				return ErrLoginTimeout
			}
		}
	}
}

func (c *Controller) joinChannel() error {
	return c.send(fmt.Sprintf("JOIN #%s\r\n", c.cfg.Channel))
}

// requestLoop walks cfg.Packs with a cursor, requesting each pack,
// handling queue-full/duplicate-request/resume negotiation, and spawning
// one worker per accepted offer, per spec.md §4.4 "Request-loop phase".
func (c *Controller) requestLoop(ctx context.Context) error {
	i := 0
	for i < len(c.cfg.Packs) {
		if c.waitForPrevious {
			if err := c.waitForPreviousCompletion(ctx, i); err != nil {
				return err
			}
			c.waitForPrevious = false
		}

		if !c.resumePending {
			pr := c.cfg.Packs[i]
			if err := c.send(fmt.Sprintf("PRIVMSG %s :xdcc send #%s\r\n", pr.Bot, pr.Pack)); err != nil {
				return err
			}
		}

		deadline := time.Now().Add(requestTickPeriod)
		timeouts := 0

		for advanced := false; !advanced; {
			msg, ok, err := c.readLine()
			if err != nil {
				return err
			}

			if ok {
				switch msg.Kind {
				case ircmsg.DCCSend:
					advanced, err = c.handleOffer(i, msg.Offer)
					if err != nil {
						return err
					}
					if advanced {
						i++
					}

				case ircmsg.DCCAccept:
					if !c.resumePending {
						continue
					}
					c.spawnWorker(i)
					c.resumePending = false
					i++
					advanced = true

				case ircmsg.QueueFull:
					c.waitForPrevious = true
					advanced = true

				case ircmsg.DuplicateRequest:
					if err := c.cancelAndRetry(i); err != nil {
						return err
					}
					advanced = true
				}
				continue
			}

			if time.Now().After(deadline) {
				if c.previousStillDownloading(i) {
					continue
				}
				deadline = deadline.Add(requestTickPeriod)
				timeouts++
				if timeouts >= requestTickThreshold {
					return ErrRequestTimeout
				}
			}
		}
	}
	return nil
}

// handleOffer appends a freshly parsed offer for pack i and either sends a
// DCC RESUME request (returning false — the inner loop keeps waiting for
// DCC ACCEPT) or spawns the worker directly (returning true).
func (c *Controller) handleOffer(i int, offer dcc.Offer) (bool, error) {
	c.offers = append(c.offers, offer)

	existing, err := dcc.ExistingLength(c.cfg.Dir, offer)
	if err != nil {
		return false, fmt.Errorf("session: checking existing file for %s: %w", offer.Filename, err)
	}

	if existing > 0 && existing < int64(offer.SizeBytes) {
		pr := c.cfg.Packs[i]
		resumeCmd := fmt.Sprintf("PRIVMSG %s :\x01DCC RESUME \"%s\" %s %d\x01\r\n",
			pr.Bot, offer.Filename, offer.PeerPort, existing)
		if err := c.send(resumeCmd); err != nil {
			return false, err
		}
		c.resumePending = true
		return false, nil
	}

	c.spawnWorker(i)
	return true, nil
}

func (c *Controller) cancelAndRetry(i int) error {
	pr := c.cfg.Packs[i]
	if err := c.send(fmt.Sprintf("PRIVMSG %s :xdcc remove #%s\r\n", pr.Bot, pr.Pack)); err != nil {
		return err
	}
	return c.send(fmt.Sprintf("PRIVMSG %s :\x01XDCC CANCEL\x01\r\n", pr.Bot))
}

// previousStillDownloading implements spec.md §9's corrected condition for
// "a previous transfer is still in progress": i > 0 && len(offers) >= i,
// not the source's always-false i > len(requests).
func (c *Controller) previousStillDownloading(i int) bool {
	if !(i > 0 && len(c.offers) >= i) {
		return false
	}
	prev := c.offers[i-1]
	length, err := dcc.ExistingLength(c.cfg.Dir, prev)
	if err != nil {
		return false
	}
	return length < int64(prev.SizeBytes)
}

// waitForPreviousCompletion polls the previous pack's on-disk file size
// once per second until it reaches its declared size, per spec.md §4.4
// ("wait_for_previous: ... poll once per second").
func (c *Controller) waitForPreviousCompletion(ctx context.Context, i int) error {
	if i == 0 || len(c.offers) < i {
		return nil
	}
	prev := c.offers[i-1]
	for {
		length, err := dcc.ExistingLength(c.cfg.Dir, prev)
		if err != nil {
			return fmt.Errorf("session: polling previous file %s: %w", prev.Filename, err)
		}
		if length >= int64(prev.SizeBytes) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitPollPeriod):
		}
	}
}

// spawnWorker launches the DCC transfer worker for the offer already
// recorded at c.offers[i]. This is the single "spawn worker for offer i"
// step spec.md §9 calls for, used by both the direct-accept and
// post-DCC-ACCEPT transitions.
func (c *Controller) spawnWorker(i int) {
	offer := c.offers[i]
	ch := c.transfer.Transfer(offer)
	c.status.Status(fmt.Sprintf("Now downloading %s", offer.Filename))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(ch)
		if err := dcc.Run(offer, c.cfg.Dir, ch); err != nil {
			log.Errorf("[WORKER][%s] %v", offer.Filename, err)
			c.status.Status(fmt.Sprintf("%s failed: %v", offer.Filename, err))
			c.recordErr(err)
			return
		}
		c.status.Status("Episode Finished Downloading")
	}()
}

func (c *Controller) recordErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.lastErr = err
}

func (c *Controller) lastWorkerErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.lastErr
}

// shutdown sends QUIT, closes the IRC socket in both directions, joins
// every spawned worker, and reports "Success" only if no worker failed.
func (c *Controller) shutdown() error {
	_ = c.send("QUIT\r\n")
	_ = c.conn.Close()
	c.wg.Wait()

	if err := c.lastWorkerErr(); err != nil {
		return err
	}
	c.status.Status("Success")
	return nil
}

func (c *Controller) send(cmd string) error {
	if _, err := c.conn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("session: writing to irc socket: %w", err)
	}
	log.Debugf("[SESSION][TX] %q", cmd)
	return nil
}

// readLine returns the next classified inbound line, or (zero, false, nil)
// if none is available within one read-timeout window, or a non-nil error
// if the socket is closed or otherwise unusable. A line that matches the
// DCC SEND form but fails to parse is fatal (spec.md §7: a ProtocolError,
// not a discarded line) and is returned as such. Per spec.md §5, the
// implementation sets a short per-read deadline so the caller's deadline
// loop makes progress even when no data is arriving.
func (c *Controller) readLine() (ircmsg.Message, bool, error) {
	for {
		if line, ok := c.framer.NextLine(); ok {
			msg, err := ircmsg.Classify(line)
			if err != nil {
				return ircmsg.Message{}, false, fmt.Errorf("session: classifying inbound line %q: %w", line, err)
			}
			log.Debugf("[SESSION][RX] %v %q", msg.Kind, line)
			return msg, true, nil
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(readChunkTimeout))
		buf := make([]byte, linebuf.ChunkSize())
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.framer.Feed(buf[:n])
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return ircmsg.Message{}, false, nil
			}
			if errors.Is(err, io.EOF) {
				return ircmsg.Message{}, false, ErrSocketClosed
			}
			return ircmsg.Message{}, false, fmt.Errorf("session: reading irc socket: %w", err)
		}
		if n == 0 {
			return ircmsg.Message{}, false, ErrSocketClosed
		}
	}
}
