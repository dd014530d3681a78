// Package ircmock is a scripted fake IRC/DCC peer used to exercise the
// engine end to end without a real network, per spec.md §8's "each uses
// a scripted IRC server" end-to-end scenarios.
package ircmock

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// IRCPeer listens on a loopback port and hands each accepted connection
// to a caller-supplied script, run on its own goroutine.
type IRCPeer struct {
	t  *testing.T
	ln net.Listener
}

// ListenIRC starts a fake IRC server. Callers pass it as a Controller's
// ServerAddr.
func ListenIRC(t *testing.T) *IRCPeer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	p := &IRCPeer{t: t, ln: ln}
	t.Cleanup(func() { ln.Close() })
	return p
}

// Addr is the host:port a Controller should dial.
func (p *IRCPeer) Addr() string { return p.ln.Addr().String() }

// Script accepts exactly one connection and runs script against it on a
// background goroutine, closing the connection when script returns.
func (p *IRCPeer) Script(script func(conn net.Conn)) {
	go func() {
		conn, err := p.ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn)
	}()
}

// DCCPeer is a minimal one-shot DCC SEND sender: it accepts one
// connection and streams totalBytes zero bytes, per the scenarios'
// "local DCC stub ... streams N zero bytes".
type DCCPeer struct {
	Host string
	Port string
}

// ListenDCC starts a fake DCC sender that writes totalBytes zero bytes to
// the first connection it accepts.
func ListenDCC(t *testing.T, totalBytes int) DCCPeer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write(make([]byte, totalBytes))
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return DCCPeer{Host: host, Port: port}
}
