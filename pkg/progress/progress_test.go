package progress

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xdccdl/xdccdl/pkg/dcc"
)

func TestElideMiddleShortStringUnchanged(t *testing.T) {
	assert.Equal(t, "short.mkv", elideMiddle("short.mkv", 40))
}

func TestElideMiddleLongStringElided(t *testing.T) {
	name := "a-very-long-release-group-filename-for-episode-twelve.mkv"
	got := elideMiddle(name, 20)
	assert.LessOrEqual(t, len(got), len(name))
	assert.Contains(t, got, "...")
	assert.True(t, len(got) <= 20+3)
}

func TestTransferAcceptsCompleteSentinel(t *testing.T) {
	r := New(1, 80, io.Discard)
	offer := dcc.Offer{Filename: "ep1.mkv", SizeBytes: 100}
	ch := r.Transfer(offer)
	ch <- 50
	ch <- dcc.Done
	close(ch)
	time.Sleep(10 * time.Millisecond)
	r.Status("Success")
	r.Close()
}
