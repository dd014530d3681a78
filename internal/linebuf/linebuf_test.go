package linebuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextLineNoneUntilLF(t *testing.T) {
	f := New()
	f.Feed([]byte("PING :token"))
	_, ok := f.NextLine()
	assert.False(t, ok)

	f.Feed([]byte("\r\n"))
	line, ok := f.NextLine()
	assert.True(t, ok)
	assert.Equal(t, "PING :token\r\n", line)

	_, ok = f.NextLine()
	assert.False(t, ok)
}

func TestNextLineMultipleLinesInOneChunk(t *testing.T) {
	f := New()
	f.Feed([]byte("one\ntwo\nthree"))

	line, ok := f.NextLine()
	assert.True(t, ok)
	assert.Equal(t, "one\n", line)

	line, ok = f.NextLine()
	assert.True(t, ok)
	assert.Equal(t, "two\n", line)

	_, ok = f.NextLine()
	assert.False(t, ok)

	f.Feed([]byte("\n"))
	line, ok = f.NextLine()
	assert.True(t, ok)
	assert.Equal(t, "three\n", line)
}

func TestNextLineScrubsInvalidUTF8(t *testing.T) {
	f := New()
	f.Feed([]byte("PING :ab\xffcd\n"))
	line, ok := f.NextLine()
	assert.True(t, ok)
	assert.Equal(t, "PING :abcd\n", line)
}

func TestRoundTripEqualsInputUpToLastLF(t *testing.T) {
	input := "alpha\nbeta\ngamma\nunterminated"
	f := New()
	f.Feed([]byte(input))

	var out string
	for {
		line, ok := f.NextLine()
		if !ok {
			break
		}
		out += line
	}
	assert.Equal(t, "alpha\nbeta\ngamma\n", out)
}
