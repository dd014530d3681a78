package ircmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPing(t *testing.T) {
	msg, err := Classify("PING :abc123\r\n")
	require.NoError(t, err)
	assert.Equal(t, Ping, msg.Kind)
	assert.Equal(t, "abc123\r\n", msg.Token)
	assert.Equal(t, "PONG :abc123\r\n", Pong(msg.Token))
}

func TestClassifyModeConfirmation(t *testing.T) {
	msg, err := Classify(":server MODE nick :+i\r\n")
	require.NoError(t, err)
	assert.Equal(t, ModeConfirmation, msg.Kind)
}

func TestClassifyJoinConfirmation(t *testing.T) {
	msg, err := Classify(":nick!u@h JOIN :#nibl\r\n")
	require.NoError(t, err)
	assert.Equal(t, JoinConfirmation, msg.Kind)
}

func TestClassifyDCCSend(t *testing.T) {
	msg, err := Classify(`:bot!u@h PRIVMSG nick :` + "\x01" + `DCC SEND "ep1.mkv" 3232235777 5000 1048576` + "\x01\r\n")
	require.NoError(t, err)
	require.Equal(t, DCCSend, msg.Kind)
	assert.Equal(t, "ep1.mkv", msg.Offer.Filename)
	assert.Equal(t, "192.168.1.1", msg.Offer.PeerAddr)
	assert.Equal(t, "5000", msg.Offer.PeerPort)
	assert.EqualValues(t, 1048576, msg.Offer.SizeBytes)
}

func TestClassifyDCCSendUnquotedFilename(t *testing.T) {
	msg, err := Classify(`DCC SEND ep1.mkv 16777343 21 10` + "\r\n")
	require.NoError(t, err)
	require.Equal(t, DCCSend, msg.Kind)
	assert.Equal(t, "ep1.mkv", msg.Offer.Filename)
	assert.Equal(t, "1.0.0.127", msg.Offer.PeerAddr)
}

func TestClassifyDCCAccept(t *testing.T) {
	msg, err := Classify("\x01DCC ACCEPT \"ep1.mkv\" 5000 500000\x01\r\n")
	require.NoError(t, err)
	assert.Equal(t, DCCAccept, msg.Kind)
}

func TestClassifyQueueFull(t *testing.T) {
	msg, err := Classify(":bot!u@h PRIVMSG nick :** Bot Queue for Packs.. ** You have queued too many, please wait.\r\n")
	require.NoError(t, err)
	assert.Equal(t, QueueFull, msg.Kind)
}

func TestClassifyDuplicateRequest(t *testing.T) {
	msg, err := Classify(":bot!u@h NOTICE nick :You already requested\r\n")
	require.NoError(t, err)
	assert.Equal(t, DuplicateRequest, msg.Kind)
}

func TestClassifyOther(t *testing.T) {
	msg, err := Classify(":server 001 nick :Welcome\r\n")
	require.NoError(t, err)
	assert.Equal(t, Other, msg.Kind)
}

func TestIPv4RoundTrip(t *testing.T) {
	cases := []string{"192.168.1.1", "1.0.0.127", "0.0.0.0", "255.255.255.255"}
	for _, addr := range cases {
		n, err := EncodeIPv4(addr)
		require.NoError(t, err)
		assert.Equal(t, addr, DecodeIPv4(n))
	}
}

func TestIPv4DecodeIsTotal(t *testing.T) {
	// Every uint32 must decode to some dotted quad, never panic.
	for _, n := range []uint32{0, 1, 3232235777, 16777343, 4294967295} {
		assert.NotEmpty(t, DecodeIPv4(n))
	}
}

func TestClassifyDCCSendMalformedAddressIsProtocolError(t *testing.T) {
	// The address field matches \d+ but overflows uint32: fatal, not
	// silently discarded (spec.md §7).
	_, err := Classify(`DCC SEND "f.bin" 99999999999 5000 1` + "\r\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedOffer)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, "malformed_offer", protoErr.Code)
}

func TestClassifyDCCSendMalformedPortIsProtocolError(t *testing.T) {
	// The port field matches \d+ but overflows uint16.
	_, err := Classify(`DCC SEND "f.bin" 1 99999999 1` + "\r\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedOffer)
}

func TestClassifyOrderSendBeforeAccept(t *testing.T) {
	// A SEND line must never be misclassified as ACCEPT even though both
	// contain "DCC ".
	msg, err := Classify(`DCC SEND "f.bin" 1 1 1` + "\r\n")
	require.NoError(t, err)
	assert.Equal(t, DCCSend, msg.Kind)
}
