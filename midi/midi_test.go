package midi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeShortRoundTrip(t *testing.T) {
	m := ShortMessage{Status: 0x90, Data1: 0x3C, Data2: 0x7F}
	packed := EncodeShort(m)
	got := DecodeShort(packed)
	require.Equal(t, m, got)
	require.Equal(t, KindNoteOn, got.Kind())
}

func TestNoteOnVelocityZeroIsNoteOff(t *testing.T) {
	m := DecodeShort(EncodeShort(ShortMessage{Status: 0x90, Data1: 0x40, Data2: 0}))
	require.Equal(t, KindNoteOff, m.Kind())
}

func buildReverbSysex() []byte {
	// F0 41 10 16 12 10 00 01 02 05 03 <cs> F7 — mode=plate(2), time=5, level=3
	addrAndData := []byte{0x10, 0x00, 0x01, 0x02, 0x05, 0x03}
	cs := rolandChecksum(addrAndData)
	msg := []byte{0xF0, 0x41, 0x10, 0x16, 0x12}
	msg = append(msg, addrAndData...)
	msg = append(msg, cs, 0xF7)
	return msg
}

func TestDecodeWrite_Valid(t *testing.T) {
	msg := buildReverbSysex()
	w, err := DecodeWrite(msg)
	require.NoError(t, err)
	require.Equal(t, uint8(0x10), w.DeviceID)
	require.Equal(t, []byte{0x02, 0x05, 0x03}, w.Data)
}

func TestDecodeWrite_BadChecksum(t *testing.T) {
	msg := buildReverbSysex()
	msg[len(msg)-2] ^= 0xFF
	_, err := DecodeWrite(msg)
	require.Error(t, err)
	var bad *ErrChecksumInvalid
	require.ErrorAs(t, err, &bad)
}

func TestDecodeWrite_DeviceIDBelowRangeRejected(t *testing.T) {
	msg := buildReverbSysex()
	msg[2] = 0x05
	addrAndData := msg[5 : len(msg)-2]
	msg[len(msg)-2] = rolandChecksum(addrAndData)
	_, err := DecodeWrite(msg)
	require.Error(t, err)
	var notRoland *ErrNotRolandWrite
	require.ErrorAs(t, err, &notRoland)
}

func TestParser_SingleChunk(t *testing.T) {
	var p Parser
	msg := buildReverbSysex()
	res, n := p.Feed(msg)
	require.Equal(t, len(msg), n)
	require.Equal(t, msg, res.Complete)
	require.False(t, res.Discarded)
	require.Equal(t, Idle, p.State())
}

func TestParser_SplitAcrossCalls(t *testing.T) {
	var p Parser
	msg := buildReverbSysex()
	half := len(msg) / 2

	res1, _ := p.Feed(msg[:half])
	require.Nil(t, res1.Complete)
	require.Equal(t, InMessage, p.State())

	res2, _ := p.Feed(msg[half:])
	require.Equal(t, msg, res2.Complete)
}

func TestParser_NewStartByteDiscardsPriorFragment(t *testing.T) {
	var p Parser
	msg1 := buildReverbSysex()
	_, _ = p.Feed(msg1[:3]) // unterminated

	msg2 := buildReverbSysex()
	res, _ := p.Feed(msg2)
	require.True(t, res.Discarded)
	require.Equal(t, msg2, res.Complete)
}
