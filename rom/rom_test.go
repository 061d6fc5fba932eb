package rom

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func syntheticControlBytes() []byte {
	size := timbreTableOffset + numTimbres*timbreRecordSize
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}

func syntheticPCMBytes() []byte {
	data := make([]byte, pcmSampleDataStart+4096)
	for i := range data {
		data[i] = byte(i * 3)
	}
	// Slot 0: start 0, len 16, not looped, 16-bit.
	data[0], data[1], data[2], data[3] = 0, 0, 0, 0
	data[8], data[9], data[10], data[11] = 16, 0, 0, 0
	return data
}

func TestOpenControl_UnknownDigestRejected(t *testing.T) {
	_, err := OpenControl(syntheticControlBytes(), false)
	require.Error(t, err)
	var unknown *ErrUnknownDigest
	require.ErrorAs(t, err, &unknown)
}

func TestOpenControl_AcceptUnknown(t *testing.T) {
	c, err := OpenControl(syntheticControlBytes(), true)
	require.NoError(t, err)
	require.Equal(t, ModelUnknown, c.Image.Model)
	require.Len(t, c.Timbres, numTimbres)
}

func TestOpenPCM_SlotLookup(t *testing.T) {
	p, err := OpenPCM(syntheticPCMBytes(), true)
	require.NoError(t, err)

	sample, err := p.Sample(0)
	require.NoError(t, err)
	require.Len(t, sample, 16)
}

func TestOpenPCM_MissingSlot(t *testing.T) {
	p, err := OpenPCM(syntheticPCMBytes(), true)
	require.NoError(t, err)

	_, err = p.Sample(255)
	require.Error(t, err)
	var missing *ErrSampleSlotMissing
	require.ErrorAs(t, err, &missing)
}

func TestImageIsCopiedNotAliased(t *testing.T) {
	data := syntheticPCMBytes()
	p, err := OpenPCM(data, true)
	require.NoError(t, err)

	data[0] = 0xFF
	require.NotEqual(t, byte(0xFF), p.Image.Data[0])
}

func TestLoadControlFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "control.rom")
	require.NoError(t, os.WriteFile(path, syntheticControlBytes(), 0o644))

	c, err := LoadControlFile(path, true)
	require.NoError(t, err)
	require.Len(t, c.Timbres, numTimbres)
}

func TestLoadControlFile_MissingFile(t *testing.T) {
	_, err := LoadControlFile(filepath.Join(t.TempDir(), "missing.rom"), true)
	require.Error(t, err)
}

func TestLoadPCMFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pcm.rom")
	require.NoError(t, os.WriteFile(path, syntheticPCMBytes(), 0o644))

	p, err := LoadPCMFile(path, true)
	require.NoError(t, err)
	_, err = p.Sample(0)
	require.NoError(t, err)
}
