// Package rom loads and validates the MT-32/CM-32L control and PCM ROM
// images and exposes the tables they encode (envelope timing, volume-to-
// amplitude, bias points, waveform addresses) as typed views.
//
// Grounded on sid_parser.go's binary-header decoding style (fixed offsets,
// byte-order-explicit reads, a single ParseXData entry point over a byte
// slice) generalized to two independent ROM images instead of one file.
package rom

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Model identifies which physical unit a ROM pair belongs to.
type Model int

const (
	ModelUnknown Model = iota
	ModelMT32
	ModelCM32L
)

func (m Model) String() string {
	switch m {
	case ModelMT32:
		return "MT-32"
	case ModelCM32L:
		return "CM-32L"
	default:
		return "unknown"
	}
}

// knownControlDigests maps a SHA-1 digest (hex) of a control ROM image to
// the model/version it identifies. Real digests for the hardware ROMs are
// intentionally not vendored here; operators provide their own dump and
// register it, or pass AcceptUnknownDigest.
var knownControlDigests = map[string]Model{}

// knownPCMDigests maps a SHA-1 digest (hex) of a PCM ROM image to the
// model it belongs to.
var knownPCMDigests = map[string]Model{}

// RegisterControlDigest lets a caller extend the known-digest table, e.g.
// after independently verifying a dump against hardware.
func RegisterControlDigest(digestHex string, m Model) { knownControlDigests[digestHex] = m }

// RegisterPCMDigest extends the known PCM-digest table.
func RegisterPCMDigest(digestHex string, m Model) { knownPCMDigests[digestHex] = m }

// Digest is the SHA-1 content hash of a ROM image.
type Digest [sha1.Size]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

func digestOf(data []byte) Digest {
	return Digest(sha1.Sum(data))
}

// Image is an immutable ROM byte sequence plus its digest.
type Image struct {
	Data   []byte
	Digest Digest
	Model  Model
}

// ErrUnknownDigest is returned by OpenControl/OpenPCM when a ROM's digest
// is not present in the known table and acceptUnknown is false.
type ErrUnknownDigest struct {
	Digest Digest
}

func (e *ErrUnknownDigest) Error() string {
	return fmt.Sprintf("rom: digest %s not in known table", e.Digest)
}

func newImage(data []byte, table map[string]Model, acceptUnknown bool) (Image, error) {
	d := digestOf(data)
	model, known := table[d.String()]
	if !known {
		if !acceptUnknown {
			return Image{}, &ErrUnknownDigest{Digest: d}
		}
		model = ModelUnknown
	}
	// Copy so the caller's slice can't mutate an image we claim is immutable.
	owned := make([]byte, len(data))
	copy(owned, data)
	return Image{Data: owned, Digest: d, Model: model}, nil
}

// OpenControl validates and wraps a control ROM image.
func OpenControl(data []byte, acceptUnknown bool) (*ControlROM, error) {
	img, err := newImage(data, knownControlDigests, acceptUnknown)
	if err != nil {
		return nil, err
	}
	return parseControl(img)
}

// OpenPCM validates and wraps a PCM ROM image.
func OpenPCM(data []byte, acceptUnknown bool) (*PCMROM, error) {
	img, err := newImage(data, knownPCMDigests, acceptUnknown)
	if err != nil {
		return nil, err
	}
	return parsePCM(img)
}
