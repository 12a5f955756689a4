package key

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Platform identifies the target device.
type Platform struct {
	ProductFamily     uint32
	PCHProductFamily  uint32
	DisplayCoreFamily uint32
	RenderCoreFamily  uint32
	PlatformType      uint32
	DeviceID          uint16
	RevisionID        uint16
	DeviceIDPCH       uint16
	RevisionIDPCH     uint16
	GTType            uint32
}

func (p Platform) encode() []byte {
	b := make([]byte, 0, 32)
	b = binary.LittleEndian.AppendUint32(b, p.ProductFamily)
	b = binary.LittleEndian.AppendUint32(b, p.PCHProductFamily)
	b = binary.LittleEndian.AppendUint32(b, p.DisplayCoreFamily)
	b = binary.LittleEndian.AppendUint32(b, p.RenderCoreFamily)
	b = binary.LittleEndian.AppendUint32(b, p.PlatformType)
	b = binary.LittleEndian.AppendUint16(b, p.DeviceID)
	b = binary.LittleEndian.AppendUint16(b, p.RevisionID)
	b = binary.LittleEndian.AppendUint16(b, p.DeviceIDPCH)
	b = binary.LittleEndian.AppendUint16(b, p.RevisionIDPCH)
	b = binary.LittleEndian.AppendUint32(b, p.GTType)
	return b
}

// IPVersion is the graphics IP version triple.
type IPVersion struct {
	Architecture uint32
	Release      uint32
	Revision     uint32
}

func (v IPVersion) encode() []byte {
	b := make([]byte, 0, 12)
	b = binary.LittleEndian.AppendUint32(b, v.Architecture)
	b = binary.LittleEndian.AppendUint32(b, v.Release)
	return binary.LittleEndian.AppendUint32(b, v.Revision)
}

// Hardware groups the device description hashed into a key.
type Hardware struct {
	Platform    Platform
	Features    FlagTable
	Workarounds FlagTable
	IPVersion   IPVersion
}

// FlagTable is a set of numbered boolean flags.
// The zero value has every flag cleared.
type FlagTable struct {
	words []uint64
}

// Set turns flag i on or off.
func (t *FlagTable) Set(i uint, on bool) {
	w := int(i / 64)
	if w >= len(t.words) {
		if !on {
			return
		}
		t.words = append(t.words, make([]uint64, w+1-len(t.words))...)
	}
	mask := uint64(1) << (i % 64)
	if on {
		t.words[w] |= mask
	} else {
		t.words[w] &^= mask
	}
}

// Has reports whether flag i is on.
func (t FlagTable) Has(i uint) bool {
	w := int(i / 64)
	if w >= len(t.words) {
		return false
	}
	return t.words[w]&(uint64(1)<<(i%64)) != 0
}

// Checksum hashes the table contents. Tables with the same flags set
// have the same checksum regardless of how they grew.
func (t FlagTable) Checksum() uint64 {
	n := len(t.words)
	for n > 0 && t.words[n-1] == 0 {
		n--
	}
	d := xxhash.New()
	var buf [8]byte
	for _, w := range t.words[:n] {
		binary.LittleEndian.PutUint64(buf[:], w)
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
