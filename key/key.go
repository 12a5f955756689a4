// Package key derives cache keys for compiled binaries.
//
// A key is the lowercase hex SHA-256 of every input that can change the
// compiler output. Variable-length fields are length-prefixed and followed by
// [Separator], so no two distinct input tuples share an encoding.
package key

import (
	_ "crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/opencontainers/go-digest"
)

// Separator is written after every field.
const Separator = "----"

// Algorithm is the digest used for keys.
const Algorithm = digest.SHA256

// Size is the length of a derived key in characters.
const Size = 64

// Inputs is everything that identifies one compilation.
type Inputs struct {
	Source          []byte
	Options         string
	InternalOptions string
	SpecConstIDs    []uint32
	SpecConstValues []uint64

	Hardware Hardware

	CompilerRevision       string
	CompilerLibrarySize    uint64
	CompilerLibraryModTime int64
}

// Derive returns the cache key for in.
func Derive(in *Inputs) string {
	d := Algorithm.Digester()
	w := &fieldWriter{h: d.Hash()}

	w.bytes(in.Source)
	w.bytes([]byte(in.Options))
	w.bytes([]byte(in.InternalOptions))
	w.uint32s(in.SpecConstIDs)
	w.uint64s(in.SpecConstValues)

	w.raw(in.Hardware.Platform.encode())
	w.uint64(in.Hardware.Features.Checksum())
	w.uint64(in.Hardware.Workarounds.Checksum())
	w.raw(in.Hardware.IPVersion.encode())

	w.bytes([]byte(in.CompilerRevision))
	w.uint64(in.CompilerLibrarySize)
	w.uint64(uint64(in.CompilerLibraryModTime)) //nolint:gosec // bit pattern is hashed

	return d.Digest().Encoded()
}

// Parse validates a key produced by Derive.
func Parse(s string) (digest.Digest, error) {
	d := digest.NewDigestFromEncoded(Algorithm, s)
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("invalid key %q: %w", s, err)
	}
	return d, nil
}

// LibraryStat returns the size and modification time (Unix seconds) of the
// compiler library at path. Both are zero when path cannot be stat'ed.
func LibraryStat(path string) (size uint64, modTime int64) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0
	}
	if info.Size() > 0 {
		size = uint64(info.Size())
	}
	return size, info.ModTime().Unix()
}

type fieldWriter struct {
	h   hash.Hash
	buf [8]byte
}

func (w *fieldWriter) sep() {
	_, _ = io.WriteString(w.h, Separator)
}

func (w *fieldWriter) length(n int) {
	binary.LittleEndian.PutUint64(w.buf[:], uint64(n)) //nolint:gosec // lengths are non-negative
	_, _ = w.h.Write(w.buf[:])
}

func (w *fieldWriter) bytes(b []byte) {
	w.length(len(b))
	_, _ = w.h.Write(b)
	w.sep()
}

func (w *fieldWriter) raw(b []byte) {
	_, _ = w.h.Write(b)
	w.sep()
}

func (w *fieldWriter) uint64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[:], v)
	_, _ = w.h.Write(w.buf[:])
	w.sep()
}

func (w *fieldWriter) uint32s(vs []uint32) {
	w.length(len(vs))
	for _, v := range vs {
		binary.LittleEndian.PutUint32(w.buf[:4], v)
		_, _ = w.h.Write(w.buf[:4])
	}
	w.sep()
}

func (w *fieldWriter) uint64s(vs []uint64) {
	w.length(len(vs))
	for _, v := range vs {
		binary.LittleEndian.PutUint64(w.buf[:], v)
		_, _ = w.h.Write(w.buf[:])
	}
	w.sep()
}
