// Package persistence implements the on-disk snapshot format: one
// section file per index structure (hnsw.bin, lsh.bin, bm25.bin, pq.bin,
// embeddings.bin, metadata.bin) plus a manifest describing the
// generation, all written under a single directory per generation.
package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MagicNumber identifies a section file as belonging to this format.
// "RVS0" - retrieval vector snapshot; the framing version is carried
// separately in Version.
const MagicNumber uint32 = 0x52565330

// Version is the section framing version, independent of the manifest's
// own schema version.
const Version uint32 = 1

var (
	ErrInvalidMagic   = errors.New("persistence: invalid section magic number")
	ErrInvalidVersion = errors.New("persistence: unsupported section version")
)

// sectionHeader is the fixed-size, big-endian header written at the
// start of every section file: magic, format version, and the length of
// the zstd-compressed payload that follows. The payload's CRC32, taken
// over the compressed bytes, is appended after the payload by
// ChecksumWriter/ChecksumReader (see checksum.go) rather than stored in
// this header, so a truncated write is caught by a short read before the
// checksum is ever consulted.
type sectionHeader struct {
	Magic   uint32
	Version uint32
	Length  uint64
}

const sectionHeaderSize = 4 + 4 + 8

func writeSectionHeader(w io.Writer, length uint64) error {
	var buf [sectionHeaderSize]byte
	binary.BigEndian.PutUint32(buf[0:4], MagicNumber)
	binary.BigEndian.PutUint32(buf[4:8], Version)
	binary.BigEndian.PutUint64(buf[8:16], length)
	_, err := w.Write(buf[:])
	return err
}

func readSectionHeader(r io.Reader) (sectionHeader, error) {
	var buf [sectionHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return sectionHeader{}, fmt.Errorf("persistence: reading section header: %w", err)
	}

	h := sectionHeader{
		Magic:   binary.BigEndian.Uint32(buf[0:4]),
		Version: binary.BigEndian.Uint32(buf[4:8]),
		Length:  binary.BigEndian.Uint64(buf[8:16]),
	}
	if h.Magic != MagicNumber {
		return sectionHeader{}, ErrInvalidMagic
	}
	if h.Version != Version {
		return sectionHeader{}, ErrInvalidVersion
	}
	return h, nil
}
