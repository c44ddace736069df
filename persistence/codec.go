package persistence

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// writeSection gob-encodes v, compresses the result independently with
// zstd, and writes it to path framed by a sectionHeader and a trailing
// CRC32 of the compressed bytes. Grounded on the teacher's wal/ package,
// the only place in the teacher that reaches for zstd; this reuses the
// same compression idiom for whole-structure snapshot sections instead
// of per-record WAL entries.
func writeSection(path string, v any) error {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(v); err != nil {
		return fmt.Errorf("persistence: encoding section %s: %w", path, err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("persistence: creating zstd encoder: %w", err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(raw.Bytes(), nil)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("persistence: creating %s: %w", path, err)
	}
	defer f.Close()

	if err := writeSectionHeader(f, uint64(len(compressed))); err != nil {
		return fmt.Errorf("persistence: writing header for %s: %w", path, err)
	}

	cw := NewChecksumWriter(f)
	if _, err := cw.Write(compressed); err != nil {
		return fmt.Errorf("persistence: writing payload for %s: %w", path, err)
	}

	var trailer [4]byte
	binary.BigEndian.PutUint32(trailer[:], cw.Sum())
	if _, err := f.Write(trailer[:]); err != nil {
		return fmt.Errorf("persistence: writing checksum for %s: %w", path, err)
	}

	return nil
}

// readSection reads a section file written by writeSection, verifies its
// checksum, decompresses it, and gob-decodes it into dest (a pointer).
// A missing or mismatched checksum is returned as an error so the caller
// can force a rebuild rather than load corrupted state.
func readSection(path string, dest any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("persistence: opening %s: %w", path, err)
	}
	defer f.Close()

	header, err := readSectionHeader(f)
	if err != nil {
		return fmt.Errorf("persistence: %s: %w", path, err)
	}

	cr := NewChecksumReader(io.LimitReader(f, int64(header.Length)))
	compressed, err := io.ReadAll(cr)
	if err != nil {
		return fmt.Errorf("persistence: reading payload of %s: %w", path, err)
	}

	var trailer [4]byte
	if _, err := io.ReadFull(f, trailer[:]); err != nil {
		return fmt.Errorf("persistence: reading checksum of %s: %w", path, err)
	}
	if err := cr.Verify(binary.BigEndian.Uint32(trailer[:])); err != nil {
		return fmt.Errorf("persistence: %s: %w", path, err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("persistence: creating zstd decoder: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return fmt.Errorf("persistence: decompressing %s: %w", path, err)
	}

	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(dest); err != nil {
		return fmt.Errorf("persistence: decoding %s: %w", path, err)
	}

	return nil
}
