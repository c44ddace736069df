package persistence

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Manifest describes one generation's persisted state: the parameters
// needed to validate a loaded snapshot against the engine configuration
// that is about to consume it, plus identity and bookkeeping fields.
//
// Generation ids are uuid.UUID values rather than incrementing integers
// (grounded on poiesic-memorit's use of the same package for record
// identity), so snapshots taken by unrelated engine instances never
// collide if copied into the same parent directory.
type Manifest struct {
	GenerationID   uuid.UUID
	Dimension      int
	HNSWM          int
	PQM            int
	PQK            int
	LSHNumBands    int
	LSHRowsPerBand int
	DocumentCount  int
	CreatedAt      time.Time
}

// NewGenerationID returns a fresh random generation identifier.
func NewGenerationID() uuid.UUID {
	return uuid.New()
}

const manifestFile = "manifest.bin"

// WriteManifest writes m to dir using the same section framing as every
// other snapshot file, so a truncated or corrupted manifest is detected
// the same way a corrupted index section would be.
func WriteManifest(dir string, m Manifest) error {
	return writeSection(filepath.Join(dir, manifestFile), m)
}

// ReadManifest reads the manifest previously written to dir.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	if err := readSection(filepath.Join(dir, manifestFile), &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}
