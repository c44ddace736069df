package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadSectionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "section.bin")

	type payload struct {
		Name  string
		Items []int
	}
	in := payload{Name: "fixture", Items: []int{1, 2, 3, 4}}

	require.NoError(t, writeSection(path, in))

	var out payload
	require.NoError(t, readSection(path, &out))
	assert.Equal(t, in, out)
}

func TestReadSectionRejectsCorruptedChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "section.bin")

	require.NoError(t, writeSection(path, "hello"))

	corruptLastByte(t, path)

	var out string
	err := readSection(path, &out)
	assert.Error(t, err)
}

func TestReadSectionRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "section.bin")

	require.NoError(t, writeSection(path, 42))

	overwriteFirstBytes(t, path)

	var out int
	err := readSection(path, &out)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}
