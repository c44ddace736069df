package persistence

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func corruptLastByte(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func overwriteFirstBytes(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 4)
	data[0] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
