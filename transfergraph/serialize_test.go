package transfergraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadCHRoundTrip(t *testing.T) {
	g := lineGraph(4)
	ch := BuildCH(g)

	path := filepath.Join(t.TempDir(), "contracted_graph.bin")
	require.NoError(t, WriteCH(path, ch))

	reopened, err := ReadCH(path)
	require.NoError(t, err)

	seconds, ok := reopened.Query(0, 3, 1000)
	require.True(t, ok)
	assert.Equal(t, 30.0, seconds)
	assert.Len(t, reopened.base.Nodes, 4)
}

func TestReadCHRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracted_graph.bin")
	require.NoError(t, WriteCH(path, BuildCH(lineGraph(2))))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = ReadCH(path)
	assert.Error(t, err)
}
