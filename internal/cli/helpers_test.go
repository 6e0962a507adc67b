package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePaths_Default(t *testing.T) {
	idx, dat := cachePaths("")
	assert.True(t, filepath.IsAbs(idx) || idx == "ptree.idx")
	assert.Equal(t, ".idx", filepath.Ext(idx))
	assert.Equal(t, ".dat", filepath.Ext(dat))
	assert.Equal(t, filepath.Dir(idx), filepath.Dir(dat))
}

func TestCachePaths_CustomBase(t *testing.T) {
	idx, dat := cachePaths("/var/cache/ptree/main")
	assert.Equal(t, "/var/cache/ptree/main.idx", idx)
	assert.Equal(t, "/var/cache/ptree/main.dat", dat)
}

func TestCachePaths_StripsExtension(t *testing.T) {
	idx, dat := cachePaths("/var/cache/ptree/main.dat")
	assert.Equal(t, "/var/cache/ptree/main.idx", idx)
	assert.Equal(t, "/var/cache/ptree/main.dat", dat)
}

func TestOpenStore(t *testing.T) {
	base := filepath.Join(t.TempDir(), "cache", "ptree")
	s, err := openStore(base)
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, s.IsEmpty())
}

func TestResolveRoot(t *testing.T) {
	abs, err := resolveRoot("/some/dir")
	require.NoError(t, err)
	assert.Equal(t, "/some/dir", abs)

	cwd, err := resolveRoot("")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cwd))
}
