package cache

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConnerAdamsMaine/PTree/internal/derrors"
)

func testPaths(t *testing.T) (string, string) {
	tmpDir := t.TempDir()
	return filepath.Join(tmpDir, "ptree.idx"), filepath.Join(tmpDir, "ptree.dat")
}

func testEntry(path string) *Entry {
	return &Entry{
		Path:     path,
		Name:     filepath.Base(path),
		Modified: time.Now().UTC().Truncate(time.Second),
		Children: []string{"b", "c"},
	}
}

func TestOpen_Empty(t *testing.T) {
	indexPath, dataPath := testPaths(t)

	s, err := Open(indexPath, dataPath)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.IsEmpty())
	assert.Equal(t, 0, s.Len())
}

func TestOpen_CreatesParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	indexPath := filepath.Join(tmpDir, "nested", "deep", "ptree.idx")
	dataPath := filepath.Join(tmpDir, "nested", "deep", "ptree.dat")

	s, err := Open(indexPath, dataPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Dir(indexPath))
	assert.NoError(t, err)
}

func TestAppend_Get(t *testing.T) {
	indexPath, dataPath := testPaths(t)

	s, err := Open(indexPath, dataPath)
	require.NoError(t, err)
	defer s.Close()

	e := testEntry("/tmp/a")
	off, err := s.Append(e)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), off)

	got, err := s.Get("/tmp/a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "/tmp/a", got.Path)
	assert.Equal(t, "a", got.Name)
	assert.Equal(t, []string{"b", "c"}, got.Children)
	assert.True(t, e.Modified.Equal(got.Modified))

	// Second append lands after the first frame.
	off2, err := s.Append(testEntry("/tmp/b"))
	require.NoError(t, err)
	assert.Greater(t, off2, off)
}

func TestGet_Absent(t *testing.T) {
	indexPath, dataPath := testPaths(t)

	s, err := Open(indexPath, dataPath)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get("/does/not/exist")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRoundTrip_SaveAndReopen(t *testing.T) {
	indexPath, dataPath := testPaths(t)

	s, err := Open(indexPath, dataPath)
	require.NoError(t, err)

	e := testEntry("/tmp/a")
	e.SymlinkTarget = "/real/a"
	e.IsHidden = true
	_, err = s.Append(e)
	require.NoError(t, err)

	s.SetRoot("/tmp/a")
	s.SetLastScan(time.Now().UTC().Truncate(time.Second))
	require.NoError(t, s.SaveIndex())
	require.NoError(t, s.Close())

	reopened, err := Open(indexPath, dataPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("/tmp/a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, e.Path, got.Path)
	assert.Equal(t, e.Name, got.Name)
	assert.Equal(t, e.Children, got.Children)
	assert.Equal(t, e.SymlinkTarget, got.SymlinkTarget)
	assert.True(t, got.IsHidden)
	assert.Equal(t, "/tmp/a", reopened.Root())
}

func TestBufferEntry_FlushThreshold(t *testing.T) {
	indexPath, dataPath := testPaths(t)

	s, err := Open(indexPath, dataPath)
	require.NoError(t, err)
	defer s.Close()

	s.SetFlushThreshold(3)
	s.BufferEntry(testEntry("/r/a"))
	s.BufferEntry(testEntry("/r/b"))
	assert.Equal(t, 2, len(s.pending))

	// Crossing the threshold drains the staging buffer.
	s.BufferEntry(testEntry("/r/c"))
	assert.Equal(t, 0, len(s.pending))
	assert.Equal(t, 3, len(s.dirty))

	// Buffered entries are visible before any disk write.
	got, err := s.Get("/r/b")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestSave_PersistsBufferedEntries(t *testing.T) {
	indexPath, dataPath := testPaths(t)

	s, err := Open(indexPath, dataPath)
	require.NoError(t, err)

	s.BufferEntry(testEntry("/r"))
	s.BufferEntry(testEntry("/r/a"))
	require.NoError(t, s.Save())
	require.NoError(t, s.Close())

	reopened, err := Open(indexPath, dataPath)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 2, reopened.Len())
	got, err := reopened.Get("/r/a")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestGetAll(t *testing.T) {
	indexPath, dataPath := testPaths(t)

	s, err := Open(indexPath, dataPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Append(testEntry("/r"))
	require.NoError(t, err)
	s.BufferEntry(testEntry("/r/a"))
	s.Flush()
	s.BufferEntry(testEntry("/r/b"))

	all, err := s.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Contains(t, all, "/r")
	assert.Contains(t, all, "/r/a")
	assert.Contains(t, all, "/r/b")
}

func TestGetBatch(t *testing.T) {
	indexPath, dataPath := testPaths(t)

	s, err := Open(indexPath, dataPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Append(testEntry("/r"))
	require.NoError(t, err)

	got, err := s.GetBatch([]string{"/r", "/missing"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.NotNil(t, got[0])
	assert.Nil(t, got[1])
}

func TestRemoveSubtree(t *testing.T) {
	indexPath, dataPath := testPaths(t)

	s, err := Open(indexPath, dataPath)
	require.NoError(t, err)
	defer s.Close()

	for _, p := range []string{"/r", "/r/a", "/r/a/x", "/r/ab"} {
		_, err := s.Append(testEntry(p))
		require.NoError(t, err)
	}

	s.RemoveSubtree("/r/a")

	got, err := s.Get("/r/a")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = s.Get("/r/a/x")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Sibling with a shared name prefix is untouched.
	got, err = s.Get("/r/ab")
	require.NoError(t, err)
	assert.NotNil(t, got)
	got, err = s.Get("/r")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestCompact_DropsOrphanedFrames(t *testing.T) {
	indexPath, dataPath := testPaths(t)

	s, err := Open(indexPath, dataPath)
	require.NoError(t, err)

	for _, p := range []string{"/r", "/r/a", "/r/b"} {
		_, err := s.Append(testEntry(p))
		require.NoError(t, err)
	}
	sizeBefore, err := os.Stat(dataPath)
	require.NoError(t, err)

	s.RemoveSubtree("/r/a")
	require.NoError(t, s.Compact())

	sizeAfter, err := os.Stat(dataPath)
	require.NoError(t, err)
	assert.Less(t, sizeAfter.Size(), sizeBefore.Size())

	require.NoError(t, s.Close())

	reopened, err := Open(indexPath, dataPath)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 2, reopened.Len())
	got, err := reopened.Get("/r/b")
	require.NoError(t, err)
	assert.NotNil(t, got)
	got, err = reopened.Get("/r/a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOpen_TornTailTolerated(t *testing.T) {
	indexPath, dataPath := testPaths(t)

	s, err := Open(indexPath, dataPath)
	require.NoError(t, err)

	_, err = s.Append(testEntry("/r"))
	require.NoError(t, err)
	tornOff, err := s.Append(testEntry("/r/torn"))
	require.NoError(t, err)
	require.NoError(t, s.SaveIndex())
	require.NoError(t, s.Close())

	// Chop the final frame mid-payload.
	require.NoError(t, os.Truncate(dataPath, int64(tornOff)+6))

	reopened, err := Open(indexPath, dataPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("/r")
	require.NoError(t, err)
	assert.NotNil(t, got)
	got, err = reopened.Get("/r/torn")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOpen_MissingDataIsCorrupt(t *testing.T) {
	indexPath, dataPath := testPaths(t)

	s, err := Open(indexPath, dataPath)
	require.NoError(t, err)
	_, err = s.Append(testEntry("/r"))
	require.NoError(t, err)
	require.NoError(t, s.SaveIndex())
	require.NoError(t, s.Close())

	require.NoError(t, os.Remove(dataPath))

	_, err = Open(indexPath, dataPath)
	require.Error(t, err)
	assert.True(t, derrors.HasCode(err, derrors.CodeCorrupt))
}

func TestOpen_BadMagicIsFormatMismatch(t *testing.T) {
	indexPath, dataPath := testPaths(t)

	require.NoError(t, os.WriteFile(indexPath, []byte("XXXX\x01\x00\x00\x00{}"), 0600))

	_, err := Open(indexPath, dataPath)
	require.Error(t, err)
	assert.True(t, derrors.HasCode(err, derrors.CodeFormatMismatch))
}

func TestOpen_BadVersionIsFormatMismatch(t *testing.T) {
	indexPath, dataPath := testPaths(t)

	header := make([]byte, 8)
	copy(header, indexMagic[:])
	binary.LittleEndian.PutUint16(header[4:6], 99)
	require.NoError(t, os.WriteFile(indexPath, append(header, []byte("{}")...), 0600))

	_, err := Open(indexPath, dataPath)
	require.Error(t, err)
	assert.True(t, derrors.HasCode(err, derrors.CodeFormatMismatch))
}

func TestSaveIndex_AtomicReplace(t *testing.T) {
	indexPath, dataPath := testPaths(t)

	s, err := Open(indexPath, dataPath)
	require.NoError(t, err)
	defer s.Close()

	s.SetRoot("/r")
	require.NoError(t, s.SaveIndex())

	s.SetRoot("/other")
	require.NoError(t, s.SaveIndex())

	// No temp file is left behind.
	_, err = os.Stat(indexPath + ".tmp")
	assert.True(t, os.IsNotExist(err))

	idx, err := loadIndex(indexPath)
	require.NoError(t, err)
	assert.Equal(t, "/other", idx.Root)
}

func TestJournalState_RoundTrip(t *testing.T) {
	indexPath, dataPath := testPaths(t)

	s, err := Open(indexPath, dataPath)
	require.NoError(t, err)

	js := JournalState{
		JournalID:   42,
		LastUSN:     1000,
		Drive:       "C",
		LastRead:    time.Now().UTC().Truncate(time.Second),
		ChangeCount: 7,
	}
	s.SetJournal(js)
	require.NoError(t, s.SaveIndex())
	require.NoError(t, s.Close())

	reopened, err := Open(indexPath, dataPath)
	require.NoError(t, err)
	defer reopened.Close()

	got := reopened.Journal()
	assert.Equal(t, js.JournalID, got.JournalID)
	assert.Equal(t, js.LastUSN, got.LastUSN)
	assert.Equal(t, js.Drive, got.Drive)
	assert.Equal(t, js.ChangeCount, got.ChangeCount)
	assert.True(t, js.LastRead.Equal(got.LastRead))
}

func TestSkipReport(t *testing.T) {
	indexPath, dataPath := testPaths(t)

	s, err := Open(indexPath, dataPath)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "(no directories skipped)", s.SkipReport())

	s.RecordSkip(".git")
	s.RecordSkip("node_modules")
	s.RecordSkip("node_modules")

	report := s.SkipReport()
	assert.Equal(t, "  2 × node_modules\n  1 × .git", report)

	s.ResetSkipStats()
	assert.Equal(t, "(no directories skipped)", s.SkipReport())
}

func TestAppend_OverwritesPriorEntry(t *testing.T) {
	indexPath, dataPath := testPaths(t)

	s, err := Open(indexPath, dataPath)
	require.NoError(t, err)
	defer s.Close()

	e := testEntry("/r")
	_, err = s.Append(e)
	require.NoError(t, err)

	e2 := testEntry("/r")
	e2.Children = []string{"x"}
	_, err = s.Append(e2)
	require.NoError(t, err)

	got, err := s.Get("/r")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"x"}, got.Children)
	assert.Equal(t, 1, s.Len())
}

func TestEntry_CloneIsDeep(t *testing.T) {
	e := testEntry("/r")
	c := e.Clone()
	c.Children[0] = "mutated"
	assert.Equal(t, "b", e.Children[0])
}

func TestEntry_ChildHelpers(t *testing.T) {
	e := testEntry("/r")
	assert.True(t, e.HasChild("b"))
	assert.False(t, e.HasChild("z"))

	e.RemoveChild("b")
	assert.False(t, e.HasChild("b"))
	assert.Equal(t, []string{"c"}, e.Children)

	// Removing an absent name is a no-op.
	e.RemoveChild("zz")
	assert.Equal(t, []string{"c"}, e.Children)
}
