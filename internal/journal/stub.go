package journal

import "github.com/ConnerAdamsMaine/PTree/internal/derrors"

// Stub is the non-host default Reader: it reports that no change journal is
// active, pushing the orchestrator onto the full-rescan path.
type Stub struct{}

// Query always fails with JournalNotActive.
func (Stub) Query(volume string) (*Info, error) {
	return nil, derrors.NewJournalNotActiveError(volume)
}

// Read always fails with JournalNotActive.
func (Stub) Read(volume string, startUSN int64, reasonMask uint32, bufferSize int) (int64, []byte, error) {
	return 0, nil, derrors.NewJournalNotActiveError(volume)
}
