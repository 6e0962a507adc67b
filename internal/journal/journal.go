// Package journal abstracts a volume-level change journal and applies its
// records to the cache incrementally. The core depends only on the Reader
// interface; platform bindings are alternative implementations and the
// default is a stub that reports no active journal.
package journal

import (
	"time"
)

// ChangeType classifies one journal record.
type ChangeType int

const (
	Other ChangeType = iota
	Created
	Modified
	Deleted
	Renamed
	SecurityChanged
	PermissionsChanged
)

func (t ChangeType) String() string {
	switch t {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	case SecurityChanged:
		return "security-changed"
	case PermissionsChanged:
		return "permissions-changed"
	default:
		return "other"
	}
}

// Reason-mask bits of the journal wire format.
const (
	ReasonFileCreate     uint32 = 0x1
	ReasonDataOverwrite  uint32 = 0x2
	ReasonDataExtend     uint32 = 0x4
	ReasonDataTruncation uint32 = 0x8
	ReasonRenameOldName  uint32 = 0x10
	ReasonRenameNewName  uint32 = 0x20
	ReasonSecurityChange uint32 = 0x40
	ReasonFileDelete     uint32 = 0x200
)

// ReasonMaskAll requests every record kind from Read.
const ReasonMaskAll uint32 = 0xFFFFFFFF

// attrDirectory marks directory records in the attributes field.
const attrDirectory uint32 = 0x10

// Info describes a volume's active journal.
type Info struct {
	JournalID      uint64
	FirstUSN       int64
	NextUSN        int64
	LowestValidUSN int64
	MaxUSN         int64
	MaxSize        uint64
	AllocationSize uint64
}

// Record is one decoded journal entry. Transient: produced by a Reader,
// consumed by Apply, never persisted.
type Record struct {
	Path        string
	FileRef     uint64
	ParentRef   uint64
	USN         int64
	Timestamp   time.Time
	IsDirectory bool
	Change      ChangeType
}

// Reader is the two-operation journal abstraction.
type Reader interface {
	// Query returns the volume's journal descriptor, or JournalNotActive.
	Query(volume string) (*Info, error)

	// Read returns the next start position and the raw record payload
	// beginning after the 8-byte next-USN header. A zero-length payload
	// means no records past startUSN.
	Read(volume string, startUSN int64, reasonMask uint32, bufferSize int) (int64, []byte, error)
}

// classify maps a reason mask to a change type, first match wins.
func classify(reason uint32) ChangeType {
	switch {
	case reason&ReasonFileCreate != 0:
		return Created
	case reason&ReasonFileDelete != 0:
		return Deleted
	case reason&(ReasonRenameOldName|ReasonRenameNewName) != 0:
		return Renamed
	case reason&ReasonSecurityChange != 0:
		return SecurityChanged
	case reason&(ReasonDataOverwrite|ReasonDataExtend|ReasonDataTruncation) != 0:
		return Modified
	default:
		return Other
	}
}
