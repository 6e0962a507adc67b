package journal

import (
	"encoding/binary"
	"path/filepath"
	"time"
	"unicode/utf16"
)

// Fixed field offsets within one raw record.
const (
	offRecordLength   = 0  // u32
	offFileRef        = 8  // u64
	offParentRef      = 16 // u64
	offUSN            = 24 // i64
	offTimestamp      = 32 // i64, 100-ns intervals since 1601-01-01 UTC
	offReason         = 40 // u32
	offAttributes     = 44 // u32
	offFilenameLength = 56 // u16, bytes
	offFilenameOffset = 58 // u16, from record start

	minRecordSize = 60
)

// filetimeEpochDelta is the number of 100-ns intervals between 1601-01-01
// and the Unix epoch.
const filetimeEpochDelta = 116444736000000000

// DecodeRecords walks a raw journal payload and decodes every well-formed
// record. A zero length prefix or a length running past the buffer
// terminates decoding cleanly. Returns the records in stream order and the
// largest USN observed.
func DecodeRecords(volumeRoot string, raw []byte) ([]Record, int64) {
	var records []Record
	var lastUSN int64

	pos := 0
	for pos+4 <= len(raw) {
		length := int(binary.LittleEndian.Uint32(raw[pos : pos+4]))
		if length == 0 || pos+length > len(raw) {
			break
		}
		if length >= minRecordSize {
			if rec, ok := decodeOne(volumeRoot, raw[pos:pos+length]); ok {
				records = append(records, rec)
				if rec.USN > lastUSN {
					lastUSN = rec.USN
				}
			}
		}
		pos += length
	}

	return records, lastUSN
}

// decodeOne decodes a single record slice of validated length.
func decodeOne(volumeRoot string, rec []byte) (Record, bool) {
	nameLen := int(binary.LittleEndian.Uint16(rec[offFilenameLength : offFilenameLength+2]))
	nameOff := int(binary.LittleEndian.Uint16(rec[offFilenameOffset : offFilenameOffset+2]))
	if nameOff+nameLen > len(rec) {
		return Record{}, false
	}

	name := decodeUTF16LE(rec[nameOff : nameOff+nameLen])
	reason := binary.LittleEndian.Uint32(rec[offReason : offReason+4])
	attrs := binary.LittleEndian.Uint32(rec[offAttributes : offAttributes+4])

	return Record{
		Path:        filepath.Join(volumeRoot, name),
		FileRef:     binary.LittleEndian.Uint64(rec[offFileRef : offFileRef+8]),
		ParentRef:   binary.LittleEndian.Uint64(rec[offParentRef : offParentRef+8]),
		USN:         int64(binary.LittleEndian.Uint64(rec[offUSN : offUSN+8])),
		Timestamp:   filetimeToTime(int64(binary.LittleEndian.Uint64(rec[offTimestamp : offTimestamp+8]))),
		IsDirectory: attrs&attrDirectory != 0,
		Change:      classify(reason),
	}, true
}

// decodeUTF16LE converts UTF-16LE bytes to a string, replacing malformed
// sequences lossily. An odd trailing byte is ignored.
func decodeUTF16LE(b []byte) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, binary.LittleEndian.Uint16(b[i:i+2]))
	}
	return string(utf16.Decode(units))
}

// filetimeToTime converts 100-ns intervals since 1601-01-01 UTC.
func filetimeToTime(ft int64) time.Time {
	ft -= filetimeEpochDelta
	return time.Unix(ft/1e7, (ft%1e7)*100).UTC()
}
