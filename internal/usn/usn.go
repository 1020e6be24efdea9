// Package usn implements the USN Journal Parser (spec.md §4.4): it walks
// USN_RECORD_V2 structures out of a journal payload that contains large
// runs of zero padding between records, decodes the fixed header, and
// correlates each record back to the MFT's PathIndex.
package usn

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/kero99/mftmactime/internal/filetime"
	"github.com/kero99/mftmactime/internal/timeline"
)

const headerSize = 2 + 2 + 8 + 8 + 8 + 8 + 4 + 4 + 4 + 4 + 2 + 2 // 56 bytes

// Record is one decoded USN_RECORD_V2 entry.
type Record struct {
	MajorVersion   uint16
	MinorVersion   uint16
	FileRef        uint64
	ParentFileRef  uint64
	USN            int64
	Timestamp      uint64 // raw FILETIME ticks
	Reason         uint32
	SourceInfo     uint32
	SecurityID     uint32
	FileAttributes uint32
	Filename       string
}

// EntryNumber returns the low 48 bits of FileRef, the MFT entry number.
func (r Record) EntryNumber() uint64 { return r.FileRef & 0x0000FFFFFFFFFFFF }

// SequenceNumber returns the high 16 bits of FileRef.
func (r Record) SequenceNumber() uint16 { return uint16(r.FileRef >> 48) }

// ParentEntryNumber returns the low 48 bits of ParentFileRef.
func (r Record) ParentEntryNumber() uint64 { return r.ParentFileRef & 0x0000FFFFFFFFFFFF }

// FindFirstRecord scans journal in 64 KiB windows, left-trimming zero
// bytes, and returns the absolute offset of the first non-zero byte. It
// returns -1 if journal is entirely zero.
func FindFirstRecord(journal []byte) int {
	const window = 64 * 1024
	for base := 0; base < len(journal); base += window {
		end := base + window
		if end > len(journal) {
			end = len(journal)
		}
		for i := base; i < end; i++ {
			if journal[i] != 0 {
				return i
			}
		}
	}
	return -1
}

// FindNextRecord reads the little-endian u32 record_length at cur; zero
// values are zero-padding between records, skipped four bytes at a time
// until a non-zero length is found or journalSize is reached. It returns
// the offset of the next record header, or -1 at end of journal.
func FindNextRecord(journal []byte, cur int) int {
	for cur+4 <= len(journal) {
		length := binary.LittleEndian.Uint32(journal[cur : cur+4])
		if length != 0 {
			return cur + int(length)
		}
		cur += 4
	}
	return -1
}

// Parse decodes the USN_RECORD_V2 at offset off in journal. It returns an
// error for a record whose header or filename cannot be read; the caller
// must treat this as "malformed record terminates the scan cleanly"
// (spec.md §4.4) rather than propagate it as a fatal error.
func Parse(journal []byte, off int) (Record, error) {
	if off < 0 || off+headerSize > len(journal) {
		return Record{}, fmt.Errorf("usn record at %d: header truncated", off)
	}
	b := journal[off:]

	rec := Record{
		MajorVersion:   binary.LittleEndian.Uint16(b[0:2]),
		MinorVersion:   binary.LittleEndian.Uint16(b[2:4]),
		FileRef:        binary.LittleEndian.Uint64(b[4:12]),
		ParentFileRef:  binary.LittleEndian.Uint64(b[12:20]),
		USN:            int64(binary.LittleEndian.Uint64(b[20:28])),
		Timestamp:      binary.LittleEndian.Uint64(b[28:36]),
		Reason:         binary.LittleEndian.Uint32(b[36:40]),
		SourceInfo:     binary.LittleEndian.Uint32(b[40:44]),
		SecurityID:     binary.LittleEndian.Uint32(b[44:48]),
		FileAttributes: binary.LittleEndian.Uint32(b[48:52]),
	}
	filenameLength := binary.LittleEndian.Uint16(b[52:54])
	filenameOffset := binary.LittleEndian.Uint16(b[54:56])

	start := int(filenameOffset)
	end := start + int(filenameLength)
	if start < 0 || end > len(b) || end < start {
		return rec, nil // malformed filename span: yield empty string, not an error
	}
	rec.Filename = decodeUTF16LE(b[start:end])
	return rec, nil
}

// Correlate resolves one USN record against the MFT's PathIndex and
// produces its TimelineEvent (spec.md §4.4's correlation rule). warn, if
// non-nil, is invoked when file_size could not be determined (spec.md
// §9's open question: entry_number missing from PathIndex AND filename
// empty ⇒ file_size = 0, not a failure).
func Correlate(rec Record, idx timeline.PathIndex, warn func(entryNumber uint64)) timeline.TimelineEvent {
	entryNumber := rec.EntryNumber()
	pe, known := idx[entryNumber]

	fullPath := pe.FullPath
	if !known {
		fullPath = rec.Filename
	} else if rec.Filename != "" && !strings.HasSuffix(baseName(fullPath), rec.Filename) {
		fullPath = rec.Filename
	}

	fileSize := pe.FileSize
	if !known && rec.Filename == "" {
		fileSize = 0
		if warn != nil {
			warn(entryNumber)
		}
	}

	return timeline.TimelineEvent{
		Date:      filetime.ToTime(rec.Timestamp),
		FileSize:  fileSize,
		DateFlags: "....",
		FullPath:  fullPath,
		Inode:     entryNumber,
		Flags:     "(USN: " + decodeReason(rec.Reason) + ")",
		FType:     decodeFileAttributes(rec.FileAttributes),
	}
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

var reasonTokens = []struct {
	mask  uint32
	token string
}{
	{0x1, "DATA_OVERWRITE"},
	{0x2, "DATA_EXTEND"},
	{0x4, "DATA_TRUNCATION"},
	{0x10, "NAMED_DATA_OVERWRITE"},
	{0x20, "NAMED_DATA_EXTEND"},
	{0x40, "NAMED_DATA_TRUNCATION"},
	{0x100, "FILE_CREATE"},
	{0x200, "FILE_DELETE"},
	{0x400, "EA_CHANGE"},
	{0x800, "SECURITY_CHANGE"},
	{0x1000, "RENAME_OLD_NAME"},
	{0x2000, "RENAME_NEW_NAME"},
	{0x4000, "INDEXABLE_CHANGE"},
	{0x8000, "BASIC_INFO_CHANGE"},
	{0x10000, "HARD_LINK_CHANGE"},
	{0x20000, "COMPRESSION_CHANGE"},
	{0x40000, "ENCRYPTION_CHANGE"},
	{0x80000, "OBJECT_ID_CHANGE"},
	{0x100000, "REPARSE_POINT_CHANGE"},
	{0x200000, "STREAM_CHANGE"},
	{0x400000, "TRANSACTED_CHANGE"},
	{0x800000, "INTEGRITY_CHANGE"},
	{0x80000000, "CLOSE"},
}

func decodeReason(mask uint32) string {
	var tokens []string
	for _, t := range reasonTokens {
		if mask&t.mask != 0 {
			tokens = append(tokens, t.token)
		}
	}
	return strings.Join(tokens, " ")
}

var fileAttributeTokens = []struct {
	mask  uint32
	token string
}{
	{0x1, "READONLY"},
	{0x2, "HIDDEN"},
	{0x4, "SYSTEM"},
	{0x10, "DIRECTORY"},
	{0x20, "ARCHIVE"},
	{0x40, "DEVICE"},
	{0x80, "NORMAL"},
	{0x100, "TEMPORARY"},
	{0x200, "SPARSE_FILE"},
	{0x400, "REPARSE_POINT"},
	{0x800, "COMPRESSED"},
	{0x1000, "OFFLINE"},
	{0x2000, "NOT_CONTENT_INDEXED"},
	{0x4000, "ENCRYPTED"},
	{0x8000, "INTEGRITY_STREAM"},
	{0x10000, "VIRTUAL"},
	{0x20000, "NO_SCRUB_DATA"},
}

func decodeFileAttributes(mask uint32) string {
	var tokens []string
	for _, t := range fileAttributeTokens {
		if mask&t.mask != 0 {
			tokens = append(tokens, t.token)
		}
	}
	return strings.Join(tokens, " ")
}

func decodeUTF16LE(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	u16 := make([]uint16, len(b)/2)
	for i := range u16 {
		u16[i] = binary.LittleEndian.Uint16(b[i*2 : i*2+2])
	}
	return string(utf16.Decode(u16))
}
