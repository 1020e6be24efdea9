// Package mftrecord implements the MFT Entry Iterator (spec.md §4.2): it
// streams t9t/gomft records out of an MFT file and adapts them into
// internal/timeline's MftEntry/MftAttribute data model, decoding the
// $STANDARD_INFORMATION and $FILE_NAME timestamp quadruples and
// file-attribute token sets from the resident payload bytes at their
// stable NTFS offsets (gomft exposes the attribute header split, not the
// payload layout), and resolving each entry's full_path by walking the
// $FILE_NAME parent-reference chain.
package mftrecord

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf16"

	"github.com/t9t/gomft/mft"

	"github.com/kero99/mftmactime/internal/filetime"
	"github.com/kero99/mftmactime/internal/timeline"
)

const recordSize = 1024

// DecodeError reports a record that failed to decode; the caller logs it
// and the scan continues (spec.md §7 RecordDecodeError).
type DecodeError struct {
	RecordNumber uint64
	Offset       int64
	Err          error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("mft record %d at offset %d: %v", e.RecordNumber, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// rawRecord is the decoded-but-not-yet-path-resolved form of one MFT entry.
type rawRecord struct {
	entryID     uint64
	baseEntryID uint64
	parentID    uint64
	name        string
	flags       []string
	fileSize    uint64
	attrs       []timeline.MftAttribute
}

// Decode reads every record out of r and returns fully path-resolved
// MftEntry values in on-disk record order, plus the decode errors
// encountered along the way (one per skipped record). separator is the
// host path separator joined between path segments.
func Decode(r io.Reader, separator string) ([]timeline.MftEntry, []error) {
	if separator == "" {
		separator = "/"
	}

	br := bufio.NewReaderSize(r, 1<<20)
	var raws []rawRecord
	var errs []error

	for recNum := uint64(0); ; recNum++ {
		buf := make([]byte, recordSize)
		n, err := io.ReadFull(br, buf)
		offset := int64(recNum) * recordSize
		if n == 0 && (err == io.EOF || err == io.ErrUnexpectedEOF) {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			errs = append(errs, &DecodeError{RecordNumber: recNum, Offset: offset, Err: err})
			break
		}

		raw, err := decodeRecord(recNum, buf)
		if err != nil {
			errs = append(errs, &DecodeError{RecordNumber: recNum, Offset: offset, Err: err})
			continue
		}
		raws = append(raws, raw)
	}

	byID := make(map[uint64]*rawRecord, len(raws))
	for i := range raws {
		byID[raws[i].entryID] = &raws[i]
	}

	pathCache := make(map[uint64]string, len(raws))
	entries := make([]timeline.MftEntry, 0, len(raws))
	for _, raw := range raws {
		entries = append(entries, timeline.MftEntry{
			EntryID:     raw.entryID,
			BaseEntryID: raw.baseEntryID,
			FullPath:    resolvePath(raw.entryID, byID, pathCache, separator, make(map[uint64]bool)),
			FileSize:    raw.fileSize,
			Flags:       raw.flags,
			Attributes:  raw.attrs,
		})
	}
	return entries, errs
}

// resolvePath walks the parent chain up to the volume root (the root
// directory's own parent reference points at itself), memoizing results
// and breaking cycles defensively (a cycle should never occur in a
// well-formed MFT, but a corrupt one must not hang the pass).
func resolvePath(id uint64, byID map[uint64]*rawRecord, cache map[uint64]string, sep string, visiting map[uint64]bool) string {
	if p, ok := cache[id]; ok {
		return p
	}
	rec, ok := byID[id]
	if !ok || rec.name == "" {
		return ""
	}
	if rec.parentID == id {
		// The volume root's own $FILE_NAME entry names itself (".") and
		// references itself as parent; it contributes no path segment.
		cache[id] = ""
		return ""
	}
	if visiting[id] {
		cache[id] = rec.name
		return rec.name
	}
	visiting[id] = true
	parentPath := resolvePath(rec.parentID, byID, cache, sep, visiting)
	delete(visiting, id)

	full := rec.name
	if parentPath != "" {
		full = parentPath + sep + rec.name
	}
	cache[id] = full
	return full
}

func decodeRecord(recNum uint64, buf []byte) (rawRecord, error) {
	rec, err := mft.ParseRecord(buf)
	if err != nil {
		return rawRecord{}, err
	}

	raw := rawRecord{
		entryID:     recNum,
		baseEntryID: rec.BaseRecordNumber(),
		flags:       decodeRecordFlags(rec),
	}

	attrs, err := rec.Attributes(buf)
	if err != nil {
		return rawRecord{}, err
	}

	var bestName string
	for _, a := range attrs {
		decoded, fileName, parentID, ok := decodeAttribute(a)
		if !ok {
			continue
		}
		raw.attrs = append(raw.attrs, decoded)
		if decoded.Tag == timeline.AttrX30 && len(fileName) > len(bestName) {
			bestName = fileName
			raw.parentID = parentID
		}
		if decoded.Tag == timeline.AttrX80 && decoded.Name == "" && decoded.DataSize > raw.fileSize {
			raw.fileSize = decoded.DataSize
		}
	}
	raw.name = bestName

	return raw, nil
}

func decodeRecordFlags(rec mft.Record) []string {
	var flags []string
	if rec.IsUsed() {
		flags = append(flags, "ALLOCATED")
	}
	if rec.IsDirectory() {
		flags = append(flags, "DIRECTORY")
	}
	return flags
}

// decodeAttribute adapts one gomft attribute into timeline.MftAttribute,
// decoding X10/X30 payloads at their fixed NTFS offsets. ok is false for
// attribute types the timeline has no use for (index roots, security
// descriptors, object IDs, ...) or payloads too short to decode, which are
// silently dropped. For X30 it additionally returns the entry's display
// name and parent entry_id, used only for path resolution.
func decodeAttribute(a mft.Attribute) (attr timeline.MftAttribute, fileName string, parentID uint64, ok bool) {
	attr = timeline.MftAttribute{
		Name:     a.Name(),
		Resident: a.IsResident(),
		DataSize: a.ActualSize(),
	}

	switch a.Type() {
	case mft.AttributeTypeStandardInformation:
		attr.Tag = timeline.AttrX10
		data := a.ResidentData()
		if len(data) < 36 {
			return attr, "", 0, false
		}
		attr.Timestamps = decodeTimestampQuad(data)
		attr.FileFlags = decodeFileAttributes(binary.LittleEndian.Uint32(data[32:36]))
		return attr, "", 0, true

	case mft.AttributeTypeFileName:
		attr.Tag = timeline.AttrX30
		data := a.ResidentData()
		if len(data) < 66 {
			return attr, "", 0, false
		}
		attr.Timestamps = decodeTimestampQuad(data[8:])
		attr.FileFlags = decodeFileAttributes(binary.LittleEndian.Uint32(data[56:60]))
		nameLen := int(data[64])
		nameStart := 66
		nameEnd := nameStart + nameLen*2
		if nameEnd > len(data) {
			return attr, "", 0, false
		}
		parentRef := binary.LittleEndian.Uint64(data[0:8])
		return attr, decodeUTF16LE(data[nameStart:nameEnd]), parentRef & 0x0000FFFFFFFFFFFF, true

	case mft.AttributeTypeData:
		attr.Tag = timeline.AttrX80
		if attr.Resident {
			attr.Data = a.ResidentData()
		}
		return attr, "", 0, true

	default:
		attr.Tag = timeline.AttrOther
		return attr, "", 0, true
	}
}

func decodeTimestampQuad(data []byte) timeline.Timestamps {
	return timeline.Timestamps{
		Created:     filetime.ToTime(binary.LittleEndian.Uint64(data[0:8])),
		Modified:    filetime.ToTime(binary.LittleEndian.Uint64(data[8:16])),
		MFTModified: filetime.ToTime(binary.LittleEndian.Uint64(data[16:24])),
		Accessed:    filetime.ToTime(binary.LittleEndian.Uint64(data[24:32])),
	}
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

func decodeFileAttributes(mask uint32) []string {
	var tokens []string
	for _, t := range fileAttributeTokens {
		if mask&t.mask != 0 {
			tokens = append(tokens, t.token)
		}
	}
	return tokens
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
