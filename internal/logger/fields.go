package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// These keys are shared across the loader, MFT iterator, USN parser,
// timeline builder, resident dumper and body-file writer. Use them
// consistently so log lines can be filtered by phase and artifact.
const (
	// ========================================================================
	// Run identification
	// ========================================================================
	KeyPhase    = "phase"    // loader, mft, usn, resident, yara, writer
	KeyArtifact = "artifact" // input artifact path (-f)
	KeyRunID    = "run_id"   // opaque identifier for a single invocation

	// ========================================================================
	// Filesystem location
	// ========================================================================
	KeyPath        = "path"         // full reconstructed path
	KeyFullPath    = "full_path"    // drive-letter-prefixed full path
	KeyFilename    = "filename"     // $FILE_NAME component
	KeyParentPath  = "parent_path"  // parent directory path
	KeyInode       = "inode"        // MFT record number
	KeyParentInode = "parent_inode" // parent MFT record number
	KeySeqNo       = "sequence"     // MFT record sequence number

	// ========================================================================
	// MFT attributes
	// ========================================================================
	KeyAttrType     = "attr_type"     // X10, X30, X80, Other
	KeyAttrID       = "attr_id"       // attribute instance id
	KeyResident     = "resident"      // whether an attribute is resident
	KeyRecordOffset = "record_offset" // byte offset of an MFT record within the file
	KeyAdsName      = "ads_name"      // alternate data stream name

	// ========================================================================
	// USN journal
	// ========================================================================
	KeyUSNReason       = "usn_reason"      // decoded USN_REASON_* token string
	KeyUSNSourceInfo   = "usn_source_info" // decoded USN_SOURCE_* token string
	KeyUSN             = "usn"             // journal record USN offset
	KeyUSNRecordLength = "usn_record_length"

	// ========================================================================
	// Timeline / body-file
	// ========================================================================
	KeyDateFlags = "date_flags" // macb mask
	KeySize      = "size"       // file_size
	KeyEventsOut = "events"     // number of timeline events emitted

	// ========================================================================
	// Resident extraction / YARA
	// ========================================================================
	KeyDumpPath = "dump_path" // destination path for a resident dump
	KeyYaraRule = "yara_rule" // matched rule identifier
	KeyDeleted  = "deleted"   // whether the source record was deleted

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
	KeyCount      = "count"
	KeyOffset     = "offset"
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// Phase returns a slog.Attr for the current processing phase.
func Phase(p string) slog.Attr {
	return slog.String(KeyPhase, p)
}

// Artifact returns a slog.Attr for the input artifact path.
func Artifact(path string) slog.Attr {
	return slog.String(KeyArtifact, path)
}

// Path returns a slog.Attr for a reconstructed path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// FullPath returns a slog.Attr for a drive-letter-prefixed full path.
func FullPath(p string) slog.Attr {
	return slog.String(KeyFullPath, p)
}

// Filename returns a slog.Attr for a $FILE_NAME component.
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// ParentPath returns a slog.Attr for the parent directory path.
func ParentPath(p string) slog.Attr {
	return slog.String(KeyParentPath, p)
}

// Inode returns a slog.Attr for an MFT record number.
func Inode(n uint64) slog.Attr {
	return slog.Uint64(KeyInode, n)
}

// ParentInode returns a slog.Attr for a parent MFT record number.
func ParentInode(n uint64) slog.Attr {
	return slog.Uint64(KeyParentInode, n)
}

// SequenceNo returns a slog.Attr for an MFT record sequence number.
func SequenceNo(n uint16) slog.Attr {
	return slog.Any(KeySeqNo, n)
}

// AttrType returns a slog.Attr for the decoded attribute kind (X10/X30/X80/Other).
func AttrType(t string) slog.Attr {
	return slog.String(KeyAttrType, t)
}

// AttrID returns a slog.Attr for an attribute instance id.
func AttrID(id uint16) slog.Attr {
	return slog.Any(KeyAttrID, id)
}

// Resident returns a slog.Attr for an attribute's residency.
func Resident(r bool) slog.Attr {
	return slog.Bool(KeyResident, r)
}

// RecordOffset returns a slog.Attr for a byte offset within an MFT or USN file.
func RecordOffset(off int64) slog.Attr {
	return slog.Int64(KeyRecordOffset, off)
}

// AdsName returns a slog.Attr for an alternate data stream name.
func AdsName(name string) slog.Attr {
	return slog.String(KeyAdsName, name)
}

// USNReason returns a slog.Attr for the decoded USN_REASON_* token string.
func USNReason(reason string) slog.Attr {
	return slog.String(KeyUSNReason, reason)
}

// USNSourceInfo returns a slog.Attr for the decoded USN_SOURCE_* token string.
func USNSourceInfo(src string) slog.Attr {
	return slog.String(KeyUSNSourceInfo, src)
}

// USN returns a slog.Attr for a journal record's USN offset.
func USN(usn int64) slog.Attr {
	return slog.Int64(KeyUSN, usn)
}

// DateFlags returns a slog.Attr for a macb mask.
func DateFlags(mask string) slog.Attr {
	return slog.String(KeyDateFlags, mask)
}

// Size returns a slog.Attr for a file size in bytes.
func Size(s uint64) slog.Attr {
	return slog.Uint64(KeySize, s)
}

// EventsOut returns a slog.Attr for the number of timeline events emitted.
func EventsOut(n int) slog.Attr {
	return slog.Int(KeyEventsOut, n)
}

// DumpPath returns a slog.Attr for a resident-dump destination path.
func DumpPath(p string) slog.Attr {
	return slog.String(KeyDumpPath, p)
}

// YaraRule returns a slog.Attr for a matched YARA rule name.
func YaraRule(name string) slog.Attr {
	return slog.String(KeyYaraRule, name)
}

// Deleted returns a slog.Attr for whether a record is deleted/unallocated.
func Deleted(d bool) slog.Attr {
	return slog.Bool(KeyDeleted, d)
}

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code.
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// Count returns a slog.Attr for a generic count.
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

// Offset returns a slog.Attr for a generic byte offset.
func Offset(off int64) slog.Attr {
	return slog.Int64(KeyOffset, off)
}

// HandleHex formats arbitrary bytes as a hex string attribute. Used when
// logging raw file_ref / parent_file_ref values at debug level.
func HandleHex(key string, b []byte) slog.Attr {
	return slog.String(key, fmt.Sprintf("%x", b))
}
