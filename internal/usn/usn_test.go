package usn

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kero99/mftmactime/internal/timeline"
)

func buildRecord(fileRef, parentRef uint64, usn int64, ticks uint64, reason, sourceInfo, securityID, fileAttrs uint32, filename string) []byte {
	nameBuf := make([]byte, len(filename)*2)
	for i, r := range filename {
		binary.LittleEndian.PutUint16(nameBuf[i*2:], uint16(r))
	}

	const headerLen = 56
	recordLength := headerLen + len(nameBuf)
	buf := make([]byte, recordLength)
	binary.LittleEndian.PutUint16(buf[0:2], 2) // major version
	binary.LittleEndian.PutUint16(buf[2:4], 0) // minor version
	binary.LittleEndian.PutUint64(buf[4:12], fileRef)
	binary.LittleEndian.PutUint64(buf[12:20], parentRef)
	binary.LittleEndian.PutUint64(buf[20:28], uint64(usn))
	binary.LittleEndian.PutUint64(buf[28:36], ticks)
	binary.LittleEndian.PutUint32(buf[36:40], reason)
	binary.LittleEndian.PutUint32(buf[40:44], sourceInfo)
	binary.LittleEndian.PutUint32(buf[44:48], securityID)
	binary.LittleEndian.PutUint32(buf[48:52], fileAttrs)
	binary.LittleEndian.PutUint16(buf[52:54], uint16(len(nameBuf)))
	binary.LittleEndian.PutUint16(buf[54:56], headerLen)
	copy(buf[headerLen:], nameBuf)
	return buf
}

func TestParseDecodesHeaderAndFilename(t *testing.T) {
	buf := buildRecord(0x0001000000000005, 0x0001000000000002, 42, 132514560000000000, 0x102, 1, 0, 0x20, "x")

	rec, err := Parse(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), rec.EntryNumber())
	assert.Equal(t, uint16(1), rec.SequenceNumber())
	assert.Equal(t, uint64(2), rec.ParentEntryNumber())
	assert.Equal(t, int64(42), rec.USN)
	assert.Equal(t, uint32(0x102), rec.Reason)
	assert.Equal(t, "x", rec.Filename)
}

func TestParseTruncatedHeaderErrors(t *testing.T) {
	_, err := Parse([]byte{1, 2, 3}, 0)
	assert.Error(t, err)
}

func TestParseMalformedFilenameSpanYieldsEmptyString(t *testing.T) {
	buf := buildRecord(5, 2, 1, 0, 0, 0, 0, 0, "x")
	// Corrupt the filename length to point past the buffer.
	binary.LittleEndian.PutUint16(buf[52:54], 0xFFFF)

	rec, err := Parse(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "", rec.Filename)
}

func TestFindFirstRecordSkipsLeadingZeros(t *testing.T) {
	journal := make([]byte, 128*1024)
	journal[70000] = 0xAB
	assert.Equal(t, 70000, FindFirstRecord(journal))
}

func TestFindFirstRecordAllZero(t *testing.T) {
	journal := make([]byte, 1024)
	assert.Equal(t, -1, FindFirstRecord(journal))
}

func TestFindNextRecordSkipsPadding(t *testing.T) {
	journal := make([]byte, 64)
	// 8 bytes of zero padding, then a record_length of 16 at offset 8.
	binary.LittleEndian.PutUint32(journal[8:12], 16)

	next := FindNextRecord(journal, 0)
	assert.Equal(t, 8+16, next)
}

func TestFindNextRecordEndOfJournal(t *testing.T) {
	journal := make([]byte, 4)
	assert.Equal(t, -1, FindNextRecord(journal, 2))
}

func TestDecodeReasonTokenOrder(t *testing.T) {
	assert.Equal(t, "DATA_EXTEND FILE_CREATE", decodeReason(0x102))
}

func TestCorrelateUsesPathIndexWhenKnown(t *testing.T) {
	idx := timeline.PathIndex{
		5: {FullPath: "C:/tmp/x", FileSize: 123},
	}
	rec := Record{FileRef: 5, Timestamp: 132514560000000000, Reason: 0x102, FileAttributes: 0}

	ev := Correlate(rec, idx, nil)
	assert.Equal(t, "C:/tmp/x", ev.FullPath)
	assert.Equal(t, uint64(123), ev.FileSize)
	assert.Equal(t, "(USN: DATA_EXTEND FILE_CREATE)", ev.Flags)
	assert.Equal(t, "....", ev.DateFlags)
	assert.Equal(t, "", ev.FType)
}

func TestCorrelateUnknownEntryWarnsAndZeroesSize(t *testing.T) {
	idx := timeline.PathIndex{}
	var warned uint64
	rec := Record{FileRef: 99, Filename: ""}

	ev := Correlate(rec, idx, func(entryNumber uint64) { warned = entryNumber })
	assert.Equal(t, uint64(99), warned)
	assert.Equal(t, uint64(0), ev.FileSize)
	assert.Equal(t, "", ev.FullPath)
}

func TestCorrelatePrefersUsnFilenameOverMismatchedBasename(t *testing.T) {
	idx := timeline.PathIndex{
		7: {FullPath: "C:/tmp/oldname.txt", FileSize: 10},
	}
	rec := Record{FileRef: 7, Filename: "newname.txt"}

	ev := Correlate(rec, idx, nil)
	assert.Equal(t, "newname.txt", ev.FullPath)
}
