package mftrecord

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePathWalksParentChain(t *testing.T) {
	byID := map[uint64]*rawRecord{
		5: {entryID: 5, name: "root", parentID: 5},
		6: {entryID: 6, name: "Users", parentID: 5},
		7: {entryID: 7, name: "alice", parentID: 6},
		8: {entryID: 8, name: "readme.txt", parentID: 7},
	}
	cache := make(map[uint64]string)

	got := resolvePath(8, byID, cache, "/", make(map[uint64]bool))
	assert.Equal(t, "Users/alice/readme.txt", got)

	// Root's own parent reference points at itself; it contributes no
	// path segment of its own.
	got = resolvePath(5, byID, cache, "/", make(map[uint64]bool))
	assert.Equal(t, "", got)
}

func TestResolvePathBreaksCycles(t *testing.T) {
	byID := map[uint64]*rawRecord{
		1: {entryID: 1, name: "a", parentID: 2},
		2: {entryID: 2, name: "b", parentID: 1},
	}
	cache := make(map[uint64]string)

	assert.NotPanics(t, func() {
		resolvePath(1, byID, cache, "/", make(map[uint64]bool))
	})
}

func TestResolvePathUnknownEntry(t *testing.T) {
	byID := map[uint64]*rawRecord{}
	cache := make(map[uint64]string)
	assert.Equal(t, "", resolvePath(42, byID, cache, "/", make(map[uint64]bool)))
}

func TestDecodeFileAttributes(t *testing.T) {
	got := decodeFileAttributes(0x10 | 0x20)
	assert.Equal(t, []string{"DIRECTORY", "ARCHIVE"}, got)

	assert.Empty(t, decodeFileAttributes(0))
}

func TestDecodeUTF16LE(t *testing.T) {
	name := "readme.txt"
	buf := make([]byte, len(name)*2)
	for i, r := range name {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(r))
	}
	assert.Equal(t, name, decodeUTF16LE(buf))
}

func TestDecodeTimestampQuad(t *testing.T) {
	data := make([]byte, 32)
	// created=1, modified=2, mft_modified=3, accessed=4 ticks past the
	// FILETIME epoch; only relative ordering is asserted here, the exact
	// conversion is covered by internal/filetime.
	binary.LittleEndian.PutUint64(data[0:8], 1)
	binary.LittleEndian.PutUint64(data[8:16], 2)
	binary.LittleEndian.PutUint64(data[16:24], 3)
	binary.LittleEndian.PutUint64(data[24:32], 4)

	ts := decodeTimestampQuad(data)
	assert.True(t, ts.Created.Before(ts.Modified))
	assert.True(t, ts.Modified.Before(ts.MFTModified))
	assert.True(t, ts.MFTModified.Before(ts.Accessed))
}
