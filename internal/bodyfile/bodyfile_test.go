package bodyfile

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kero99/mftmactime/internal/timeline"
)

func TestSortIsStableAscendingByDate(t *testing.T) {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	events := []timeline.TimelineEvent{
		{Date: t1, FullPath: "b"},
		{Date: t0, FullPath: "a1"},
		{Date: t0, FullPath: "a2"},
	}
	Sort(events)
	require.Len(t, events, 3)
	assert.Equal(t, "a1", events[0].FullPath)
	assert.Equal(t, "a2", events[1].FullPath)
	assert.Equal(t, "b", events[2].FullPath)
}

func TestWriteScenarioOneExactRow(t *testing.T) {
	ev := timeline.TimelineEvent{
		Date:      time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		FileSize:  42,
		DateFlags: "macb",
		FullPath:  "C:/Users/alice/readme.txt",
		Inode:     7,
		Flags:     "ALLOCATED",
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []timeline.TimelineEvent{ev}, time.UTC))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Date,Size,Type,Mode,UID,GID,Meta,File Name", lines[0])
	assert.Equal(t, `Wed Jan 01 2020 00:00:00 (UTC),42,macb,-/-rwxrwxrwx,0,0,7,C:/Users/alice/readme.txt `, lines[1])
}

func TestWriteHeaderOnlyForEmptyEvents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil, nil))
	assert.Equal(t, "Date,Size,Type,Mode,UID,GID,Meta,File Name\n", buf.String())
}

func TestSuffixDeletedWhenNotAllocated(t *testing.T) {
	ev := timeline.TimelineEvent{Flags: ""}
	assert.Equal(t, "(deleted)", suffix(ev))
}

func TestSuffixEmptyWhenAllocated(t *testing.T) {
	ev := timeline.TimelineEvent{Flags: "ALLOCATED"}
	assert.Equal(t, "", suffix(ev))
}

func TestSuffixUsnFlagsPreserved(t *testing.T) {
	ev := timeline.TimelineEvent{Flags: "(USN: DATA_EXTEND FILE_CREATE)"}
	assert.Equal(t, "(USN: DATA_EXTEND FILE_CREATE)", suffix(ev))
}

func TestModeDirectoryVsFile(t *testing.T) {
	dir := timeline.TimelineEvent{FType: "DIRECTORY"}
	file := timeline.TimelineEvent{FType: "ARCHIVE"}
	assert.Equal(t, "d/drwxrwxrwx", row(dir, time.UTC)[3])
	assert.Equal(t, "-/-rwxrwxrwx", row(file, time.UTC)[3])
}
