package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(year int, month time.Month, day, hour, min, sec int) time.Time {
	return time.Date(year, month, day, hour, min, sec, 0, time.UTC)
}

func TestProcessSingleRecordAllEqualTimestamps(t *testing.T) {
	b := NewBuilder(Config{DriveLetter: 'C', Separator: "/"})

	same := ts(2020, time.January, 1, 0, 0, 0)
	entry := MftEntry{
		EntryID:  7,
		FullPath: "Users/alice/readme.txt",
		FileSize: 42,
		Flags:    []string{"ALLOCATED"},
		Attributes: []MftAttribute{
			{
				Tag: AttrX10,
				Timestamps: Timestamps{
					Modified: same, Accessed: same, MFTModified: same, Created: same,
				},
			},
		},
	}

	events := b.Process(entry)
	require.Len(t, events, 1)
	assert.Equal(t, "macb", events[0].DateFlags)
	assert.Equal(t, "C:/Users/alice/readme.txt", events[0].FullPath)
	assert.Equal(t, uint64(42), events[0].FileSize)
}

func TestProcessEmitsX30WhenEnabled(t *testing.T) {
	b := NewBuilder(Config{DriveLetter: 'C', Separator: "/", EmitX30: true})

	m := ts(2020, time.January, 1, 0, 0, 0)
	fn := ts(2020, time.January, 2, 0, 0, 0)
	entry := MftEntry{
		EntryID:  7,
		FullPath: "Users/alice/readme.txt",
		FileSize: 42,
		Flags:    []string{"ALLOCATED"},
		Attributes: []MftAttribute{
			{Tag: AttrX10, Timestamps: Timestamps{Modified: m, Accessed: m, MFTModified: m, Created: m}},
			{Tag: AttrX30, Timestamps: Timestamps{Modified: fn, Accessed: fn, MFTModified: fn, Created: fn}},
		},
	}

	events := b.Process(entry)
	require.Len(t, events, 2)

	var sawFileName bool
	for _, e := range events {
		if e.FullPath == "C:/Users/alice/readme.txt ($FILE_NAME)" {
			sawFileName = true
		}
	}
	assert.True(t, sawFileName)
}

func TestProcessResidentAdsOnBaseRecord(t *testing.T) {
	b := NewBuilder(Config{DriveLetter: 'C', Separator: "/"})

	m := ts(2021, time.June, 1, 12, 0, 0)
	entry := MftEntry{
		EntryID:  10,
		FullPath: "Users/alice/downloaded.exe",
		FileSize: 1000,
		Flags:    []string{"ALLOCATED"},
		Attributes: []MftAttribute{
			{Tag: AttrX10, Timestamps: Timestamps{Modified: m, Accessed: m, MFTModified: m, Created: m}},
			{Tag: AttrX80, Name: "zone.identifier", DataSize: 26, Resident: true},
		},
	}

	events := b.Process(entry)
	require.Len(t, events, 2)

	var sawAds bool
	for _, e := range events {
		if e.FullPath == "C:/Users/alice/downloaded.exe:zone.identifier" {
			sawAds = true
			assert.Equal(t, uint64(26), e.FileSize)
		}
	}
	assert.True(t, sawAds)
}

func TestAdsCompletenessAcrossExtensionRecord(t *testing.T) {
	b := NewBuilder(Config{DriveLetter: 'C', Separator: "/"})

	// Extension record arrives first, base not yet seen.
	ext := MftEntry{
		EntryID:     20,
		BaseEntryID: 5,
		FileSize:    0,
		Attributes: []MftAttribute{
			{Tag: AttrOther, Name: "stream1", DataSize: 99},
		},
	}
	events := b.Process(ext)
	assert.Empty(t, events)
	assert.Contains(t, b.AdsPend, uint64(5))

	// Base record arrives next.
	m := ts(2022, time.March, 3, 9, 0, 0)
	base := MftEntry{
		EntryID:  5,
		FullPath: "Windows/System32/drivers/foo.sys",
		FileSize: 500,
		Flags:    []string{"ALLOCATED"},
		Attributes: []MftAttribute{
			{Tag: AttrX10, Timestamps: Timestamps{Modified: m, Accessed: m, MFTModified: m, Created: m}},
		},
	}
	events = b.Process(base)

	var sawPending bool
	for _, e := range events {
		if e.FullPath == "C:/Windows/System32/drivers/foo.sys:stream1" {
			sawPending = true
			assert.Equal(t, uint64(99), e.FileSize)
		}
	}
	assert.True(t, sawPending)
	assert.NotContains(t, b.AdsPend, uint64(5))
}

func TestFlushDiscardsAdsWithoutBase(t *testing.T) {
	b := NewBuilder(Config{DriveLetter: 'C', Separator: "/"})

	ext := MftEntry{
		EntryID:     21,
		BaseEntryID: 99,
		FileSize:    0,
		Attributes: []MftAttribute{
			{Tag: AttrOther, Name: "never-seen", DataSize: 10},
		},
	}
	b.Process(ext)

	events := b.Flush()
	assert.Empty(t, events)
}

func TestFlushEmitsAdsWhoseBaseAppeared(t *testing.T) {
	b := NewBuilder(Config{DriveLetter: 'C', Separator: "/"})

	// Base record arrives first; the extension carrying the ADS comes later,
	// so the pending entry is only emitted by Flush.
	m := ts(2022, time.March, 3, 9, 0, 0)
	base := MftEntry{
		EntryID:  6,
		FullPath: "Users/bob/file.dat",
		FileSize: 300,
		Flags:    []string{"ALLOCATED"},
		Attributes: []MftAttribute{
			{Tag: AttrX10, Timestamps: Timestamps{Accessed: m}},
		},
	}
	// No M/C/B set, so x10Events map is still populated at the Accessed
	// instant with only the 'a' position set.
	b.Process(base)

	ext := MftEntry{
		EntryID:     22,
		BaseEntryID: 6,
		FileSize:    0,
		Attributes: []MftAttribute{
			{Tag: AttrOther, Name: "late-stream", DataSize: 15},
		},
	}
	b.Process(ext)

	events := b.Flush()
	require.Len(t, events, 1)
	assert.Equal(t, "....", events[0].DateFlags)
	assert.Equal(t, "C:/Users/bob/file.dat:late-stream", events[0].FullPath)
	assert.Equal(t, uint64(15), events[0].FileSize)
}

func TestDetectUsnJrnl(t *testing.T) {
	b := NewBuilder(Config{DriveLetter: 'C', Separator: "/"})

	small := MftEntry{EntryID: 30, FullPath: "$Extend/$UsnJrnl", FileSize: 100}
	b.Process(small)
	_, found := b.UsnInode()
	assert.False(t, found)

	big := MftEntry{EntryID: 31, FullPath: "$Extend/$UsnJrnl", FileSize: 2 << 20}
	b.Process(big)
	inode, found := b.UsnInode()
	assert.True(t, found)
	assert.Equal(t, uint64(31), inode)
}
