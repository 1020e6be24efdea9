// Package bodyfile implements the Sorter & Body-format Writer (spec.md
// §4.5): stable time-ascending sort and the mactime CSV encoding.
package bodyfile

import (
	"encoding/csv"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/kero99/mftmactime/internal/timeline"
)

var header = []string{"Date", "Size", "Type", "Mode", "UID", "GID", "Meta", "File Name"}

// Sort orders events by Date ascending, stably (ties preserve emission
// order, which is itself on-disk MFT/USN order).
func Sort(events []timeline.TimelineEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})
}

// Write emits the mactime CSV to w: the header row is always written, even
// for an empty events slice. loc controls the rendered timezone; pass
// time.UTC for the default.
func Write(w io.Writer, events []timeline.TimelineEvent, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, ev := range events {
		if err := cw.Write(row(ev, loc)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(ev timeline.TimelineEvent, loc *time.Location) []string {
	date := ev.Date.In(loc).Format("Mon Jan 02 2006 15:04:05 (MST)")
	mode := "-/-rwxrwxrwx"
	if strings.Contains(ev.FType, "DIRECTORY") {
		mode = "d/drwxrwxrwx"
	}
	return []string{
		date,
		uitoa(ev.FileSize),
		ev.DateFlags,
		mode,
		"0",
		"0",
		uitoa(ev.Inode),
		ev.FullPath + " " + suffix(ev),
	}
}

func suffix(ev timeline.TimelineEvent) string {
	if strings.Contains(ev.Flags, "ALLOCATED") {
		return ""
	}
	if strings.HasPrefix(ev.Flags, "(USN") || strings.HasPrefix(ev.Flags, "USN") {
		return ev.Flags
	}
	return "(deleted)"
}

func uitoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
