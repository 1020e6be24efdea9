// Package filetime converts between Windows FILETIME values (100ns ticks
// since 1601-01-01 00:00:00 UTC) and time.Time. Both the MFT X10/X30
// timestamp quadruples and USN journal records use this encoding.
package filetime

import "time"

// ticksPerSecond is the number of 100ns intervals in one second.
const ticksPerSecond = 10_000_000

// epochOffsetSeconds is the number of seconds between the FILETIME epoch
// (1601-01-01 00:00:00 UTC) and the Unix epoch (1970-01-01 00:00:00 UTC).
const epochOffsetSeconds = 11_644_473_600

// Zero is the FILETIME value representing the FILETIME epoch itself; MFT
// records that carry this value (or a zeroed 8-byte field) have no
// meaningful timestamp.
const Zero uint64 = 0

// ToTime converts raw 100ns-tick FILETIME ticks to a UTC time.Time.
func ToTime(ticks uint64) time.Time {
	seconds := int64(ticks/ticksPerSecond) - epochOffsetSeconds
	remainder := int64(ticks % ticksPerSecond)
	return time.Unix(seconds, remainder*100).UTC()
}

// FromTime converts a time.Time back into raw FILETIME ticks. Used by
// tests that round-trip a known timestamp.
func FromTime(t time.Time) uint64 {
	t = t.UTC()
	seconds := t.Unix() + epochOffsetSeconds
	nanos := int64(t.Nanosecond())
	return uint64(seconds)*ticksPerSecond + uint64(nanos/100)
}

// IsZero reports whether the raw ticks value is the FILETIME epoch. The
// MFT decoder in internal/mftrecord does not call it: a zero field is
// converted by ToTime like any other value.
func IsZero(ticks uint64) bool {
	return ticks == Zero
}
