package filetime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToTime(t *testing.T) {
	t.Run("ZeroTicksIsFiletimeEpoch", func(t *testing.T) {
		got := ToTime(0)
		assert.Equal(t, int64(-11644473600), got.Unix())
	})

	t.Run("UnixEpochTicks", func(t *testing.T) {
		got := ToTime(116444736000000000)
		assert.Equal(t, int64(0), got.Unix())
		assert.True(t, got.Equal(time.Unix(0, 0).UTC()))
	})

	t.Run("SubSecondPrecisionPreserved", func(t *testing.T) {
		// 1 tick past the Unix epoch = 100ns.
		got := ToTime(116444736000000001)
		assert.Equal(t, int64(0), got.Unix())
		assert.Equal(t, 100, got.Nanosecond())
	})
}

func TestFromTimeRoundTrip(t *testing.T) {
	t.Run("RoundTripsThroughTicks", func(t *testing.T) {
		want := time.Date(2023, 6, 15, 12, 30, 45, 0, time.UTC)
		ticks := FromTime(want)
		got := ToTime(ticks)
		assert.True(t, want.Equal(got))
	})
}

func TestIsZero(t *testing.T) {
	assert.True(t, IsZero(0))
	assert.False(t, IsZero(116444736000000000))
}
