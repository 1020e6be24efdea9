package timeline

import "time"

// Mask is the four-character macb mask. Position 0 is 'm' (Modified),
// 1 is 'a' (Accessed), 2 is 'c' (Changed / mft-modified), 3 is 'b' (Born).
// Each position holds its role letter if asserted, else '.'.
type Mask [4]byte

var roleLetters = [4]byte{'m', 'a', 'c', 'b'}

func newMask() Mask {
	return Mask{'.', '.', '.', '.'}
}

// set asserts role position (0..3), writing its canonical letter there and
// leaving the other three positions untouched.
func (m *Mask) set(pos int) {
	m[pos] = roleLetters[pos]
}

func (m Mask) String() string {
	return string(m[:])
}

// mergeTimestamps folds a Timestamps quadruple into events, keyed by
// instant. A zero timestamp contributes no role (it signals a decode gap,
// not a real date). Two roles sharing an instant combine into one mask
// with both letters set at their respective positions.
func mergeTimestamps(events map[time.Time]*Mask, ts Timestamps) {
	values := [4]time.Time{ts.Modified, ts.Accessed, ts.MFTModified, ts.Created}
	for pos, v := range values {
		if v.IsZero() {
			continue
		}
		mask, ok := events[v]
		if !ok {
			m := newMask()
			mask = &m
			events[v] = mask
		}
		mask.set(pos)
	}
}
