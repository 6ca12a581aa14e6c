// Package entropy supplies seeds for runs that did not fix one.
// Runs are reproducible from their seed; only the seed itself comes from
// crypto/rand, and it is recorded with the run so the run can be replayed.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"time"
)

// Seed returns a positive, non-zero int64 drawn from crypto/rand.
// Falls back to the wall clock if the system source fails.
func Seed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		slog.Warn("crypto seed unavailable, using clock", "error", err)
		return fallbackSeed()
	}
	// Clear the sign bit so the seed round-trips through signed columns.
	n := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if n == 0 {
		return 1
	}
	return n
}

// Resolve returns seed unchanged unless it is 0, in which case a fresh
// seed is drawn.
func Resolve(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return Seed()
}

func fallbackSeed() int64 {
	n := time.Now().UnixNano()
	if n < 0 {
		n = -n
	}
	if n == 0 {
		return 1
	}
	return n
}
