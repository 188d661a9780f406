package lobby

import (
	crand "crypto/rand"
	"encoding/binary"
	"time"
)

// newSeed seeds a room's dice from crypto/rand.
func newSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
