package featurevector

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Feature is a hashed feature id
type Feature uint64

// Null is the value of an attribute that cannot be resolved (position out
// of range, no head, no child). Resolved attribute values are stored +1.
const Null uint64 = 0

// Hash combines a template number with its resolved attribute values.
// Collisions between templates are possible and accepted.
func Hash(template int, values []uint64) Feature {
	var buf [8]byte
	d := xxhash.New()
	binary.LittleEndian.PutUint64(buf[:], uint64(template))
	d.Write(buf[:])
	for _, v := range values {
		binary.LittleEndian.PutUint64(buf[:], v)
		d.Write(buf[:])
	}
	return Feature(d.Sum64())
}

// HashString maps a string to an attribute value, never Null
func HashString(s string) uint64 {
	h := xxhash.Sum64String(s)
	if h == Null {
		h = 1
	}
	return h
}
