// Package hashing provides the stable hash used to key level hierarchy
// entries by their parent path prefix.
package hashing

import (
	"encoding/binary"
	"hash/fnv"
)

// Hash returns a 64-bit FNV-1a hash of the string.
func Hash(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// Combine folds additional values into an existing hash, left to right.
func Combine(seed uint64, vals ...uint64) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	h.Write(buf[:])
	for _, v := range vals {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	return h.Sum64()
}

// CombineString folds a string into an existing hash.
func CombineString(seed uint64, s string) uint64 {
	return Combine(seed, Hash(s))
}
