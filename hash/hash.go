// Package hash provides the hashing primitives used across the node.
package hash

import (
	stdhash "hash"
	"sync"

	"github.com/minio/sha256-simd"
)

const (
	// Size is an alias to minio sha256.Size (32 bytes).
	Size = sha256.Size
)

var (
	// New is an alias to minio sha256.New.
	New = sha256.New
	// Sum is an alias to minio sha256.Sum256.
	Sum = sha256.Sum256
)

// pool amortizes hasher allocations on hot paths (ids, chunk digests).
var pool = &sync.Pool{
	New: func() any {
		return New()
	},
}

// GetHasher returns a reset hasher from the pool.
func GetHasher() stdhash.Hash {
	return pool.Get().(stdhash.Hash)
}

// PutHasher resets the hasher and returns it to the pool.
func PutHasher(h stdhash.Hash) {
	h.Reset()
	pool.Put(h)
}
