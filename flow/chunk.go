package flow

import (
	"golang.org/x/crypto/blake2b"
)

// DefaultChunkSize is the default chunk size (64 KB).
const DefaultChunkSize = 64 * 1024

// Chunk is a single immutable unit of transferred bytes. Chunks travel in
// strict FIFO order and are never duplicated or reordered; Seq records the
// position in the stream, starting at 0.
type Chunk struct {
	Seq  int
	Data []byte
	Hash []byte
}

// NewChunk builds a chunk from data, copying it so the caller's buffer can
// be reused, and computes its hash.
func NewChunk(seq int, data []byte) Chunk {
	owned := make([]byte, len(data))
	copy(owned, data)
	return Chunk{
		Seq:  seq,
		Data: owned,
		Hash: HashChunk(owned),
	}
}

// Len returns the chunk payload length in bytes.
func (c Chunk) Len() int64 { return int64(len(c.Data)) }

// Verify reports whether the chunk data still matches its hash. Chunks with
// no hash verify trivially.
func (c Chunk) Verify() bool {
	if len(c.Hash) == 0 {
		return true
	}
	return bytesEqual(HashChunk(c.Data), c.Hash)
}

// HashChunk computes the BLAKE2b-256 hash of data.
func HashChunk(data []byte) []byte {
	h := blake2b.Sum256(data)
	return h[:]
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
