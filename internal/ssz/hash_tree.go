// hash_tree.go provides the cached zero-hash table, the chunk-count rule
// for basic-type lists, the cached Merkleization routine, and the union
// hash-tree-root mixin. The descriptor walk in hashtreeroot.go and the
// proof-tree builder in proof.go are both built on top of these.
package ssz

import (
	"crypto/sha256"
	"sync"
)

// maxCachedZeroHashDepth is the maximum depth of precomputed zero hashes.
// 64 levels supports trees of up to 2^64 leaves.
const maxCachedZeroHashDepth = 64

// cachedZeroHashes stores precomputed zero hashes at each tree depth.
// cachedZeroHashes[0] = Bytes32() (all zeros)
// cachedZeroHashes[i] = sha256(cachedZeroHashes[i-1] || cachedZeroHashes[i-1])
var (
	cachedZeroHashesOnce sync.Once
	cachedZeroHashTable  [maxCachedZeroHashDepth + 1][32]byte
)

// initZeroHashCache computes the zero hash table once.
func initZeroHashCache() {
	cachedZeroHashesOnce.Do(func() {
		// Level 0 is the zero chunk (already zeroed by Go).
		for i := 1; i <= maxCachedZeroHashDepth; i++ {
			cachedZeroHashTable[i] = hash(cachedZeroHashTable[i-1], cachedZeroHashTable[i-1])
		}
	})
}

// ZeroHash returns the cached zero hash at the given tree depth.
// Depth 0 is a 32-byte zero chunk; depth d is the root of a tree
// of height d containing only zero leaves.
func ZeroHash(depth int) [32]byte {
	initZeroHashCache()
	if depth < 0 || depth > maxCachedZeroHashDepth {
		// Fall back to on-the-fly computation for out-of-range depths.
		h := [32]byte{}
		for i := 0; i < depth; i++ {
			h = hash(h, h)
		}
		return h
	}
	return cachedZeroHashTable[depth]
}

// ConcatHash computes SHA-256(a || b) for two 32-byte inputs.
// Exported so callers can build custom Merkle proofs.
func ConcatHash(a, b [32]byte) [32]byte {
	return hash(a, b)
}

// SHA256 computes SHA-256 over an arbitrary byte slice, returning a [32]byte.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// --- Chunk count calculation ---

// ChunkCountBasic returns the number of 32-byte chunks needed to pack
// n values of the given elemByteSize. Per the SSZ spec, basic types
// are packed into 32-byte chunks.
func ChunkCountBasic(n, elemByteSize int) int {
	totalBytes := n * elemByteSize
	return (totalBytes + BytesPerChunk - 1) / BytesPerChunk
}

// ChunkCountBitlist returns the chunk limit for a Bitlist[N].
// The limit is the number of chunks needed for the max capacity.
func ChunkCountBitlist(maxLen int) int {
	return (maxLen + 255) / 256
}

// --- Optimized Merkleization with cached zero hashes ---

// MerkleizeCached computes the Merkle root of chunks using the precomputed
// zero hash cache, avoiding repeated allocation of zero hash arrays.
// If limit is 0, the limit is the next power of two of len(chunks).
func MerkleizeCached(chunks [][32]byte, limit int) [32]byte {
	initZeroHashCache()

	count := len(chunks)
	if limit == 0 {
		limit = nextPowerOfTwo(count)
	}
	if limit < count {
		limit = nextPowerOfTwo(count)
	}
	limit = nextPowerOfTwo(limit)

	if count == 0 {
		// Tree is entirely zero hashes. Return the zero hash at the
		// appropriate depth.
		depth := treeDepth(limit)
		return ZeroHash(depth)
	}

	depth := treeDepth(limit)

	// Build the bottom layer padded to limit.
	layer := make([][32]byte, limit)
	copy(layer, chunks)
	for i := count; i < limit; i++ {
		layer[i] = cachedZeroHashTable[0]
	}

	for d := 0; d < depth; d++ {
		newSize := len(layer) / 2
		newLayer := make([][32]byte, newSize)
		for i := 0; i < newSize; i++ {
			newLayer[i] = hash(layer[2*i], layer[2*i+1])
		}
		layer = newLayer
	}

	return layer[0]
}

// treeDepth returns the depth (number of levels) for a tree with the
// given number of leaves (must be a power of two or 0).
func treeDepth(n int) int {
	if n <= 1 {
		return 0
	}
	d := 0
	for (1 << uint(d)) < n {
		d++
	}
	return d
}

// --- Union hash tree root ---

// HashTreeRootUnion computes the hash tree root of an SSZ union.
// A union is a type with a 1-byte selector and then one of several
// concrete types. Per the SSZ spec:
//
//	hash_tree_root(union) = hash(hash_tree_root(value), selector_chunk)
//
// where selector_chunk is a 32-byte chunk with the selector byte in
// position 0. If selectorByte is 0 and the union is the "None" variant,
// the value root should be the zero hash.
func HashTreeRootUnion(valueRoot [32]byte, selectorByte byte) [32]byte {
	var selectorChunk [32]byte
	selectorChunk[0] = selectorByte
	return hash(valueRoot, selectorChunk)
}

// The per-field convenience roots (addresses, BLS keys/signatures) and the
// flat-chunk multiproof helpers previously here are superseded by the
// descriptor-driven walk in hashtreeroot.go and proof.go, which handle any
// nesting depth rather than a single chunk array.
