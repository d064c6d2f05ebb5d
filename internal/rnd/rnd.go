// Package rnd provides the deterministic random number stream used for
// all in-game randomness. The stream is seeded from the block hash, and
// every consumer draws from it in a documented order, so that all nodes
// produce bit-identical results.
package rnd

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Rnd is a deterministic stream of pseudo-random bytes. The stream is
// the concatenation of SHA-256 hashes: the seed itself, then repeatedly
// the hash of the previous output block.
type Rnd struct {
	current [sha256.Size]byte
	index   int
}

// NewFromBlockHash seeds a stream from a block's canonical hex hash.
func NewFromBlockHash(blockHash string) (*Rnd, error) {
	raw, err := hex.DecodeString(blockHash)
	if err != nil {
		return nil, fmt.Errorf("invalid block hash %q: %w", blockHash, err)
	}
	return NewFromSeed(raw), nil
}

// NewFromSeed seeds a stream from arbitrary bytes.
func NewFromSeed(seed []byte) *Rnd {
	r := &Rnd{}
	r.current = sha256.Sum256(seed)
	return r
}

// NextByte returns the next byte of the stream.
func (r *Rnd) NextByte() byte {
	if r.index == len(r.current) {
		r.current = sha256.Sum256(r.current[:])
		r.index = 0
	}
	b := r.current[r.index]
	r.index++
	return b
}

// NextUint32 returns the next 32-bit value, big endian from the stream.
func (r *Rnd) NextUint32() uint32 {
	var buf [4]byte
	for i := range buf {
		buf[i] = r.NextByte()
	}
	return binary.BigEndian.Uint32(buf[:])
}

// NextInt returns a uniformly distributed value in [0, n). Values that
// would bias the result are rejected and redrawn, so the distribution is
// exact for every n.
func (r *Rnd) NextInt(n int) int {
	if n <= 0 {
		panic(fmt.Sprintf("rnd: NextInt called with n = %d", n))
	}

	un := uint64(n)
	// Largest multiple of n that fits in 32 bits; draws at or above it
	// are rejected.
	limit := (uint64(1) << 32) / un * un
	for {
		v := uint64(r.NextUint32())
		if v < limit {
			return int(v % un)
		}
	}
}

// ProbabilityRoll returns true with probability 1 in oneIn.
func (r *Rnd) ProbabilityRoll(oneIn int) bool {
	return r.NextInt(oneIn) == 0
}
