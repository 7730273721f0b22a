package primitives

import (
	"crypto/sha256"

	"golang.org/x/crypto/sha3"
)

// Hash256 returns SHA-256(data), used for child ids, the nullifier
// commitment, accumulator digests and the prover transcript hash.
func Hash256(data ...[]byte) [32]byte {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Hash3_256 returns SHA3-256(data). Used as the seed hash feeding
// the accumulator's hash-to-prime, matching the teacher's own choice of
// SHA3-256 in its crypto-provider for non-ECDSA domain-separated hashing
// (consensus/hash.go, crypto/devstd.go).
func Hash3_256(data ...[]byte) [32]byte {
	h := sha3.New256()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
