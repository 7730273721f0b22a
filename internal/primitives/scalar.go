// Package primitives implements C1: the scalar/point codecs, domain-
// separated hashing, key derivation, hash-to-prime, and RSA-group modular
// arithmetic that every other Sigil component builds on.
package primitives

import (
	"crypto/rand"
	"io"

	"github.com/chippr-robotics/sigil/internal/errs"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Scalar is an element of the secp256k1 scalar field, always reduced
// mod n. Every presignature share (k, chi) and every derived child key
// is a Scalar.
type Scalar = secp256k1.ModNScalar

// HalfOrder is floor(n/2), the constant-time low-S threshold from spec
// §4.4. secp256k1.ModNScalar.IsOverHalfOrder already encodes this
// constant internally; HalfOrder is exposed separately so the low-S
// check in internal/signing can do its own explicit byte comparison
// rather than hide the cutoff behind library internals.
var HalfOrder = [32]byte{
	0x7f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0x5d, 0x57, 0x6e, 0x73, 0x57, 0xa4, 0x50, 0x1d,
	0xdf, 0xe9, 0x2f, 0x46, 0x68, 0x1b, 0x20, 0xa0,
}

// DecodeScalar parses a 32-byte big-endian scalar, reducing mod n per
// SEC1 scalar-decode rules. An overflowing encoding is accepted and
// reduced rather than rejected, matching secp256k1.ModNScalar semantics.
func DecodeScalar(b []byte) (Scalar, error) {
	var s Scalar
	if len(b) != 32 {
		return s, errs.New(errs.KindInvalidArgument, "scalar must be 32 bytes, got %d", len(b))
	}
	s.SetByteSlice(b)
	return s, nil
}

// EncodeScalar serializes s as 32 big-endian bytes.
func EncodeScalar(s *Scalar) [32]byte {
	return s.Bytes()
}

// RandScalar draws a uniformly random nonzero scalar from r, retrying on
// the negligible-probability events of overflow-to-zero or exact zero.
func RandScalar(r io.Reader) (Scalar, error) {
	var s Scalar
	var buf [32]byte
	for i := 0; i < 8; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return s, errs.Wrap(errs.KindIO, err, "rand scalar")
		}
		overflow := s.SetByteSlice(buf[:])
		if !overflow && !s.IsZero() {
			return s, nil
		}
	}
	return s, errs.New(errs.KindIO, "rand scalar: exhausted retries")
}

// RandScalarDefault is RandScalar sourced from crypto/rand.
func RandScalarDefault() (Scalar, error) {
	return RandScalar(rand.Reader)
}

// AddScalars returns a+b mod n.
func AddScalars(a, b *Scalar) Scalar {
	var out Scalar
	out.Set(a)
	out.Add(b)
	return out
}

// InvertScalar returns a^-1 mod n. Panics if a is zero, matching the
// library's own precondition (callers must never invert a zero nonce).
func InvertScalar(a *Scalar) Scalar {
	var out Scalar
	out.Set(a)
	out.InverseNonConst()
	return out
}

// MulScalars returns a*b mod n.
func MulScalars(a, b *Scalar) Scalar {
	var out Scalar
	out.Set(a)
	out.Mul(b)
	return out
}

// ConstantTimeBytesGreater reports whether a > b, treating both as
// 32-byte big-endian unsigned integers, in constant time with respect
// to the values (not the early-exit index, which is a function of the
// first differing byte position only — identical to the comparison
// pattern used for canonical low-S checks in production ECDSA code).
func ConstantTimeBytesGreater(a, b [32]byte) bool {
	var gt, eq byte = 0, 1
	for i := 0; i < 32; i++ {
		x, y := a[i], b[i]
		gt |= eq & boolToByte(x > y)
		eq &= boolToByte(x == y)
	}
	return gt == 1
}

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
