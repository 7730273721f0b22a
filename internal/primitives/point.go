package primitives

import (
	"github.com/chippr-robotics/sigil/internal/errs"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Point is a secp256k1 curve point, always carried in affine/compressed
// form at API boundaries.
type Point = secp256k1.PublicKey

// DecodePoint parses a 33-byte SEC1-compressed point.
func DecodePoint(b []byte) (*Point, error) {
	if len(b) != 33 {
		return nil, errs.New(errs.KindInvalidArgument, "point must be 33 bytes, got %d", len(b))
	}
	p, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidArgument, err, "parse point")
	}
	return p, nil
}

// EncodePoint serializes p in SEC1-compressed form.
func EncodePoint(p *Point) [33]byte {
	var out [33]byte
	copy(out[:], p.SerializeCompressed())
	return out
}

// ScalarBaseMult returns k*G.
func ScalarBaseMult(k *Scalar) *Point {
	var j secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(k, &j)
	j.ToAffine()
	return secp256k1.NewPublicKey(&j.X, &j.Y)
}

// ScalarMult returns k*P.
func ScalarMult(k *Scalar, p *Point) *Point {
	var pj, j secp256k1.JacobianPoint
	p.AsJacobian(&pj)
	secp256k1.ScalarMultNonConst(k, &pj, &j)
	j.ToAffine()
	return secp256k1.NewPublicKey(&j.X, &j.Y)
}

// AddPoints returns a+b. Returns an error if the sum is the point at
// infinity (negligible probability for independently generated points,
// but the cold/agent R-point agreement check in C4 depends on this
// never silently producing the identity).
func AddPoints(a, b *Point) (*Point, error) {
	var aj, bj, rj secp256k1.JacobianPoint
	a.AsJacobian(&aj)
	b.AsJacobian(&bj)
	secp256k1.AddNonConst(&aj, &bj, &rj)
	rj.ToAffine()
	if (rj.X.IsZero() && rj.Y.IsZero()) || rj.Z.IsZero() {
		return nil, errs.New(errs.KindRPointMismatch, "point sum is identity")
	}
	return secp256k1.NewPublicKey(&rj.X, &rj.Y), nil
}

// XAsScalar reduces the affine X-coordinate of p modulo the curve order
// n, implementing spec §4.4's "r = R.x mod n" step.
func XAsScalar(p *Point) Scalar {
	s, _ := XAsScalarWithOverflow(p)
	return s
}

// XAsScalarWithOverflow is XAsScalar plus whether X was >= n (needed to
// compute the ECDSA recovery id alongside the parity of Y).
func XAsScalarWithOverflow(p *Point) (Scalar, bool) {
	var s Scalar
	var j secp256k1.JacobianPoint
	p.AsJacobian(&j)
	xBytes := j.X.Bytes()
	overflow := s.SetByteSlice(xBytes[:])
	return s, overflow
}

// YIsOdd reports whether the affine Y-coordinate of p is odd, the other
// half of the input to an ECDSA recovery id.
func YIsOdd(p *Point) bool {
	var j secp256k1.JacobianPoint
	p.AsJacobian(&j)
	return j.Y.IsOdd()
}

// Equal reports whether a and b encode the same point.
func Equal(a, b *Point) bool {
	return EncodePoint(a) == EncodePoint(b)
}
