package signing

import (
	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/primitives"
)

// Verify checks a 64-byte r||s signature against pub for msgHash using
// standard ECDSA verification: u1 = z*s^-1, u2 = r*s^-1,
// point = u1*G + u2*pub, accept iff point.x mod n == r.
func Verify(pub *primitives.Point, msgHash container.MessageHash, sig container.Signature) bool {
	r, err := primitives.DecodeScalar(sig[:32])
	if err != nil {
		return false
	}
	s, err := primitives.DecodeScalar(sig[32:])
	if err != nil {
		return false
	}
	if r.IsZero() || s.IsZero() {
		return false
	}
	z, err := primitives.DecodeScalar(msgHash[:])
	if err != nil {
		return false
	}

	sInv := primitives.InvertScalar(&s)
	u1 := primitives.MulScalars(&z, &sInv)
	u2 := primitives.MulScalars(&r, &sInv)

	p1 := primitives.ScalarBaseMult(&u1)
	p2 := primitives.ScalarMult(&u2, pub)
	sum, err := primitives.AddPoints(p1, p2)
	if err != nil {
		return false
	}

	gotR := primitives.XAsScalar(sum)
	return primitives.EncodeScalar(&gotR) == primitives.EncodeScalar(&r)
}
