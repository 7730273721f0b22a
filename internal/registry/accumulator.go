package registry

import (
	"math/big"

	"github.com/chippr-robotics/sigil/internal/errs"
	"github.com/chippr-robotics/sigil/internal/primitives"
)

// RsaAccumulator is the 2048-bit RSA accumulator used for O(1)
// verifiable (non-)membership, spec §4.5. The modulus is generated once
// at mother setup time (product of two safe primes, out of scope for
// this core to generate — callers supply N from an established
// trusted-setup ceremony or a test fixture).
type RsaAccumulator struct {
	N       *big.Int
	G       *big.Int
	Value   *big.Int
	Version uint64
}

// NewAccumulator returns A_0 = g, version_0 = 0.
func NewAccumulator(n, g *big.Int) *RsaAccumulator {
	return &RsaAccumulator{
		N:       new(big.Int).Set(n),
		G:       new(big.Int).Set(g),
		Value:   new(big.Int).Set(g),
		Version: 0,
	}
}

// MembershipWitness is the accumulator value immediately before a given
// child was nullified; verified via w^p == A (mod N).
type MembershipWitness struct {
	Witness *big.Int
	Prime   *big.Int
}

// NonMembershipWitness carries a Bezout coefficient a and a group
// element d such that A^a * d^p == g (mod N), computable only by whoever
// knows the accumulated exponent (the mother).
type NonMembershipWitness struct {
	A *big.Int
	D *big.Int
	P *big.Int
}

// Nullify implements spec §4.5's nullification sequence: derive the
// prime for childID, emit the pre-nullification value as a membership
// witness, then fold the prime into the accumulator and bump the
// version.
func (acc *RsaAccumulator) Nullify(childID [32]byte) MembershipWitness {
	p, _ := primitives.HashToPrime(childID[:])
	witness := new(big.Int).Set(acc.Value)

	acc.Value = primitives.ModExp(acc.Value, p, acc.N)
	acc.Version++

	return MembershipWitness{Witness: witness, Prime: p}
}

// VerifyMembership checks w^p == A (mod N): is childID represented
// (nullified) in acc?
func (acc *RsaAccumulator) VerifyMembership(childID [32]byte, w MembershipWitness) bool {
	p, _ := primitives.HashToPrime(childID[:])
	if p.Cmp(w.Prime) != 0 {
		return false
	}
	lhs := primitives.ModExp(w.Witness, w.Prime, acc.N)
	return lhs.Cmp(acc.Value) == 0
}

// IssueNonMembershipWitness computes Bezout coefficients (x, y) solving
// x*p + y*exponent == 1 for a prime p not yet folded into the
// accumulator, where exponent is the product of all primes currently
// represented, and returns a = y and d = g^x mod N, so that
// A^a * d^p == g^(y*exponent + x*p) == g. Only the mother, who tracks
// that running exponent, can compute this.
func IssueNonMembershipWitness(acc *RsaAccumulator, accumulatedExponent *big.Int, p *big.Int) (NonMembershipWitness, error) {
	x, y, gcd := primitives.Bezout(p, accumulatedExponent)
	if gcd.Cmp(big.NewInt(1)) != 0 {
		return NonMembershipWitness{}, errs.New(errs.KindWitnessInvalid, "prime shares a factor with accumulated exponent")
	}
	return NonMembershipWitness{A: y, D: powSigned(acc.G, x, acc.N), P: p}, nil
}

// VerifyNonMembership checks A^a * d^p == g (mod N) in constant-time
// modexp/modmul (no secret-dependent branches, per spec §4.1/§4.5).
func (acc *RsaAccumulator) VerifyNonMembership(w NonMembershipWitness) bool {
	lhs1 := powSigned(acc.Value, w.A, acc.N)
	lhs2 := primitives.ModExp(w.D, w.P, acc.N)
	lhs := new(big.Int).Mod(new(big.Int).Mul(lhs1, lhs2), acc.N)
	return lhs.Cmp(acc.G) == 0
}

// powSigned computes base^exp mod n for a possibly-negative exp without
// knowing the group order: math/big's Exp only takes a non-negative
// exponent, so a negative one is handled as
// ModInverse(base, n)^(-exp) mod n rather than by shifting the exponent
// by n (shifting by the modulus, not the group order, does not preserve
// the result — A^(a+N) mod N != A^a mod N in general). This is the
// factorization-free way any verifier, not just the mother, can
// evaluate a negative Bezout coefficient.
func powSigned(base, exp, n *big.Int) *big.Int {
	if exp.Sign() >= 0 {
		return primitives.ModExp(base, exp, n)
	}
	inv := primitives.ModInverse(base, n)
	if inv == nil {
		return new(big.Int)
	}
	return primitives.ModExp(inv, new(big.Int).Neg(exp), n)
}
