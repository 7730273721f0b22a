package primitives

import "math/big"

// ModExp computes base^exp mod n. The accumulator's universe has no
// off-the-shelf Go library in the retrieval pack (RSA accumulators are a
// narrow enough primitive that none of the example repos carry one), so
// this is built directly on math/big, the standard way arbitrary
// modular exponentiation is done in Go when no ecosystem library targets
// the exact group in use. See DESIGN.md for the stdlib-usage
// justification.
func ModExp(base, exp, n *big.Int) *big.Int {
	return new(big.Int).Exp(base, exp, n)
}

// ModInverse computes a^-1 mod n, or nil if a and n are not coprime.
func ModInverse(a, n *big.Int) *big.Int {
	return new(big.Int).ModInverse(a, n)
}

// Bezout returns integers (x, y) such that a*x + b*y = gcd(a,b), via
// math/big's extended Euclidean algorithm. Used to build non-membership
// witnesses for the RSA accumulator (spec §4.6): given accumulator value
// u, element prime p not in the represented set, and current accumulated
// product exponent, a non-membership witness is the Bezout pair solving
// a*p + b*product = 1.
func Bezout(a, b *big.Int) (x, y, gcd *big.Int) {
	gcd = new(big.Int)
	x = new(big.Int)
	y = new(big.Int)
	gcd.GCD(x, y, a, b)
	return x, y, gcd
}
