package main

import (
	"crypto/rand"
	"math/big"

	"github.com/chippr-robotics/sigil/internal/errs"
)

// generateSafePrime returns a random prime p of the given bit length such
// that (p-1)/2 is also prime, suitable as one factor of an RSA
// accumulator modulus. This is the one piece of the accumulator's
// trusted setup registry.RsaAccumulator explicitly leaves to callers
// (see its doc comment); no library in the retrieval pack performs RSA
// modulus/safe-prime generation, so this uses math/big's own
// probabilistic primality test directly.
func generateSafePrime(bits int) (*big.Int, error) {
	for {
		q, err := rand.Prime(rand.Reader, bits-1)
		if err != nil {
			return nil, errs.Wrap(errs.KindIO, err, "generate candidate prime")
		}
		p := new(big.Int).Lsh(q, 1)
		p.Add(p, big.NewInt(1))
		if p.ProbablyPrime(32) {
			return p, nil
		}
	}
}

// generateAccumulatorModulus produces a fresh 2048-bit (by default) RSA
// accumulator modulus N = p*q from two independent safe primes, plus a
// generator G picked as a quadratic residue mod N (g = r^2 mod N for a
// random r), so G generates the signed subgroup of squares the
// accumulator's security proof relies on.
func generateAccumulatorModulus(bits int) (n, g *big.Int, err error) {
	half := bits / 2
	p, err := generateSafePrime(half)
	if err != nil {
		return nil, nil, err
	}
	q, err := generateSafePrime(bits - half)
	if err != nil {
		return nil, nil, err
	}
	n = new(big.Int).Mul(p, q)

	r, err := rand.Int(rand.Reader, n)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindIO, err, "generate accumulator generator seed")
	}
	g = new(big.Int).Exp(r, big.NewInt(2), n)
	return n, g, nil
}
