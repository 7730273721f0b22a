package primitives

import "math/big"

// millerRabinRounds controls the confidence of math/big.Int.ProbablyPrime.
// 64 rounds gives an error probability below 2^-128, comfortably inside
// the accumulator's security margin (spec §4.6, RSA-2048 group).
const millerRabinRounds = 64

// HashToPrime deterministically maps seed to a prime suitable for use as
// an RSA-accumulator element, by repeatedly hashing seed with an
// incrementing counter and testing the result for primality. It returns
// the prime and the counter value that produced it, so the mapping is
// independently reproducible by any verifier holding seed.
func HashToPrime(seed []byte) (*big.Int, uint32) {
	for counter := uint32(0); ; counter++ {
		ctr := []byte{byte(counter >> 24), byte(counter >> 16), byte(counter >> 8), byte(counter)}
		h := Hash3_256(seed, ctr)
		// Force the candidate odd and of full 256-bit width so the search
		// converges quickly and the result is usable directly as an
		// accumulator element.
		cand := new(big.Int).SetBytes(h[:])
		cand.SetBit(cand, 0, 1)
		cand.SetBit(cand, 255, 1)
		if cand.ProbablyPrime(millerRabinRounds) {
			return cand, counter
		}
	}
}
