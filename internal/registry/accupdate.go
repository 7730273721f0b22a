package registry

import (
	"encoding/binary"
	"math/big"

	"github.com/chippr-robotics/sigil/internal/errs"
	"github.com/chippr-robotics/sigil/internal/primitives"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// AccumulatorUpdate is the signed, versioned accumulator snapshot the
// mother distributes to daemons (spec §4.5's anti-rollback gate:
// "daemons MUST accept a new (A, version) only if the version strictly
// exceeds the one currently stored AND the mother signature verifies").
// The mother signing key is a fixed secp256k1 keypair derived once at
// vault setup, separate from the per-child presig key material, so this
// channel can be verified by a daemon holding only the mother's public
// key — never the master shards themselves.
type AccumulatorUpdate struct {
	Value     *big.Int
	Version   uint64
	Signature []byte // DER-encoded secp256k1 ECDSA signature
}

// accumulatorDigest is the domain-separated message an AccumulatorUpdate
// signs over: the accumulator value and version, bound together so a
// daemon cannot replay an old value against a newer version or vice
// versa.
func accumulatorDigest(value *big.Int, version uint64) [32]byte {
	var v [8]byte
	binary.LittleEndian.PutUint64(v[:], version)
	return primitives.Hash256([]byte("sigil/accumulator/v1"), value.Bytes(), v[:])
}

// SignAccumulatorUpdate signs (value, version) with the mother's
// accumulator signing key, using the decred secp256k1 package's
// RFC6979-deterministic ECDSA (the same library already wired for C1
// curve arithmetic, here exercising its ecdsa subpackage instead of
// hand-rolled signing for this auxiliary, non-presig channel).
func SignAccumulatorUpdate(signingKey *secp256k1.PrivateKey, value *big.Int, version uint64) AccumulatorUpdate {
	digest := accumulatorDigest(value, version)
	sig := ecdsa.Sign(signingKey, digest[:])
	return AccumulatorUpdate{
		Value:     new(big.Int).Set(value),
		Version:   version,
		Signature: sig.Serialize(),
	}
}

// VerifyAccumulatorUpdate checks u's signature against the mother's
// known accumulator public key.
func VerifyAccumulatorUpdate(pub *secp256k1.PublicKey, u AccumulatorUpdate) bool {
	sig, err := ecdsa.ParseDERSignature(u.Signature)
	if err != nil {
		return false
	}
	digest := accumulatorDigest(u.Value, u.Version)
	return sig.Verify(digest[:], pub)
}

// ImportAccumulator applies u to acc if and only if u's version strictly
// exceeds the one currently held and the mother's signature verifies
// (spec §4.5 anti-rollback). A version tie or regression, or a bad
// signature, is refused without mutating acc.
func ImportAccumulator(acc *RsaAccumulator, pub *secp256k1.PublicKey, u AccumulatorUpdate) error {
	if u.Version <= acc.Version {
		return errs.New(errs.KindAccumulatorStale, "accumulator update version %d does not exceed current %d", u.Version, acc.Version)
	}
	if !VerifyAccumulatorUpdate(pub, u) {
		return errs.New(errs.KindWitnessInvalid, "accumulator update signature does not verify")
	}
	acc.Value = new(big.Int).Set(u.Value)
	acc.Version = u.Version
	return nil
}
