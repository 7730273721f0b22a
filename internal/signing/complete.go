// Package signing implements C4: the deterministic two-party threshold
// ECDSA signature-completion algorithm, run inside the deterministic
// prover (internal/signing.Prove) or directly via CompletePresig for
// callers that already trust their environment (tests). The reference
// daemon dispatcher goes through Prove.
package signing

import (
	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/errs"
	"github.com/chippr-robotics/sigil/internal/primitives"
)

// ColdInput is the mother/disk-side half of a presignature.
type ColdInput struct {
	R       primitives.Point
	KCold   primitives.Scalar
	ChiCold primitives.Scalar
}

// AgentInput is the daemon-side half of a presignature.
type AgentInput struct {
	R        primitives.Point
	KAgent   primitives.Scalar
	ChiAgent primitives.Scalar
}

// Result is everything CompletePresig produces.
type Result struct {
	Signature   container.Signature
	RecoveryID  byte
	PresigIndex uint32
	MessageHash container.MessageHash
	ChildPubkey [33]byte
}

// CompletePresig runs spec §4.4's 11-step algorithm. It is a pure,
// deterministic function of its inputs: no RNG is consulted, so the
// zkVM transcript (internal/signing.Prove) built around it is
// reproducible.
func CompletePresig(childPubkey [33]byte, msgHash container.MessageHash, presigIndex uint32, cold ColdInput, agent AgentInput) (Result, error) {
	// Step 1: R agreement.
	coldEnc := primitives.EncodePoint(&cold.R)
	agentEnc := primitives.EncodePoint(&agent.R)
	if coldEnc != agentEnc {
		return Result{}, errs.New(errs.KindRPointMismatch, "R_cold != R_agent for presig index %d", presigIndex)
	}

	// Step 2: r = R.x mod n.
	r := primitives.XAsScalar(&cold.R)
	if r.IsZero() {
		return Result{}, errs.New(errs.KindInvalidArgument, "invalid presignature: r == 0")
	}

	// Step 3: k = k_cold + k_agent.
	k := primitives.AddScalars(&cold.KCold, &agent.KAgent)
	if k.IsZero() {
		return Result{}, errs.New(errs.KindInvalidArgument, "invalid presignature: k == 0")
	}

	// Step 4: k_inv.
	kInv := primitives.InvertScalar(&k)

	// Step 5: z = message hash reduced mod n.
	z, err := primitives.DecodeScalar(msgHash[:])
	if err != nil {
		return Result{}, err
	}

	// Step 6: chi = chi_cold + chi_agent.
	chi := primitives.AddScalars(&cold.ChiCold, &agent.ChiAgent)

	// Step 7: s = k_inv * (z + r*chi).
	rChi := primitives.MulScalars(&r, &chi)
	inner := primitives.AddScalars(&z, &rChi)
	s := primitives.MulScalars(&kInv, &inner)

	// Step 8: low-S normalization via explicit constant-time comparison
	// against the precomputed n/2, per spec §4.1/§4.4.
	sEnc := primitives.EncodeScalar(&s)
	negated := false
	if primitives.ConstantTimeBytesGreater(sEnc, primitives.HalfOrder) {
		s.Negate()
		sEnc = primitives.EncodeScalar(&s)
		negated = true
	}

	// Step 9: encode r || s.
	var sig container.Signature
	rEnc := primitives.EncodeScalar(&r)
	copy(sig[:32], rEnc[:])
	copy(sig[32:], sEnc[:])

	// Step 10: self-verify.
	pub, err := primitives.DecodePoint(childPubkey[:])
	if err != nil {
		return Result{}, errs.Wrap(errs.KindInvalidArgument, err, "decode child pubkey")
	}
	if !Verify(pub, msgHash, sig) {
		return Result{}, errs.New(errs.KindSignatureInvalid, "self-verify failed for presig index %d", presigIndex)
	}

	recID := computeRecoveryID(&cold.R, &r, negated)

	return Result{
		Signature:   sig,
		RecoveryID:  recID,
		PresigIndex: presigIndex,
		MessageHash: msgHash,
		ChildPubkey: childPubkey,
	}, nil
}

// computeRecoveryID derives the recovery id directly from R's affine
// coordinates (parity of Y, overflow of X), per the spec §4.4 note that
// a conformant implementation may compute it post-hoc as long as the
// emitted signature still verifies. See SPEC_FULL.md's Open Question
// decision: the id is never appended to the 64-byte signature.
//
// negated must be true when step 8 flipped s to its low-S form
// (s -> n-s): that substitution corresponds to recovering from -R
// rather than R, which flips the Y-parity bit of the recovery id
// relative to the pre-normalization point. Without this correction the
// id would fail to recover childPubkey for every signature that needed
// low-S normalization.
func computeRecoveryID(R *primitives.Point, r *primitives.Scalar, negated bool) byte {
	_, overflow := primitives.XAsScalarWithOverflow(R)
	yOdd := primitives.YIsOdd(R)
	if negated {
		yOdd = !yOdd
	}
	var id byte
	if yOdd {
		id |= 1
	}
	if overflow {
		id |= 2
	}
	return id
}
