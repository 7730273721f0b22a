package signing

import (
	"testing"

	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/primitives"
)

func scalarFromUint64(v uint64) primitives.Scalar {
	var s primitives.Scalar
	s.SetInt(uint32(v))
	return s
}

// buildFixture constructs the literal scenario from spec §8, scenario 3:
// k_cold=1, k_agent=2, chi_cold=3, chi_agent=4, R=[3]*G, d_child=7.
func buildFixture(t *testing.T) (ColdInput, AgentInput, [33]byte) {
	t.Helper()
	kCold := scalarFromUint64(1)
	kAgent := scalarFromUint64(2)
	chiCold := scalarFromUint64(3)
	chiAgent := scalarFromUint64(4)

	k := scalarFromUint64(3)
	R := primitives.ScalarBaseMult(&k)

	dChild := scalarFromUint64(7)
	childPub := primitives.ScalarBaseMult(&dChild)

	cold := ColdInput{R: *R, KCold: kCold, ChiCold: chiCold}
	agent := AgentInput{R: *R, KAgent: kAgent, ChiAgent: chiAgent}
	return cold, agent, primitives.EncodePoint(childPub)
}

func TestCompletePresigHappyPath(t *testing.T) {
	cold, agent, childPub := buildFixture(t)
	msgHash := primitives.Hash256([]byte("hello"))

	res, err := CompletePresig(childPub, container.MessageHash(msgHash), 0, cold, agent)
	if err != nil {
		t.Fatalf("complete presig: %v", err)
	}
	if len(res.Signature) != 64 {
		t.Fatalf("signature length = %d, want 64", len(res.Signature))
	}
	sEnc := [32]byte{}
	copy(sEnc[:], res.Signature[32:])
	if primitives.ConstantTimeBytesGreater(sEnc, primitives.HalfOrder) {
		t.Fatalf("signature is not low-S")
	}

	pub, err := primitives.DecodePoint(childPub[:])
	if err != nil {
		t.Fatalf("decode pub: %v", err)
	}
	if !Verify(pub, container.MessageHash(msgHash), res.Signature) {
		t.Fatalf("signature does not verify")
	}
}

func TestCompletePresigDeterministic(t *testing.T) {
	cold, agent, childPub := buildFixture(t)
	msgHash := primitives.Hash256([]byte("hello"))

	a, err := CompletePresig(childPub, container.MessageHash(msgHash), 0, cold, agent)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := CompletePresig(childPub, container.MessageHash(msgHash), 0, cold, agent)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if a.Signature != b.Signature || a.RecoveryID != b.RecoveryID {
		t.Fatalf("completion not deterministic")
	}
}

func TestCompletePresigRejectsRMismatch(t *testing.T) {
	cold, agent, childPub := buildFixture(t)
	msgHash := primitives.Hash256([]byte("hello"))

	// Swap the agent's R to [4]*G, as in spec §8 scenario 4.
	four := scalarFromUint64(4)
	agent.R = *primitives.ScalarBaseMult(&four)

	_, err := CompletePresig(childPub, container.MessageHash(msgHash), 0, cold, agent)
	if err == nil {
		t.Fatalf("expected PresigMismatch error")
	}
}

func TestCompletePresigRejectsZeroK(t *testing.T) {
	cold, agent, childPub := buildFixture(t)
	msgHash := primitives.Hash256([]byte("hello"))

	// k_cold + k_agent must sum to zero mod n; pick agent.KAgent as the
	// negation of cold.KCold.
	neg := cold.KCold
	neg.Negate()
	agent.KAgent = neg
	// cold.R and agent.R keep the fixture's [3]G: step 1 (R agreement)
	// and step 2 (r != 0) pass, so step 3 rejects k == 0.

	_, err := CompletePresig(childPub, container.MessageHash(msgHash), 0, cold, agent)
	if err == nil {
		t.Fatalf("expected error for k == 0")
	}
}

// recoverPubkey reimplements standard ECDSA public-key recovery from a
// signature and recovery id, independent of CompletePresig, so it can
// catch a recovery id that does not actually recover childPubkey.
func recoverPubkey(sig container.Signature, recID byte, msgHash container.MessageHash) (*primitives.Point, error) {
	r, err := primitives.DecodeScalar(sig[:32])
	if err != nil {
		return nil, err
	}
	s, err := primitives.DecodeScalar(sig[32:])
	if err != nil {
		return nil, err
	}
	z, err := primitives.DecodeScalar(msgHash[:])
	if err != nil {
		return nil, err
	}

	prefix := byte(0x02)
	if recID&1 == 1 {
		prefix = 0x03
	}
	rEnc := primitives.EncodeScalar(&r)
	compressed := append([]byte{prefix}, rEnc[:]...)
	R, err := primitives.DecodePoint(compressed)
	if err != nil {
		return nil, err
	}

	rInv := primitives.InvertScalar(&r)
	u1 := primitives.MulScalars(&rInv, &s)
	negZ := z
	negZ.Negate()
	u2 := primitives.MulScalars(&rInv, &negZ)

	p1 := primitives.ScalarMult(&u1, R)
	p2 := primitives.ScalarBaseMult(&u2)
	return primitives.AddPoints(p1, p2)
}

// TestCompletePresigRecoveryIDRecoversPubkey guards against the low-S
// negation at step 8 silently invalidating the recovery id: if s is
// flipped to n-s without also flipping the id's parity bit, recovery
// would yield -R's key material instead of childPubkey.
func TestCompletePresigRecoveryIDRecoversPubkey(t *testing.T) {
	cold, agent, childPub := buildFixture(t)
	msgHash := container.MessageHash(primitives.Hash256([]byte("hello")))

	res, err := CompletePresig(childPub, msgHash, 0, cold, agent)
	if err != nil {
		t.Fatalf("complete presig: %v", err)
	}

	recovered, err := recoverPubkey(res.Signature, res.RecoveryID, msgHash)
	if err != nil {
		t.Fatalf("recover pubkey: %v", err)
	}
	if primitives.EncodePoint(recovered) != childPub {
		t.Fatalf("recovered pubkey does not match childPubkey: got %x, want %x", primitives.EncodePoint(recovered), childPub)
	}
}

// TestComputeRecoveryIDFlipsParityOnNegation pins the fix directly:
// negating s at step 8 corresponds to recovering from -R, which flips
// Y's parity relative to the pre-normalization point, while the
// X-overflow bit is unaffected by the negation.
func TestComputeRecoveryIDFlipsParityOnNegation(t *testing.T) {
	k := scalarFromUint64(5)
	R := primitives.ScalarBaseMult(&k)
	r := primitives.XAsScalar(R)

	withoutNegation := computeRecoveryID(R, &r, false)
	withNegation := computeRecoveryID(R, &r, true)

	if withoutNegation&1 == withNegation&1 {
		t.Fatalf("negation did not flip the parity bit: %02x vs %02x", withoutNegation, withNegation)
	}
	if withoutNegation&2 != withNegation&2 {
		t.Fatalf("negation should not affect the overflow bit: %02x vs %02x", withoutNegation, withNegation)
	}
}

func TestProveProducesReproducibleTranscript(t *testing.T) {
	cold, agent, childPub := buildFixture(t)
	msgHash := primitives.Hash256([]byte("hello"))

	a, err := Prove(childPub, container.MessageHash(msgHash), 0, cold, agent)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	b, err := Prove(childPub, container.MessageHash(msgHash), 0, cold, agent)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	if a.ProofHash != b.ProofHash {
		t.Fatalf("proof hash not reproducible")
	}
}
