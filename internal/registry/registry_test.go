package registry

import (
	"math/big"
	"testing"

	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/primitives"
)

// testModulus returns a small (non-cryptographic) RSA modulus for fast
// tests; production use requires a real 2048-bit safe-prime product
// established out of band.
func testModulus() (*big.Int, *big.Int) {
	p := big.NewInt(1000003)
	q := big.NewInt(1000033)
	n := new(big.Int).Mul(p, q)
	g := big.NewInt(2)
	return n, g
}

func TestAccumulatorNullifyThenVerifyMembership(t *testing.T) {
	n, g := testModulus()
	acc := NewAccumulator(n, g)

	var childID [32]byte
	childID[0] = 0xAB

	w := acc.Nullify(childID)
	if acc.Version != 1 {
		t.Fatalf("version = %d, want 1", acc.Version)
	}
	if !acc.VerifyMembership(childID, w) {
		t.Fatalf("membership witness does not verify against new accumulator value")
	}
}

func TestAccumulatorVersionMonotonic(t *testing.T) {
	n, g := testModulus()
	acc := NewAccumulator(n, g)
	var a, b [32]byte
	a[0], b[0] = 1, 2

	acc.Nullify(a)
	v1 := acc.Version
	acc.Nullify(b)
	v2 := acc.Version
	if v2 <= v1 {
		t.Fatalf("version did not strictly increase: %d -> %d", v1, v2)
	}
}

// TestNonMembershipWitnessVerifiesAndBreaksAfterNullification exercises
// spec §4.5/§8's non-membership proof: a witness issued for a
// not-yet-nullified child must verify against the current accumulator,
// and must stop verifying once that child is nullified. Extended-Euclid
// on two coprime integers > 1 produces Bezout coefficients of opposite
// sign in the minimal solution, so this also exercises
// VerifyNonMembership's negative-exponent path without having to force
// it artificially.
func TestNonMembershipWitnessVerifiesAndBreaksAfterNullification(t *testing.T) {
	n, g := testModulus()
	acc := NewAccumulator(n, g)

	var already [32]byte
	already[0] = 0x10
	acc.Nullify(already)

	alreadyPrime, _ := primitives.HashToPrime(already[:])
	accumulatedExponent := new(big.Int).Set(alreadyPrime)

	var target [32]byte
	target[0] = 0x20
	p, _ := primitives.HashToPrime(target[:])

	witness, err := IssueNonMembershipWitness(acc, accumulatedExponent, p)
	if err != nil {
		t.Fatalf("issue non-membership witness: %v", err)
	}
	if witness.A.Sign() >= 0 && witness.D.Sign() >= 0 {
		t.Fatalf("expected Bezout coefficients of opposite sign for coprime p and accumulatedExponent, got a=%s d=%s", witness.A, witness.D)
	}
	if !acc.VerifyNonMembership(witness) {
		t.Fatalf("non-membership witness does not verify against A before nullification")
	}

	// Nullifying target changes A; the pre-nullification witness must no
	// longer verify.
	acc.Nullify(target)
	if acc.VerifyNonMembership(witness) {
		t.Fatalf("non-membership witness for target still verifies after target was nullified")
	}
}

func TestNullificationReasonShortDescription(t *testing.T) {
	r := NullificationReason{Kind: ReasonReconciliationAnomaly, Detail: "count mismatch"}
	got := r.ShortDescription()
	want := "reconciliation_anomaly:count mismatch"
	if got != want {
		t.Fatalf("short description = %q, want %q", got, want)
	}
}

func TestChildStatusTransitions(t *testing.T) {
	if !StatusActive.CanTransitionTo(StatusSuspended) {
		t.Fatalf("Active -> Suspended should be legal")
	}
	if !StatusSuspended.CanTransitionTo(StatusActive) {
		t.Fatalf("Suspended -> Active should be legal")
	}
	if StatusNullified.CanTransitionTo(StatusActive) {
		t.Fatalf("Nullified is terminal, should reject transition")
	}
}

func TestRegistryNullifyIsTerminal(t *testing.T) {
	n, g := testModulus()
	acc := NewAccumulator(n, g)
	reg := NewRegistry()

	var childID container.ChildId
	childID[0] = 0x01
	if err := reg.Register(ChildRegistryEntry{ChildID: childID, Status: ChildStatus{Kind: StatusActive}}); err != nil {
		t.Fatalf("register: %v", err)
	}

	reason := NullificationReason{Kind: ReasonManualRevocation}
	if _, err := reg.Nullify(childID, reason, 1700000000, 5, acc); err != nil {
		t.Fatalf("nullify: %v", err)
	}

	entry, err := reg.Query(childID)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if entry.Status.Kind != StatusNullified {
		t.Fatalf("expected Nullified status, got %v", entry.Status.Kind)
	}
	if entry.NullifierCommitment == nil {
		t.Fatalf("expected nullifier commitment to be set")
	}

	if err := reg.Reactivate(childID); err == nil {
		t.Fatalf("expected error reactivating a nullified child")
	}
}
