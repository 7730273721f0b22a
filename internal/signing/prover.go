package signing

import (
	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/primitives"
)

// ProofResult bundles a completed signature with the transcript hash the
// deterministic prover commits to (spec §4.4: "a proof that this
// specific signature was produced from these specific shares").
type ProofResult struct {
	Result
	ProofHash container.ZkProofHash
}

// Prove runs CompletePresig inside the deterministic-prover stand-in: no
// zkVM is wired up in this implementation (the spec explicitly allows a
// native stand-in for tests and non-zkVM deployments), but the same
// commit-to-public-inputs discipline applies. The returned ProofHash is
// a domain-separated digest over every public input plus the produced
// signature, so any two runs given identical inputs produce an
// identical, independently-reproducible transcript hash.
func Prove(childPubkey [33]byte, msgHash container.MessageHash, presigIndex uint32, cold ColdInput, agent AgentInput) (ProofResult, error) {
	res, err := CompletePresig(childPubkey, msgHash, presigIndex, cold, agent)
	if err != nil {
		return ProofResult{}, err
	}

	var idxBytes [4]byte
	idxBytes[0] = byte(presigIndex)
	idxBytes[1] = byte(presigIndex >> 8)
	idxBytes[2] = byte(presigIndex >> 16)
	idxBytes[3] = byte(presigIndex >> 24)

	digest := primitives.Hash256(
		[]byte("sigil/prover/v1"),
		childPubkey[:],
		msgHash[:],
		idxBytes[:],
		res.Signature[:],
		[]byte{res.RecoveryID},
	)

	return ProofResult{Result: res, ProofHash: container.ZkProofHash(digest)}, nil
}
