package container

import (
	"encoding/hex"

	"github.com/chippr-robotics/sigil/internal/errs"
)

// ChildId is SHA-256 over a child's compressed public key.
type ChildId [32]byte

// Short renders the first 4 bytes of the id as hex, the teacher-style
// short display form used throughout sigil-core's ID types.
func (c ChildId) Short() string { return hex.EncodeToString(c[:4]) }

func (c ChildId) ToHex() string { return hex.EncodeToString(c[:]) }

func ChildIdFromHex(s string) (ChildId, error) {
	var c ChildId
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return c, errs.New(errs.KindInvalidArgument, "invalid child id hex %q", s)
	}
	copy(c[:], b)
	return c, nil
}

// MessageHash is the 32-byte digest presented to the signing core.
type MessageHash [32]byte

func (m MessageHash) ToHex() string { return hex.EncodeToString(m[:]) }

func MessageHashFromHex(s string) (MessageHash, error) {
	var m MessageHash
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return m, errs.New(errs.KindInvalidArgument, "invalid message hash hex %q", s)
	}
	copy(m[:], b)
	return m, nil
}

// Signature is the 64-byte r||s ECDSA signature encoding (spec §4.4
// step 9; the recovery id is carried out-of-band, see signing package).
type Signature [64]byte

func (s Signature) ToHex() string { return hex.EncodeToString(s[:]) }

// TxHash is the transaction hash a signature was ultimately bound to,
// recorded post-hoc via UpdateTxHash.
type TxHash [32]byte

func (t TxHash) ToHex() string { return hex.EncodeToString(t[:]) }

func TxHashFromHex(s string) (TxHash, error) {
	var t TxHash
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return t, errs.New(errs.KindInvalidArgument, "invalid tx hash hex %q", s)
	}
	copy(t[:], b)
	return t, nil
}

// ZkProofHash commits to the deterministic-prover transcript that
// produced a signature (internal/signing).
type ZkProofHash [32]byte

func (z ZkProofHash) ToHex() string { return hex.EncodeToString(z[:]) }

// ChainId identifies the target chain a signature's message hash was
// constructed for. Values mirror the original's well-known constants.
type ChainId uint32

const (
	ChainEthereum ChainId = 1
	ChainOptimism ChainId = 10
	ChainBase     ChainId = 8453
	ChainPolygon  ChainId = 137
	ChainArbitrum ChainId = 42161
	ChainSepolia  ChainId = 11155111
)
