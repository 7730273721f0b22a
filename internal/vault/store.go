package vault

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"math/big"
	"os"

	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/errs"
	"github.com/chippr-robotics/sigil/internal/registry"
	"golang.org/x/crypto/chacha20poly1305"
)

// MotherState is everything the vault encrypts at rest: the master
// shards, the child registry, the accumulator, and the running product
// of all nullified children's primes (needed to issue non-membership
// witnesses, spec §4.5).
type MotherState struct {
	MasterCold          [32]byte
	MasterAgent         [32]byte
	AccumulatorSigningKey [32]byte
	Registry            *registry.Registry
	Accumulator         *registry.RsaAccumulator
	AccumulatedExponent *big.Int
}

type childStateJSON struct {
	ChildIDHex             string   `json:"child_id"`
	DerivationPathHex      string   `json:"derivation_path"`
	StatusKind             byte     `json:"status_kind"`
	NullReasonKind         byte     `json:"null_reason_kind,omitempty"`
	NullReasonDetail       string   `json:"null_reason_detail,omitempty"`
	NullReasonIndices      []uint32 `json:"null_reason_indices,omitempty"`
	NullReasonWhen         uint64   `json:"null_reason_when,omitempty"`
	NullifiedAt            uint64   `json:"nullified_at,omitempty"`
	LastValidPresigIndex   uint32   `json:"last_valid_presig_index,omitempty"`
	CreatedAt              uint64   `json:"created_at"`
	LastReconciliation     uint64   `json:"last_reconciliation"`
	TotalSignatures        uint64   `json:"total_signatures"`
	RefillCount            uint32   `json:"refill_count"`
	NullifierCommitmentHex string   `json:"nullifier_commitment,omitempty"`
}

type motherStateJSON struct {
	MasterColdHex          string           `json:"master_cold"`
	MasterAgentHex         string           `json:"master_agent"`
	AccumulatorSigningKeyHex string         `json:"accumulator_signing_key"`
	AccumulatorNHex        string           `json:"accumulator_n"`
	AccumulatorGHex        string           `json:"accumulator_g"`
	AccumulatorValueHex    string           `json:"accumulator_value"`
	AccumulatorVersion     uint64           `json:"accumulator_version"`
	AccumulatedExponentHex string           `json:"accumulated_exponent"`
	Children               []childStateJSON `json:"children"`
}

// marshalState serializes MotherState to the JSON form that gets
// ChaCha20-Poly1305-encrypted.
func marshalState(s MotherState) ([]byte, error) {
	doc := motherStateJSON{
		MasterColdHex:          hex.EncodeToString(s.MasterCold[:]),
		MasterAgentHex:         hex.EncodeToString(s.MasterAgent[:]),
		AccumulatorSigningKeyHex: hex.EncodeToString(s.AccumulatorSigningKey[:]),
		AccumulatorNHex:        hex.EncodeToString(s.Accumulator.N.Bytes()),
		AccumulatorGHex:        hex.EncodeToString(s.Accumulator.G.Bytes()),
		AccumulatorValueHex:    hex.EncodeToString(s.Accumulator.Value.Bytes()),
		AccumulatorVersion:     s.Accumulator.Version,
		AccumulatedExponentHex: hex.EncodeToString(s.AccumulatedExponent.Bytes()),
	}
	for _, id := range s.Registry.ListChildren() {
		e, err := s.Registry.Query(id)
		if err != nil {
			return nil, err
		}
		path := e.DerivationPath.Bytes()
		c := childStateJSON{
			ChildIDHex:           e.ChildID.ToHex(),
			DerivationPathHex:    hex.EncodeToString(path[:]),
			StatusKind:           byte(e.Status.Kind),
			NullReasonKind:       byte(e.Status.NullificationReason.Kind),
			NullReasonDetail:     e.Status.NullificationReason.Detail,
			NullReasonIndices:    e.Status.NullificationReason.Indices,
			NullReasonWhen:       e.Status.NullificationReason.When,
			NullifiedAt:          e.Status.NullifiedAt,
			LastValidPresigIndex: e.Status.LastValidPresigIndex,
			CreatedAt:            e.CreatedAt,
			LastReconciliation:   e.LastReconciliation,
			TotalSignatures:      e.TotalSignatures,
			RefillCount:          e.RefillCount,
		}
		if e.NullifierCommitment != nil {
			c.NullifierCommitmentHex = hex.EncodeToString(e.NullifierCommitment[:])
		}
		doc.Children = append(doc.Children, c)
	}
	return json.Marshal(doc)
}

func unmarshalState(b []byte) (MotherState, error) {
	var doc motherStateJSON
	if err := json.Unmarshal(b, &doc); err != nil {
		return MotherState{}, errs.Wrap(errs.KindDiskFormat, err, "unmarshal mother state")
	}
	var s MotherState

	coldBytes, err := hex.DecodeString(doc.MasterColdHex)
	if err != nil || len(coldBytes) != 32 {
		return s, errs.New(errs.KindDiskFormat, "bad master_cold encoding")
	}
	copy(s.MasterCold[:], coldBytes)

	agentBytes, err := hex.DecodeString(doc.MasterAgentHex)
	if err != nil || len(agentBytes) != 32 {
		return s, errs.New(errs.KindDiskFormat, "bad master_agent encoding")
	}
	copy(s.MasterAgent[:], agentBytes)

	signingKeyBytes, err := hex.DecodeString(doc.AccumulatorSigningKeyHex)
	if err != nil || len(signingKeyBytes) != 32 {
		return s, errs.New(errs.KindDiskFormat, "bad accumulator_signing_key encoding")
	}
	copy(s.AccumulatorSigningKey[:], signingKeyBytes)

	n, err := decodeHexBig(doc.AccumulatorNHex)
	if err != nil {
		return s, err
	}
	g, err := decodeHexBig(doc.AccumulatorGHex)
	if err != nil {
		return s, err
	}
	value, err := decodeHexBig(doc.AccumulatorValueHex)
	if err != nil {
		return s, err
	}
	s.Accumulator = &registry.RsaAccumulator{N: n, G: g, Value: value, Version: doc.AccumulatorVersion}

	exp, err := decodeHexBig(doc.AccumulatedExponentHex)
	if err != nil {
		return s, err
	}
	s.AccumulatedExponent = exp

	s.Registry = registry.NewRegistry()
	for _, c := range doc.Children {
		childID, err := container.ChildIdFromHex(c.ChildIDHex)
		if err != nil {
			return s, err
		}
		pathBytes, err := hex.DecodeString(c.DerivationPathHex)
		if err != nil || len(pathBytes) != 32 {
			return s, errs.New(errs.KindDiskFormat, "bad derivation path encoding")
		}
		var pb [32]byte
		copy(pb[:], pathBytes)
		path, err := container.DerivationPathFromBytes(pb)
		if err != nil {
			return s, err
		}
		entry := registry.ChildRegistryEntry{
			ChildID:        childID,
			DerivationPath: path,
			Status: registry.ChildStatus{
				Kind: registry.StatusKind(c.StatusKind),
				NullificationReason: registry.NullificationReason{
					Kind:    registry.NullificationKind(c.NullReasonKind),
					Detail:  c.NullReasonDetail,
					Indices: c.NullReasonIndices,
					When:    c.NullReasonWhen,
				},
				NullifiedAt:          c.NullifiedAt,
				LastValidPresigIndex: c.LastValidPresigIndex,
			},
			CreatedAt:          c.CreatedAt,
			LastReconciliation: c.LastReconciliation,
			TotalSignatures:    c.TotalSignatures,
			RefillCount:        c.RefillCount,
		}
		if c.NullifierCommitmentHex != "" {
			commitBytes, err := hex.DecodeString(c.NullifierCommitmentHex)
			if err != nil || len(commitBytes) != 32 {
				return s, errs.New(errs.KindDiskFormat, "bad nullifier commitment encoding")
			}
			var commit [32]byte
			copy(commit[:], commitBytes)
			entry.NullifierCommitment = &commit
		}
		if err := s.Registry.Register(entry); err != nil {
			return s, err
		}
	}

	return s, nil
}

func decodeHexBig(s string) (*big.Int, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errs.Wrap(errs.KindDiskFormat, err, "decode hex big int")
	}
	return new(big.Int).SetBytes(b), nil
}

// EncryptState seals the serialized MotherState with
// ChaCha20-Poly1305(key), prefixing the random 12-byte nonce.
func EncryptState(s MotherState, key [32]byte) ([]byte, error) {
	plaintext, err := marshalState(s)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "init aead")
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "generate nonce")
	}
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, sealed...), nil
}

// DecryptState opens a blob produced by EncryptState.
func DecryptState(blob []byte, key [32]byte) (MotherState, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return MotherState{}, errs.Wrap(errs.KindIO, err, "init aead")
	}
	if len(blob) < aead.NonceSize() {
		return MotherState{}, errs.New(errs.KindInvalidArgument, "vault blob truncated")
	}
	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return MotherState{}, errs.New(errs.KindAuthFailed, "vault decryption failed: wrong key or corrupted file")
	}
	return unmarshalState(plaintext)
}

// SaveVaultFile and SaveAuthFile persist the two files described in
// spec §6: auth.json (PIN hash + Argon2 params + lockout counters),
// vault.enc (the ChaCha20-Poly1305 blob).

func SaveVaultFile(path string, blob []byte) error {
	return container.WriteAtomic(path, blob)
}

func LoadVaultFile(path string) ([]byte, error) {
	return container.ReadFile(path)
}

type authFileJSON struct {
	SaltHex             string       `json:"salt"`
	VerificationHashHex string       `json:"verification_hash"`
	Params              Argon2Params `json:"params"`
	FailedAttempts      uint32       `json:"failed_attempts"`
	LastFailedAttempt   uint64       `json:"last_failed_attempt"`
}

func SaveAuthFile(path string, rec *PinRecord) error {
	doc := authFileJSON{
		SaltHex:             hex.EncodeToString(rec.Salt[:]),
		VerificationHashHex: hex.EncodeToString(rec.VerificationHash[:]),
		Params:              rec.Params,
		FailedAttempts:      rec.FailedAttempts,
		LastFailedAttempt:   rec.LastFailedAttempt,
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindIO, err, "marshal auth file")
	}
	return container.WriteAtomic(path, b)
}

func LoadAuthFile(path string) (*PinRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "read auth file")
	}
	var doc authFileJSON
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, errs.Wrap(errs.KindDiskFormat, err, "unmarshal auth file")
	}
	rec := &PinRecord{
		Params:            doc.Params,
		FailedAttempts:    doc.FailedAttempts,
		LastFailedAttempt: doc.LastFailedAttempt,
	}
	saltBytes, err := hex.DecodeString(doc.SaltHex)
	if err != nil || len(saltBytes) != saltSize {
		return nil, errs.New(errs.KindDiskFormat, "bad salt encoding in auth file")
	}
	copy(rec.Salt[:], saltBytes)
	hashBytes, err := hex.DecodeString(doc.VerificationHashHex)
	if err != nil || len(hashBytes) != 32 {
		return nil, errs.New(errs.KindDiskFormat, "bad verification hash encoding in auth file")
	}
	copy(rec.VerificationHash[:], hashBytes)
	return rec, nil
}
