// Package vault implements C6: the encrypted-at-rest mother state, PIN
// authentication with progressive lockout, session timeouts, and the
// reconciliation analyzer/refill ceremony.
package vault

import (
	"crypto/rand"
	"crypto/subtle"
	"io"
	"unicode"

	"github.com/chippr-robotics/sigil/internal/errs"
	"github.com/chippr-robotics/sigil/internal/primitives"
	"golang.org/x/crypto/argon2"
)

const (
	MinPinLength = 6
	MaxPinLength = 12
	saltSize     = 32
)

// Argon2Params mirrors the PHC "interactive" profile the original
// mother-tui defaults to: >=64 MiB, t=2, p=1 (spec §4.6).
type Argon2Params struct {
	TimeCost    uint32
	MemoryKiB   uint32
	Parallelism uint8
}

func DefaultArgon2Params() Argon2Params {
	return Argon2Params{TimeCost: 2, MemoryKiB: 64 * 1024, Parallelism: 1}
}

// PinRecord is the persisted auth.json payload (spec §6): salt, a
// verification hash of the PIN, the Argon2 parameters used, and the
// progressive-lockout bookkeeping (Vault.Unlock in internal/vault/vault.go
// reads the latter two fields directly).
type PinRecord struct {
	Salt              [saltSize]byte
	VerificationHash  [32]byte
	Params            Argon2Params
	FailedAttempts    uint32
	LastFailedAttempt uint64
}

func validatePinFormat(pin string) error {
	if len(pin) < MinPinLength || len(pin) > MaxPinLength {
		return errs.New(errs.KindInvalidArgument, "pin must be %d-%d digits, got length %d", MinPinLength, MaxPinLength, len(pin))
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return errs.New(errs.KindInvalidArgument, "pin must contain only digits")
		}
	}
	return nil
}

// verificationSalt and vaultKeySalt derive two independent Argon2 salts
// from the single persisted salt, so the verification hash stored in
// auth.json never equals the key used to decrypt vault.enc even though
// both come from the same PIN and on-disk salt.
func verificationSalt(salt [saltSize]byte) []byte {
	h := primitives.Hash256(salt[:], []byte("sigil/auth/verify"))
	return h[:]
}

func vaultKeySalt(salt [saltSize]byte) []byte {
	h := primitives.Hash256(salt[:], []byte("sigil/auth/vaultkey"))
	return h[:]
}

// SetupPin validates and initializes a new PinRecord for pin, returning
// the record to persist and the derived vault key K.
func SetupPin(pin string) (*PinRecord, [32]byte, error) {
	var key [32]byte
	if err := validatePinFormat(pin); err != nil {
		return nil, key, err
	}
	var salt [saltSize]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return nil, key, errs.Wrap(errs.KindIO, err, "generate pin salt")
	}
	params := DefaultArgon2Params()
	rec := &PinRecord{Salt: salt, Params: params}
	rec.VerificationHash = deriveArgon2(pin, verificationSalt(salt), params)
	key = deriveArgon2(pin, vaultKeySalt(salt), params)
	return rec, key, nil
}

// VerifyPin recomputes the verification hash and compares it in
// constant time, returning the derived vault key K on success.
func VerifyPin(rec *PinRecord, pin string) (ok bool, key [32]byte) {
	if validatePinFormat(pin) != nil {
		return false, key
	}
	candidate := deriveArgon2(pin, verificationSalt(rec.Salt), rec.Params)
	if subtle.ConstantTimeCompare(candidate[:], rec.VerificationHash[:]) != 1 {
		return false, key
	}
	return true, deriveArgon2(pin, vaultKeySalt(rec.Salt), rec.Params)
}

func deriveArgon2(pin string, salt []byte, params Argon2Params) [32]byte {
	out := argon2.IDKey([]byte(pin), salt, params.TimeCost, params.MemoryKiB, params.Parallelism, 32)
	var fixed [32]byte
	copy(fixed[:], out)
	return fixed
}
