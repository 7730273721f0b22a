package primitives

import (
	"crypto/sha256"
	"io"

	"github.com/chippr-robotics/sigil/internal/errs"
	"golang.org/x/crypto/hkdf"
)

// DeriveKey runs HKDF-SHA256 over secret with the given salt and info,
// producing n output bytes. Used for child-share derivation in C3
// (HKDF(master_shard, "sigil/derive" || path)) the same way the pack's
// MPC reference implementation derives KEM sub-keys.
func DeriveKey(secret, salt, info []byte, n int) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, info)
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "hkdf derive")
	}
	return out, nil
}

// DeriveScalar derives a single scalar via HKDF, rejecting the
// negligible-probability zero/overflow outcome by re-deriving with a
// bumped counter appended to info.
func DeriveScalar(secret, salt, info []byte) (Scalar, error) {
	var s Scalar
	for counter := byte(0); counter < 8; counter++ {
		out, err := DeriveKey(secret, salt, append(append([]byte{}, info...), counter), 32)
		if err != nil {
			return s, err
		}
		overflow := s.SetByteSlice(out)
		if !overflow && !s.IsZero() {
			return s, nil
		}
	}
	return s, errs.New(errs.KindIO, "derive scalar: exhausted retries")
}
