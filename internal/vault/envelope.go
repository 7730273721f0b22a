package vault

import (
	"crypto/rand"
	"encoding/binary"
	"io"

	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/errs"
	"github.com/chippr-robotics/sigil/internal/primitives"
	"golang.org/x/crypto/chacha20poly1305"
)

// Envelope is the passcode-protected container a fresh agent-share batch
// travels in from the mother to the daemon (spec §4.6's refill-ceremony
// step 5: "emit the new agent-half batch ... via the agent-shard
// encryption envelope"). It is meant to survive an out-of-band transfer
// (paper, QR code) so it carries its own salt and nonce rather than
// relying on session state.
type Envelope struct {
	ChildID container.ChildId
	Salt    [saltSize]byte
	Nonce   [chacha20poly1305.NonceSize]byte
	Sealed  []byte
}

const envelopeInfo = "sigil/envelope/v1"

func envelopeKey(passcode string, salt []byte) ([32]byte, error) {
	params := DefaultArgon2Params()
	return deriveArgon2(passcode, salt, params), nil
}

// SealEnvelope encrypts a presig batch's agent-half shares under a key
// derived from passcode, for out-of-band transfer to the daemon.
func SealEnvelope(childID container.ChildId, shares []container.PresigAgentShare, passcode string) (Envelope, error) {
	if passcode == "" {
		return Envelope{}, errs.New(errs.KindInvalidArgument, "envelope passcode must not be empty")
	}

	var salt [saltSize]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return Envelope{}, errs.Wrap(errs.KindIO, err, "generate envelope salt")
	}
	key, err := envelopeKey(passcode, salt[:])
	if err != nil {
		return Envelope{}, err
	}
	defer primitives.Zero(key[:])

	plaintext := encodeAgentShares(shares)
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return Envelope{}, errs.Wrap(errs.KindIO, err, "init aead")
	}
	var nonce [chacha20poly1305.NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return Envelope{}, errs.Wrap(errs.KindIO, err, "generate envelope nonce")
	}
	sealed := aead.Seal(nil, nonce[:], plaintext, childID[:])

	return Envelope{ChildID: childID, Salt: salt, Nonce: nonce, Sealed: sealed}, nil
}

// OpenEnvelope recovers the agent-half shares, authenticated against the
// envelope's child id as associated data so a daemon can't silently
// apply one child's batch to another.
func OpenEnvelope(env Envelope, passcode string) ([]container.PresigAgentShare, error) {
	key, err := envelopeKey(passcode, env.Salt[:])
	if err != nil {
		return nil, err
	}
	defer primitives.Zero(key[:])

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "init aead")
	}
	plaintext, err := aead.Open(nil, env.Nonce[:], env.Sealed, env.ChildID[:])
	if err != nil {
		return nil, errs.New(errs.KindAuthFailed, "envelope decryption failed: wrong passcode or tampered envelope")
	}
	return decodeAgentShares(plaintext)
}

const agentShareWire = 33 + 32 + 32

func encodeAgentShares(shares []container.PresigAgentShare) []byte {
	out := make([]byte, 4+len(shares)*agentShareWire)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(shares)))
	off := 4
	for _, s := range shares {
		copy(out[off:], s.R[:])
		off += 33
		copy(out[off:], s.KAgent[:])
		off += 32
		copy(out[off:], s.ChiAgent[:])
		off += 32
	}
	return out
}

func decodeAgentShares(b []byte) ([]container.PresigAgentShare, error) {
	if len(b) < 4 {
		return nil, errs.New(errs.KindDiskFormat, "agent share batch truncated")
	}
	count := binary.LittleEndian.Uint32(b[0:4])
	want := 4 + int(count)*agentShareWire
	if len(b) != want {
		return nil, errs.New(errs.KindDiskFormat, "agent share batch length mismatch: want %d got %d", want, len(b))
	}
	shares := make([]container.PresigAgentShare, count)
	off := 4
	for i := range shares {
		copy(shares[i].R[:], b[off:off+33])
		off += 33
		copy(shares[i].KAgent[:], b[off:off+32])
		off += 32
		copy(shares[i].ChiAgent[:], b[off:off+32])
		off += 32
	}
	return shares, nil
}
