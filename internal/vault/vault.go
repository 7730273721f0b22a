package vault

import (
	"math/big"
	"path/filepath"
	"time"

	"github.com/chippr-robotics/sigil/internal/errs"
	"github.com/chippr-robotics/sigil/internal/primitives"
	"github.com/chippr-robotics/sigil/internal/registry"
)

// Vault orchestrates the two persisted files (auth.json, vault.enc)
// described in spec §6 and gates every secret-touching operation behind
// a Session.
type Vault struct {
	dir      string
	policy   LockoutPolicy
	session  *Session
}

func authPath(dir string) string  { return filepath.Join(dir, "auth.json") }
func vaultPath(dir string) string { return filepath.Join(dir, "vault.enc") }

// New returns a Vault rooted at dir using the default lockout policy.
func New(dir string) *Vault {
	return &Vault{dir: dir, policy: DefaultLockoutPolicy()}
}

func (v *Vault) WithLockoutPolicy(p LockoutPolicy) *Vault {
	v.policy = p
	return v
}

// IsSetUp reports whether auth.json already exists.
func (v *Vault) IsSetUp() bool {
	_, err := LoadAuthFile(authPath(v.dir))
	return err == nil
}

// Init performs first-time PIN setup and writes a fresh, empty mother
// state (new random master shards, empty registry, accumulator seeded
// from the supplied trusted-setup modulus/generator). Fails if already
// set up.
func (v *Vault) Init(pin string, accumulatorN, accumulatorG *big.Int, now time.Time) error {
	if v.IsSetUp() {
		return errs.New(errs.KindInvalidArgument, "vault already initialized")
	}
	rec, key, err := SetupPin(pin)
	if err != nil {
		return err
	}
	defer primitives.Zero(key[:])

	cold, err := primitives.RandScalarDefault()
	if err != nil {
		return err
	}
	agent, err := primitives.RandScalarDefault()
	if err != nil {
		return err
	}
	signingKey, err := primitives.RandScalarDefault()
	if err != nil {
		return err
	}
	state := MotherState{
		MasterCold:            primitives.EncodeScalar(&cold),
		MasterAgent:           primitives.EncodeScalar(&agent),
		AccumulatorSigningKey: primitives.EncodeScalar(&signingKey),
		Registry:              registry.NewRegistry(),
		Accumulator:           registry.NewAccumulator(accumulatorN, accumulatorG),
		AccumulatedExponent:   big.NewInt(1),
	}

	blob, err := EncryptState(state, key)
	if err != nil {
		return err
	}
	if err := SaveAuthFile(authPath(v.dir), rec); err != nil {
		return err
	}
	if err := SaveVaultFile(vaultPath(v.dir), blob); err != nil {
		return err
	}
	_ = now
	return nil
}

// Unlock verifies pin against the persisted record, enforcing
// progressive lockout, and on success opens a Session over the
// decrypted state.
func (v *Vault) Unlock(pin string, now time.Time) error {
	rec, err := LoadAuthFile(authPath(v.dir))
	if err != nil {
		return errs.Wrap(errs.KindAuthFailed, err, "pin not set up")
	}

	if v.policy.IsLockedOut(rec.FailedAttempts) {
		lockDur, _ := v.policy.LockoutDuration(rec.FailedAttempts)
		elapsed := now.Sub(time.Unix(int64(rec.LastFailedAttempt), 0))
		if elapsed < lockDur {
			return errs.New(errs.KindAuthLockedOut, "locked out for %s", (lockDur - elapsed).Round(time.Second))
		}
	}

	ok, key, err := v.verifyPinAndUpdateCounters(rec, pin, now)
	if err != nil {
		return err
	}
	if !ok {
		return errs.New(errs.KindAuthFailed, "incorrect pin, %d attempts recorded", rec.FailedAttempts)
	}
	defer primitives.Zero(key[:])

	blob, err := LoadVaultFile(vaultPath(v.dir))
	if err != nil {
		return err
	}
	state, err := DecryptState(blob, key)
	if err != nil {
		return err
	}
	_ = state

	v.session = NewSession(key, now)
	return nil
}

func (v *Vault) verifyPinAndUpdateCounters(rec *PinRecord, pin string, now time.Time) (bool, [32]byte, error) {
	ok, key := VerifyPin(rec, pin)
	if ok {
		rec.FailedAttempts = 0
	} else {
		rec.FailedAttempts++
		rec.LastFailedAttempt = uint64(now.Unix())
	}
	if err := SaveAuthFile(authPath(v.dir), rec); err != nil {
		return false, key, err
	}
	return ok, key, nil
}

// Session returns the active session, or nil if the vault is locked.
func (v *Vault) Session() *Session { return v.session }

// Lock closes the active session, zeroizing its key.
func (v *Vault) Lock() {
	if v.session != nil {
		v.session.Close()
		v.session = nil
	}
}

// WithState loads the current MotherState (validating the session is
// live), calls fn, and persists any changes fn made back to vault.enc.
func (v *Vault) WithState(now time.Time, fn func(*MotherState) error) error {
	if v.session == nil {
		return errs.New(errs.KindSessionExpired, "vault is locked")
	}
	key, err := v.session.ValidateAndTouch(now)
	if err != nil {
		return err
	}

	blob, err := LoadVaultFile(vaultPath(v.dir))
	if err != nil {
		return err
	}
	state, err := DecryptState(blob, key)
	if err != nil {
		return err
	}

	if err := fn(&state); err != nil {
		return err
	}

	newBlob, err := EncryptState(state, key)
	if err != nil {
		return err
	}
	return SaveVaultFile(vaultPath(v.dir), newBlob)
}
