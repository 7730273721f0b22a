package vault

import (
	"github.com/chippr-robotics/sigil/internal/primitives"
	"github.com/chippr-robotics/sigil/internal/registry"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// accumulatorSigningPrivateKey reconstructs the mother's fixed
// accumulator-signing keypair from the state's stored scalar.
func accumulatorSigningPrivateKey(state MotherState) (*secp256k1.PrivateKey, error) {
	scalar, err := primitives.DecodeScalar(state.AccumulatorSigningKey[:])
	if err != nil {
		return nil, err
	}
	return secp256k1.NewPrivateKey(&scalar), nil
}

// AccumulatorPublicKey returns the compressed public key daemons must be
// given, out of band, to verify future AccumulatorUpdate broadcasts
// (spec §4.5's mother-signed (A, version) distribution).
func AccumulatorPublicKey(state MotherState) ([33]byte, error) {
	priv, err := accumulatorSigningPrivateKey(state)
	if err != nil {
		return [33]byte{}, err
	}
	return primitives.EncodePoint(priv.PubKey()), nil
}

// SignAccumulatorSnapshot signs the vault's current accumulator
// (value, version) for distribution to daemons.
func SignAccumulatorSnapshot(state MotherState) (registry.AccumulatorUpdate, error) {
	priv, err := accumulatorSigningPrivateKey(state)
	if err != nil {
		return registry.AccumulatorUpdate{}, err
	}
	return registry.SignAccumulatorUpdate(priv, state.Accumulator.Value, state.Accumulator.Version), nil
}
