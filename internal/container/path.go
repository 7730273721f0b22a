package container

import "github.com/chippr-robotics/sigil/internal/errs"

const maxPathComponents = 5

// DerivationPath is a BIP-32-style path of up to 5 components, each
// optionally hardened. It serializes to exactly 32 bytes: a depth byte,
// 5 little-endian u32 components (hardened components have the top bit
// set, BIP-32 style), and 11 reserved bytes.
type DerivationPath struct {
	Depth      byte
	Components [maxPathComponents]uint32
}

const hardenedBit = uint32(1) << 31

// EthereumHardened builds the default BIP-44 Ethereum path
// m/44'/60'/account'/0'.
func EthereumHardened(account uint32) DerivationPath {
	return DerivationPath{
		Depth: 4,
		Components: [maxPathComponents]uint32{
			44 | hardenedBit,
			60 | hardenedBit,
			account | hardenedBit,
			0 | hardenedBit,
		},
	}
}

func (p DerivationPath) Bytes() [32]byte {
	var out [32]byte
	out[0] = p.Depth
	for i, c := range p.Components {
		off := 1 + i*4
		out[off] = byte(c)
		out[off+1] = byte(c >> 8)
		out[off+2] = byte(c >> 16)
		out[off+3] = byte(c >> 24)
	}
	return out
}

func DerivationPathFromBytes(b [32]byte) (DerivationPath, error) {
	var p DerivationPath
	p.Depth = b[0]
	if p.Depth > maxPathComponents {
		return p, errs.New(errs.KindDiskFormat, "derivation path depth %d exceeds max %d", p.Depth, maxPathComponents)
	}
	for i := 0; i < maxPathComponents; i++ {
		off := 1 + i*4
		p.Components[i] = uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
	}
	return p, nil
}

// Info encodes the derivation path as the domain-separation info used
// for HKDF child-share derivation, so the byte encoding (not a
// human-readable string) is what is bound into key material.
func (p DerivationPath) Info() []byte {
	b := p.Bytes()
	return b[:1+int(p.Depth)*4]
}
