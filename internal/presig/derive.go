package presig

import (
	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/primitives"
)

const deriveSalt = "sigil/derive"

// DeriveChildShares implements spec §4.3's child derivation:
// k_c_cold = HKDF(k_m_cold, "sigil/derive" || p), likewise for agent;
// child_pub = [k_c_cold + k_c_agent]*G; child_id = SHA256(child_pub).
func DeriveChildShares(master MasterShards, path container.DerivationPath) (ChildShares, error) {
	coldEnc := primitives.EncodeScalar(&master.Cold)
	agentEnc := primitives.EncodeScalar(&master.Agent)
	defer primitives.Zero(coldEnc[:])
	defer primitives.Zero(agentEnc[:])

	info := path.Info()

	cold, err := primitives.DeriveScalar(coldEnc[:], []byte(deriveSalt), info)
	if err != nil {
		return ChildShares{}, err
	}
	agent, err := primitives.DeriveScalar(agentEnc[:], []byte(deriveSalt), info)
	if err != nil {
		return ChildShares{}, err
	}

	dChild := primitives.AddScalars(&cold, &agent)
	pub := primitives.ScalarBaseMult(&dChild)
	pubEnc := primitives.EncodePoint(pub)
	childID := primitives.Hash256(pubEnc[:])

	return ChildShares{
		Cold:    cold,
		Agent:   agent,
		Pub:     pub,
		ChildID: container.ChildId(childID),
	}, nil
}
