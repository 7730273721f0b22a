// Package presig implements C3: child-share derivation and batch
// presignature generation.
package presig

import (
	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/primitives"
)

// MasterShards holds the mother's two long-lived master scalars. It is
// only ever held inside a vault Session (internal/vault); nothing in
// this package persists it.
type MasterShards struct {
	Cold  primitives.Scalar
	Agent primitives.Scalar
}

// MasterPub returns [cold+agent]*G.
func (m MasterShards) MasterPub() *primitives.Point {
	sum := primitives.AddScalars(&m.Cold, &m.Agent)
	return primitives.ScalarBaseMult(&sum)
}

// ChildShares holds the derived per-child scalars on both sides plus
// the resulting public identity.
type ChildShares struct {
	Cold    primitives.Scalar
	Agent   primitives.Scalar
	Pub     *primitives.Point
	ChildID container.ChildId
}

// Batch is the all-or-nothing output of GenerateBatch: paired cold/agent
// shares plus the accumulator binding recorded for every slot.
type Batch struct {
	ColdShares  []container.PresigColdShare
	AgentShares []container.PresigAgentShare
	Bindings    []container.AccumulatorBinding
}
