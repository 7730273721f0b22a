package vault

import (
	"context"
	"time"

	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/presig"
	"github.com/chippr-robotics/sigil/internal/primitives"
	"github.com/chippr-robotics/sigil/internal/registry"
)

// CreateChildResult carries a freshly provisioned child's initial disk
// image and the matching agent-share batch for out-of-band transfer to
// a daemon.
type CreateChildResult struct {
	ChildID     container.ChildId
	ChildPubkey [33]byte
	Disk        container.DiskFormat
	AgentShares []container.PresigAgentShare
}

// CreateChild derives a brand-new child at path, registers it Active in
// the registry, and generates its first presignature batch. It mirrors
// Refill's derive-then-generate shape for the case where no prior disk
// exists yet.
func CreateChild(ctx context.Context, state *MotherState, path container.DerivationPath, n int, now time.Time) (CreateChildResult, error) {
	childShares, err := rederiveChildShares(state.MasterCold, state.MasterAgent, path)
	if err != nil {
		return CreateChildResult{}, err
	}

	entry := registry.ChildRegistryEntry{
		ChildID:        childShares.ChildID,
		DerivationPath: path,
		Status:         registry.ChildStatus{Kind: registry.StatusActive},
		CreatedAt:      uint64(now.Unix()),
	}
	if err := state.Registry.Register(entry); err != nil {
		return CreateChildResult{}, err
	}

	accHash := accumulatorDigest(state.Accumulator)
	batch, err := presig.GenerateBatch(ctx, n, childShares, state.Accumulator.Version, accHash)
	if err != nil {
		return CreateChildResult{}, err
	}

	childPubkey := primitives.EncodePoint(childShares.Pub)

	header := container.DiskHeader{
		Version:     container.FormatVersion,
		ChildID:     childShares.ChildID,
		ChildPubkey: childPubkey,
		DerivationPath: path,
		PresigTotal: uint32(n),
		PresigUsed:  0,
		Expiry: container.ExpiryBlock{
			ExpiresAt:              uint64(now.Unix()) + PresigValidityDays*86400,
			ReconciliationDeadline: uint64(now.Unix()) + ReconciliationDeadlineDays*86400,
		},
		CreatedAt: uint64(now.Unix()),
	}

	disk := container.DiskFormat{
		Header:   header,
		Presigs:  batch.ColdShares,
		Log:      container.UsageLog{},
		Bindings: batch.Bindings,
	}

	return CreateChildResult{
		ChildID:     childShares.ChildID,
		ChildPubkey: childPubkey,
		Disk:        disk,
		AgentShares: batch.AgentShares,
	}, nil
}
