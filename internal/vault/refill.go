package vault

import (
	"context"
	"time"

	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/errs"
	"github.com/chippr-robotics/sigil/internal/primitives"
	"github.com/chippr-robotics/sigil/internal/presig"
	"github.com/chippr-robotics/sigil/internal/registry"
)

const (
	PresigValidityDays        = 30
	ReconciliationDeadlineDays = 45
)

// RefillResult carries the rewritten disk plus the fresh agent-share
// batch to hand off through the agent-shard envelope.
type RefillResult struct {
	Disk        container.DiskFormat
	AgentShares []container.PresigAgentShare
}

// Refill implements spec §4.6's refill ceremony. It must only be called
// after a passed Analysis on an Active child (callers are expected to
// check Analysis.Recommendation.Refill first; Refill itself
// re-validates both conditions).
func Refill(ctx context.Context, state *MotherState, disk container.DiskFormat, analysis Analysis, n int, now time.Time) (RefillResult, error) {
	if !analysis.Passed {
		return RefillResult{}, errs.New(errs.KindReconcileFailed, "refill requires a passed reconciliation analysis")
	}

	entry, err := state.Registry.Query(disk.Header.ChildID)
	if err != nil {
		return RefillResult{}, err
	}
	if entry.Status.Kind != registry.StatusActive {
		return RefillResult{}, errs.New(errs.KindChildSuspended, "refill requires an Active child, got %v", entry.Status.Kind)
	}

	childShares, err := rederiveChildShares(state.MasterCold, state.MasterAgent, entry.DerivationPath)
	if err != nil {
		return RefillResult{}, err
	}
	if childShares.ChildID != disk.Header.ChildID {
		return RefillResult{}, errs.New(errs.KindDiskFormat, "derivation path does not reproduce disk's child id")
	}

	accHash := accumulatorDigest(state.Accumulator)
	batch, err := presig.GenerateBatch(ctx, n, childShares, state.Accumulator.Version, accHash)
	if err != nil {
		return RefillResult{}, err
	}

	newHeader := disk.Header
	newHeader.PresigTotal = uint32(n)
	newHeader.PresigUsed = 0
	newHeader.Expiry.ExpiresAt = uint64(now.Unix()) + PresigValidityDays*86400
	newHeader.Expiry.ReconciliationDeadline = uint64(now.Unix()) + ReconciliationDeadlineDays*86400
	newHeader.Expiry.UsesSinceReconcile = 0

	newDisk := container.DiskFormat{
		Header:   newHeader,
		Presigs:  batch.ColdShares,
		Log:      container.UsageLog{},
		Bindings: batch.Bindings,
	}

	if err := state.Registry.MarkReconciled(disk.Header.ChildID, uint64(now.Unix())); err != nil {
		return RefillResult{}, err
	}

	return RefillResult{Disk: newDisk, AgentShares: batch.AgentShares}, nil
}

func rederiveChildShares(masterCold, masterAgent [32]byte, path container.DerivationPath) (presig.ChildShares, error) {
	coldScalar, err := primitives.DecodeScalar(masterCold[:])
	if err != nil {
		return presig.ChildShares{}, err
	}
	agentScalar, err := primitives.DecodeScalar(masterAgent[:])
	if err != nil {
		return presig.ChildShares{}, err
	}
	return presig.DeriveChildShares(presig.MasterShards{Cold: coldScalar, Agent: agentScalar}, path)
}

// accumulatorDigest binds a presig batch to the accumulator's current
// value the same way a slot's AccumulatorBinding does (the side table in
// internal/container/diskformat.go): SHA-256 over (N, value, version).
func accumulatorDigest(acc *registry.RsaAccumulator) [32]byte {
	return primitives.Hash256(acc.N.Bytes(), acc.Value.Bytes(), uint64LE(acc.Version))
}

func uint64LE(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}
