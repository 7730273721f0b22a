package registry

import (
	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/errs"
	"github.com/chippr-robotics/sigil/internal/primitives"
)

// Registry maps child_id -> ChildRegistryEntry. It is not itself
// persisted directly; the vault serializes it as part of the encrypted
// mother state (spec §4.5, §4.6).
type Registry struct {
	entries map[container.ChildId]*ChildRegistryEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[container.ChildId]*ChildRegistryEntry)}
}

func (r *Registry) Register(entry ChildRegistryEntry) error {
	if _, exists := r.entries[entry.ChildID]; exists {
		return errs.New(errs.KindInvalidArgument, "child %s already registered", entry.ChildID.Short())
	}
	cp := entry
	r.entries[entry.ChildID] = &cp
	return nil
}

func (r *Registry) Query(childID container.ChildId) (ChildRegistryEntry, error) {
	e, ok := r.entries[childID]
	if !ok {
		return ChildRegistryEntry{}, errs.New(errs.KindChildNotFound, "child %s not found", childID.Short())
	}
	return *e, nil
}

func (r *Registry) ListChildren() []container.ChildId {
	ids := make([]container.ChildId, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) transition(childID container.ChildId, to ChildStatus) error {
	e, ok := r.entries[childID]
	if !ok {
		return errs.New(errs.KindChildNotFound, "child %s not found", childID.Short())
	}
	if !e.Status.Kind.CanTransitionTo(to.Kind) {
		return errs.New(errs.KindBadTransition, "illegal transition %v -> %v for child %s", e.Status.Kind, to.Kind, childID.Short())
	}
	e.Status = to
	return nil
}

func (r *Registry) Suspend(childID container.ChildId) error {
	return r.transition(childID, ChildStatus{Kind: StatusSuspended})
}

func (r *Registry) Reactivate(childID container.ChildId) error {
	return r.transition(childID, ChildStatus{Kind: StatusActive})
}

// Nullify folds childID into acc, records the resulting nullifier
// commitment, and marks the registry entry Nullified (terminal, G9).
// The nullifier is the public anti-replay tag: SHA256(child_id ||
// timestamp_le || reason_short_desc), per spec §4.5.
func (r *Registry) Nullify(childID container.ChildId, reason NullificationReason, now uint64, lastValidPresigIndex uint32, acc *RsaAccumulator) (MembershipWitness, error) {
	e, ok := r.entries[childID]
	if !ok {
		return MembershipWitness{}, errs.New(errs.KindChildNotFound, "child %s not found", childID.Short())
	}
	to := ChildStatus{
		Kind:                 StatusNullified,
		NullificationReason:  reason,
		NullifiedAt:          now,
		LastValidPresigIndex: lastValidPresigIndex,
	}
	if !e.Status.Kind.CanTransitionTo(to.Kind) {
		return MembershipWitness{}, errs.New(errs.KindBadTransition, "child %s already nullified", childID.Short())
	}

	witness := acc.Nullify(childID)

	var tsLE [8]byte
	for i := 0; i < 8; i++ {
		tsLE[i] = byte(now >> (8 * i))
	}
	commitment := primitives.Hash256(childID[:], tsLE[:], []byte(reason.ShortDescription()))

	e.Status = to
	e.NullifierCommitment = &commitment

	return witness, nil
}

// MarkReconciled records a successful reconciliation/refill pass.
func (r *Registry) MarkReconciled(childID container.ChildId, now uint64) error {
	e, ok := r.entries[childID]
	if !ok {
		return errs.New(errs.KindChildNotFound, "child %s not found", childID.Short())
	}
	e.LastReconciliation = now
	e.RefillCount++
	return nil
}

// IncrementSignatures bumps total_signatures after a completed sign.
func (r *Registry) IncrementSignatures(childID container.ChildId) error {
	e, ok := r.entries[childID]
	if !ok {
		return errs.New(errs.KindChildNotFound, "child %s not found", childID.Short())
	}
	e.TotalSignatures++
	return nil
}
