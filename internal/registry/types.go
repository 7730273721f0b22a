// Package registry implements C5: the child registry and the RSA
// accumulator used for revocation with O(1) non-membership witnesses.
package registry

import (
	"fmt"

	"github.com/chippr-robotics/sigil/internal/container"
)

// NullificationReason is the closed sum type explaining why a child was
// nullified, ported from sigil-core's child.rs (supplemented feature:
// the original's per-variant description strings feed the nullifier
// commitment hash input, spec §4.5's reason_short_desc).
type NullificationReason struct {
	Kind    NullificationKind
	Detail  string   // free-form description (ReconciliationAnomaly, CompromisedAgent, IntegrityFailure, PolicyViolation)
	Indices []uint32 // PresigMisuse
	When    uint64   // LostOrStolen
}

type NullificationKind byte

const (
	ReasonManualRevocation NullificationKind = iota
	ReasonReconciliationAnomaly
	ReasonPresigMisuse
	ReasonLostOrStolen
	ReasonCompromisedAgent
	ReasonIntegrityFailure
	ReasonPolicyViolation
)

// ShortDescription renders the short, stable form fed into the
// nullifier commitment hash (spec §4.5).
func (r NullificationReason) ShortDescription() string {
	switch r.Kind {
	case ReasonManualRevocation:
		return "manual_revocation"
	case ReasonReconciliationAnomaly:
		return "reconciliation_anomaly:" + r.Detail
	case ReasonPresigMisuse:
		return fmt.Sprintf("presig_misuse:%v", r.Indices)
	case ReasonLostOrStolen:
		return fmt.Sprintf("lost_or_stolen:%d", r.When)
	case ReasonCompromisedAgent:
		return "compromised_agent:" + r.Detail
	case ReasonIntegrityFailure:
		return "integrity_failure:" + r.Detail
	case ReasonPolicyViolation:
		return "policy_violation:" + r.Detail
	default:
		return "unknown"
	}
}

func (r NullificationReason) String() string { return r.ShortDescription() }

// ChildStatus is the tagged sum from spec §3: Active | Suspended |
// Nullified{reason, timestamp, last_valid_presig_index}.
type ChildStatus struct {
	Kind                  StatusKind
	NullificationReason   NullificationReason
	NullifiedAt           uint64
	LastValidPresigIndex  uint32
}

type StatusKind byte

const (
	StatusActive StatusKind = iota
	StatusSuspended
	StatusNullified
)

// CanTransitionTo enforces the legal-transition table from spec §3:
// Active -> {Active, Suspended, Nullified}; Suspended -> {Active,
// Nullified}; Nullified is terminal (G9).
func (from StatusKind) CanTransitionTo(to StatusKind) bool {
	switch from {
	case StatusActive:
		return to == StatusActive || to == StatusSuspended || to == StatusNullified
	case StatusSuspended:
		return to == StatusActive || to == StatusNullified
	case StatusNullified:
		return false
	default:
		return false
	}
}

// ChildRegistryEntry is the persisted per-child record (spec §3),
// living inside the mother vault's encrypted state.
type ChildRegistryEntry struct {
	ChildID             container.ChildId
	DerivationPath      container.DerivationPath
	Status              ChildStatus
	CreatedAt           uint64
	LastReconciliation  uint64
	TotalSignatures     uint64
	RefillCount         uint32
	NullifierCommitment *[32]byte
}
