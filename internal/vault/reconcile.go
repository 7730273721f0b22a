package vault

import (
	"time"

	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/registry"
)

// SlotCounts tallies presig slots by status.
type SlotCounts struct {
	Fresh, Used, Voided int
}

// Recommendation is the analyzer's verdict.
type Recommendation struct {
	Refill  bool
	Nullify bool
	Reason  registry.NullificationReason
}

// Analysis is the reconciliation analyzer's output (spec §4.6).
type Analysis struct {
	Counts         SlotCounts
	Findings       []container.Finding
	Passed         bool
	Recommendation Recommendation
}

var reconciliationAnomalyKinds = map[string]bool{
	"CountMismatch":     true,
	"MissingLogEntry":   true,
	"OrphanLogEntry":    true,
	"NonMonotonicIndex": true,
	"TimestampAnomaly":  true,
}

// Analyze runs the reconciliation analyzer over a returned disk and the
// child's current registry status.
func Analyze(disk container.DiskFormat, childStatus registry.StatusKind, now time.Time) Analysis {
	var a Analysis
	for _, p := range disk.Presigs {
		switch p.Status {
		case container.StatusFresh:
			a.Counts.Fresh++
		case container.StatusUsed:
			a.Counts.Used++
		case container.StatusVoided:
			a.Counts.Voided++
		}
	}

	for _, f := range disk.Validate(now) {
		if reconciliationAnomalyKinds[f.Kind] {
			a.Findings = append(a.Findings, f)
		}
	}

	a.Passed = len(a.Findings) == 0

	if a.Passed && childStatus == registry.StatusActive {
		a.Recommendation = Recommendation{Refill: true}
	} else {
		a.Recommendation = Recommendation{
			Nullify: true,
			Reason:  registry.NullificationReason{Kind: registry.ReasonReconciliationAnomaly, Detail: summarizeFindings(a.Findings)},
		}
	}
	return a
}

func summarizeFindings(findings []container.Finding) string {
	if len(findings) == 0 {
		return "anomaly"
	}
	return findings[0].Kind
}
