package container

import "time"

// ExpiryStatus is the human-facing projection of a disk's expiry block,
// ported from sigil-core's expiry.rs (supplemented feature: spec §4.2
// only gestures at a "status summary", this is its concrete shape).
type ExpiryStatus struct {
	DaysUntilExpiry         int64
	DaysUntilReconciliation int64
	UsesRemaining           uint32
	InWarningPeriod         bool
	InEmergencyReserve      bool
	IsBlocked               bool
	Message                 string
}

// Status projects the expiry block into an ExpiryStatus as of now, given
// the number of Fresh slots remaining.
func (e ExpiryBlock) Status(now time.Time, fresh uint32) ExpiryStatus {
	nowUnix := uint64(now.Unix())

	var s ExpiryStatus
	s.UsesRemaining = fresh

	if nowUnix >= e.ExpiresAt {
		s.DaysUntilExpiry = 0
	} else {
		s.DaysUntilExpiry = int64((e.ExpiresAt - nowUnix) / 86400)
	}
	if nowUnix >= e.ReconciliationDeadline {
		s.DaysUntilReconciliation = 0
	} else {
		s.DaysUntilReconciliation = int64((e.ReconciliationDeadline - nowUnix) / 86400)
	}

	warningCutoff := int64(WarningWindow / time.Hour / 24)
	s.InWarningPeriod = s.DaysUntilExpiry <= warningCutoff
	s.InEmergencyReserve = fresh <= EmergencyReserve
	s.IsBlocked = nowUnix >= e.ExpiresAt || nowUnix >= e.ReconciliationDeadline || fresh == 0

	switch {
	case nowUnix >= e.ExpiresAt:
		s.Message = "disk expired"
	case nowUnix >= e.ReconciliationDeadline:
		s.Message = "reconciliation deadline passed"
	case fresh == 0:
		s.Message = "no presignatures remaining"
	case s.InEmergencyReserve:
		s.Message = "emergency reserve: reconcile soon"
	case s.InWarningPeriod:
		s.Message = "approaching expiry: reconcile soon"
	default:
		s.Message = "healthy"
	}
	return s
}
