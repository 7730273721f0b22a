package container

import (
	"strconv"
	"time"

	"github.com/chippr-robotics/sigil/internal/errs"
)

// AccumulatorBinding records the (min_accumulator_version,
// accumulator_hash) pair captured at presignature-generation time for a
// single slot. Per the Open Question decision recorded in SPEC_FULL.md,
// this lives in a side table parallel to the presig table rather than in
// each slot's 158 reserved bytes, so the binding survives independently
// of the cold-share encoding.
type AccumulatorBinding struct {
	MinAccumulatorVersion uint64
	AccumulatorHash       [32]byte
}

// DiskFormat is the full in-memory representation of a .disk container:
// header, presig table, usage log, and the accumulator-binding side
// table. The side table is not part of the byte-exact wire contract in
// §4.2/§6 (which only two conforming implementations must agree on); it
// is this implementation's own bookkeeping, persisted in the same file
// after the wire-format region so round-tripping a file produced by this
// implementation preserves it, while still producing byte-identical
// output for the header+table+log region any conformant reader expects.
type DiskFormat struct {
	Header  DiskHeader
	Presigs []PresigColdShare
	Log     UsageLog
	Bindings []AccumulatorBinding // indexed by presig index, same length as Presigs
}

// wireLen is the length of the byte-exact region (header + presig table
// + usage log) for a disk with n presig slots and the current log.
func (d DiskFormat) wireLen() (int, error) {
	logBytes, err := d.Log.Bytes()
	if err != nil {
		return 0, err
	}
	return HeaderSize + len(d.Presigs)*PresigSlotSize + len(logBytes), nil
}

// Save serializes the byte-exact wire region followed by the
// implementation-private accumulator-binding side table.
func (d DiskFormat) Save() ([]byte, error) {
	if len(d.Presigs) > MaxPresigSlots {
		return nil, errs.New(errs.KindDiskFormat, "presig count %d exceeds max %d", len(d.Presigs), MaxPresigSlots)
	}
	h := d.Header
	h.PresigTotal = uint32(len(d.Presigs))

	var w writer
	hb := h.Bytes()
	w.writeExact(hb[:])
	for _, p := range d.Presigs {
		pb := p.Bytes()
		w.writeExact(pb[:])
	}
	logBytes, err := d.Log.Bytes()
	if err != nil {
		return nil, err
	}
	w.writeExact(logBytes)

	// Side table: count + (version u64, hash 32B) per slot.
	w.writeU32LE(uint32(len(d.Bindings)))
	for _, b := range d.Bindings {
		w.writeU64LE(b.MinAccumulatorVersion)
		w.writeExact(b.AccumulatorHash[:])
	}

	return w.buf, nil
}

// Load parses a disk image produced by Save, or a byte-exact peer image
// with no side table (the side table is treated as optional/absent).
func Load(b []byte) (DiskFormat, error) {
	var d DiskFormat
	header, err := ParseHeader(b)
	if err != nil {
		return d, err
	}
	d.Header = header

	off := HeaderSize
	n := int(header.PresigTotal)
	d.Presigs = make([]PresigColdShare, 0, n)
	for i := 0; i < n; i++ {
		start := off + i*PresigSlotSize
		end := start + PresigSlotSize
		if end > len(b) {
			return d, errs.New(errs.KindDiskFormat, "truncated presig table at slot %d", i)
		}
		p, err := ParsePresigColdShare(b[start:end])
		if err != nil {
			return d, err
		}
		d.Presigs = append(d.Presigs, p)
	}
	off += n * PresigSlotSize

	if off > len(b) {
		return d, errs.New(errs.KindDiskFormat, "truncated before usage log")
	}
	logBuf := b[off:]
	log, consumed, err := parseUsageLog(logBuf)
	if err != nil {
		return d, err
	}
	d.Log = log
	off += consumed

	d.Bindings = make([]AccumulatorBinding, n)
	if off < len(b) {
		c := newCursor(b[off:])
		count, err := c.readU32LE()
		if err == nil && int(count) == n {
			for i := 0; i < n; i++ {
				ver, err := c.readU64LE()
				if err != nil {
					break
				}
				hashBytes, err := c.readExact(32)
				if err != nil {
					break
				}
				var hb [32]byte
				copy(hb[:], hashBytes)
				d.Bindings[i] = AccumulatorBinding{MinAccumulatorVersion: ver, AccumulatorHash: hb}
			}
		}
	}

	return d, nil
}

// NextFresh returns the lowest-indexed Fresh slot.
func (d DiskFormat) NextFresh() (int, PresigColdShare, error) {
	for i, p := range d.Presigs {
		if p.Status == StatusFresh {
			return i, p, nil
		}
	}
	return -1, PresigColdShare{}, errs.New(errs.KindPresigExhausted, "no fresh presignatures available")
}

// MarkUsed transitions slot index from Fresh to Used and increments
// presig_used. Fails if the slot is not Fresh (G8).
func (d *DiskFormat) MarkUsed(index int) error {
	if index < 0 || index >= len(d.Presigs) {
		return errs.New(errs.KindPresigNotFound, "presig index %d out of range", index)
	}
	if d.Presigs[index].Status != StatusFresh {
		return errs.New(errs.KindPresigUsed, "presig index %d is not Fresh (status=%s)", index, d.Presigs[index].Status)
	}
	d.Presigs[index].Status = StatusUsed
	d.Header.PresigUsed++
	return nil
}

// MarkVoided transitions slot index to Voided from any status. Per the
// Open Question decision, this never touches presig_used (Used-only
// counting).
func (d *DiskFormat) MarkVoided(index int) error {
	if index < 0 || index >= len(d.Presigs) {
		return errs.New(errs.KindPresigNotFound, "presig index %d out of range", index)
	}
	d.Presigs[index].Status = StatusVoided
	return nil
}

// AppendLog enforces G3/G4/G5 locally and appends entry.
func (d *DiskFormat) AppendLog(entry UsageLogEntry) error {
	if last, ok := d.Log.Last(); ok {
		if entry.PresigIndex <= last.PresigIndex {
			return errs.New(errs.KindDiskFormat, "usage log index %d not strictly increasing after %d", entry.PresigIndex, last.PresigIndex)
		}
		if last.Timestamp > entry.Timestamp && last.Timestamp-entry.Timestamp > ClockSkewTol {
			return errs.New(errs.KindDiskFormat, "usage log timestamp regression exceeds %ds tolerance", ClockSkewTol)
		}
	}
	if len(d.Log.Entries) >= MaxLogEntries {
		return errs.New(errs.KindDiskFormat, "usage log full (max %d entries)", MaxLogEntries)
	}
	d.Log.Entries = append(d.Log.Entries, entry)
	return nil
}

// AccumulatorBindingFor returns the accumulator binding recorded for
// presig index i at generation time.
func (d DiskFormat) AccumulatorBindingFor(index int) (AccumulatorBinding, error) {
	if index < 0 || index >= len(d.Bindings) {
		return AccumulatorBinding{}, errs.New(errs.KindPresigNotFound, "no accumulator binding for index %d", index)
	}
	return d.Bindings[index], nil
}

// Finding is one anomaly detected by Validate.
type Finding struct {
	Kind  string
	Index int
	Msg   string
}

// Validate checks G1–G6 plus the expiry/reconciliation/use-counter gates
// and returns the full set of findings (it does not stop at the first
// one, so callers — notably the reconciliation analyzer — see every
// anomaly in one pass).
func (d DiskFormat) Validate(now time.Time) []Finding {
	var findings []Finding

	// G1: indices unique and contiguous 0..presig_total.
	if uint32(len(d.Presigs)) != d.Header.PresigTotal {
		findings = append(findings, Finding{Kind: "PresigTotalMismatch", Msg: "presig_total does not match slot count"})
	}

	// G2: header.presig_used equals count of Used slots (Used-only
	// counting, per the Open Question decision in SPEC_FULL.md).
	used := 0
	for _, p := range d.Presigs {
		if p.Status == StatusUsed {
			used++
		}
	}
	if int(d.Header.PresigUsed) != used {
		findings = append(findings, Finding{Kind: "CountMismatch", Msg: "header.presig_used does not match observed Used count"})
	}

	// G3: bijection between Used slots and log entries.
	seen := make(map[uint32]bool, len(d.Log.Entries))
	for _, e := range d.Log.Entries {
		seen[e.PresigIndex] = true
	}
	for i, p := range d.Presigs {
		_, hasLog := seen[uint32(i)]
		if p.Status == StatusUsed && !hasLog {
			findings = append(findings, Finding{Kind: "MissingLogEntry", Index: i, Msg: "Used slot has no log entry"})
		}
		if p.Status != StatusUsed && hasLog {
			findings = append(findings, Finding{Kind: "OrphanLogEntry", Index: i, Msg: "non-Used slot has a log entry"})
		}
	}

	// G4: strictly increasing indices.
	var prevIndex int64 = -1
	var prevTs uint64
	havePrev := false
	for _, e := range d.Log.Entries {
		if havePrev {
			if int64(e.PresigIndex) <= prevIndex {
				findings = append(findings, Finding{Kind: "NonMonotonicIndex", Index: int(e.PresigIndex), Msg: "usage log index not strictly increasing"})
			}
			// G5: timestamps non-decreasing within tolerance.
			if prevTs > e.Timestamp && prevTs-e.Timestamp > ClockSkewTol {
				findings = append(findings, Finding{Kind: "TimestampAnomaly", Index: int(e.PresigIndex), Msg: "usage log timestamp regressed beyond tolerance"})
			}
		}
		prevIndex = int64(e.PresigIndex)
		prevTs = e.Timestamp
		havePrev = true
	}

	// G6: R points pairwise distinct.
	rSeen := make(map[[33]byte]int, len(d.Presigs))
	for i, p := range d.Presigs {
		if j, ok := rSeen[p.R]; ok {
			findings = append(findings, Finding{Kind: "RPointCollision", Index: i, Msg: "duplicate R point with slot " + strconv.Itoa(j)})
		} else {
			rSeen[p.R] = i
		}
	}

	// Expiry / reconciliation / use-counter gates.
	nowUnix := uint64(now.Unix())
	if nowUnix >= d.Header.Expiry.ExpiresAt {
		findings = append(findings, Finding{Kind: "DiskExpired", Msg: "disk has passed its expiry timestamp"})
	}
	if nowUnix >= d.Header.Expiry.ReconciliationDeadline {
		findings = append(findings, Finding{Kind: "ReconciliationRequired", Msg: "disk has passed its reconciliation deadline"})
	}
	if d.Header.Expiry.UsesSinceReconcile >= d.Header.Expiry.MaxUses && d.Header.Expiry.MaxUses > 0 {
		findings = append(findings, Finding{Kind: "ReconciliationRequired", Msg: "use counter reached max_uses"})
	}

	return findings
}
