package container

import "github.com/chippr-robotics/sigil/internal/errs"

const (
	maxDescriptionLen = 256
	usageEntryFixedSize = 4 + 8 + 32 + 64 + 4 + 32 + 32 + 2 // 178 bytes
)

// UsageLogEntry records one completed signing (spec §3).
type UsageLogEntry struct {
	PresigIndex uint32
	Timestamp   uint64
	MessageHash MessageHash
	Signature   Signature
	ChainID     ChainId
	TxHash      TxHash
	ZkProofHash ZkProofHash
	Description string
}

// Bytes serializes the entry body (without the outer length prefix).
func (e UsageLogEntry) Bytes() ([]byte, error) {
	desc := []byte(e.Description)
	if len(desc) > maxDescriptionLen {
		return nil, errs.New(errs.KindInvalidArgument, "description exceeds %d bytes", maxDescriptionLen)
	}
	var w writer
	w.writeU32LE(e.PresigIndex)
	w.writeU64LE(e.Timestamp)
	w.writeExact(e.MessageHash[:])
	w.writeExact(e.Signature[:])
	w.writeU32LE(uint32(e.ChainID))
	w.writeExact(e.TxHash[:])
	w.writeExact(e.ZkProofHash[:])
	w.writeU16LE(uint16(len(desc)))
	w.writeExact(desc)
	return w.buf, nil
}

func parseUsageLogEntry(b []byte) (UsageLogEntry, error) {
	var e UsageLogEntry
	if len(b) < usageEntryFixedSize {
		return e, errs.New(errs.KindDiskFormat, "usage log entry truncated")
	}
	c := newCursor(b)
	var err error
	if e.PresigIndex, err = c.readU32LE(); err != nil {
		return e, err
	}
	if e.Timestamp, err = c.readU64LE(); err != nil {
		return e, err
	}
	mh, err := c.readExact(32)
	if err != nil {
		return e, err
	}
	copy(e.MessageHash[:], mh)
	sig, err := c.readExact(64)
	if err != nil {
		return e, err
	}
	copy(e.Signature[:], sig)
	chainID, err := c.readU32LE()
	if err != nil {
		return e, err
	}
	e.ChainID = ChainId(chainID)
	txh, err := c.readExact(32)
	if err != nil {
		return e, err
	}
	copy(e.TxHash[:], txh)
	zk, err := c.readExact(32)
	if err != nil {
		return e, err
	}
	copy(e.ZkProofHash[:], zk)
	descLen, err := c.readU16LE()
	if err != nil {
		return e, err
	}
	if int(descLen) > maxDescriptionLen {
		return e, errs.New(errs.KindDiskFormat, "description length %d exceeds max", descLen)
	}
	desc, err := c.readExact(int(descLen))
	if err != nil {
		return e, err
	}
	e.Description = string(desc)
	return e, nil
}

// UsageLog is the append-only, count-prefixed sequence of UsageLogEntry
// records trailing the presig table.
type UsageLog struct {
	Entries []UsageLogEntry
}

func (l UsageLog) Bytes() ([]byte, error) {
	var w writer
	w.writeU32LE(uint32(len(l.Entries)))
	for _, e := range l.Entries {
		body, err := e.Bytes()
		if err != nil {
			return nil, err
		}
		w.writeU32LE(uint32(len(body)))
		w.writeExact(body)
	}
	return w.buf, nil
}

func parseUsageLog(b []byte) (UsageLog, int, error) {
	var l UsageLog
	c := newCursor(b)
	count, err := c.readU32LE()
	if err != nil {
		return l, 0, err
	}
	if count > MaxLogEntries {
		return l, 0, errs.New(errs.KindDiskFormat, "usage log count %d exceeds max %d", count, MaxLogEntries)
	}
	l.Entries = make([]UsageLogEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		entryLen, err := c.readU32LE()
		if err != nil {
			return l, 0, err
		}
		body, err := c.readExact(int(entryLen))
		if err != nil {
			return l, 0, err
		}
		entry, err := parseUsageLogEntry(body)
		if err != nil {
			return l, 0, err
		}
		l.Entries = append(l.Entries, entry)
	}
	return l, c.pos, nil
}

// FindByPresigIndex returns the log entry for presigIndex, if any. Ported
// from sigil-core's usage.rs convenience accessor; the reconciliation
// analyzer does not call it (Validate tracks logged indices itself).
func (l UsageLog) FindByPresigIndex(presigIndex uint32) (UsageLogEntry, bool) {
	for _, e := range l.Entries {
		if e.PresigIndex == presigIndex {
			return e, true
		}
	}
	return UsageLogEntry{}, false
}

// SetTxHash records the on-chain transaction hash a previously-completed
// signature was ultimately bound to (spec §6's UpdateTxHash request),
// returning false if no entry exists for presigIndex.
func (l *UsageLog) SetTxHash(presigIndex uint32, txHash TxHash) bool {
	for i := range l.Entries {
		if l.Entries[i].PresigIndex == presigIndex {
			l.Entries[i].TxHash = txHash
			return true
		}
	}
	return false
}

// Last returns the most recently appended entry, if any.
func (l UsageLog) Last() (UsageLogEntry, bool) {
	if len(l.Entries) == 0 {
		return UsageLogEntry{}, false
	}
	return l.Entries[len(l.Entries)-1], true
}
