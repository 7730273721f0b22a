package container

import "github.com/chippr-robotics/sigil/internal/errs"

// PresigStatus is the per-slot lifecycle state (spec §3/G8).
type PresigStatus byte

const (
	StatusFresh  PresigStatus = 0
	StatusUsed   PresigStatus = 1
	StatusVoided PresigStatus = 2
)

func (s PresigStatus) String() string {
	switch s {
	case StatusFresh:
		return "Fresh"
	case StatusUsed:
		return "Used"
	case StatusVoided:
		return "Voided"
	default:
		return "Unknown"
	}
}

const presigReserved = PresigSlotSize - 33 - 32 - 32 - 1 // 158 bytes

// PresigColdShare is the 256-byte on-disk presignature slot.
type PresigColdShare struct {
	R        [33]byte
	KCold    [32]byte
	ChiCold  [32]byte
	Status   PresigStatus
}

func (p PresigColdShare) Bytes() [PresigSlotSize]byte {
	var out [PresigSlotSize]byte
	var w writer
	w.writeExact(p.R[:])
	w.writeExact(p.KCold[:])
	w.writeExact(p.ChiCold[:])
	w.writeU8(byte(p.Status))
	w.writeZeroPad(presigReserved)
	copy(out[:], w.buf)
	return out
}

func ParsePresigColdShare(b []byte) (PresigColdShare, error) {
	var p PresigColdShare
	if len(b) != PresigSlotSize {
		return p, errs.New(errs.KindDiskFormat, "presig slot must be %d bytes, got %d", PresigSlotSize, len(b))
	}
	c := newCursor(b)
	r, err := c.readExact(33)
	if err != nil {
		return p, err
	}
	copy(p.R[:], r)
	kc, err := c.readExact(32)
	if err != nil {
		return p, err
	}
	copy(p.KCold[:], kc)
	chi, err := c.readExact(32)
	if err != nil {
		return p, err
	}
	copy(p.ChiCold[:], chi)
	status, err := c.readU8()
	if err != nil {
		return p, err
	}
	p.Status = PresigStatus(status)
	return p, nil
}

// PresigAgentShare is the daemon-side counterpart to PresigColdShare; it
// is never written to the disk image (spec §3).
type PresigAgentShare struct {
	R       [33]byte
	KAgent  [32]byte
	ChiAgent [32]byte
}
