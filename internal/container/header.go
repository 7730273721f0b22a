package container

import (
	"bytes"
	"time"

	"github.com/chippr-robotics/sigil/internal/errs"
)

const (
	DiskMagic        = "SIGILDSK"
	FormatVersion    = uint32(1)
	HeaderSize       = 512
	PresigSlotSize   = 256
	MaxPresigSlots   = 1000
	MaxLogEntries    = 5000
	WarningWindow    = 7 * 24 * time.Hour
	EmergencyReserve = 50
	ClockSkewTol     = 3600 // seconds, G5 tolerance

	headerReservedToSig = HeaderSize - 0x009D // reserved + mother_signature region
)

// ExpiryBlock is the 32-byte expiry/usage-counter block embedded in
// DiskHeader (spec §3): expires_at u64, reconciliation_deadline u64,
// max_uses u32, uses_since_reconcile u32, 8 bytes reserved.
type ExpiryBlock struct {
	ExpiresAt             uint64
	ReconciliationDeadline uint64
	MaxUses               uint32
	UsesSinceReconcile    uint32
}

func (e ExpiryBlock) bytes() [32]byte {
	var out [32]byte
	var w writer
	w.writeU64LE(e.ExpiresAt)
	w.writeU64LE(e.ReconciliationDeadline)
	w.writeU32LE(e.MaxUses)
	w.writeU32LE(e.UsesSinceReconcile)
	w.writeZeroPad(8)
	copy(out[:], w.buf)
	return out
}

func expiryBlockFromBytes(b []byte) (ExpiryBlock, error) {
	c := newCursor(b)
	var e ExpiryBlock
	var err error
	if e.ExpiresAt, err = c.readU64LE(); err != nil {
		return e, err
	}
	if e.ReconciliationDeadline, err = c.readU64LE(); err != nil {
		return e, err
	}
	if e.MaxUses, err = c.readU32LE(); err != nil {
		return e, err
	}
	if e.UsesSinceReconcile, err = c.readU32LE(); err != nil {
		return e, err
	}
	return e, nil
}

// DiskHeader is the fixed 512-byte header at offset 0 of a disk image.
type DiskHeader struct {
	Version        uint32
	ChildID        ChildId
	ChildPubkey    [33]byte
	DerivationPath DerivationPath
	PresigTotal    uint32
	PresigUsed     uint32
	Expiry         ExpiryBlock
	CreatedAt      uint64
	// MotherSignature occupies the reserved tail (spec §3: "mother
	// signature over header tail (reserved)"); zero-length until the
	// mother signs a header, which this core's scope does not require
	// beyond reserving the space.
	MotherSignature []byte
}

// Bytes serializes the header to exactly HeaderSize bytes, little-endian,
// with all reserved bytes zero-filled.
func (h DiskHeader) Bytes() [HeaderSize]byte {
	var out [HeaderSize]byte
	var w writer
	w.writeExact([]byte(DiskMagic))
	w.writeU32LE(h.Version)
	w.writeExact(h.ChildID[:])
	w.writeExact(h.ChildPubkey[:])
	pb := h.DerivationPath.Bytes()
	w.writeExact(pb[:])
	w.writeU32LE(h.PresigTotal)
	w.writeU32LE(h.PresigUsed)
	eb := h.Expiry.bytes()
	w.writeExact(eb[:])
	w.writeU64LE(h.CreatedAt)

	// MotherSignature is length-prefixed (u16 LE) within the reserved
	// tail rather than zero-trimmed on read, so a signature that happens
	// to end in a zero byte round-trips exactly.
	sig := h.MotherSignature
	maxSig := headerReservedToSig - 2
	if len(sig) > maxSig {
		sig = sig[:maxSig]
	}
	w.writeU16LE(uint16(len(sig)))
	w.writeExact(sig)
	w.writeZeroPad(headerReservedToSig - 2 - len(sig))

	copy(out[:], w.buf)
	return out
}

// ParseHeader parses the first HeaderSize bytes of b into a DiskHeader,
// validating magic and version.
func ParseHeader(b []byte) (DiskHeader, error) {
	var h DiskHeader
	if len(b) < HeaderSize {
		return h, errs.New(errs.KindDiskFormat, "disk image shorter than header (%d < %d)", len(b), HeaderSize)
	}
	c := newCursor(b[:HeaderSize])

	magic, err := c.readExact(8)
	if err != nil {
		return h, err
	}
	if !bytes.Equal(magic, []byte(DiskMagic)) {
		return h, errs.New(errs.KindDiskFormat, "bad magic %q", magic)
	}

	if h.Version, err = c.readU32LE(); err != nil {
		return h, err
	}
	if h.Version != FormatVersion {
		return h, errs.New(errs.KindDiskFormat, "unsupported version %d", h.Version)
	}

	childID, err := c.readExact(32)
	if err != nil {
		return h, err
	}
	copy(h.ChildID[:], childID)

	pubkey, err := c.readExact(33)
	if err != nil {
		return h, err
	}
	copy(h.ChildPubkey[:], pubkey)

	pathBytes, err := c.readExact(32)
	if err != nil {
		return h, err
	}
	var pb [32]byte
	copy(pb[:], pathBytes)
	if h.DerivationPath, err = DerivationPathFromBytes(pb); err != nil {
		return h, err
	}

	if h.PresigTotal, err = c.readU32LE(); err != nil {
		return h, err
	}
	if h.PresigTotal > MaxPresigSlots {
		return h, errs.New(errs.KindDiskFormat, "presig_total %d exceeds max %d", h.PresigTotal, MaxPresigSlots)
	}
	if h.PresigUsed, err = c.readU32LE(); err != nil {
		return h, err
	}

	expiryBytes, err := c.readExact(32)
	if err != nil {
		return h, err
	}
	if h.Expiry, err = expiryBlockFromBytes(expiryBytes); err != nil {
		return h, err
	}

	if h.CreatedAt, err = c.readU64LE(); err != nil {
		return h, err
	}

	sigLen, err := c.readU16LE()
	if err != nil {
		return h, err
	}
	maxSig := headerReservedToSig - 2
	if int(sigLen) > maxSig {
		return h, errs.New(errs.KindDiskFormat, "mother signature length %d exceeds reserved tail capacity %d", sigLen, maxSig)
	}
	sig, err := c.readExact(int(sigLen))
	if err != nil {
		return h, err
	}
	h.MotherSignature = append([]byte(nil), sig...)
	if _, err := c.readExact(maxSig - int(sigLen)); err != nil {
		return h, err
	}

	return h, nil
}
