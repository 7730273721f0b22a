package ipc

import (
	"context"
	"encoding/hex"
	"math/big"
	"time"

	"github.com/chippr-robotics/sigil/internal/agentstore"
	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/errs"
	"github.com/chippr-robotics/sigil/internal/primitives"
	"github.com/chippr-robotics/sigil/internal/registry"
	"github.com/chippr-robotics/sigil/internal/signing"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// DaemonVersion is the string reported by Ping, per spec §6.
const DaemonVersion = "sigil-daemon/0"

// SignTimeout is the default cancellation window from spec §5: on
// timeout the slot is left Fresh and the agent share survives.
const SignTimeout = 60 * time.Second

// Daemon holds the online half of spec §1's pairing: the currently
// inserted disk image (read/written by path — raw mount/format
// mechanics are out of scope per spec §1) and the per-slot agent-share
// store (internal/agentstore). Dispatch is the in-process reference
// form of the daemon IPC contract in spec §6; real framing
// (newline-delimited JSON over a socket) is a thin wrapper left to
// callers, per SPEC_FULL.md's repository layout.
type Daemon struct {
	DiskPath string
	Store    *agentstore.Store

	accumulatorPub *secp256k1.PublicKey
	accumulator    registry.RsaAccumulator
	nowFn          func() time.Time
}

// NewDaemon wires a Daemon over an already-open agent share store and
// the mother's accumulator signing public key (provisioned out of band,
// spec §4.5). The daemon starts holding accumulator version 0 until the
// first successful ImportAccumulator call.
func NewDaemon(diskPath string, store *agentstore.Store, accumulatorPub [33]byte) (*Daemon, error) {
	pub, err := primitives.DecodePoint(accumulatorPub[:])
	if err != nil {
		return nil, err
	}
	return &Daemon{
		DiskPath:       diskPath,
		Store:          store,
		accumulatorPub: pub,
		accumulator:    registry.RsaAccumulator{Value: big.NewInt(1), Version: 0},
		nowFn:          time.Now,
	}, nil
}

func (d *Daemon) now() time.Time {
	if d.nowFn != nil {
		return d.nowFn()
	}
	return time.Now()
}

// ImportAccumulator applies a mother-signed accumulator snapshot,
// enforcing the anti-rollback gate (spec §4.5): version must strictly
// increase and the signature must verify against the mother's known
// public key.
func (d *Daemon) ImportAccumulator(u registry.AccumulatorUpdate) error {
	return registry.ImportAccumulator(&d.accumulator, d.accumulatorPub, u)
}

// AccumulatorVersion reports the version currently held.
func (d *Daemon) AccumulatorVersion() uint64 { return d.accumulator.Version }

func (d *Daemon) loadDisk() (container.DiskFormat, error) {
	if d.DiskPath == "" {
		return container.DiskFormat{}, errs.New(errs.KindDiskFormat, "no disk inserted")
	}
	b, err := container.ReadFile(d.DiskPath)
	if err != nil {
		return container.DiskFormat{}, err
	}
	return container.Load(b)
}

func (d *Daemon) saveDisk(disk container.DiskFormat) error {
	b, err := disk.Save()
	if err != nil {
		return err
	}
	return container.WriteAtomic(d.DiskPath, b)
}

// Dispatch handles one Request and returns the corresponding Response,
// following the one-request-to-one-response contract of spec §6. It
// never panics: every failure mode becomes a Response with Err set.
func (d *Daemon) Dispatch(ctx context.Context, req Request) Response {
	switch req.Type {
	case TypePing:
		return Response{Pong: &PongResponse{Version: DaemonVersion}}
	case TypeGetDiskStatus:
		return d.handleGetDiskStatus()
	case TypeGetPresigCount:
		return d.handleGetPresigCount()
	case TypeSign:
		return d.handleSign(ctx, req.Sign)
	case TypeUpdateTxHash:
		return d.handleUpdateTxHash(req.UpdateTxHash)
	case TypeListChildren:
		return d.handleListChildren()
	case TypeImportAgentShard:
		return errResponse(errs.New(errs.KindInvalidArgument, "ImportAgentShard is provisioned out of band of Dispatch and is not handled here"))
	case TypeImportChildShares:
		return d.handleImportChildShares(req.ImportChildShares)
	default:
		return errResponse(errs.New(errs.KindInvalidArgument, "unknown request type %q", req.Type))
	}
}

func errResponse(err error) Response {
	kind := ""
	if e, ok := err.(*errs.Error); ok {
		kind = string(e.Kind)
	}
	return Response{Err: &ErrorResponse{Message: err.Error(), ErrorKind: kind}}
}

func ptrString(s string) *string { return &s }
func ptrU32(v uint32) *uint32    { return &v }
func ptrI64(v int64) *int64      { return &v }
func ptrBool(v bool) *bool       { return &v }

func (d *Daemon) handleGetDiskStatus() Response {
	disk, err := d.loadDisk()
	if err != nil {
		return Response{DiskStatus: &DiskStatus{Detected: false}}
	}
	fresh := 0
	for _, p := range disk.Presigs {
		if p.Status == container.StatusFresh {
			fresh++
		}
	}
	findings := disk.Validate(d.now())
	status := disk.Header.Expiry.Status(d.now(), uint32(fresh))
	return Response{DiskStatus: &DiskStatus{
		Detected:         true,
		ChildIDHex:       ptrString(disk.Header.ChildID.ToHex()),
		PresigsRemaining: ptrU32(uint32(fresh)),
		PresigsTotal:     ptrU32(disk.Header.PresigTotal),
		DaysUntilExpiry:  ptrI64(status.DaysUntilExpiry),
		IsValid:          ptrBool(len(findings) == 0),
	}}
}

func (d *Daemon) handleGetPresigCount() Response {
	disk, err := d.loadDisk()
	if err != nil {
		return errResponse(err)
	}
	fresh := 0
	for _, p := range disk.Presigs {
		if p.Status == container.StatusFresh {
			fresh++
		}
	}
	return Response{PresigCount: &PresigCount{Remaining: uint32(fresh), Total: disk.Header.PresigTotal}}
}

func (d *Daemon) handleSign(ctx context.Context, req *SignRequest) Response {
	if req == nil {
		return errResponse(errs.New(errs.KindInvalidArgument, "missing sign request body"))
	}
	ctx, cancel := context.WithTimeout(ctx, SignTimeout)
	defer cancel()
	msgHash, err := container.MessageHashFromHex(req.MessageHashHex)
	if err != nil {
		return errResponse(err)
	}

	disk, err := d.loadDisk()
	if err != nil {
		return errResponse(err)
	}

	index, coldShare, err := disk.NextFresh()
	if err != nil {
		return errResponse(err)
	}

	binding, err := disk.AccumulatorBindingFor(index)
	if err != nil {
		return errResponse(err)
	}
	if d.accumulator.Version < binding.MinAccumulatorVersion {
		return errResponse(errs.New(errs.KindAccumulatorStale, "accumulator rollback: have %d, required %d", d.accumulator.Version, binding.MinAccumulatorVersion))
	}

	select {
	case <-ctx.Done():
		return errResponse(errs.Wrap(errs.KindIO, ctx.Err(), "signing cancelled before agent share was consumed"))
	default:
	}

	agentShare, err := d.Store.TakeForSigning(disk.Header.ChildID, uint32(index))
	if err != nil {
		return errResponse(err)
	}
	// The agent share is put back unless the signed disk image is persisted.
	persisted := false
	defer func() {
		if !persisted {
			_ = d.Store.Put(disk.Header.ChildID, uint32(index), agentShare)
		}
	}()

	coldR, err := primitives.DecodePoint(coldShare.R[:])
	if err != nil {
		return errResponse(err)
	}
	coldKCold, err := primitives.DecodeScalar(coldShare.KCold[:])
	if err != nil {
		return errResponse(err)
	}
	coldChiCold, err := primitives.DecodeScalar(coldShare.ChiCold[:])
	if err != nil {
		return errResponse(err)
	}
	agentR, err := primitives.DecodePoint(agentShare.R[:])
	if err != nil {
		return errResponse(err)
	}
	agentKAgent, err := primitives.DecodeScalar(agentShare.KAgent[:])
	if err != nil {
		return errResponse(err)
	}
	agentChiAgent, err := primitives.DecodeScalar(agentShare.ChiAgent[:])
	if err != nil {
		return errResponse(err)
	}

	result, err := signing.Prove(disk.Header.ChildPubkey, msgHash, uint32(index),
		signing.ColdInput{R: *coldR, KCold: coldKCold, ChiCold: coldChiCold},
		signing.AgentInput{R: *agentR, KAgent: agentKAgent, ChiAgent: agentChiAgent},
	)
	if err != nil {
		return errResponse(err)
	}
	if ctx.Err() != nil {
		return errResponse(errs.Wrap(errs.KindIO, ctx.Err(), "signing timed out; slot left fresh"))
	}

	if err := disk.MarkUsed(index); err != nil {
		return errResponse(err)
	}
	entry := container.UsageLogEntry{
		PresigIndex: uint32(index),
		Timestamp:   uint64(d.now().Unix()),
		MessageHash: msgHash,
		Signature:   result.Signature,
		ChainID:     container.ChainId(req.ChainID),
		ZkProofHash: result.ProofHash,
		Description: req.Description,
	}
	if err := disk.AppendLog(entry); err != nil {
		return errResponse(err)
	}
	if err := d.saveDisk(disk); err != nil {
		return errResponse(err)
	}
	persisted = true

	return Response{SignResult: &SignResult{
		SignatureHex: result.Signature.ToHex(),
		PresigIndex:  uint32(index),
		ProofHashHex: result.ProofHash.ToHex(),
	}}
}

func (d *Daemon) handleUpdateTxHash(req *UpdateTxHashRequest) Response {
	if req == nil {
		return errResponse(errs.New(errs.KindInvalidArgument, "missing update_tx_hash request body"))
	}
	txHash, err := container.TxHashFromHex(req.TxHashHex)
	if err != nil {
		return errResponse(err)
	}
	disk, err := d.loadDisk()
	if err != nil {
		return errResponse(err)
	}
	if !disk.Log.SetTxHash(req.PresigIndex, txHash) {
		return errResponse(errs.New(errs.KindPresigNotFound, "no usage log entry for presig index %d", req.PresigIndex))
	}
	if err := d.saveDisk(disk); err != nil {
		return errResponse(err)
	}
	return Response{Ok: true}
}

func (d *Daemon) handleListChildren() Response {
	ids, err := d.Store.ListChildIDs()
	if err != nil {
		return errResponse(err)
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.ToHex()
	}
	return Response{Children: &ChildrenResult{ChildIDsHex: out}}
}

func (d *Daemon) handleImportChildShares(req *ImportChildSharesRequest) Response {
	if req == nil {
		return errResponse(errs.New(errs.KindInvalidArgument, "missing import_child_shares request body"))
	}
	childID, err := container.ChildIdFromHex(req.ChildIDHex)
	if err != nil {
		return errResponse(err)
	}
	shares := make([]container.PresigAgentShare, len(req.Shares))
	for i, s := range req.Shares {
		share, err := decodeAgentShareJSON(s)
		if err != nil {
			return errResponse(err)
		}
		shares[i] = share
	}
	if req.Replace {
		if err := d.Store.ImportBatch(childID, shares); err != nil {
			return errResponse(err)
		}
	} else {
		for i, share := range shares {
			if err := d.Store.Put(childID, uint32(i), share); err != nil {
				return errResponse(err)
			}
		}
	}
	return Response{Ok: true}
}

func decodeAgentShareJSON(s AgentShareJSON) (container.PresigAgentShare, error) {
	var share container.PresigAgentShare
	rBytes, err := decodeFixedHex(s.RHex, 33)
	if err != nil {
		return share, err
	}
	r, err := primitives.DecodePoint(rBytes)
	if err != nil {
		return share, err
	}
	share.R = primitives.EncodePoint(r)
	k, err := decodeFixedHex(s.KAgentHex, 32)
	if err != nil {
		return share, err
	}
	copy(share.KAgent[:], k)
	chi, err := decodeFixedHex(s.ChiAgentHex, 32)
	if err != nil {
		return share, err
	}
	copy(share.ChiAgent[:], chi)
	return share, nil
}

func decodeFixedHex(s string, n int) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidArgument, err, "decode hex")
	}
	if len(b) != n {
		return nil, errs.New(errs.KindInvalidArgument, "expected %d bytes hex, got %d", n, len(b))
	}
	return b, nil
}
