package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/chippr-robotics/sigil/internal/container"
)

// smallRSABits keeps trusted-setup fast in tests; production use goes
// through --rsa-bits 2048.
const smallRSABits = 64

func TestCmdInitThenStatusReportsEmptyRegistry(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vault")
	if err := cmdInit(dir, "135792", smallRSABits); err != nil {
		t.Fatalf("init: %v", err)
	}
	report, err := cmdStatus(dir, "135792")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if report.ChildCount != 0 {
		t.Fatalf("expected 0 children on a fresh vault, got %d", report.ChildCount)
	}
	if report.AccumulatorVersion != 0 {
		t.Fatalf("expected initial accumulator version 0, got %d", report.AccumulatorVersion)
	}
}

func TestCmdInitRejectsWrongPinOnStatus(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vault")
	if err := cmdInit(dir, "135792", smallRSABits); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := cmdStatus(dir, "000000"); err == nil {
		t.Fatalf("expected status to fail with the wrong pin")
	}
}

func TestCmdCreateChildWritesDiskAndEnvelope(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "vault")
	if err := cmdInit(dir, "135792", smallRSABits); err != nil {
		t.Fatalf("init: %v", err)
	}

	diskOut := filepath.Join(root, "child.disk")
	envelopeOut := filepath.Join(root, "child.envelope.json")
	childID, err := cmdCreateChild(dir, "135792", 0, 4, diskOut, envelopeOut, "secretpass")
	if err != nil {
		t.Fatalf("create-child: %v", err)
	}
	if childID == (container.ChildId{}) {
		t.Fatalf("expected a non-zero child id")
	}

	diskBytes, err := os.ReadFile(diskOut)
	if err != nil {
		t.Fatalf("read disk: %v", err)
	}
	disk, err := container.Load(diskBytes)
	if err != nil {
		t.Fatalf("load disk: %v", err)
	}
	if disk.Header.ChildID != childID {
		t.Fatalf("disk header child id mismatch")
	}
	if len(disk.Presigs) != 4 {
		t.Fatalf("expected 4 presig slots, got %d", len(disk.Presigs))
	}

	envBytes, err := os.ReadFile(envelopeOut)
	if err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	var doc envelopeDoc
	if err := json.Unmarshal(envBytes, &doc); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if doc.ChildIDHex != childID.ToHex() {
		t.Fatalf("envelope child id mismatch: want %s got %s", childID.ToHex(), doc.ChildIDHex)
	}

	report, err := cmdStatus(dir, "135792")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if report.ChildCount != 1 {
		t.Fatalf("expected 1 registered child, got %d", report.ChildCount)
	}
	if report.Children[0].Status != "active" {
		t.Fatalf("expected newly created child to be active, got %s", report.Children[0].Status)
	}
}

func TestCmdReconcileThenRefillRoundTrip(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "vault")
	if err := cmdInit(dir, "135792", smallRSABits); err != nil {
		t.Fatalf("init: %v", err)
	}
	diskPath := filepath.Join(root, "child.disk")
	envelopePath := filepath.Join(root, "child.envelope.json")
	if _, err := cmdCreateChild(dir, "135792", 0, 4, diskPath, envelopePath, "secretpass"); err != nil {
		t.Fatalf("create-child: %v", err)
	}

	analysis, err := cmdReconcile(dir, "135792", diskPath)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !analysis.Passed {
		t.Fatalf("expected a clean freshly created disk to pass reconciliation, findings: %v", analysis.Findings)
	}
	if !analysis.Recommendation.Refill {
		t.Fatalf("expected a refill recommendation on an unused disk")
	}

	refilledOut := filepath.Join(root, "child.refilled.disk")
	refilledEnvelope := filepath.Join(root, "child.refilled.envelope.json")
	if err := cmdRefill(dir, "135792", diskPath, refilledOut, refilledEnvelope, "secretpass2", 8); err != nil {
		t.Fatalf("refill: %v", err)
	}

	b, err := os.ReadFile(refilledOut)
	if err != nil {
		t.Fatalf("read refilled disk: %v", err)
	}
	disk, err := container.Load(b)
	if err != nil {
		t.Fatalf("load refilled disk: %v", err)
	}
	if len(disk.Presigs) != 8 {
		t.Fatalf("expected 8 fresh presigs after refill, got %d", len(disk.Presigs))
	}
	if disk.Header.PresigUsed != 0 {
		t.Fatalf("expected presig_used reset to 0 after refill, got %d", disk.Header.PresigUsed)
	}
}

func TestCmdNullifyTransitionsChildAndReturnsWitness(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "vault")
	if err := cmdInit(dir, "135792", smallRSABits); err != nil {
		t.Fatalf("init: %v", err)
	}
	diskPath := filepath.Join(root, "child.disk")
	envelopePath := filepath.Join(root, "child.envelope.json")
	childID, err := cmdCreateChild(dir, "135792", 0, 4, diskPath, envelopePath, "secretpass")
	if err != nil {
		t.Fatalf("create-child: %v", err)
	}

	witness, err := cmdNullify(dir, "135792", childID.ToHex(), "lost_or_stolen", "left on a train", 0)
	if err != nil {
		t.Fatalf("nullify: %v", err)
	}
	if witness.Prime == nil {
		t.Fatalf("expected a non-nil membership witness prime")
	}

	report, err := cmdStatus(dir, "135792")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if report.Children[0].Status != "nullified" {
		t.Fatalf("expected child to be nullified, got %s", report.Children[0].Status)
	}
}

func TestCmdNullifyRejectsUnknownReason(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "vault")
	if err := cmdInit(dir, "135792", smallRSABits); err != nil {
		t.Fatalf("init: %v", err)
	}
	diskPath := filepath.Join(root, "child.disk")
	envelopePath := filepath.Join(root, "child.envelope.json")
	childID, err := cmdCreateChild(dir, "135792", 0, 2, diskPath, envelopePath, "secretpass")
	if err != nil {
		t.Fatalf("create-child: %v", err)
	}
	if _, err := cmdNullify(dir, "135792", childID.ToHex(), "not_a_real_reason", "", 0); err == nil {
		t.Fatalf("expected an unknown nullification reason to be rejected")
	}
}

func TestCmdExportAccumulatorProducesVerifiableSnapshot(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "vault")
	if err := cmdInit(dir, "135792", smallRSABits); err != nil {
		t.Fatalf("init: %v", err)
	}
	out := filepath.Join(root, "accumulator.json")
	if err := cmdExportAccumulator(dir, "135792", out); err != nil {
		t.Fatalf("export-accumulator: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var doc accumulatorSnapshotDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if doc.PublicKeyHex == "" || doc.SignatureHex == "" {
		t.Fatalf("expected non-empty public key and signature hex")
	}
	if doc.Version != 0 {
		t.Fatalf("expected initial accumulator version 0, got %d", doc.Version)
	}
}
