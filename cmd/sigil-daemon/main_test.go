package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chippr-robotics/sigil/internal/agentstore"
	"github.com/chippr-robotics/sigil/internal/ipc"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// testAccumulatorPubkey returns a valid compressed secp256k1 public key
// for wiring a test Daemon; NewDaemon parses this and rejects
// off-curve byte strings.
func testAccumulatorPubkey() [33]byte {
	priv := secp256k1.PrivKeyFromBytes(bytes.Repeat([]byte{0x07}, 32))
	var out [33]byte
	copy(out[:], priv.PubKey().SerializeCompressed())
	return out
}

func TestValidateConfigRejectsBadPubkey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AccumulatorPubHex = "not-hex"
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected a bad accumulator pubkey to be rejected")
	}
}

func TestValidateConfigRejectsWrongLengthPubkey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AccumulatorPubHex = hex.EncodeToString([]byte{1, 2, 3})
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected a short accumulator pubkey to be rejected")
	}
}

func TestServeRespondsToPing(t *testing.T) {
	dir := t.TempDir()
	store, err := agentstore.Open(filepath.Join(dir, "agentstore.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	daemon, err := ipc.NewDaemon(filepath.Join(dir, "child.disk"), store, testAccumulatorPubkey())
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}

	req := ipc.Request{Type: ipc.TypePing}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	in := strings.NewReader(string(reqBytes) + "\n")
	var out, errOut bytes.Buffer

	code := serve(context.Background(), daemon, in, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, errOut.String())
	}

	var resp ipc.Response
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("unmarshal response: %v, raw: %s", err, out.String())
	}
	if resp.Pong == nil {
		t.Fatalf("expected a Pong response, got %+v", resp)
	}
	if resp.Pong.Version != ipc.DaemonVersion {
		t.Fatalf("unexpected daemon version: %s", resp.Pong.Version)
	}
}

func TestServeReturnsErrorResponseOnMalformedLine(t *testing.T) {
	dir := t.TempDir()
	store, err := agentstore.Open(filepath.Join(dir, "agentstore.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	daemon, err := ipc.NewDaemon(filepath.Join(dir, "child.disk"), store, testAccumulatorPubkey())
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}

	in := strings.NewReader("{not valid json}\n")
	var out, errOut bytes.Buffer
	code := serve(context.Background(), daemon, in, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit code 0 even on a malformed request, got %d", code)
	}

	var resp ipc.Response
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Err == nil {
		t.Fatalf("expected an error response for malformed input")
	}
}

func TestRunDryRunPrintsConfigWithoutOpeningStore(t *testing.T) {
	dir := t.TempDir()
	key := testAccumulatorPubkey()
	pubHex := hex.EncodeToString(key[:])
	args := []string{
		"--disk", filepath.Join(dir, "child.disk"),
		"--agent-store", filepath.Join(dir, "agentstore.db"),
		"--accumulator-pubkey", pubHex,
		"--dry-run",
	}
	var out, errOut bytes.Buffer
	code := run(args, strings.NewReader(""), &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, errOut.String())
	}
	var cfg Config
	if err := json.Unmarshal(out.Bytes(), &cfg); err != nil {
		t.Fatalf("unmarshal dry-run config: %v", err)
	}
	if cfg.AccumulatorPubHex != pubHex {
		t.Fatalf("expected dry-run output to reflect the supplied pubkey")
	}
}

func TestRunRejectsMissingAccumulatorPubkey(t *testing.T) {
	dir := t.TempDir()
	args := []string{
		"--disk", filepath.Join(dir, "child.disk"),
		"--agent-store", filepath.Join(dir, "agentstore.db"),
	}
	var out, errOut bytes.Buffer
	code := run(args, strings.NewReader(""), &out, &errOut)
	if code == 0 {
		t.Fatalf("expected a non-zero exit code when --accumulator-pubkey is missing")
	}
}
