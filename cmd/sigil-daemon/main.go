// Command sigil-daemon is the minimal online half of the pairing
// described in spec §1: it holds the currently inserted child disk
// image and the per-slot agent-share store, and answers the IPC request
// contract from spec §6 as newline-delimited JSON over stdin/stdout.
// Real transport framing (a socket, a named pipe) is a thin wrapper
// callers can put in front of this loop; see internal/ipc's doc comment.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/chippr-robotics/sigil/internal/agentstore"
	"github.com/chippr-robotics/sigil/internal/ipc"
	"github.com/chippr-robotics/sigil/internal/registry"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	defaults := DefaultConfig()
	cfg := defaults

	fs := flag.NewFlagSet("sigil-daemon", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.DiskPath, "disk", defaults.DiskPath, "path to the inserted child disk image")
	fs.StringVar(&cfg.AgentStorePath, "agent-store", defaults.AgentStorePath, "path to the bbolt agent-share store")
	fs.StringVar(&cfg.AccumulatorPubHex, "accumulator-pubkey", "", "hex-encoded compressed accumulator signing public key")
	fs.StringVar(&cfg.LogLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	accumulatorUpdatePath := fs.String("accumulator-snapshot", "", "path to a JSON accumulator snapshot from sigil-mother export-accumulator")
	dryRun := fs.Bool("dry-run", false, "print effective config and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := ValidateConfig(cfg); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}

	if *dryRun {
		enc := json.NewEncoder(stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		_ = enc.Encode(cfg)
		return 0
	}

	store, err := agentstore.Open(cfg.AgentStorePath)
	if err != nil {
		fmt.Fprintf(stderr, "open agent store failed: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	var pubkey [33]byte
	pubBytes, err := hex.DecodeString(cfg.AccumulatorPubHex)
	if err != nil || len(pubBytes) != 33 {
		fmt.Fprintf(stderr, "bad accumulator pubkey\n")
		return 2
	}
	copy(pubkey[:], pubBytes)

	daemon, err := ipc.NewDaemon(cfg.DiskPath, store, pubkey)
	if err != nil {
		fmt.Fprintf(stderr, "daemon init failed: %v\n", err)
		return 1
	}

	if *accumulatorUpdatePath != "" {
		if err := loadAccumulatorSnapshot(daemon, *accumulatorUpdatePath); err != nil {
			fmt.Fprintf(stderr, "load accumulator snapshot failed: %v\n", err)
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, daemon, stdin, stdout, stderr)
}

// accumulatorSnapshotDoc mirrors cmd/sigil-mother's export-accumulator
// output: a mother-signed (value, version) pair the daemon imports
// through the anti-rollback gate before serving any Sign requests.
type accumulatorSnapshotDoc struct {
	PublicKeyHex string `json:"public_key"`
	ValueHex     string `json:"value"`
	Version      uint64 `json:"version"`
	SignatureHex string `json:"signature"`
}

func loadAccumulatorSnapshot(daemon *ipc.Daemon, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc accumulatorSnapshotDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	valueBytes, err := hex.DecodeString(doc.ValueHex)
	if err != nil {
		return err
	}
	sigBytes, err := hex.DecodeString(doc.SignatureHex)
	if err != nil {
		return err
	}
	update := registry.AccumulatorUpdate{
		Value:     bigFromBytes(valueBytes),
		Version:   doc.Version,
		Signature: sigBytes,
	}
	return daemon.ImportAccumulator(update)
}

func bigFromBytes(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// serve reads one newline-delimited JSON ipc.Request per line from
// stdin and writes the matching ipc.Response, until EOF or ctx is
// cancelled by SIGINT/SIGTERM (spec §6's one-request-to-one-response
// contract; this loop is the reference framing the package doc for
// internal/ipc defers to callers).
func serve(ctx context.Context, daemon *ipc.Daemon, stdin io.Reader, stdout, stderr io.Writer) int {
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return 0
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req ipc.Request
		if err := json.Unmarshal(line, &req); err != nil {
			_ = enc.Encode(ipc.Response{Err: &ipc.ErrorResponse{Message: fmt.Sprintf("bad request: %v", err)}})
			continue
		}
		resp := daemon.Dispatch(ctx, req)
		if err := enc.Encode(resp); err != nil {
			fmt.Fprintf(stderr, "write response failed: %v\n", err)
			return 1
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(stderr, "read request failed: %v\n", err)
		return 1
	}
	return 0
}
