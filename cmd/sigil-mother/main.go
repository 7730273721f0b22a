// Command sigil-mother is the offline, air-gapped operator CLI over the
// mother vault: one-time setup, child provisioning, reconciliation, and
// the refill/nullify ceremonies. It never talks to a daemon directly;
// every daemon-bound artifact (disk images, agent-share envelopes,
// accumulator snapshots) is written to a file for out-of-band transfer.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/registry"
	"github.com/chippr-robotics/sigil/internal/vault"
)

const usageCommands = "commands: init --vault-dir <path> --pin <pin> [--rsa-bits <n>] | status --vault-dir <path> --pin <pin> | create-child --vault-dir <path> --pin <pin> --account <u32> [--presig-count <n>] --disk-out <path> --envelope-out <path> --envelope-passcode <pass> | list-children --vault-dir <path> --pin <pin> | reconcile --vault-dir <path> --pin <pin> --disk <path> | refill --vault-dir <path> --pin <pin> --disk <path> --disk-out <path> --envelope-out <path> --envelope-passcode <pass> [--presig-count <n>] | nullify --vault-dir <path> --pin <pin> --child-id <hex> --reason <kind> [--detail <text>] | export-accumulator --vault-dir <path> --pin <pin> --out <path>"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	command := os.Args[1]
	argv := os.Args[2:]
	exitCode := 0
	switch command {
	case "init":
		exitCode = cmdInitMain(argv)
	case "status":
		exitCode = cmdStatusMain(argv)
	case "create-child":
		exitCode = cmdCreateChildMain(argv)
	case "list-children":
		exitCode = cmdListChildrenMain(argv)
	case "reconcile":
		exitCode = cmdReconcileMain(argv)
	case "refill":
		exitCode = cmdRefillMain(argv)
	case "nullify":
		exitCode = cmdNullifyMain(argv)
	case "export-accumulator":
		exitCode = cmdExportAccumulatorMain(argv)
	default:
		fmt.Fprintln(os.Stderr, "unknown command")
		printUsage()
		exitCode = 2
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: sigil-mother <command> [args]")
	fmt.Fprintln(os.Stderr, usageCommands)
}

func writeJSONFile(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// --- init ---

func cmdInit(vaultDir, pin string, rsaBits int) error {
	if err := os.MkdirAll(vaultDir, 0o700); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}
	n, g, err := generateAccumulatorModulus(rsaBits)
	if err != nil {
		return err
	}
	v := vault.New(vaultDir)
	return v.Init(pin, n, g, time.Now())
}

func cmdInitMain(argv []string) int {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	def := DefaultConfig()
	vaultDir := fs.String("vault-dir", def.VaultDir, "vault directory root")
	pin := fs.String("pin", "", "operator pin, 6-12 digits")
	rsaBits := fs.Int("rsa-bits", def.RSABits, "accumulator RSA modulus bit length")
	_ = fs.Parse(argv)
	if *pin == "" {
		fmt.Fprintln(os.Stderr, "missing required flag: --pin")
		return 2
	}
	if err := cmdInit(*vaultDir, *pin, *rsaBits); err != nil {
		fmt.Fprintln(os.Stderr, "init error:", err)
		return 1
	}
	fmt.Println("vault initialized at", *vaultDir)
	return 0
}

// --- status ---

type childSummary struct {
	ChildIDHex string `json:"child_id"`
	Status     string `json:"status"`
}

type statusReport struct {
	AccumulatorVersion uint64         `json:"accumulator_version"`
	ChildCount         int            `json:"child_count"`
	Children           []childSummary `json:"children"`
}

func statusKindString(k registry.StatusKind) string {
	switch k {
	case registry.StatusActive:
		return "active"
	case registry.StatusSuspended:
		return "suspended"
	case registry.StatusNullified:
		return "nullified"
	default:
		return "unknown"
	}
}

func cmdStatus(vaultDir, pin string) (statusReport, error) {
	v := vault.New(vaultDir)
	now := time.Now()
	if err := v.Unlock(pin, now); err != nil {
		return statusReport{}, err
	}
	defer v.Lock()

	var report statusReport
	err := v.WithState(now, func(state *vault.MotherState) error {
		report.AccumulatorVersion = state.Accumulator.Version
		ids := state.Registry.ListChildren()
		report.ChildCount = len(ids)
		for _, id := range ids {
			entry, err := state.Registry.Query(id)
			if err != nil {
				return err
			}
			report.Children = append(report.Children, childSummary{
				ChildIDHex: id.ToHex(),
				Status:     statusKindString(entry.Status.Kind),
			})
		}
		return nil
	})
	return report, err
}

func cmdStatusMain(argv []string) int {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	def := DefaultConfig()
	vaultDir := fs.String("vault-dir", def.VaultDir, "vault directory root")
	pin := fs.String("pin", "", "operator pin")
	_ = fs.Parse(argv)
	if *pin == "" {
		fmt.Fprintln(os.Stderr, "missing required flag: --pin")
		return 2
	}
	report, err := cmdStatus(*vaultDir, *pin)
	if err != nil {
		fmt.Fprintln(os.Stderr, "status error:", err)
		return 1
	}
	b, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(b))
	return 0
}

// --- create-child ---

func cmdCreateChild(vaultDir, pin string, account uint32, n int, diskOut, envelopeOut, envelopePasscode string) (container.ChildId, error) {
	v := vault.New(vaultDir)
	now := time.Now()
	if err := v.Unlock(pin, now); err != nil {
		return container.ChildId{}, err
	}
	defer v.Lock()

	var result vault.CreateChildResult
	err := v.WithState(now, func(state *vault.MotherState) error {
		path := container.EthereumHardened(account)
		res, err := vault.CreateChild(context.Background(), state, path, n, now)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return container.ChildId{}, err
	}

	diskBytes, err := result.Disk.Save()
	if err != nil {
		return container.ChildId{}, err
	}
	if err := container.WriteAtomic(diskOut, diskBytes); err != nil {
		return container.ChildId{}, err
	}

	env, err := vault.SealEnvelope(result.ChildID, result.AgentShares, envelopePasscode)
	if err != nil {
		return container.ChildId{}, err
	}
	if err := writeJSONFile(envelopeOut, envelopeJSON(env)); err != nil {
		return container.ChildId{}, err
	}

	return result.ChildID, nil
}

type envelopeDoc struct {
	ChildIDHex string `json:"child_id"`
	SaltHex    string `json:"salt"`
	NonceHex   string `json:"nonce"`
	SealedHex  string `json:"sealed"`
}

func envelopeJSON(env vault.Envelope) envelopeDoc {
	return envelopeDoc{
		ChildIDHex: env.ChildID.ToHex(),
		SaltHex:    hex.EncodeToString(env.Salt[:]),
		NonceHex:   hex.EncodeToString(env.Nonce[:]),
		SealedHex:  hex.EncodeToString(env.Sealed),
	}
}

func cmdCreateChildMain(argv []string) int {
	fs := flag.NewFlagSet("create-child", flag.ExitOnError)
	def := DefaultConfig()
	vaultDir := fs.String("vault-dir", def.VaultDir, "vault directory root")
	pin := fs.String("pin", "", "operator pin")
	account := fs.Uint("account", 0, "BIP-44 account index for the new child")
	presigCount := fs.Int("presig-count", container.MaxPresigSlots, "number of presignatures to generate")
	diskOut := fs.String("disk-out", "", "path to write the new child's disk image")
	envelopeOut := fs.String("envelope-out", "", "path to write the sealed agent-share envelope")
	envelopePasscode := fs.String("envelope-passcode", "", "passcode protecting the agent-share envelope")
	_ = fs.Parse(argv)
	if *pin == "" || *diskOut == "" || *envelopeOut == "" || *envelopePasscode == "" {
		fmt.Fprintln(os.Stderr, "missing required flag: --pin, --disk-out, --envelope-out, --envelope-passcode are all required")
		return 2
	}
	childID, err := cmdCreateChild(*vaultDir, *pin, uint32(*account), *presigCount, *diskOut, *envelopeOut, *envelopePasscode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "create-child error:", err)
		return 1
	}
	fmt.Println("created child", childID.ToHex())
	return 0
}

// --- list-children ---

func cmdListChildrenMain(argv []string) int {
	fs := flag.NewFlagSet("list-children", flag.ExitOnError)
	def := DefaultConfig()
	vaultDir := fs.String("vault-dir", def.VaultDir, "vault directory root")
	pin := fs.String("pin", "", "operator pin")
	_ = fs.Parse(argv)
	if *pin == "" {
		fmt.Fprintln(os.Stderr, "missing required flag: --pin")
		return 2
	}
	report, err := cmdStatus(*vaultDir, *pin)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list-children error:", err)
		return 1
	}
	for _, c := range report.Children {
		fmt.Printf("%s\t%s\n", c.ChildIDHex, c.Status)
	}
	return 0
}

// --- reconcile ---

func cmdReconcile(vaultDir, pin, diskPath string) (vault.Analysis, error) {
	v := vault.New(vaultDir)
	now := time.Now()
	if err := v.Unlock(pin, now); err != nil {
		return vault.Analysis{}, err
	}
	defer v.Lock()

	b, err := container.ReadFile(diskPath)
	if err != nil {
		return vault.Analysis{}, err
	}
	disk, err := container.Load(b)
	if err != nil {
		return vault.Analysis{}, err
	}

	var analysis vault.Analysis
	err = v.WithState(now, func(state *vault.MotherState) error {
		entry, err := state.Registry.Query(disk.Header.ChildID)
		if err != nil {
			return err
		}
		analysis = vault.Analyze(disk, entry.Status.Kind, now)
		return nil
	})
	return analysis, err
}

func cmdReconcileMain(argv []string) int {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	def := DefaultConfig()
	vaultDir := fs.String("vault-dir", def.VaultDir, "vault directory root")
	pin := fs.String("pin", "", "operator pin")
	disk := fs.String("disk", "", "path to the returned disk image")
	_ = fs.Parse(argv)
	if *pin == "" || *disk == "" {
		fmt.Fprintln(os.Stderr, "missing required flag: --pin, --disk")
		return 2
	}
	analysis, err := cmdReconcile(*vaultDir, *pin, *disk)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reconcile error:", err)
		return 1
	}
	b, _ := json.MarshalIndent(analysis, "", "  ")
	fmt.Println(string(b))
	return 0
}

// --- refill ---

func cmdRefill(vaultDir, pin, diskPath, diskOut, envelopeOut, envelopePasscode string, n int) error {
	v := vault.New(vaultDir)
	now := time.Now()
	if err := v.Unlock(pin, now); err != nil {
		return err
	}
	defer v.Lock()

	b, err := container.ReadFile(diskPath)
	if err != nil {
		return err
	}
	disk, err := container.Load(b)
	if err != nil {
		return err
	}

	var result vault.RefillResult
	err = v.WithState(now, func(state *vault.MotherState) error {
		entry, err := state.Registry.Query(disk.Header.ChildID)
		if err != nil {
			return err
		}
		analysis := vault.Analyze(disk, entry.Status.Kind, now)
		res, err := vault.Refill(context.Background(), state, disk, analysis, n, now)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return err
	}

	newDiskBytes, err := result.Disk.Save()
	if err != nil {
		return err
	}
	if err := container.WriteAtomic(diskOut, newDiskBytes); err != nil {
		return err
	}

	env, err := vault.SealEnvelope(result.Disk.Header.ChildID, result.AgentShares, envelopePasscode)
	if err != nil {
		return err
	}
	return writeJSONFile(envelopeOut, envelopeJSON(env))
}

func cmdRefillMain(argv []string) int {
	fs := flag.NewFlagSet("refill", flag.ExitOnError)
	def := DefaultConfig()
	vaultDir := fs.String("vault-dir", def.VaultDir, "vault directory root")
	pin := fs.String("pin", "", "operator pin")
	disk := fs.String("disk", "", "path to the returned disk image")
	diskOut := fs.String("disk-out", "", "path to write the refilled disk image")
	envelopeOut := fs.String("envelope-out", "", "path to write the sealed agent-share envelope")
	envelopePasscode := fs.String("envelope-passcode", "", "passcode protecting the agent-share envelope")
	presigCount := fs.Int("presig-count", container.MaxPresigSlots, "number of presignatures to generate")
	_ = fs.Parse(argv)
	if *pin == "" || *disk == "" || *diskOut == "" || *envelopeOut == "" || *envelopePasscode == "" {
		fmt.Fprintln(os.Stderr, "missing required flag: --pin, --disk, --disk-out, --envelope-out, --envelope-passcode are all required")
		return 2
	}
	if err := cmdRefill(*vaultDir, *pin, *disk, *diskOut, *envelopeOut, *envelopePasscode, *presigCount); err != nil {
		fmt.Fprintln(os.Stderr, "refill error:", err)
		return 1
	}
	fmt.Println("refill complete")
	return 0
}

// --- nullify ---

var nullificationKinds = map[string]registry.NullificationKind{
	"manual_revocation":      registry.ReasonManualRevocation,
	"reconciliation_anomaly": registry.ReasonReconciliationAnomaly,
	"presig_misuse":          registry.ReasonPresigMisuse,
	"lost_or_stolen":         registry.ReasonLostOrStolen,
	"compromised_agent":      registry.ReasonCompromisedAgent,
	"integrity_failure":      registry.ReasonIntegrityFailure,
	"policy_violation":       registry.ReasonPolicyViolation,
}

func cmdNullify(vaultDir, pin, childIDHex, reasonKind, detail string, lastValidPresigIndex uint32) (registry.MembershipWitness, error) {
	kind, ok := nullificationKinds[reasonKind]
	if !ok {
		return registry.MembershipWitness{}, fmt.Errorf("unknown nullification reason %q", reasonKind)
	}
	childID, err := container.ChildIdFromHex(childIDHex)
	if err != nil {
		return registry.MembershipWitness{}, err
	}

	v := vault.New(vaultDir)
	now := time.Now()
	if err := v.Unlock(pin, now); err != nil {
		return registry.MembershipWitness{}, err
	}
	defer v.Lock()

	var witness registry.MembershipWitness
	err = v.WithState(now, func(state *vault.MotherState) error {
		w, err := state.Registry.Nullify(childID, registry.NullificationReason{Kind: kind, Detail: detail}, uint64(now.Unix()), lastValidPresigIndex, state.Accumulator)
		if err != nil {
			return err
		}
		state.AccumulatedExponent.Mul(state.AccumulatedExponent, w.Prime)
		witness = w
		return nil
	})
	return witness, err
}

func cmdNullifyMain(argv []string) int {
	fs := flag.NewFlagSet("nullify", flag.ExitOnError)
	def := DefaultConfig()
	vaultDir := fs.String("vault-dir", def.VaultDir, "vault directory root")
	pin := fs.String("pin", "", "operator pin")
	childID := fs.String("child-id", "", "hex-encoded child id")
	reason := fs.String("reason", "", "nullification reason: "+nullificationReasonList())
	detail := fs.String("detail", "", "free-form detail recorded in the nullification reason")
	lastValid := fs.String("last-valid-presig-index", "0", "last presig index considered valid")
	_ = fs.Parse(argv)
	if *pin == "" || *childID == "" || *reason == "" {
		fmt.Fprintln(os.Stderr, "missing required flag: --pin, --child-id, --reason")
		return 2
	}
	idx, err := strconv.ParseUint(*lastValid, 10, 32)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid --last-valid-presig-index:", err)
		return 2
	}
	witness, err := cmdNullify(*vaultDir, *pin, *childID, *reason, *detail, uint32(idx))
	if err != nil {
		fmt.Fprintln(os.Stderr, "nullify error:", err)
		return 1
	}
	fmt.Println("nullified; membership witness prime:", witness.Prime.Text(16))
	return 0
}

func nullificationReasonList() string {
	names := make([]string, 0, len(nullificationKinds))
	for k := range nullificationKinds {
		names = append(names, k)
	}
	return strings.Join(names, "|")
}

// --- export-accumulator ---

type accumulatorSnapshotDoc struct {
	PublicKeyHex string `json:"public_key"`
	ValueHex     string `json:"value"`
	Version      uint64 `json:"version"`
	SignatureHex string `json:"signature"`
}

func cmdExportAccumulator(vaultDir, pin, outPath string) error {
	v := vault.New(vaultDir)
	now := time.Now()
	if err := v.Unlock(pin, now); err != nil {
		return err
	}
	defer v.Lock()

	var doc accumulatorSnapshotDoc
	err := v.WithState(now, func(state *vault.MotherState) error {
		pub, err := vault.AccumulatorPublicKey(*state)
		if err != nil {
			return err
		}
		update, err := vault.SignAccumulatorSnapshot(*state)
		if err != nil {
			return err
		}
		doc = accumulatorSnapshotDoc{
			PublicKeyHex: hex.EncodeToString(pub[:]),
			ValueHex:     hex.EncodeToString(update.Value.Bytes()),
			Version:      update.Version,
			SignatureHex: hex.EncodeToString(update.Signature),
		}
		return nil
	})
	if err != nil {
		return err
	}
	return writeJSONFile(outPath, doc)
}

func cmdExportAccumulatorMain(argv []string) int {
	fs := flag.NewFlagSet("export-accumulator", flag.ExitOnError)
	def := DefaultConfig()
	vaultDir := fs.String("vault-dir", def.VaultDir, "vault directory root")
	pin := fs.String("pin", "", "operator pin")
	out := fs.String("out", "", "path to write the accumulator snapshot JSON")
	_ = fs.Parse(argv)
	if *pin == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "missing required flag: --pin, --out")
		return 2
	}
	if err := cmdExportAccumulator(*vaultDir, *pin, *out); err != nil {
		fmt.Fprintln(os.Stderr, "export-accumulator error:", err)
		return 1
	}
	fmt.Println("accumulator snapshot written to", *out)
	return 0
}
