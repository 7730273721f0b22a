package presig

import (
	"context"
	"testing"

	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/primitives"
)

func testMaster(t *testing.T) MasterShards {
	t.Helper()
	cold, err := primitives.RandScalarDefault()
	if err != nil {
		t.Fatalf("rand: %v", err)
	}
	agent, err := primitives.RandScalarDefault()
	if err != nil {
		t.Fatalf("rand: %v", err)
	}
	return MasterShards{Cold: cold, Agent: agent}
}

func TestDeriveChildSharesDeterministicAndMatchesChildPub(t *testing.T) {
	master := testMaster(t)
	path := container.EthereumHardened(0)

	child, err := DeriveChildShares(master, path)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	again, err := DeriveChildShares(master, path)
	if err != nil {
		t.Fatalf("derive again: %v", err)
	}
	if child.ChildID != again.ChildID {
		t.Fatalf("derivation not deterministic: %x vs %x", child.ChildID, again.ChildID)
	}

	dChild := primitives.AddScalars(&child.Cold, &child.Agent)
	expectedPub := primitives.ScalarBaseMult(&dChild)
	if !primitives.Equal(expectedPub, child.Pub) {
		t.Fatalf("child pub does not match cold+agent derivation")
	}
}

func TestDeriveChildSharesDifferByPath(t *testing.T) {
	master := testMaster(t)
	a, err := DeriveChildShares(master, container.EthereumHardened(0))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, err := DeriveChildShares(master, container.EthereumHardened(1))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a.ChildID == b.ChildID {
		t.Fatalf("different paths produced the same child id")
	}
}

func TestGenerateBatchProducesDistinctFreshSlots(t *testing.T) {
	master := testMaster(t)
	child, err := DeriveChildShares(master, container.EthereumHardened(0))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	const n = 32
	batch, err := GenerateBatch(context.Background(), n, child, 1, [32]byte{})
	if err != nil {
		t.Fatalf("generate batch: %v", err)
	}
	if len(batch.ColdShares) != n || len(batch.AgentShares) != n || len(batch.Bindings) != n {
		t.Fatalf("batch size mismatch: %d/%d/%d", len(batch.ColdShares), len(batch.AgentShares), len(batch.Bindings))
	}

	seen := make(map[[33]byte]bool, n)
	for i := 0; i < n; i++ {
		cold := batch.ColdShares[i]
		agent := batch.AgentShares[i]
		if cold.Status != container.StatusFresh {
			t.Fatalf("slot %d not Fresh", i)
		}
		if cold.R != agent.R {
			t.Fatalf("slot %d: R_cold != R_agent", i)
		}
		if seen[cold.R] {
			t.Fatalf("slot %d: duplicate R point", i)
		}
		seen[cold.R] = true
		if batch.Bindings[i].MinAccumulatorVersion != 1 {
			t.Fatalf("slot %d: wrong accumulator version binding", i)
		}
	}
}

func TestGenerateBatchRejectsOutOfRangeSize(t *testing.T) {
	master := testMaster(t)
	child, _ := DeriveChildShares(master, container.EthereumHardened(0))
	if _, err := GenerateBatch(context.Background(), 0, child, 1, [32]byte{}); err == nil {
		t.Fatalf("expected error for n=0")
	}
	if _, err := GenerateBatch(context.Background(), container.MaxPresigSlots+1, child, 1, [32]byte{}); err == nil {
		t.Fatalf("expected error for n > max")
	}
}
