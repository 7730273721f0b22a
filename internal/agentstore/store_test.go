package agentstore

import (
	"path/filepath"
	"testing"

	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/errs"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleShare(n byte) container.PresigAgentShare {
	var s container.PresigAgentShare
	s.R[0] = n
	s.KAgent[0] = n
	s.ChiAgent[0] = n
	return s
}

func TestPutThenTakeForSigningDestroysShare(t *testing.T) {
	s := openTestStore(t)
	childID := container.ChildId{0x01}

	if err := s.Put(childID, 0, sampleShare(7)); err != nil {
		t.Fatalf("put: %v", err)
	}

	has, err := s.Has(childID, 0)
	if err != nil || !has {
		t.Fatalf("expected share present, has=%v err=%v", has, err)
	}

	got, err := s.TakeForSigning(childID, 0)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if got != sampleShare(7) {
		t.Fatalf("share mismatch: got %+v", got)
	}

	if has, _ := s.Has(childID, 0); has {
		t.Fatalf("share should be destroyed after TakeForSigning")
	}
	if _, err := s.TakeForSigning(childID, 0); !errs.Is(err, errs.KindPresigNotFound) {
		t.Fatalf("expected KindPresigNotFound on double-take, got %v", err)
	}
}

func TestPutRejectsOverwritingAnExistingSlot(t *testing.T) {
	s := openTestStore(t)
	childID := container.ChildId{0x02}
	if err := s.Put(childID, 3, sampleShare(1)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(childID, 3, sampleShare(2)); !errs.Is(err, errs.KindBadTransition) {
		t.Fatalf("expected KindBadTransition on overwrite, got %v", err)
	}
}

func TestImportBatchReplacesPriorSlots(t *testing.T) {
	s := openTestStore(t)
	childID := container.ChildId{0x03}

	if err := s.ImportBatch(childID, []container.PresigAgentShare{sampleShare(1), sampleShare(2)}); err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := s.ImportBatch(childID, []container.PresigAgentShare{sampleShare(9)}); err != nil {
		t.Fatalf("re-import: %v", err)
	}

	if has, _ := s.Has(childID, 1); has {
		t.Fatalf("slot 1 from the first batch should have been cleared")
	}
	got, err := s.TakeForSigning(childID, 0)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if got != sampleShare(9) {
		t.Fatalf("expected the re-imported share, got %+v", got)
	}
}

func TestDestroyAllClearsOnlyTargetChild(t *testing.T) {
	s := openTestStore(t)
	a := container.ChildId{0xAA}
	b := container.ChildId{0xBB}
	if err := s.Put(a, 0, sampleShare(1)); err != nil {
		t.Fatalf("put a: %v", err)
	}
	if err := s.Put(b, 0, sampleShare(2)); err != nil {
		t.Fatalf("put b: %v", err)
	}

	if err := s.DestroyAll(a); err != nil {
		t.Fatalf("destroy all: %v", err)
	}
	if has, _ := s.Has(a, 0); has {
		t.Fatalf("child a's share should be gone")
	}
	if has, _ := s.Has(b, 0); !has {
		t.Fatalf("child b's share should be untouched")
	}
}
