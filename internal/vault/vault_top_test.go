package vault

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/registry"
)

func TestVaultInitThenUnlockRoundTrip(t *testing.T) {
	dir := t.TempDir()
	v := New(dir)
	if v.IsSetUp() {
		t.Fatalf("fresh vault dir should not report as set up")
	}

	now := time.Unix(1_700_000_000, 0)
	n := big.NewInt(0).SetInt64(187)
	g := big.NewInt(2)
	if err := v.Init("135792", n, g, now); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !v.IsSetUp() {
		t.Fatalf("vault should report set up after Init")
	}
	if err := v.Init("135792", n, g, now); err == nil {
		t.Fatalf("expected second Init to be rejected")
	}

	if v.Session() != nil {
		t.Fatalf("vault should start locked")
	}
	if err := v.Unlock("135792", now); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if v.Session() == nil {
		t.Fatalf("expected an open session after unlock")
	}

	v.Lock()
	if v.Session() != nil {
		t.Fatalf("expected session cleared after Lock")
	}
}

func TestVaultUnlockRejectsWrongPin(t *testing.T) {
	dir := t.TempDir()
	v := New(dir)
	now := time.Unix(1_700_000_000, 0)
	if err := v.Init("135792", big.NewInt(187), big.NewInt(2), now); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := v.Unlock("000000", now); err == nil {
		t.Fatalf("expected wrong pin to be rejected")
	}
	if v.Session() != nil {
		t.Fatalf("session must stay nil after a failed unlock")
	}
}

func TestVaultUnlockEnforcesLockout(t *testing.T) {
	dir := t.TempDir()
	v := New(dir)
	now := time.Unix(1_700_000_000, 0)
	if err := v.Init("135792", big.NewInt(187), big.NewInt(2), now); err != nil {
		t.Fatalf("init: %v", err)
	}
	for i := 0; i < 4; i++ {
		_ = v.Unlock("000000", now)
	}
	err := v.Unlock("135792", now)
	if err == nil {
		t.Fatalf("expected lockout to reject even the correct pin immediately after threshold failures")
	}
	later := now.Add(time.Hour)
	if err := v.Unlock("135792", later); err != nil {
		t.Fatalf("expected unlock to succeed once the lockout window has elapsed: %v", err)
	}
}

func TestVaultWithStateRequiresUnlock(t *testing.T) {
	dir := t.TempDir()
	v := New(dir)
	now := time.Unix(1_700_000_000, 0)
	if err := v.Init("135792", big.NewInt(187), big.NewInt(2), now); err != nil {
		t.Fatalf("init: %v", err)
	}
	err := v.WithState(now, func(s *MotherState) error { return nil })
	if err == nil {
		t.Fatalf("expected WithState to fail on a locked vault")
	}
}

func TestVaultWithStatePersistsMutations(t *testing.T) {
	dir := t.TempDir()
	v := New(dir)
	now := time.Unix(1_700_000_000, 0)
	if err := v.Init("135792", big.NewInt(187), big.NewInt(2), now); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := v.Unlock("135792", now); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	path := container.EthereumHardened(0)
	var childID container.ChildId
	var n int

	err := v.WithState(now, func(s *MotherState) error {
		result, err := CreateChild(context.Background(), s, path, 4, now)
		if err != nil {
			return err
		}
		childID = result.ChildID
		n = len(result.Disk.Presigs)
		return nil
	})
	if err != nil {
		t.Fatalf("with state create child: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 presig slots, got %d", n)
	}

	var gotStatus registry.StatusKind
	err = v.WithState(now, func(s *MotherState) error {
		entry, err := s.Registry.Query(childID)
		if err != nil {
			return err
		}
		gotStatus = entry.Status.Kind
		return nil
	})
	if err != nil {
		t.Fatalf("with state re-read: %v", err)
	}
	if gotStatus != registry.StatusActive {
		t.Fatalf("expected the created child to be registered Active, got %v", gotStatus)
	}
}

func TestVaultWithStateRollsBackOnError(t *testing.T) {
	dir := t.TempDir()
	v := New(dir)
	now := time.Unix(1_700_000_000, 0)
	if err := v.Init("135792", big.NewInt(187), big.NewInt(2), now); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := v.Unlock("135792", now); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	path := container.EthereumHardened(0)
	var childID container.ChildId
	_ = v.WithState(now, func(s *MotherState) error {
		result, err := CreateChild(context.Background(), s, path, 2, now)
		if err != nil {
			return err
		}
		childID = result.ChildID
		return nil
	})

	wantErr := errStub{"boom"}
	err := v.WithState(now, func(s *MotherState) error {
		_ = s.Registry.Suspend(childID)
		return wantErr
	})
	if err == nil {
		t.Fatalf("expected WithState to propagate the callback error")
	}

	var status registry.StatusKind
	_ = v.WithState(now, func(s *MotherState) error {
		entry, qerr := s.Registry.Query(childID)
		if qerr != nil {
			return qerr
		}
		status = entry.Status.Kind
		return nil
	})
	if status != registry.StatusActive {
		t.Fatalf("expected the failed mutation to not persist, got status %v", status)
	}
}

type errStub struct{ msg string }

func (e errStub) Error() string { return e.msg }
