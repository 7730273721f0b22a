// Package agentstore implements the daemon-side per-slot agent share
// store (spec §4.4/§4.5's "daemon" collaborator): each presignature's
// agent half is written once when a batch is imported and destroyed the
// moment it is consumed by a signing operation, modeled on the teacher's
// bbolt-backed node/store/db.go.
package agentstore

import (
	"encoding/binary"
	"time"

	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/errs"

	bolt "go.etcd.io/bbolt"
)

var bucketAgentShares = []byte("agent_shares_by_slot")

// Store is a bbolt-backed, write-once, destroy-on-use keystore for
// agent-half presignature shares, keyed by (child_id, presig_index).
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the agent share store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "open agent store")
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAgentShares)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.KindIO, err, "create agent share bucket")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func slotKey(childID container.ChildId, presigIndex uint32) []byte {
	key := make([]byte, 32+4)
	copy(key[:32], childID[:])
	binary.LittleEndian.PutUint32(key[32:], presigIndex)
	return key
}

const shareWire = 33 + 32 + 32

func encodeShare(s container.PresigAgentShare) []byte {
	out := make([]byte, shareWire)
	copy(out[0:33], s.R[:])
	copy(out[33:65], s.KAgent[:])
	copy(out[65:97], s.ChiAgent[:])
	return out
}

func decodeShare(b []byte) (container.PresigAgentShare, error) {
	if len(b) != shareWire {
		return container.PresigAgentShare{}, errs.New(errs.KindDiskFormat, "agent share record has wrong length %d", len(b))
	}
	var s container.PresigAgentShare
	copy(s.R[:], b[0:33])
	copy(s.KAgent[:], b[33:65])
	copy(s.ChiAgent[:], b[65:97])
	return s, nil
}

// Put writes a slot's agent share. It fails if the slot already has a
// share on record (write-once): refilling a child must go through
// ImportBatch, which clears the child's prior slots first.
func (s *Store) Put(childID container.ChildId, presigIndex uint32, share container.PresigAgentShare) error {
	key := slotKey(childID, presigIndex)
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgentShares)
		if b.Get(key) != nil {
			return errs.New(errs.KindBadTransition, "agent share for child %s slot %d already written", childID.Short(), presigIndex)
		}
		return b.Put(key, encodeShare(share))
	})
}

// ImportBatch atomically replaces all agent shares for childID with a
// fresh batch (the daemon-side counterpart of a mother refill
// ceremony), clearing any shares left over from the previous batch
// first so slot indices cannot alias across refills.
func (s *Store) ImportBatch(childID container.ChildId, shares []container.PresigAgentShare) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgentShares)
		c := b.Cursor()
		prefix := childID[:]
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		for i, share := range shares {
			if err := b.Put(slotKey(childID, uint32(i)), encodeShare(share)); err != nil {
				return err
			}
		}
		return nil
	})
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// TakeForSigning retrieves and permanently deletes the agent share for
// (childID, presigIndex) in one transaction. This is the "destroyed on
// successful signature" step from spec §4.4: once consumed, the slot
// can never be re-signed from this daemon's copy of the batch.
func (s *Store) TakeForSigning(childID container.ChildId, presigIndex uint32) (container.PresigAgentShare, error) {
	key := slotKey(childID, presigIndex)
	var share container.PresigAgentShare
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgentShares)
		v := b.Get(key)
		if v == nil {
			return errs.New(errs.KindPresigNotFound, "no agent share on record for child %s slot %d", childID.Short(), presigIndex)
		}
		decoded, err := decodeShare(v)
		if err != nil {
			return err
		}
		share = decoded
		return b.Delete(key)
	})
	if err != nil {
		return container.PresigAgentShare{}, err
	}
	return share, nil
}

// Has reports whether a share is still on record for the given slot,
// without consuming it.
func (s *Store) Has(childID container.ChildId, presigIndex uint32) (bool, error) {
	key := slotKey(childID, presigIndex)
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketAgentShares).Get(key) != nil
		return nil
	})
	return found, err
}

// Destroy deletes an agent share without returning it, for explicit
// revocation (nullification) flows that must remove shares for a child
// whose presignatures are being voided. The record is removed with
// bbolt's Delete; the stored bytes are not overwritten first.
func (s *Store) Destroy(childID container.ChildId, presigIndex uint32) error {
	key := slotKey(childID, presigIndex)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAgentShares).Delete(key)
	})
}

// DestroyAll removes every agent share recorded for childID, used when
// a child is nullified (its agent-half material must not survive).
func (s *Store) DestroyAll(childID container.ChildId) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgentShares)
		c := b.Cursor()
		prefix := childID[:]
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListChildIDs returns every distinct child id with at least one agent
// share still on record, for the daemon's ListChildren IPC request
// (spec §6).
func (s *Store) ListChildIDs() ([]container.ChildId, error) {
	var ids []container.ChildId
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgentShares)
		c := b.Cursor()
		var last container.ChildId
		have := false
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			var id container.ChildId
			copy(id[:], k[:32])
			if have && id == last {
				continue
			}
			ids = append(ids, id)
			last = id
			have = true
		}
		return nil
	})
	return ids, err
}
