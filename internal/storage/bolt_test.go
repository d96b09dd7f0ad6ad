package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/khurramrashidd/BharatVotes/internal/auth"
	"github.com/khurramrashidd/BharatVotes/internal/ballot"
	"github.com/khurramrashidd/BharatVotes/internal/hash"
	"github.com/khurramrashidd/BharatVotes/internal/ledger"
	"github.com/khurramrashidd/BharatVotes/internal/roster"
)

func newTestBolt(t *testing.T) *Bolt {
	t.Helper()

	store, err := NewBolt(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testBlock(seq uint64, voter, candidate, boothID, prevHash string) *ledger.Block {
	ts := time.Date(2026, 4, 12, 9, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Second)
	return &ledger.Block{
		SequenceID:       seq,
		VoterFingerprint: hash.Fingerprint(voter),
		CandidateID:      candidate,
		BoothID:          boothID,
		Timestamp:        ts,
		Receipt:          hash.GenerateReceipt(voter, candidate, ts),
		PreviousHash:     prevHash,
		BlockHash:        hash.ComputeBlockHash(seq, prevHash, candidate, ts, 0),
	}
}

func TestBlockStore(t *testing.T) {
	store := newTestBolt(t)

	t.Run("EmptyLedger", func(t *testing.T) {
		tail, err := store.TailBlock()
		if err != nil {
			t.Fatal(err)
		}
		if tail != nil {
			t.Error("Empty store should have no tail")
		}

		count, err := store.BlockCount()
		if err != nil {
			t.Fatal(err)
		}
		if count != 0 {
			t.Errorf("Expected 0 blocks, got %d", count)
		}
	})

	b1 := testBlock(1, "V1", "C1", "B1", hash.ZeroSentinel)
	b2 := testBlock(2, "V2", "C2", "B2", b1.BlockHash)
	b3 := testBlock(3, "V3", "C1", "B1", b2.BlockHash)

	t.Run("AppendAndRead", func(t *testing.T) {
		for _, b := range []*ledger.Block{b1, b2, b3} {
			if err := store.AppendBlock(b); err != nil {
				t.Fatalf("AppendBlock failed: %v", err)
			}
		}

		tail, err := store.TailBlock()
		if err != nil {
			t.Fatal(err)
		}
		if tail == nil || tail.SequenceID != 3 {
			t.Error("Tail should be the highest sequence block")
		}

		blocks, err := store.Blocks()
		if err != nil {
			t.Fatal(err)
		}
		if len(blocks) != 3 {
			t.Fatalf("Expected 3 blocks, got %d", len(blocks))
		}
		for i, b := range blocks {
			if b.SequenceID != uint64(i+1) {
				t.Errorf("Blocks should come back in sequence order, got %d at %d", b.SequenceID, i)
			}
		}
		if !blocks[0].Timestamp.Equal(b1.Timestamp) {
			t.Error("Timestamps should round-trip exactly")
		}
	})

	t.Run("RejectsDuplicateSequence", func(t *testing.T) {
		dup := testBlock(3, "V9", "C1", "B1", b2.BlockHash)
		if err := store.AppendBlock(dup); err == nil {
			t.Error("Duplicate sequence id should be rejected")
		}
	})

	t.Run("RejectsDuplicateFingerprint", func(t *testing.T) {
		dup := testBlock(4, "V1", "C2", "B1", b3.BlockHash)
		if err := store.AppendBlock(dup); err == nil {
			t.Error("Duplicate fingerprint should be rejected")
		}
	})

	t.Run("HasFingerprint", func(t *testing.T) {
		found, err := store.HasFingerprint(hash.Fingerprint("V1"))
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Error("V1's fingerprint should be present")
		}

		found, err = store.HasFingerprint(hash.Fingerprint("V99"))
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Error("V99's fingerprint should be absent")
		}
	})

	t.Run("LatestByBooth", func(t *testing.T) {
		block, err := store.LatestByBooth("B1")
		if err != nil {
			t.Fatal(err)
		}
		if block == nil || block.SequenceID != 3 {
			t.Error("B1's latest block should be sequence 3")
		}

		block, err = store.LatestByBooth("B9")
		if err != nil {
			t.Fatal(err)
		}
		if block != nil {
			t.Error("Unknown booth should have no latest block")
		}
	})
}

func TestSessionStore(t *testing.T) {
	store := newTestBolt(t)

	s1 := &ballot.Session{
		ID: "s1", BoothID: "B1", VoterID: "V1", Active: true,
		ActivationTime: time.Now().UTC(), ActivationNote: "face-verified",
	}
	s2 := &ballot.Session{
		ID: "s2", BoothID: "B1", VoterID: "V2", Active: true,
		ActivationTime: time.Now().UTC(), ActivationNote: "manual-override",
	}

	if err := store.SetActiveSession(s1); err != nil {
		t.Fatalf("SetActiveSession failed: %v", err)
	}

	current, err := store.ActiveSession("B1")
	if err != nil {
		t.Fatal(err)
	}
	if current == nil || current.VoterID != "V1" {
		t.Error("Active session should be V1's")
	}

	// Supersede: V2 replaces V1, still exactly one active row.
	if err := store.SetActiveSession(s2); err != nil {
		t.Fatal(err)
	}
	current, err = store.ActiveSession("B1")
	if err != nil {
		t.Fatal(err)
	}
	if current == nil || current.VoterID != "V2" {
		t.Error("Supersede should leave V2 active")
	}

	if err := store.DeactivateBooth("B1"); err != nil {
		t.Fatalf("DeactivateBooth failed: %v", err)
	}
	current, err = store.ActiveSession("B1")
	if err != nil {
		t.Fatal(err)
	}
	if current != nil {
		t.Error("Booth should be idle after deactivation")
	}

	// Idempotent.
	if err := store.DeactivateBooth("B1"); err != nil {
		t.Errorf("Deactivating an idle booth should be a no-op: %v", err)
	}
}

func TestAuditStore(t *testing.T) {
	store := newTestBolt(t)

	for i := 0; i < 5; i++ {
		event := &ballot.AuditEvent{
			ID:        string(rune('a' + i)),
			Kind:      ballot.AuditActivation,
			BoothID:   "B1",
			VoterID:   "V1",
			Note:      "test",
			Timestamp: time.Now().UTC(),
		}
		if err := store.AppendAudit(event); err != nil {
			t.Fatalf("AppendAudit failed: %v", err)
		}
	}

	events, err := store.RecentAudit(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	if events[0].ID != "e" {
		t.Errorf("Expected newest event first, got %s", events[0].ID)
	}
}

func TestCandidateStore(t *testing.T) {
	store := newTestBolt(t)

	c := &roster.Candidate{
		CandidateID:  "C1",
		Name:         "Asha",
		Party:        "Green Earth",
		Constituency: "North",
	}
	if err := store.PutCandidate(c); err != nil {
		t.Fatalf("PutCandidate failed: %v", err)
	}

	got, err := store.Candidate("C1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Name != "Asha" {
		t.Error("Candidate should round-trip")
	}

	missing, err := store.Candidate("C9")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("Unknown candidate should be nil")
	}

	all, err := store.Candidates()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("Expected 1 candidate, got %d", len(all))
	}
}

func TestOfficerStore(t *testing.T) {
	store := newTestBolt(t)

	o := &auth.Officer{Username: "officer1", BoothID: "B1", PasswordHash: "x"}
	if err := store.PutOfficer(o); err != nil {
		t.Fatalf("PutOfficer failed: %v", err)
	}

	got, err := store.Officer("officer1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.BoothID != "B1" {
		t.Error("Officer should round-trip")
	}

	missing, err := store.Officer("nobody")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("Unknown officer should be nil")
	}
}

func TestMetadata(t *testing.T) {
	store := newTestBolt(t)

	// A fresh store is stamped with the current schema version.
	version, err := store.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("Expected schema version %s, got %s", SchemaVersion, version)
	}

	if err := store.SetMetadata("election_id", "GE-2026"); err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}
	value, err := store.GetMetadata("election_id")
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if value != "GE-2026" {
		t.Errorf("Expected GE-2026, got %s", value)
	}

	if _, err := store.GetMetadata("missing"); err == nil {
		t.Error("Missing key should error")
	}
}
