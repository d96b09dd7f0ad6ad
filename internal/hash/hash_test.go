package hash

import (
	"strings"
	"testing"
	"time"
)

func TestComputeBlockHashDeterministic(t *testing.T) {
	ts := time.Date(2026, 4, 12, 9, 30, 0, 123456000, time.UTC)

	h1 := ComputeBlockHash(1, ZeroSentinel, "C1", ts, 0)
	h2 := ComputeBlockHash(1, ZeroSentinel, "C1", ts, 0)

	if h1 != h2 {
		t.Error("Same inputs should produce same hash")
	}

	if len(h1) != 64 {
		t.Errorf("Expected hash length 64, got %d", len(h1))
	}
}

func TestComputeBlockHashInputSensitivity(t *testing.T) {
	ts := time.Date(2026, 4, 12, 9, 30, 0, 0, time.UTC)
	base := ComputeBlockHash(1, ZeroSentinel, "C1", ts, 0)

	variants := map[string]string{
		"sequence":  ComputeBlockHash(2, ZeroSentinel, "C1", ts, 0),
		"prev hash": ComputeBlockHash(1, strings.Repeat("a", 64), "C1", ts, 0),
		"candidate": ComputeBlockHash(1, ZeroSentinel, "C2", ts, 0),
		"timestamp": ComputeBlockHash(1, ZeroSentinel, "C1", ts.Add(time.Microsecond), 0),
		"nonce":     ComputeBlockHash(1, ZeroSentinel, "C1", ts, 1),
	}

	for field, h := range variants {
		if h == base {
			t.Errorf("Changing %s should change the hash", field)
		}
	}
}

func TestCanonicalTime(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	ts := time.Date(2026, 4, 12, 15, 0, 0, 123456789, loc)

	got := CanonicalTime(ts)
	want := "2026-04-12T09:30:00.123456Z"

	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	// Sub-microsecond precision must not leak into the canonical form.
	if CanonicalTime(ts.Add(100*time.Nanosecond)) != got {
		t.Error("Nanosecond differences should canonicalize identically")
	}
}

func TestGenerateReceipt(t *testing.T) {
	ts := time.Date(2026, 4, 12, 9, 30, 0, 0, time.UTC)

	r1 := GenerateReceipt("V1", "C1", ts)
	r2 := GenerateReceipt("V1", "C1", ts)

	if r1 != r2 {
		t.Error("Same inputs should produce same receipt")
	}

	if GenerateReceipt("V2", "C1", ts) == r1 {
		t.Error("Different voter should change the receipt")
	}
	if GenerateReceipt("V1", "C2", ts) == r1 {
		t.Error("Different candidate should change the receipt")
	}
	if GenerateReceipt("V1", "C1", ts.Add(time.Second)) == r1 {
		t.Error("Different timestamp should change the receipt")
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("VOTER-001")

	if len(fp) != 64 {
		t.Errorf("Expected fingerprint length 64, got %d", len(fp))
	}
	if fp != Fingerprint("VOTER-001") {
		t.Error("Fingerprint should be deterministic")
	}
	if fp == Fingerprint("VOTER-002") {
		t.Error("Different voters should have different fingerprints")
	}
}

func buildChain(t *testing.T, candidates ...string) []ChainRecord {
	t.Helper()

	records := make([]ChainRecord, 0, len(candidates))
	prevHash := ZeroSentinel
	ts := time.Date(2026, 4, 12, 9, 0, 0, 0, time.UTC)

	for i, cand := range candidates {
		seq := uint64(i + 1)
		blockTS := ts.Add(time.Duration(i) * time.Second)
		rec := ChainRecord{
			SequenceID:   seq,
			PreviousHash: prevHash,
			CandidateID:  cand,
			Timestamp:    blockTS,
			Nonce:        0,
			BlockHash:    ComputeBlockHash(seq, prevHash, cand, blockTS, 0),
		}
		records = append(records, rec)
		prevHash = rec.BlockHash
	}

	return records
}

func TestVerifyChain(t *testing.T) {
	t.Run("EmptyChain", func(t *testing.T) {
		valid, reason := VerifyChain(nil)
		if !valid {
			t.Errorf("Empty chain should be valid, got reason: %s", reason)
		}
	})

	t.Run("SingleBlock", func(t *testing.T) {
		valid, reason := VerifyChain(buildChain(t, "C1"))
		if !valid {
			t.Errorf("Single valid block should verify, got: %s", reason)
		}
	})

	t.Run("ValidChain", func(t *testing.T) {
		valid, reason := VerifyChain(buildChain(t, "C1", "C2", "C1", "C3"))
		if !valid {
			t.Errorf("Valid chain should verify, got: %s", reason)
		}
		if reason != "verified, no tampering" {
			t.Errorf("Unexpected reason: %s", reason)
		}
	})

	t.Run("GenesisSentinelMismatch", func(t *testing.T) {
		records := buildChain(t, "C1", "C2")
		records[0].PreviousHash = strings.Repeat("f", 64)

		valid, reason := VerifyChain(records)
		if valid {
			t.Fatal("Chain with bad genesis link should be invalid")
		}
		if reason != "broken link at block 1" {
			t.Errorf("Unexpected reason: %s", reason)
		}
	})

	t.Run("BrokenLink", func(t *testing.T) {
		records := buildChain(t, "C1", "C2", "C3")
		records[2].PreviousHash = strings.Repeat("e", 64)

		valid, reason := VerifyChain(records)
		if valid {
			t.Fatal("Chain with broken link should be invalid")
		}
		if reason != "broken link at block 3" {
			t.Errorf("Unexpected reason: %s", reason)
		}
	})

	t.Run("TamperedCandidate", func(t *testing.T) {
		records := buildChain(t, "C1", "C2", "C3")
		records[1].CandidateID = "C9"

		valid, reason := VerifyChain(records)
		if valid {
			t.Fatal("Chain with modified candidate should be invalid")
		}
		if reason != "tampering detected at block 2" {
			t.Errorf("Unexpected reason: %s", reason)
		}
	})

	t.Run("TamperedTimestamp", func(t *testing.T) {
		records := buildChain(t, "C1", "C2")
		records[1].Timestamp = records[1].Timestamp.Add(time.Minute)

		valid, reason := VerifyChain(records)
		if valid {
			t.Fatal("Chain with modified timestamp should be invalid")
		}
		if reason != "tampering detected at block 2" {
			t.Errorf("Unexpected reason: %s", reason)
		}
	})

	t.Run("TamperedBlockHash", func(t *testing.T) {
		records := buildChain(t, "C1", "C2", "C3")
		records[1].BlockHash = strings.Repeat("d", 64)

		valid, reason := VerifyChain(records)
		if valid {
			t.Fatal("Chain with rewritten block hash should be invalid")
		}
		// The rewritten hash fails recomputation at block 2 before the
		// dangling link at block 3 is reached.
		if reason != "tampering detected at block 2" {
			t.Errorf("Unexpected reason: %s", reason)
		}
	})
}

func TestZeroSentinel(t *testing.T) {
	if len(ZeroSentinel) != 64 {
		t.Errorf("Expected 64 hex zeros, got length %d", len(ZeroSentinel))
	}
	if strings.Trim(ZeroSentinel, "0") != "" {
		t.Error("Sentinel should be all zeros")
	}
}
