package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ZeroSentinel is the previous_hash of the first block in the ledger.
const ZeroSentinel = "0000000000000000000000000000000000000000000000000000000000000000"

// canonicalTimeLayout fixes the textual form of timestamps used as hash
// input: UTC, microsecond precision, fixed width. Storage engines round
// timestamps differently, so every timestamp is truncated to microseconds
// before it is hashed or persisted.
const canonicalTimeLayout = "2006-01-02T15:04:05.000000Z"

func CanonicalTime(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(canonicalTimeLayout)
}

// ComputeBlockHash digests the five block fields in fixed order. The real
// assigned sequence id is always part of the input; two blocks that share
// previous_hash, candidate and timestamp still hash differently.
func ComputeBlockHash(sequenceID uint64, previousHash, candidateID string, timestamp time.Time, nonce uint64) string {
	value := strconv.FormatUint(sequenceID, 10) +
		previousHash +
		candidateID +
		CanonicalTime(timestamp) +
		strconv.FormatUint(nonce, 10)

	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// GenerateReceipt derives the voter-facing submission token. It hashes the
// raw voter id, so ledger readers holding only the fingerprint cannot
// reproduce it.
func GenerateReceipt(voterID, candidateID string, timestamp time.Time) string {
	raw := strings.Join([]string{voterID, candidateID, CanonicalTime(timestamp)}, ":")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Fingerprint is the one-way hash of a voter identifier stored in place of
// the identifier itself.
func Fingerprint(voterID string) string {
	sum := sha256.Sum256([]byte(voterID))
	return hex.EncodeToString(sum[:])
}

// ChainRecord carries the stored fields of one committed block, in
// sequence order, for verification.
type ChainRecord struct {
	SequenceID   uint64
	PreviousHash string
	CandidateID  string
	Timestamp    time.Time
	Nonce        uint64
	BlockHash    string
}

// VerifyChain walks records ordered by sequence id and reports the first
// broken link or recomputation mismatch. An empty chain is trivially valid.
// The first record is checked against the zero sentinel.
func VerifyChain(records []ChainRecord) (bool, string) {
	if len(records) == 0 {
		return true, "chain empty"
	}

	prevHash := ZeroSentinel
	for i := range records {
		rec := &records[i]

		if rec.PreviousHash != prevHash {
			return false, fmt.Sprintf("broken link at block %d", rec.SequenceID)
		}

		recomputed := ComputeBlockHash(rec.SequenceID, rec.PreviousHash, rec.CandidateID, rec.Timestamp, rec.Nonce)
		if rec.BlockHash != recomputed {
			return false, fmt.Sprintf("tampering detected at block %d", rec.SequenceID)
		}

		prevHash = rec.BlockHash
	}

	return true, "verified, no tampering"
}
