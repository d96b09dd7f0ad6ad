package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/khurramrashidd/BharatVotes/internal/hash"
)

// Ledger owns the global chain invariant: sequence ids are gapless and
// every block links to the hash of its predecessor. Append is serialized
// across the whole ledger, not per booth, because two concurrent appends
// must never read the same tail.
type Ledger struct {
	store Store

	mu   sync.Mutex
	tail *Block // cached under mu, lazily loaded

	now func() time.Time
}

func New(store Store) *Ledger {
	return &Ledger{
		store: store,
		now:   time.Now,
	}
}

// Append derives the voter fingerprint, rejects duplicates, assigns the
// next sequence id and commits the new block. The read-tail, compute-hash,
// write sequence runs under a single critical section.
func (l *Ledger) Append(voterID, candidateID, boothID string) (*Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fingerprint := hash.Fingerprint(voterID)

	voted, err := l.store.HasFingerprint(fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to check voter fingerprint: %w", err)
	}
	if voted {
		return nil, &AlreadyVotedError{Fingerprint: fingerprint}
	}

	tail, err := l.loadTail()
	if err != nil {
		return nil, err
	}

	var sequenceID uint64 = 1
	previousHash := hash.ZeroSentinel
	if tail != nil {
		sequenceID = tail.SequenceID + 1
		previousHash = tail.BlockHash
	}

	timestamp := l.now().UTC().Truncate(time.Microsecond)
	// Commit timestamps are non-decreasing in sequence order even when the
	// wall clock steps backwards. Ties are legal.
	if tail != nil && timestamp.Before(tail.Timestamp) {
		timestamp = tail.Timestamp
	}

	block := &Block{
		SequenceID:       sequenceID,
		VoterFingerprint: fingerprint,
		CandidateID:      candidateID,
		BoothID:          boothID,
		Timestamp:        timestamp,
		Receipt:          hash.GenerateReceipt(voterID, candidateID, timestamp),
		PreviousHash:     previousHash,
		BlockHash:        hash.ComputeBlockHash(sequenceID, previousHash, candidateID, timestamp, 0),
		Nonce:            0,
	}

	if err := l.store.AppendBlock(block); err != nil {
		return nil, fmt.Errorf("failed to commit block %d: %w", sequenceID, err)
	}

	l.tail = block
	return block, nil
}

func (l *Ledger) loadTail() (*Block, error) {
	if l.tail != nil {
		return l.tail, nil
	}
	tail, err := l.store.TailBlock()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger tail: %w", err)
	}
	l.tail = tail
	return tail, nil
}

// IntegrityReport is the audit-facing verification result.
type IntegrityReport struct {
	Valid         bool   `json:"valid"`
	Reason        string `json:"reason"`
	ChainLength   int    `json:"chain_length"`
	LastBlockHash string `json:"last_block_hash"`
	// Checkpoint is the Merkle root over all block hashes in ledger order,
	// an externally comparable digest of the whole chain.
	Checkpoint string `json:"checkpoint"`
}

// Err returns the report as a typed error, or nil for a valid chain.
func (r *IntegrityReport) Err() error {
	if r.Valid {
		return nil
	}
	return &IntegrityError{Reason: r.Reason}
}

// VerifyIntegrity loads all blocks in sequence order and checks every link
// and every stored hash. The returned error covers persistence failures
// only; tampering is reported through the report itself.
func (l *Ledger) VerifyIntegrity() (*IntegrityReport, error) {
	blocks, err := l.store.Blocks()
	if err != nil {
		return nil, fmt.Errorf("failed to load blocks: %w", err)
	}

	records := make([]hash.ChainRecord, len(blocks))
	blockHashes := make([]string, len(blocks))
	for i := range blocks {
		records[i] = blocks[i].ChainRecord()
		blockHashes[i] = blocks[i].BlockHash
	}

	valid, reason := hash.VerifyChain(records)

	report := &IntegrityReport{
		Valid:         valid,
		Reason:        reason,
		ChainLength:   len(blocks),
		LastBlockHash: hash.ZeroSentinel,
		Checkpoint:    hash.CheckpointRoot(blockHashes),
	}
	if len(blocks) > 0 {
		report.LastBlockHash = blocks[len(blocks)-1].BlockHash
	}

	return report, nil
}

// TailHash returns the block hash of the highest-sequence block, or the
// zero sentinel for an empty ledger.
func (l *Ledger) TailHash() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tail, err := l.loadTail()
	if err != nil {
		return "", err
	}
	if tail == nil {
		return hash.ZeroSentinel, nil
	}
	return tail.BlockHash, nil
}

// Blocks returns the full chain in sequence order, for reporting reads.
func (l *Ledger) Blocks() ([]Block, error) {
	return l.store.Blocks()
}

// LatestReceipt returns the most recent block committed for a booth, or
// nil when the booth has none. The raw voter id is not recoverable from it.
func (l *Ledger) LatestReceipt(boothID string) (*Block, error) {
	return l.store.LatestByBooth(boothID)
}

// ChainLength returns the number of committed blocks.
func (l *Ledger) ChainLength() (uint64, error) {
	return l.store.BlockCount()
}
