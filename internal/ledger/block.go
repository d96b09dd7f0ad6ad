package ledger

import (
	"time"

	"github.com/khurramrashidd/BharatVotes/internal/hash"
)

// Block is one committed vote record. Once written it is immutable, new
// blocks link to it through PreviousHash.
type Block struct {
	SequenceID       uint64    `json:"sequence_id"`
	VoterFingerprint string    `json:"voter_fingerprint"`
	CandidateID      string    `json:"candidate_id"`
	BoothID          string    `json:"booth_id"`
	Timestamp        time.Time `json:"timestamp"`
	Receipt          string    `json:"receipt"`
	PreviousHash     string    `json:"previous_hash"`
	BlockHash        string    `json:"block_hash"`
	// Nonce is reserved for difficulty-based extensions and is always zero.
	Nonce uint64 `json:"nonce"`
}

// ChainRecord projects the hash-relevant fields for verification.
func (b *Block) ChainRecord() hash.ChainRecord {
	return hash.ChainRecord{
		SequenceID:   b.SequenceID,
		PreviousHash: b.PreviousHash,
		CandidateID:  b.CandidateID,
		Timestamp:    b.Timestamp,
		Nonce:        b.Nonce,
		BlockHash:    b.BlockHash,
	}
}

// Store is the durable, append-only home of the chain. AppendBlock must
// reject a duplicate sequence id or voter fingerprint; TailBlock and
// LatestByBooth return nil without error when nothing matches.
type Store interface {
	AppendBlock(b *Block) error
	TailBlock() (*Block, error)
	HasFingerprint(fingerprint string) (bool, error)
	Blocks() ([]Block, error)
	LatestByBooth(boothID string) (*Block, error)
	BlockCount() (uint64, error)
}
