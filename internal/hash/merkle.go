package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// MerkleTree folds an ordered list of block hashes into a single checkpoint
// digest. Auditors holding a copy of the ledger can recompute the root and
// compare it against the published one without replaying the whole chain
// link by link. Leaf order is the ledger order and is significant.
type MerkleTree struct {
	leaves []string
}

func NewMerkleTree() *MerkleTree {
	return &MerkleTree{
		leaves: make([]string, 0),
	}
}

func (mt *MerkleTree) AddLeaf(blockHash string) {
	mt.leaves = append(mt.leaves, blockHash)
}

func (mt *MerkleTree) LeafCount() int {
	return len(mt.leaves)
}

// Root returns the checkpoint digest, or "" for an empty tree. An odd node
// at any level is paired with itself.
func (mt *MerkleTree) Root() string {
	if len(mt.leaves) == 0 {
		return ""
	}
	return calculateRoot(mt.leaves)
}

func calculateRoot(hashes []string) string {
	if len(hashes) == 1 {
		return hashes[0]
	}

	var nextLevel []string
	for i := 0; i < len(hashes); i += 2 {
		var combined string
		if i+1 < len(hashes) {
			combined = hashes[i] + hashes[i+1]
		} else {
			combined = hashes[i] + hashes[i]
		}
		sum := sha256.Sum256([]byte(combined))
		nextLevel = append(nextLevel, hex.EncodeToString(sum[:]))
	}

	return calculateRoot(nextLevel)
}

// CheckpointRoot is the one-shot form used by integrity reports.
func CheckpointRoot(blockHashes []string) string {
	mt := NewMerkleTree()
	for _, h := range blockHashes {
		mt.AddLeaf(h)
	}
	return mt.Root()
}
