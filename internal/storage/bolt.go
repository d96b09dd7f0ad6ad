package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/khurramrashidd/BharatVotes/internal/auth"
	"github.com/khurramrashidd/BharatVotes/internal/ballot"
	"github.com/khurramrashidd/BharatVotes/internal/ledger"
	"github.com/khurramrashidd/BharatVotes/internal/roster"
)

var (
	BlocksBucket         = []byte("blocks")
	FingerprintsBucket   = []byte("fingerprints")
	BoothTailBucket      = []byte("booth_tail")
	ActiveSessionsBucket = []byte("active_sessions")
	SessionHistoryBucket = []byte("session_history")
	AuditBucket          = []byte("audit_events")
	CandidatesBucket     = []byte("candidates")
	OfficersBucket       = []byte("officers")
	MetadataBucket       = []byte("metadata")
)

// SchemaVersion is stamped into the metadata bucket when a store file is
// first created; a future layout change bumps it and migrates on open.
const SchemaVersion = "1"

const schemaVersionKey = "schema_version"

// Bolt is the embedded single-file engine. Block keys are big-endian
// sequence ids, so a cursor walk yields chain order.
type Bolt struct {
	db *bolt.DB
}

func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			BlocksBucket, FingerprintsBucket, BoothTailBucket,
			ActiveSessionsBucket, SessionHistoryBucket, AuditBucket,
			CandidatesBucket, OfficersBucket, MetadataBucket,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	store := &Bolt{db: db}
	if _, err := store.GetMetadata(schemaVersionKey); err != nil {
		if err := store.SetMetadata(schemaVersionKey, SchemaVersion); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to stamp schema version: %w", err)
		}
	}

	return store, nil
}

// SchemaVersion reports the layout version the store file was created with.
func (s *Bolt) SchemaVersion() (string, error) {
	return s.GetMetadata(schemaVersionKey)
}

func (s *Bolt) Close() error {
	return s.db.Close()
}

func sequenceKey(sequenceID uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, sequenceID)
	return key
}

// AppendBlock commits one block. Duplicate sequence ids and duplicate
// voter fingerprints are rejected inside the same transaction that writes
// the block, a backstop under the ledger's own serialization.
func (s *Bolt) AppendBlock(b *ledger.Block) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		blocks := tx.Bucket(BlocksBucket)
		key := sequenceKey(b.SequenceID)

		if blocks.Get(key) != nil {
			return fmt.Errorf("block %d already exists", b.SequenceID)
		}

		fingerprints := tx.Bucket(FingerprintsBucket)
		if fingerprints.Get([]byte(b.VoterFingerprint)) != nil {
			return fmt.Errorf("fingerprint already present in ledger")
		}

		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to marshal block: %w", err)
		}

		if err := blocks.Put(key, data); err != nil {
			return err
		}
		if err := fingerprints.Put([]byte(b.VoterFingerprint), key); err != nil {
			return err
		}
		return tx.Bucket(BoothTailBucket).Put([]byte(b.BoothID), key)
	})
}

func (s *Bolt) TailBlock() (*ledger.Block, error) {
	var block *ledger.Block

	err := s.db.View(func(tx *bolt.Tx) error {
		_, data := tx.Bucket(BlocksBucket).Cursor().Last()
		if data == nil {
			return nil
		}

		var b ledger.Block
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("failed to unmarshal tail block: %w", err)
		}
		block = &b
		return nil
	})
	if err != nil {
		return nil, err
	}

	return block, nil
}

func (s *Bolt) HasFingerprint(fingerprint string) (bool, error) {
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(FingerprintsBucket).Get([]byte(fingerprint)) != nil
		return nil
	})

	return found, err
}

func (s *Bolt) Blocks() ([]ledger.Block, error) {
	blocks := make([]ledger.Block, 0)

	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(BlocksBucket).Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var b ledger.Block
			if err := json.Unmarshal(v, &b); err != nil {
				return fmt.Errorf("failed to unmarshal block: %w", err)
			}
			blocks = append(blocks, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return blocks, nil
}

func (s *Bolt) LatestByBooth(boothID string) (*ledger.Block, error) {
	var block *ledger.Block

	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(BoothTailBucket).Get([]byte(boothID))
		if key == nil {
			return nil
		}

		data := tx.Bucket(BlocksBucket).Get(key)
		if data == nil {
			return fmt.Errorf("booth tail points at missing block")
		}

		var b ledger.Block
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("failed to unmarshal block: %w", err)
		}
		block = &b
		return nil
	})
	if err != nil {
		return nil, err
	}

	return block, nil
}

func (s *Bolt) BlockCount() (uint64, error) {
	var count uint64

	err := s.db.View(func(tx *bolt.Tx) error {
		count = uint64(tx.Bucket(BlocksBucket).Stats().KeyN)
		return nil
	})

	return count, err
}

// SetActiveSession supersedes any active session for the booth and writes
// the new one, in a single transaction. The superseded session goes to the
// history bucket flipped inactive.
func (s *Bolt) SetActiveSession(session *ballot.Session) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := retireActiveLocked(tx, session.BoothID); err != nil {
			return err
		}

		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}

		if err := tx.Bucket(ActiveSessionsBucket).Put([]byte(session.BoothID), data); err != nil {
			return err
		}
		return appendHistoryLocked(tx, data)
	})
}

// DeactivateBooth returns the booth to idle. No-op when already idle.
func (s *Bolt) DeactivateBooth(boothID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return retireActiveLocked(tx, boothID)
	})
}

func retireActiveLocked(tx *bolt.Tx, boothID string) error {
	active := tx.Bucket(ActiveSessionsBucket)
	data := active.Get([]byte(boothID))
	if data == nil {
		return nil
	}

	var session ballot.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return fmt.Errorf("failed to unmarshal active session: %w", err)
	}
	session.Active = false

	retired, err := json.Marshal(&session)
	if err != nil {
		return fmt.Errorf("failed to marshal retired session: %w", err)
	}
	if err := appendHistoryLocked(tx, retired); err != nil {
		return err
	}

	return active.Delete([]byte(boothID))
}

func appendHistoryLocked(tx *bolt.Tx, data []byte) error {
	history := tx.Bucket(SessionHistoryBucket)
	seq, err := history.NextSequence()
	if err != nil {
		return err
	}
	return history.Put(sequenceKey(seq), data)
}

func (s *Bolt) ActiveSession(boothID string) (*ballot.Session, error) {
	var session *ballot.Session

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(ActiveSessionsBucket).Get([]byte(boothID))
		if data == nil {
			return nil
		}

		var bs ballot.Session
		if err := json.Unmarshal(data, &bs); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		session = &bs
		return nil
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

func (s *Bolt) AppendAudit(event *ballot.AuditEvent) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		audit := tx.Bucket(AuditBucket)
		seq, err := audit.NextSequence()
		if err != nil {
			return err
		}

		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal audit event: %w", err)
		}
		return audit.Put(sequenceKey(seq), data)
	})
}

func (s *Bolt) RecentAudit(limit int) ([]ballot.AuditEvent, error) {
	events := make([]ballot.AuditEvent, 0, limit)

	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(AuditBucket).Cursor()
		for k, v := cursor.Last(); k != nil && len(events) < limit; k, v = cursor.Prev() {
			var event ballot.AuditEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return fmt.Errorf("failed to unmarshal audit event: %w", err)
			}
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return events, nil
}

func (s *Bolt) PutCandidate(c *roster.Candidate) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal candidate: %w", err)
		}
		return tx.Bucket(CandidatesBucket).Put([]byte(c.CandidateID), data)
	})
}

func (s *Bolt) Candidate(candidateID string) (*roster.Candidate, error) {
	var candidate *roster.Candidate

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(CandidatesBucket).Get([]byte(candidateID))
		if data == nil {
			return nil
		}

		var c roster.Candidate
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("failed to unmarshal candidate: %w", err)
		}
		candidate = &c
		return nil
	})
	if err != nil {
		return nil, err
	}

	return candidate, nil
}

func (s *Bolt) Candidates() ([]roster.Candidate, error) {
	candidates := make([]roster.Candidate, 0)

	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(CandidatesBucket).Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var c roster.Candidate
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("failed to unmarshal candidate: %w", err)
			}
			candidates = append(candidates, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return candidates, nil
}

func (s *Bolt) PutOfficer(o *auth.Officer) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("failed to marshal officer: %w", err)
		}
		return tx.Bucket(OfficersBucket).Put([]byte(o.Username), data)
	})
}

func (s *Bolt) Officer(username string) (*auth.Officer, error) {
	var officer *auth.Officer

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(OfficersBucket).Get([]byte(username))
		if data == nil {
			return nil
		}

		var o auth.Officer
		if err := json.Unmarshal(data, &o); err != nil {
			return fmt.Errorf("failed to unmarshal officer: %w", err)
		}
		officer = &o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return officer, nil
}

func (s *Bolt) SetMetadata(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(MetadataBucket).Put([]byte(key), []byte(value))
	})
}

func (s *Bolt) GetMetadata(key string) (string, error) {
	var value string

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(MetadataBucket).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("metadata key not found: %s", key)
		}
		value = string(data)
		return nil
	})

	return value, err
}
