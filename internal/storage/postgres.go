package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khurramrashidd/BharatVotes/internal/auth"
	"github.com/khurramrashidd/BharatVotes/internal/ballot"
	"github.com/khurramrashidd/BharatVotes/internal/ledger"
	"github.com/khurramrashidd/BharatVotes/internal/roster"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS blocks (
	sequence_id       BIGINT PRIMARY KEY,
	voter_fingerprint TEXT NOT NULL UNIQUE,
	candidate_id      TEXT NOT NULL,
	booth_id          TEXT NOT NULL,
	ts                TIMESTAMPTZ NOT NULL,
	receipt           TEXT NOT NULL,
	previous_hash     TEXT NOT NULL,
	block_hash        TEXT NOT NULL,
	nonce             BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_blocks_booth ON blocks(booth_id, sequence_id DESC);

CREATE TABLE IF NOT EXISTS ballot_sessions (
	id              TEXT PRIMARY KEY,
	booth_id        TEXT NOT NULL,
	voter_id        TEXT NOT NULL,
	is_active       BOOLEAN NOT NULL,
	activation_time TIMESTAMPTZ NOT NULL,
	activation_note TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_one_active_per_booth
	ON ballot_sessions(booth_id) WHERE is_active;

CREATE TABLE IF NOT EXISTS audit_events (
	seq      BIGSERIAL PRIMARY KEY,
	id       TEXT NOT NULL,
	kind     TEXT NOT NULL,
	booth_id TEXT NOT NULL,
	voter_id TEXT NOT NULL,
	note     TEXT NOT NULL DEFAULT '',
	ts       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS candidates (
	candidate_id TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	party        TEXT NOT NULL DEFAULT '',
	constituency TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS officers (
	username      TEXT PRIMARY KEY,
	booth_id      TEXT NOT NULL,
	password_hash TEXT NOT NULL
);
`

// Postgres is the pgx-backed engine. The in-process ledger lock is the
// primary serialization; the unique constraints on sequence_id and
// voter_fingerprint are the durable backstop.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func (s *Postgres) AppendBlock(b *ledger.Block) error {
	_, err := s.pool.Exec(context.Background(), `
		INSERT INTO blocks (sequence_id, voter_fingerprint, candidate_id, booth_id, ts, receipt, previous_hash, block_hash, nonce)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, b.SequenceID, b.VoterFingerprint, b.CandidateID, b.BoothID, b.Timestamp, b.Receipt, b.PreviousHash, b.BlockHash, b.Nonce)
	if err != nil {
		return fmt.Errorf("failed to insert block %d: %w", b.SequenceID, err)
	}
	return nil
}

func scanBlock(row pgx.Row) (*ledger.Block, error) {
	var b ledger.Block
	err := row.Scan(&b.SequenceID, &b.VoterFingerprint, &b.CandidateID, &b.BoothID,
		&b.Timestamp, &b.Receipt, &b.PreviousHash, &b.BlockHash, &b.Nonce)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const blockColumns = "sequence_id, voter_fingerprint, candidate_id, booth_id, ts, receipt, previous_hash, block_hash, nonce"

func (s *Postgres) TailBlock() (*ledger.Block, error) {
	row := s.pool.QueryRow(context.Background(),
		"SELECT "+blockColumns+" FROM blocks ORDER BY sequence_id DESC LIMIT 1")

	block, err := scanBlock(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tail block: %w", err)
	}
	return block, nil
}

func (s *Postgres) HasFingerprint(fingerprint string) (bool, error) {
	var found bool
	err := s.pool.QueryRow(context.Background(),
		"SELECT EXISTS (SELECT 1 FROM blocks WHERE voter_fingerprint = $1)", fingerprint).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("failed to check fingerprint: %w", err)
	}
	return found, nil
}

func (s *Postgres) Blocks() ([]ledger.Block, error) {
	rows, err := s.pool.Query(context.Background(),
		"SELECT "+blockColumns+" FROM blocks ORDER BY sequence_id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer rows.Close()

	blocks := make([]ledger.Block, 0)
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		blocks = append(blocks, *block)
	}
	return blocks, rows.Err()
}

func (s *Postgres) LatestByBooth(boothID string) (*ledger.Block, error) {
	row := s.pool.QueryRow(context.Background(),
		"SELECT "+blockColumns+" FROM blocks WHERE booth_id = $1 ORDER BY sequence_id DESC LIMIT 1", boothID)

	block, err := scanBlock(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read booth tail: %w", err)
	}
	return block, nil
}

func (s *Postgres) BlockCount() (uint64, error) {
	var count uint64
	err := s.pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM blocks").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count blocks: %w", err)
	}
	return count, nil
}

// SetActiveSession retires any active session for the booth and inserts
// the new one in one transaction, so the partial unique index never sees
// two active rows.
func (s *Postgres) SetActiveSession(session *ballot.Session) error {
	ctx := context.Background()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"UPDATE ballot_sessions SET is_active = FALSE WHERE booth_id = $1 AND is_active", session.BoothID); err != nil {
		return fmt.Errorf("failed to supersede active session: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO ballot_sessions (id, booth_id, voter_id, is_active, activation_time, activation_note)
		VALUES ($1, $2, $3, TRUE, $4, $5)
	`, session.ID, session.BoothID, session.VoterID, session.ActivationTime, session.ActivationNote); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Postgres) DeactivateBooth(boothID string) error {
	_, err := s.pool.Exec(context.Background(),
		"UPDATE ballot_sessions SET is_active = FALSE WHERE booth_id = $1 AND is_active", boothID)
	if err != nil {
		return fmt.Errorf("failed to deactivate booth %s: %w", boothID, err)
	}
	return nil
}

func (s *Postgres) ActiveSession(boothID string) (*ballot.Session, error) {
	var bs ballot.Session
	err := s.pool.QueryRow(context.Background(), `
		SELECT id, booth_id, voter_id, is_active, activation_time, activation_note
		FROM ballot_sessions WHERE booth_id = $1 AND is_active
	`, boothID).Scan(&bs.ID, &bs.BoothID, &bs.VoterID, &bs.Active, &bs.ActivationTime, &bs.ActivationNote)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read active session: %w", err)
	}
	return &bs, nil
}

func (s *Postgres) AppendAudit(event *ballot.AuditEvent) error {
	_, err := s.pool.Exec(context.Background(), `
		INSERT INTO audit_events (id, kind, booth_id, voter_id, note, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, event.Kind, event.BoothID, event.VoterID, event.Note, event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

func (s *Postgres) RecentAudit(limit int) ([]ballot.AuditEvent, error) {
	rows, err := s.pool.Query(context.Background(), `
		SELECT id, kind, booth_id, voter_id, note, ts
		FROM audit_events ORDER BY seq DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]ballot.AuditEvent, 0, limit)
	for rows.Next() {
		var e ballot.AuditEvent
		if err := rows.Scan(&e.ID, &e.Kind, &e.BoothID, &e.VoterID, &e.Note, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Postgres) PutCandidate(c *roster.Candidate) error {
	_, err := s.pool.Exec(context.Background(), `
		INSERT INTO candidates (candidate_id, name, party, constituency, state)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (candidate_id) DO UPDATE
		SET name = $2, party = $3, constituency = $4, state = $5
	`, c.CandidateID, c.Name, c.Party, c.Constituency, c.State)
	if err != nil {
		return fmt.Errorf("failed to upsert candidate: %w", err)
	}
	return nil
}

func (s *Postgres) Candidate(candidateID string) (*roster.Candidate, error) {
	var c roster.Candidate
	err := s.pool.QueryRow(context.Background(), `
		SELECT candidate_id, name, party, constituency, state
		FROM candidates WHERE candidate_id = $1
	`, candidateID).Scan(&c.CandidateID, &c.Name, &c.Party, &c.Constituency, &c.State)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read candidate: %w", err)
	}
	return &c, nil
}

func (s *Postgres) Candidates() ([]roster.Candidate, error) {
	rows, err := s.pool.Query(context.Background(), `
		SELECT candidate_id, name, party, constituency, state
		FROM candidates ORDER BY candidate_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]roster.Candidate, 0)
	for rows.Next() {
		var c roster.Candidate
		if err := rows.Scan(&c.CandidateID, &c.Name, &c.Party, &c.Constituency, &c.State); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (s *Postgres) PutOfficer(o *auth.Officer) error {
	_, err := s.pool.Exec(context.Background(), `
		INSERT INTO officers (username, booth_id, password_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE SET booth_id = $2, password_hash = $3
	`, o.Username, o.BoothID, o.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to upsert officer: %w", err)
	}
	return nil
}

func (s *Postgres) Officer(username string) (*auth.Officer, error) {
	var o auth.Officer
	err := s.pool.QueryRow(context.Background(), `
		SELECT username, booth_id, password_hash FROM officers WHERE username = $1
	`, username).Scan(&o.Username, &o.BoothID, &o.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read officer: %w", err)
	}
	return &o, nil
}
