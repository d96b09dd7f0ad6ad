package ballot

import "time"

// Session is the authorization state granting one voter permission to cast
// a vote at one booth right now. The voter id is stored raw here, it is
// needed to display voter details before the vote is cast; only the ledger
// stores the one-way fingerprint.
type Session struct {
	ID             string    `json:"id"`
	BoothID        string    `json:"booth_id"`
	VoterID        string    `json:"voter_id"`
	Active         bool      `json:"is_active"`
	ActivationTime time.Time `json:"activation_time"`
	ActivationNote string    `json:"activation_note"`
}

// AuditEvent records an activation, override or mismatch for the retained
// audit trail. Events are append-only.
type AuditEvent struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	BoothID   string    `json:"booth_id"`
	VoterID   string    `json:"voter_id"`
	Note      string    `json:"note"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	AuditActivation   = "activation"
	AuditOverride     = "override"
	AuditDeactivation = "deactivation"
	AuditRejection    = "rejection"
)

// Store persists ballot sessions and the audit trail. SetActiveSession
// must atomically supersede any active session for the same booth; history
// rows are retained, never deleted. ActiveSession returns nil without
// error when the booth is idle.
type Store interface {
	SetActiveSession(s *Session) error
	DeactivateBooth(boothID string) error
	ActiveSession(boothID string) (*Session, error)
	AppendAudit(e *AuditEvent) error
	RecentAudit(limit int) ([]AuditEvent, error)
}
