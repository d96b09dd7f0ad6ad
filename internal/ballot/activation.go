package ballot

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Activation is the per-booth state machine: a booth is either idle or
// holds exactly one active session. Mutations for one booth are serialized
// behind that booth's mutex; different booths proceed in parallel.
type Activation struct {
	store Store

	mu     sync.Mutex
	booths map[string]*sync.Mutex

	now func() time.Time
}

func NewActivation(store Store) *Activation {
	return &Activation{
		store:  store,
		booths: make(map[string]*sync.Mutex),
		now:    time.Now,
	}
}

func (a *Activation) boothLock(boothID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	lock, ok := a.booths[boothID]
	if !ok {
		lock = &sync.Mutex{}
		a.booths[boothID] = lock
	}
	return lock
}

// Activate authorizes voterID at boothID, superseding any active session
// for that booth. Last activation wins; activation never fails on business
// grounds, only on persistence.
func (a *Activation) Activate(voterID, boothID, note string) (*Session, error) {
	return a.activateAs(voterID, boothID, note, AuditActivation)
}

// Override is an officer-forced activation. The session it creates is
// indistinguishable from a regular one, only the audit kind differs.
func (a *Activation) Override(voterID, boothID, note string) (*Session, error) {
	return a.activateAs(voterID, boothID, note, AuditOverride)
}

func (a *Activation) activateAs(voterID, boothID, note, kind string) (*Session, error) {
	lock := a.boothLock(boothID)
	lock.Lock()
	defer lock.Unlock()

	session := &Session{
		ID:             uuid.NewString(),
		BoothID:        boothID,
		VoterID:        voterID,
		Active:         true,
		ActivationTime: a.now().UTC(),
		ActivationNote: note,
	}

	if err := a.store.SetActiveSession(session); err != nil {
		return nil, fmt.Errorf("failed to activate ballot at booth %s: %w", boothID, err)
	}

	a.recordAudit(kind, boothID, voterID, note)
	return session, nil
}

// Deactivate returns the booth to idle. Idempotent.
func (a *Activation) Deactivate(boothID string) error {
	lock := a.boothLock(boothID)
	lock.Lock()
	defer lock.Unlock()

	if err := a.store.DeactivateBooth(boothID); err != nil {
		return fmt.Errorf("failed to deactivate booth %s: %w", boothID, err)
	}

	a.recordAudit(AuditDeactivation, boothID, "", "")
	return nil
}

// CurrentSession returns the active session for the booth, or nil when the
// booth is idle. Safe to call concurrently with mutations; the store read
// is a snapshot.
func (a *Activation) CurrentSession(boothID string) (*Session, error) {
	return a.store.ActiveSession(boothID)
}

// Conclude runs the commit step of a vote cast under the booth lock. It
// re-checks that the active session still belongs to voterID, invokes
// commit, and deactivates the booth when commit asks for it (on success,
// or on a terminal rejection such as a duplicate vote). The booth lock is
// taken before any ledger lock inside commit, never the reverse.
func (a *Activation) Conclude(boothID, voterID string, commit func() (deactivate bool, err error)) error {
	lock := a.boothLock(boothID)
	lock.Lock()
	defer lock.Unlock()

	session, err := a.store.ActiveSession(boothID)
	if err != nil {
		return fmt.Errorf("failed to read booth %s session: %w", boothID, err)
	}
	if session == nil || session.VoterID != voterID {
		return &NotActiveError{BoothID: boothID, VoterID: voterID}
	}

	deactivate, commitErr := commit()
	if deactivate {
		if err := a.store.DeactivateBooth(boothID); err != nil {
			if commitErr != nil {
				return commitErr
			}
			return fmt.Errorf("vote recorded but booth %s deactivation failed: %w", boothID, err)
		}
	}

	return commitErr
}

// RecordRejection notes a denied activation or deactivation attempt in
// the audit trail.
func (a *Activation) RecordRejection(boothID, voterID, note string) {
	a.recordAudit(AuditRejection, boothID, voterID, note)
}

// RecentAudit returns up to limit audit events, newest first.
func (a *Activation) RecentAudit(limit int) ([]AuditEvent, error) {
	return a.store.RecentAudit(limit)
}

func (a *Activation) recordAudit(kind, boothID, voterID, note string) {
	event := &AuditEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		BoothID:   boothID,
		VoterID:   voterID,
		Note:      note,
		Timestamp: a.now().UTC(),
	}
	// The audit trail is best-effort, a failed append must not undo an
	// otherwise committed transition.
	_ = a.store.AppendAudit(event)
}
