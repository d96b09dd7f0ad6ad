package roster

import "fmt"

// Candidate is the roster entry supplied by the nomination collaborator.
// Eligibility beyond identifier presence is that collaborator's concern,
// not re-checked here or by the ledger.
type Candidate struct {
	CandidateID  string `json:"candidate_id"`
	Name         string `json:"name"`
	Party        string `json:"party"`
	Constituency string `json:"constituency"`
	State        string `json:"state,omitempty"`
}

// Store persists the roster. Candidate returns nil without error when the
// id is unknown.
type Store interface {
	PutCandidate(c *Candidate) error
	Candidate(candidateID string) (*Candidate, error)
	Candidates() ([]Candidate, error)
}

type Registry struct {
	store Store
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

func (r *Registry) Add(c *Candidate) error {
	if c.CandidateID == "" {
		return fmt.Errorf("candidate id is required")
	}
	if err := r.store.PutCandidate(c); err != nil {
		return fmt.Errorf("failed to store candidate %s: %w", c.CandidateID, err)
	}
	return nil
}

func (r *Registry) Get(candidateID string) (*Candidate, error) {
	return r.store.Candidate(candidateID)
}

func (r *Registry) List() ([]Candidate, error) {
	return r.store.Candidates()
}

// Exists reports identifier presence, the only roster check the voting
// surface performs before casting.
func (r *Registry) Exists(candidateID string) (bool, error) {
	c, err := r.store.Candidate(candidateID)
	if err != nil {
		return false, err
	}
	return c != nil, nil
}
