package booth

import (
	"sort"

	"github.com/khurramrashidd/BharatVotes/internal/ledger"
	"github.com/khurramrashidd/BharatVotes/internal/roster"
)

// CandidateCount is one row of the live results view.
type CandidateCount struct {
	CandidateID  string `json:"candidate_id"`
	Name         string `json:"name"`
	Party        string `json:"party"`
	Constituency string `json:"constituency"`
	Count        int    `json:"count"`
}

type PartyCount struct {
	Party string `json:"party"`
	Count int    `json:"count"`
}

type TallyResult struct {
	TotalVotes int              `json:"total_votes"`
	Candidates []CandidateCount `json:"candidates"`
	Parties    []PartyCount     `json:"parties"`
}

// Tally aggregates the ledger read-only into per-candidate and per-party
// counts, sorted descending. Votes for candidates no longer in the roster
// are kept under their opaque id so totals always reconcile with the chain.
func Tally(blocks []ledger.Block, candidates []roster.Candidate) *TallyResult {
	counts := make(map[string]int)
	for i := range blocks {
		counts[blocks[i].CandidateID]++
	}

	known := make(map[string]bool, len(candidates))
	result := &TallyResult{
		TotalVotes: len(blocks),
		Candidates: make([]CandidateCount, 0, len(candidates)),
		Parties:    make([]PartyCount, 0),
	}

	partyCounts := make(map[string]int)
	for _, c := range candidates {
		known[c.CandidateID] = true
		count := counts[c.CandidateID]
		partyCounts[c.Party] += count
		result.Candidates = append(result.Candidates, CandidateCount{
			CandidateID:  c.CandidateID,
			Name:         c.Name,
			Party:        c.Party,
			Constituency: c.Constituency,
			Count:        count,
		})
	}

	for candidateID, count := range counts {
		if !known[candidateID] {
			result.Candidates = append(result.Candidates, CandidateCount{
				CandidateID: candidateID,
				Name:        candidateID,
				Count:       count,
			})
		}
	}

	for party, count := range partyCounts {
		result.Parties = append(result.Parties, PartyCount{Party: party, Count: count})
	}

	sort.Slice(result.Candidates, func(i, j int) bool {
		if result.Candidates[i].Count != result.Candidates[j].Count {
			return result.Candidates[i].Count > result.Candidates[j].Count
		}
		return result.Candidates[i].CandidateID < result.Candidates[j].CandidateID
	})
	sort.Slice(result.Parties, func(i, j int) bool {
		if result.Parties[i].Count != result.Parties[j].Count {
			return result.Parties[i].Count > result.Parties[j].Count
		}
		return result.Parties[i].Party < result.Parties[j].Party
	})

	return result
}
