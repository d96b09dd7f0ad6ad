package booth

import (
	"github.com/khurramrashidd/BharatVotes/internal/ballot"
	"github.com/khurramrashidd/BharatVotes/internal/ledger"
)

// CastingService runs the cast-vote transaction end to end: it requires a
// matching active ballot session, appends the block, and returns the booth
// to idle. Failures before the append leave all state unchanged.
type CastingService struct {
	ballots *ballot.Activation
	ledger  *ledger.Ledger
}

func NewCastingService(ballots *ballot.Activation, l *ledger.Ledger) *CastingService {
	return &CastingService{
		ballots: ballots,
		ledger:  l,
	}
}

// CastVote returns the voter's receipt on success. It fails with
// ballot.NotActiveError when no matching session is active and with
// ledger.AlreadyVotedError on a duplicate vote; a duplicate also retires
// the session, that voter gets no further attempts from it.
func (s *CastingService) CastVote(voterID, candidateID, boothID string) (string, error) {
	var receipt string

	err := s.ballots.Conclude(boothID, voterID, func() (bool, error) {
		block, err := s.ledger.Append(voterID, candidateID, boothID)
		if err != nil {
			return ledger.IsAlreadyVoted(err), err
		}
		receipt = block.Receipt
		return true, nil
	})
	if err != nil {
		return "", err
	}

	return receipt, nil
}
