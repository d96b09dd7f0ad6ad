package ledger

import (
	"errors"
	"fmt"
)

// AlreadyVotedError rejects a second block for the same voter fingerprint.
// Terminal for that voter, not retryable.
type AlreadyVotedError struct {
	Fingerprint string
}

func (e *AlreadyVotedError) Error() string {
	return fmt.Sprintf("voter has already cast a vote (fingerprint %s)", e.Fingerprint)
}

func IsAlreadyVoted(err error) bool {
	var ave *AlreadyVotedError
	return errors.As(err, &ave)
}

// IntegrityError reports tampering found by chain verification. The reason
// names the first offending block; nothing is repaired automatically.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("INTEGRITY VIOLATION: %s", e.Reason)
}

func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
