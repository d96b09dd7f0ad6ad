package ballot

import (
	"errors"
	"fmt"
)

// NotActiveError rejects a cast attempt with no matching active session,
// covering both "never activated" and "activated for a different voter".
// Recoverable by re-activation.
type NotActiveError struct {
	BoothID string
	VoterID string
}

func (e *NotActiveError) Error() string {
	return fmt.Sprintf("ballot not active for voter %s at booth %s", e.VoterID, e.BoothID)
}

func IsNotActive(err error) bool {
	var nae *NotActiveError
	return errors.As(err, &nae)
}
