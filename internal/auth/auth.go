package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Officer is a booth official allowed to activate ballots manually.
type Officer struct {
	Username     string `json:"username"`
	BoothID      string `json:"booth_id"`
	PasswordHash string `json:"password_hash"`
}

// Store persists officer accounts. Officer returns nil without error for
// an unknown username.
type Store interface {
	PutOfficer(o *Officer) error
	Officer(username string) (*Officer, error)
}

var ErrUnauthorized = errors.New("officer authentication failed")

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

type Officers struct {
	store Store
}

func NewOfficers(store Store) *Officers {
	return &Officers{store: store}
}

// Register creates or replaces an officer account for a booth.
func (o *Officers) Register(username, password, boothID string) error {
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return err
	}

	officer := &Officer{
		Username:     username,
		BoothID:      boothID,
		PasswordHash: hashed,
	}
	if err := o.store.PutOfficer(officer); err != nil {
		return fmt.Errorf("failed to store officer %s: %w", username, err)
	}
	return nil
}

// Authenticate checks the credentials and, when boothID is non-empty, that
// the officer is assigned to that booth. Unknown users and bad passwords
// are indistinguishable to the caller.
func (o *Officers) Authenticate(username, password, boothID string) error {
	officer, err := o.store.Officer(username)
	if err != nil {
		return fmt.Errorf("failed to look up officer: %w", err)
	}
	if officer == nil {
		return ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(officer.PasswordHash), []byte(password)); err != nil {
		return ErrUnauthorized
	}

	if boothID != "" && officer.BoothID != boothID {
		return ErrUnauthorized
	}

	return nil
}
