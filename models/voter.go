package models

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Citizen is the personal data supplied at registration. It is only used to
// check eligibility and derive the identity key; it is never persisted by
// the protocol.
type Citizen struct {
	CNP       string `json:"cnp"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// VoterCredential is the persisted authentication record of a registered
// voter. HasVoted only ever moves from false to true.
type VoterCredential struct {
	ID           string `json:"id"`
	IdentityKey  string `json:"identity_key"`
	PINHash      string `json:"pin_hash"`
	HasVoted     bool   `json:"has_voted"`
	RegisteredAt int64  `json:"registered_at"`
}

// VoterStats summarises the registry without exposing any identity.
type VoterStats struct {
	Registered int `json:"registered"`
	Voted      int `json:"voted"`
	Votes      int `json:"votes"`
}

const (
	CNPLength    = 13
	MaxNameBytes = 64
)

// ValidCNP reports whether cnp is exactly CNPLength ASCII digits.
func ValidCNP(cnp string) bool {
	return len(cnp) == CNPLength && allDigits(cnp)
}

// ValidPIN reports whether pin is exactly digits ASCII digits.
func ValidPIN(pin string, digits int) bool {
	return digits > 0 && len(pin) == digits && allDigits(pin)
}

// Validate checks the shape of the registration fields.
func (c Citizen) Validate() error {
	if !ValidCNP(c.CNP) {
		return fmt.Errorf("cnp must be %d digits", CNPLength)
	}
	if err := validateName("first_name", c.FirstName); err != nil {
		return err
	}
	return validateName("last_name", c.LastName)
}

func validateName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(name) > MaxNameBytes {
		return fmt.Errorf("%s exceeds %d bytes", field, MaxNameBytes)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%s is not valid UTF-8", field)
	}
	return nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
