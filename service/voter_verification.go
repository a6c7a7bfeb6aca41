package service

import (
	"fmt"

	"rsa-voting-backend/models"
	"rsa-voting-backend/registry"
)

// VoterVerificationService runs the checks a citizen must pass before a
// credential is issued.
type VoterVerificationService struct {
	officialRoll registry.Roll
}

// NewVoterVerificationService checks field formats and, when roll is not
// nil, eligibility against the official roll.
func NewVoterVerificationService(roll registry.Roll) *VoterVerificationService {
	return &VoterVerificationService{officialRoll: roll}
}

// VerifyVoter performs all necessary checks before registration
func (vvs *VoterVerificationService) VerifyVoter(citizen models.Citizen) error {
	if err := citizen.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}

	if vvs.officialRoll == nil {
		return nil
	}
	if err := vvs.officialRoll.Verify(citizen); err != nil {
		return fmt.Errorf("%w: %v", ErrNotEligible, err)
	}
	return nil
}

// HasRoll reports whether eligibility is restricted to a roll.
func (vvs *VoterVerificationService) HasRoll() bool {
	return vvs.officialRoll != nil
}
