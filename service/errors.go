package service

import (
	"errors"
	"fmt"

	"rsa-voting-backend/storage"
)

// Kind is the stable, wire-visible classification of a protocol error.
type Kind string

const (
	KindOK                 Kind = "OK"
	KindMalformedRequest   Kind = "MALFORMED_REQUEST"
	KindAlreadyRegistered  Kind = "ALREADY_REGISTERED"
	KindInvalidCredentials Kind = "INVALID_CREDENTIALS"
	KindAlreadyVoted       Kind = "ALREADY_VOTED"
	KindMalformedVote      Kind = "MALFORMED_VOTE"
	KindNotEligible        Kind = "NOT_ELIGIBLE"
	KindVotingClosed       Kind = "VOTING_CLOSED"
	KindCryptoFailure      Kind = "CRYPTO_FAILURE"
	KindStorageFailure     Kind = "STORAGE_FAILURE"
)

var (
	ErrMalformedRequest   = errors.New("malformed request")
	ErrAlreadyRegistered  = errors.New("citizen already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyVoted       = errors.New("voter has already voted")
	ErrMalformedVote      = errors.New("malformed vote")
	ErrNotEligible        = errors.New("citizen not eligible")
	ErrVotingClosed       = errors.New("voting session is closed")
	ErrCryptoFailure      = errors.New("cryptographic failure")
	ErrStorageFailure     = errors.New("storage failure")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrMalformedRequest, KindMalformedRequest},
	{ErrAlreadyRegistered, KindAlreadyRegistered},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrAlreadyVoted, KindAlreadyVoted},
	{ErrMalformedVote, KindMalformedVote},
	{ErrNotEligible, KindNotEligible},
	{ErrVotingClosed, KindVotingClosed},
	{ErrCryptoFailure, KindCryptoFailure},
	{ErrStorageFailure, KindStorageFailure},
}

// KindOf classifies err. Unclassified errors are reported as storage
// failures, the only kind a caller treats as transient.
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindStorageFailure
}

// IsRetryable reports whether the failed call may be repeated as is. Only
// storage failures are transient; a failed cast_vote must still be checked
// for its outcome before it is retried.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindStorageFailure
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedRequest, fmt.Sprintf(format, args...))
}

// storageError translates backend sentinels into the protocol taxonomy.
func storageError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrDuplicate):
		return ErrAlreadyRegistered
	case errors.Is(err, storage.ErrAlreadyVoted):
		return ErrAlreadyVoted
	default:
		return fmt.Errorf("%w: %s: %v", ErrStorageFailure, op, err)
	}
}

// ErrorForKind returns the sentinel for a wire code, or nil for OK and
// unknown codes.
func ErrorForKind(kind Kind) error {
	for _, k := range kinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}
