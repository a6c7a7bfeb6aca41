// Package storage holds the persistence collaborators of the voting protocol:
// the identity registry (voter credentials), the append-only vote store and
// the singleton authority key record.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"rsa-voting-backend/encryption"
	"rsa-voting-backend/models"
)

var (
	ErrNotFound     = errors.New("storage: record not found")
	ErrDuplicate    = errors.New("storage: identity key already registered")
	ErrAlreadyVoted = errors.New("storage: voter has already voted")
)

// IdentityRegistry stores voter credentials keyed by a unique identity key.
type IdentityRegistry interface {
	// CreateVoter inserts a new credential. It fails with ErrDuplicate when
	// the identity key is taken.
	CreateVoter(ctx context.Context, voter *models.VoterCredential) error
	VoterByIdentityKey(ctx context.Context, identityKey string) (*models.VoterCredential, error)
	VoterByID(ctx context.Context, id string) (*models.VoterCredential, error)
}

// VoteStore is the append-only ballot box.
type VoteStore interface {
	// CommitVote appends ciphertext to the ledger and flips the voter's
	// has_voted flag as one atomic step. It fails with ErrAlreadyVoted when
	// the flag is already set, leaving the ledger untouched.
	CommitVote(ctx context.Context, voterID string, ciphertext []byte) (*models.VoteRecord, error)
	Votes(ctx context.Context) ([]*models.VoteRecord, error)
}

// KeyStore persists the authority key pair.
type KeyStore interface {
	LoadKeyPair(ctx context.Context) (*encryption.KeyPair, error)
	// SaveKeyPairIfAbsent stores kp unless a key pair already exists and
	// returns whichever pair is persisted afterwards.
	SaveKeyPairIfAbsent(ctx context.Context, kp *encryption.KeyPair) (*encryption.KeyPair, error)
}

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks rsa-voting-backend/storage Store

// Store is everything the protocol needs from a backend.
type Store interface {
	IdentityRegistry
	VoteStore
	KeyStore
	Stats(ctx context.Context) (models.VoterStats, error)
	Close() error
}

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Open returns the backend named by backend. For json, location is a
// directory ("" keeps everything in memory); for sqlite it is a database
// file path or DSN.
func Open(backend, location string) (Store, error) {
	switch backend {
	case BackendJSON, "":
		return NewJSONStore(location)
	case BackendSQLite:
		return NewSQLStore(location)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// keyRecord is the persisted form of a key pair.
type keyRecord struct {
	E string `json:"e"`
	N string `json:"n"`
	D string `json:"d"`
}

func newKeyRecord(kp *encryption.KeyPair) keyRecord {
	return keyRecord{
		E: hexutil.Encode(kp.Public.E.Bytes()),
		N: hexutil.Encode(kp.Public.N.Bytes()),
		D: hexutil.Encode(kp.Private.D.Bytes()),
	}
}

func (r keyRecord) keyPair() (*encryption.KeyPair, error) {
	e, err := decodeBig(r.E)
	if err != nil {
		return nil, fmt.Errorf("invalid public exponent: %w", err)
	}
	n, err := decodeBig(r.N)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	d, err := decodeBig(r.D)
	if err != nil {
		return nil, fmt.Errorf("invalid private exponent: %w", err)
	}
	return &encryption.KeyPair{
		Public:  encryption.PublicKey{E: e, N: n},
		Private: encryption.PrivateKey{D: d, N: new(big.Int).Set(n)},
	}, nil
}

func decodeBig(s string) (*big.Int, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

func copyVoter(v *models.VoterCredential) *models.VoterCredential {
	c := *v
	return &c
}
