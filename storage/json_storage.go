package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"rsa-voting-backend/encryption"
	"rsa-voting-backend/models"
)

const (
	ballotBoxFile = "ballot_box.json"
	keysFile      = "authority_keys.json"
)

// ballotBox is the on-disk layout. Voters and votes share one file so a
// vote commit is a single atomic rename.
type ballotBox struct {
	Voters []*models.VoterCredential `json:"voters"`
	Votes  []*models.VoteRecord      `json:"votes"`
}

// JSONStore keeps all state in memory and mirrors it to JSON files under
// basePath. An empty basePath disables persistence.
type JSONStore struct {
	basePath string

	mu         sync.RWMutex
	voters     map[string]*models.VoterCredential // by id
	byIdentity map[string]string                  // identity key -> id
	order      []string                           // ids in registration order
	votes      []*models.VoteRecord

	keyMu sync.Mutex
	keys  *encryption.KeyPair
}

// NewMemoryStore returns a JSONStore without persistence.
func NewMemoryStore() *JSONStore {
	s, _ := NewJSONStore("")
	return s
}

func NewJSONStore(basePath string) (*JSONStore, error) {
	store := &JSONStore{
		basePath:   basePath,
		voters:     make(map[string]*models.VoterCredential),
		byIdentity: make(map[string]string),
	}
	if basePath == "" {
		return store, nil
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	box, err := store.loadBallotBox()
	if err != nil {
		return nil, fmt.Errorf("failed to load ballot box: %w", err)
	}
	for _, v := range box.Voters {
		if _, dup := store.byIdentity[v.IdentityKey]; dup {
			return nil, fmt.Errorf("ballot box lists identity key %s twice", v.IdentityKey)
		}
		store.voters[v.ID] = v
		store.byIdentity[v.IdentityKey] = v.ID
		store.order = append(store.order, v.ID)
	}
	store.votes = box.Votes

	if !models.ValidateChain(store.votes) {
		log.Warn().Str("path", store.path(ballotBoxFile)).Msg("Vote ledger failed hash-chain validation")
	}

	return store, nil
}

func (s *JSONStore) path(name string) string {
	return filepath.Join(s.basePath, name)
}

func (s *JSONStore) CreateVoter(ctx context.Context, voter *models.VoterCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byIdentity[voter.IdentityKey]; exists {
		return ErrDuplicate
	}
	if _, exists := s.voters[voter.ID]; exists {
		return fmt.Errorf("voter id %s already in use", voter.ID)
	}

	stored := copyVoter(voter)
	s.voters[stored.ID] = stored
	s.byIdentity[stored.IdentityKey] = stored.ID
	s.order = append(s.order, stored.ID)

	if err := s.persistLocked(); err != nil {
		delete(s.voters, stored.ID)
		delete(s.byIdentity, stored.IdentityKey)
		s.order = s.order[:len(s.order)-1]
		return err
	}
	return nil
}

func (s *JSONStore) VoterByIdentityKey(ctx context.Context, identityKey string) (*models.VoterCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdentity[identityKey]
	if !ok {
		return nil, ErrNotFound
	}
	return copyVoter(s.voters[id]), nil
}

func (s *JSONStore) VoterByID(ctx context.Context, id string) (*models.VoterCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.voters[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyVoter(v), nil
}

func (s *JSONStore) CommitVote(ctx context.Context, voterID string, ciphertext []byte) (*models.VoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	voter, ok := s.voters[voterID]
	if !ok {
		return nil, ErrNotFound
	}
	if voter.HasVoted {
		return nil, ErrAlreadyVoted
	}

	record := models.NewVoteRecord(uint64(len(s.votes)), ciphertext, models.LastHash(s.votes))
	s.votes = append(s.votes, record)
	voter.HasVoted = true

	if err := s.persistLocked(); err != nil {
		s.votes = s.votes[:len(s.votes)-1]
		voter.HasVoted = false
		return nil, err
	}

	return record, nil
}

func (s *JSONStore) Votes(ctx context.Context) ([]*models.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Return a copy of the slice; records are never mutated after append.
	votes := make([]*models.VoteRecord, len(s.votes))
	copy(votes, s.votes)
	return votes, nil
}

func (s *JSONStore) Stats(ctx context.Context) (models.VoterStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.VoterStats{Registered: len(s.voters), Votes: len(s.votes)}
	for _, v := range s.voters {
		if v.HasVoted {
			stats.Voted++
		}
	}
	return stats, nil
}

func (s *JSONStore) LoadKeyPair(ctx context.Context) (*encryption.KeyPair, error) {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	return s.loadKeysLocked()
}

func (s *JSONStore) loadKeysLocked() (*encryption.KeyPair, error) {
	if s.basePath == "" {
		if s.keys == nil {
			return nil, ErrNotFound
		}
		return s.keys, nil
	}

	data, err := os.ReadFile(s.path(keysFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	var record keyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse key file: %w", err)
	}
	return record.keyPair()
}

// SaveKeyPairIfAbsent publishes the key file with a hard link so that when
// several processes race on the same directory exactly one file wins.
func (s *JSONStore) SaveKeyPairIfAbsent(ctx context.Context, kp *encryption.KeyPair) (*encryption.KeyPair, error) {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()

	existing, err := s.loadKeysLocked()
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if s.basePath == "" {
		s.keys = kp
		return kp, nil
	}

	data, err := json.MarshalIndent(newKeyRecord(kp), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key pair: %w", err)
	}

	tmp, err := os.CreateTemp(s.basePath, keysFile+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create key file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to restrict key file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}

	if err := os.Link(tmpPath, s.path(keysFile)); err != nil {
		if os.IsExist(err) {
			return s.loadKeysLocked()
		}
		return nil, fmt.Errorf("failed to publish key file: %w", err)
	}

	return kp, nil
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) loadBallotBox() (*ballotBox, error) {
	data, err := os.ReadFile(s.path(ballotBoxFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &ballotBox{}, nil
		}
		return nil, err
	}

	var box ballotBox
	if err := json.Unmarshal(data, &box); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ballot box: %w", err)
	}
	return &box, nil
}

func (s *JSONStore) persistLocked() error {
	if s.basePath == "" {
		return nil
	}

	box := ballotBox{
		Voters: make([]*models.VoterCredential, 0, len(s.order)),
		Votes:  s.votes,
	}
	for _, id := range s.order {
		box.Voters = append(box.Voters, s.voters[id])
	}

	data, err := json.MarshalIndent(box, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ballot box: %w", err)
	}

	// Write to temporary file first
	path := s.path(ballotBoxFile)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write ballot box: %w", err)
	}

	// Atomic rename to ensure consistency
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save ballot box: %w", err)
	}

	return nil
}
