// Package service implements the voting protocol: registration, voter
// authentication, single-use vote casting and tallying, on top of the
// authority keyring and the storage collaborators.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"rsa-voting-backend/encryption"
	"rsa-voting-backend/models"
	"rsa-voting-backend/registry"
	"rsa-voting-backend/storage"
)

const DefaultPINDigits = 4

// Config tunes a VotingService.
type Config struct {
	PINDigits    int
	Argon2       encryption.Argon2Params
	Candidates   *models.CandidateSet
	Roll         registry.Roll // nil accepts any well-formed citizen
	Session      time.Duration // 0 keeps the session open until EndVotingSession
	TallyWorkers int
}

func DefaultConfig() Config {
	return Config{
		PINDigits:    DefaultPINDigits,
		Argon2:       encryption.DefaultArgon2Params,
		Candidates:   models.DefaultCandidates(),
		TallyWorkers: runtime.NumCPU(),
	}
}

// VotingService orchestrates GET_PUBLIC_KEY, REGISTER and CAST_VOTE.
type VotingService struct {
	store               storage.Store
	keyring             *Keyring
	credentials         *encryption.CredentialService
	verificationService *VoterVerificationService
	candidates          *models.CandidateSet
	pinDigits           int

	identityLocks *keyedMutex
	voterLocks    *keyedMutex

	votingSession    *VotingSession
	metricsCollector *MetricsCollector
	decryptPool      *DecryptPool
}

// AuthenticatedVoter is proof that Authenticate succeeded. It can only be
// obtained from Authenticate.
type AuthenticatedVoter struct {
	id       string
	hasVoted bool
}

func (a *AuthenticatedVoter) ID() string {
	return a.id
}

// HasVoted is the flag as read during authentication.
func (a *AuthenticatedVoter) HasVoted() bool {
	return a.hasVoted
}

// EncryptedCitizen carries registration fields each encrypted under the
// authority public key.
type EncryptedCitizen struct {
	CNP       *big.Int
	FirstName *big.Int
	LastName  *big.Int
}

// StatusReport is the authority's public state.
type StatusReport struct {
	Session    SessionStatus      `json:"session"`
	Voters     models.VoterStats  `json:"voters"`
	Metrics    MetricsResponse    `json:"metrics"`
	KeyBits    int                `json:"key_bits"`
	Candidates []models.Candidate `json:"candidates"`
	RollActive bool               `json:"roll_active"`
}

func NewVotingService(store storage.Store, keyring *Keyring, cfg Config) *VotingService {
	if cfg.PINDigits <= 0 {
		cfg.PINDigits = DefaultPINDigits
	}
	if cfg.Candidates == nil {
		cfg.Candidates = models.DefaultCandidates()
	}

	return &VotingService{
		store:               store,
		keyring:             keyring,
		credentials:         encryption.NewCredentialService(keyring.Pepper(), cfg.Argon2),
		verificationService: NewVoterVerificationService(cfg.Roll),
		candidates:          cfg.Candidates,
		pinDigits:           cfg.PINDigits,
		identityLocks:       newKeyedMutex(),
		voterLocks:          newKeyedMutex(),
		votingSession:       NewVotingSession(cfg.Session),
		metricsCollector:    NewMetricsCollector(),
		decryptPool:         NewDecryptPool(keyring, cfg.TallyWorkers),
	}
}

// GetPublicKey returns the authority public key. It never fails.
func (vs *VotingService) GetPublicKey() encryption.PublicKey {
	return vs.keyring.PublicKey()
}

func (vs *VotingService) Candidates() *models.CandidateSet {
	return vs.candidates
}

func (vs *VotingService) PINDigits() int {
	return vs.pinDigits
}

// Register issues a credential for citizen and returns the plaintext PIN.
// The PIN is not stored and cannot be recovered later.
func (vs *VotingService) Register(ctx context.Context, citizen models.Citizen) (string, error) {
	start := time.Now()

	pin, voterID, err := vs.register(ctx, citizen)
	if err != nil {
		return "", vs.reject("register", err)
	}

	vs.metricsCollector.RecordRegistration(start)
	log.Info().Str("voter_id", voterID).Msg("Voter registered")
	return pin, nil
}

func (vs *VotingService) register(ctx context.Context, citizen models.Citizen) (pin, voterID string, err error) {
	if !vs.votingSession.IsActive() {
		return "", "", ErrVotingClosed
	}
	if err := vs.verificationService.VerifyVoter(citizen); err != nil {
		return "", "", err
	}

	identityKey := vs.credentials.IdentityKey(citizen.CNP)
	unlock := vs.identityLocks.Lock(identityKey)
	defer unlock()

	_, err = vs.store.VoterByIdentityKey(ctx, identityKey)
	if err == nil {
		return "", "", ErrAlreadyRegistered
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", "", storageError("lookup voter", err)
	}

	pin, err = vs.credentials.GeneratePIN(vs.pinDigits)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrCryptoFailure, err)
	}
	pinHash, err := vs.credentials.HashPIN(pin)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrCryptoFailure, err)
	}

	voter := &models.VoterCredential{
		ID:           uuid.NewString(),
		IdentityKey:  identityKey,
		PINHash:      pinHash,
		RegisteredAt: time.Now().Unix(),
	}
	if err := vs.store.CreateVoter(ctx, voter); err != nil {
		return "", "", storageError("create voter", err)
	}
	return pin, voter.ID, nil
}

// RegisterEncrypted decrypts each field independently and registers the
// resulting citizen.
func (vs *VotingService) RegisterEncrypted(ctx context.Context, enc EncryptedCitizen) (string, error) {
	var (
		citizen models.Citizen
		err     error
	)
	fields := []struct {
		name string
		c    *big.Int
		dst  *string
	}{
		{"cnp", enc.CNP, &citizen.CNP},
		{"first_name", enc.FirstName, &citizen.FirstName},
		{"last_name", enc.LastName, &citizen.LastName},
	}
	for _, f := range fields {
		if *f.dst, err = vs.DecryptField(f.c); err != nil {
			return "", vs.reject("register", fmt.Errorf("%s: %w", f.name, err))
		}
	}
	return vs.Register(ctx, citizen)
}

// DecryptField decrypts a registration field sent under the public key.
func (vs *VotingService) DecryptField(c *big.Int) (string, error) {
	if c == nil {
		return "", malformed("missing encrypted field")
	}
	s, err := vs.keyring.DecryptString(c)
	if err != nil {
		return "", malformed("cannot decrypt field: %v", err)
	}
	return s, nil
}

// Authenticate checks cnp and pin. Unknown CNPs and wrong PINs fail with
// the same error after the same amount of hashing work.
func (vs *VotingService) Authenticate(ctx context.Context, cnp, pin string) (*AuthenticatedVoter, error) {
	voter, err := vs.authenticate(ctx, cnp, pin)
	if err != nil {
		return nil, vs.reject("authenticate", err)
	}
	return voter, nil
}

func (vs *VotingService) authenticate(ctx context.Context, cnp, pin string) (*AuthenticatedVoter, error) {
	if !models.ValidCNP(cnp) {
		return nil, malformed("cnp must be %d digits", models.CNPLength)
	}
	if !models.ValidPIN(pin, vs.pinDigits) {
		return nil, malformed("pin must be %d digits", vs.pinDigits)
	}

	voter, err := vs.store.VoterByIdentityKey(ctx, vs.credentials.IdentityKey(cnp))
	if errors.Is(err, storage.ErrNotFound) {
		vs.credentials.DummyVerify(pin)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, storageError("lookup voter", err)
	}

	ok, err := vs.credentials.VerifyPIN(voter.PINHash, pin)
	if err != nil {
		log.Error().Err(err).Str("voter_id", voter.ID).Msg("Stored PIN hash is unreadable")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return &AuthenticatedVoter{id: voter.ID, hasVoted: voter.HasVoted}, nil
}

// CastVote decrypts ciphertext, checks it names a candidate and commits it
// while flipping the voter's has_voted flag. Calls for the same voter are
// serialized; the store's conditional commit backs this up across
// processes.
func (vs *VotingService) CastVote(ctx context.Context, voter *AuthenticatedVoter, ciphertext *big.Int) error {
	start := time.Now()

	index, err := vs.castVote(ctx, voter, ciphertext)
	if err != nil {
		return vs.reject("cast_vote", err)
	}

	vs.metricsCollector.RecordVote(start)
	// Never log the voter id next to the ledger index.
	log.Info().Uint64("ledger_index", index).Msg("Vote committed")
	return nil
}

func (vs *VotingService) castVote(ctx context.Context, voter *AuthenticatedVoter, ciphertext *big.Int) (uint64, error) {
	if voter == nil {
		return 0, ErrInvalidCredentials
	}
	if ciphertext == nil {
		return 0, malformed("missing encrypted vote")
	}
	if !vs.votingSession.IsActive() {
		return 0, ErrVotingClosed
	}

	unlock := vs.voterLocks.Lock(voter.id)
	defer unlock()

	current, err := vs.store.VoterByID(ctx, voter.id)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, ErrInvalidCredentials
	}
	if err != nil {
		return 0, storageError("lookup voter", err)
	}
	if current.HasVoted {
		return 0, ErrAlreadyVoted
	}

	code, err := vs.decodeVote(ciphertext)
	if err != nil {
		return 0, err
	}
	if _, ok := vs.candidates.Lookup(code); !ok {
		return 0, fmt.Errorf("%w: not a candidate code", ErrMalformedVote)
	}

	record, err := vs.store.CommitVote(ctx, voter.id, vs.keyring.CiphertextBytes(ciphertext))
	if err != nil {
		return 0, storageError("commit vote", err)
	}
	return record.Index, nil
}

func (vs *VotingService) decodeVote(ciphertext *big.Int) (string, error) {
	m, err := vs.keyring.Decrypt(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedVote, err)
	}
	code, err := encryption.IntToString(m)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedVote, err)
	}
	return code, nil
}

// Vote authenticates and casts in one step, as a CAST_VOTE request does.
func (vs *VotingService) Vote(ctx context.Context, cnp, pin string, ciphertext *big.Int) error {
	voter, err := vs.Authenticate(ctx, cnp, pin)
	if err != nil {
		return err
	}
	return vs.CastVote(ctx, voter, ciphertext)
}

func (vs *VotingService) Stats(ctx context.Context) (models.VoterStats, error) {
	stats, err := vs.store.Stats(ctx)
	if err != nil {
		return stats, storageError("stats", err)
	}
	return stats, nil
}

func (vs *VotingService) Status(ctx context.Context) (*StatusReport, error) {
	stats, err := vs.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &StatusReport{
		Session:    vs.votingSession.Status(),
		Voters:     stats,
		Metrics:    vs.metricsCollector.GetMetrics(),
		KeyBits:    vs.keyring.Bits(),
		Candidates: vs.candidates.All(),
		RollActive: vs.verificationService.HasRoll(),
	}, nil
}

func (vs *VotingService) IsVotingActive() bool {
	return vs.votingSession.IsActive()
}

// EndVotingSession closes registration and voting. Tallying stays possible.
func (vs *VotingService) EndVotingSession() {
	vs.votingSession.End()
	log.Info().Msg("Voting session ended")
}

func (vs *VotingService) Metrics() MetricsResponse {
	return vs.metricsCollector.GetMetrics()
}

func (vs *VotingService) reject(op string, err error) error {
	kind := KindOf(err)
	vs.metricsCollector.RecordRejection(kind)

	ev := log.Warn()
	if kind == KindStorageFailure || kind == KindCryptoFailure {
		ev = log.Error()
	}
	ev.Err(err).Str("op", op).Str("kind", string(kind)).Msg("Request rejected")
	return err
}
