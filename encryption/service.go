package encryption

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/sha3"
)

const (
	saltSize    = 16
	pinHashSize = 32
)

var ErrMalformedHash = errors.New("malformed PIN hash")

// Argon2Params tunes the PIN hash cost. They are recorded in every encoded
// hash so verification does not depend on the current configuration.
type Argon2Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// DefaultArgon2Params matches the interactive argon2id recommendation.
var DefaultArgon2Params = Argon2Params{Time: 3, MemoryKiB: 64 * 1024, Threads: 4}

// CredentialService derives voter lookup keys and issues and checks PINs.
type CredentialService struct {
	pepper []byte
	params Argon2Params
	random io.Reader
}

// NewCredentialService returns a service keyed by pepper. The pepper must
// stay stable across restarts or previously issued identity keys stop
// resolving.
func NewCredentialService(pepper []byte, params Argon2Params) *CredentialService {
	return &CredentialService{
		pepper: append([]byte(nil), pepper...),
		params: params,
		random: rand.Reader,
	}
}

// DerivePepper binds the identity-key secret to the authority private key.
func DerivePepper(priv PrivateKey) []byte {
	return crypto.Keccak256([]byte("voter-identity-key"), priv.D.Bytes(), priv.N.Bytes())
}

// IdentityKey is HMAC-SHA3-256(pepper, cnp), hex encoded. The same CNP always
// maps to the same key and the raw CNP is not recoverable from it.
func (cs *CredentialService) IdentityKey(cnp string) string {
	mac := hmac.New(sha3.New256, cs.pepper)
	mac.Write([]byte(cnp))
	return hex.EncodeToString(mac.Sum(nil))
}

// GeneratePIN returns a numeric PIN uniform over its digit space.
func (cs *CredentialService) GeneratePIN(digits int) (string, error) {
	if digits <= 0 {
		return "", fmt.Errorf("invalid PIN length %d", digits)
	}

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(cs.random, limit)
	if err != nil {
		return "", fmt.Errorf("failed to draw PIN: %w", err)
	}
	pin := n.String()
	return strings.Repeat("0", digits-len(pin)) + pin, nil
}

// HashPIN returns a salted argon2id hash in PHC string format.
func (cs *CredentialService) HashPIN(pin string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(cs.random, salt); err != nil {
		return "", fmt.Errorf("failed to read salt: %w", err)
	}

	p := cs.params
	sum := argon2.IDKey([]byte(pin), salt, p.Time, p.MemoryKiB, p.Threads, pinHashSize)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.MemoryKiB, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// VerifyPIN reports whether pin matches an encoded hash from HashPIN.
func (cs *CredentialService) VerifyPIN(encoded, pin string) (bool, error) {
	params, salt, want, err := decodePINHash(encoded)
	if err != nil {
		return false, err
	}

	got := argon2.IDKey([]byte(pin), salt, params.Time, params.MemoryKiB, params.Threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// DummyVerify burns the same work as VerifyPIN. Used when no credential
// exists so unknown identities cost as much as wrong PINs.
func (cs *CredentialService) DummyVerify(pin string) {
	salt := make([]byte, saltSize)
	p := cs.params
	argon2.IDKey([]byte(pin), salt, p.Time, p.MemoryKiB, p.Threads, pinHashSize)
}

func decodePINHash(encoded string) (Argon2Params, []byte, []byte, error) {
	var params Argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return params, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return params, nil, nil, ErrMalformedHash
	}

	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.MemoryKiB, &params.Time, &threads); err != nil {
		return params, nil, nil, ErrMalformedHash
	}
	if threads == 0 || threads > 255 {
		return params, nil, nil, ErrMalformedHash
	}
	params.Threads = uint8(threads)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, ErrMalformedHash
	}
	sum, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(sum) == 0 {
		return params, nil, nil, ErrMalformedHash
	}

	return params, salt, sum, nil
}
