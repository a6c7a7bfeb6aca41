package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog/log"

	"rsa-voting-backend/encryption"
	"rsa-voting-backend/storage"
)

// Keyring is the authority key pair after bootstrap. It is immutable for the
// lifetime of the process.
type Keyring struct {
	keys      *encryption.KeyPair
	pepper    []byte
	generated bool
}

// NewKeyring wraps an existing key pair.
func NewKeyring(kp *encryption.KeyPair) (*Keyring, error) {
	if err := kp.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoFailure, err)
	}
	return &Keyring{keys: kp, pepper: encryption.DerivePepper(kp.Private)}, nil
}

// LoadOrGenerate returns the persisted key pair or generates and persists a
// new one. Generation runs without holding any store lock; if another
// process publishes a pair first, that pair is used and ours is discarded.
func LoadOrGenerate(ctx context.Context, ks storage.KeyStore, gen *encryption.KeyPairGenerator, bits int) (*Keyring, error) {
	kp, err := ks.LoadKeyPair(ctx)
	if err == nil {
		kr, err := NewKeyring(kp)
		if err != nil {
			return nil, err
		}
		if kp.Bits() != bits {
			log.Warn().Int("stored_bits", kp.Bits()).Int("requested_bits", bits).Msg("Using stored authority key with a different size")
		}
		log.Info().Int("bits", kp.Bits()).Msg("Authority key loaded")
		return kr, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, storageError("load key pair", err)
	}

	log.Info().Int("bits", bits).Msg("Generating authority key pair")
	fresh, err := gen.Generate(bits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoFailure, err)
	}

	saved, err := ks.SaveKeyPairIfAbsent(ctx, fresh)
	if err != nil {
		return nil, storageError("save key pair", err)
	}

	kr, err := NewKeyring(saved)
	if err != nil {
		return nil, err
	}
	kr.generated = saved.Public.N.Cmp(fresh.Public.N) == 0
	if !kr.generated {
		log.Info().Msg("Another process published the authority key first, using it")
	}
	return kr, nil
}

// PublicKey returns a copy of the public half.
func (k *Keyring) PublicKey() encryption.PublicKey {
	return encryption.PublicKey{
		E: new(big.Int).Set(k.keys.Public.E),
		N: new(big.Int).Set(k.keys.Public.N),
	}
}

func (k *Keyring) Bits() int {
	return k.keys.Bits()
}

// Generated reports whether this process created the key pair.
func (k *Keyring) Generated() bool {
	return k.generated
}

func (k *Keyring) Decrypt(c *big.Int) (*big.Int, error) {
	return encryption.Decrypt(c, k.keys.Private)
}

func (k *Keyring) DecryptString(c *big.Int) (string, error) {
	return encryption.DecryptString(c, k.keys.Private)
}

// Pepper is the identity-key secret derived from the private key.
func (k *Keyring) Pepper() []byte {
	return append([]byte(nil), k.pepper...)
}

// CiphertextBytes encodes c at the fixed width of the modulus.
func (k *Keyring) CiphertextBytes(c *big.Int) []byte {
	return c.FillBytes(make([]byte, (k.keys.Public.N.BitLen()+7)/8))
}
