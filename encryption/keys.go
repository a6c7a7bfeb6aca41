package encryption

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

// DefaultPublicExponent is tried first for every key pair.
const DefaultPublicExponent = 65537

// MinKeyBits is the smallest modulus size accepted by GenerateKeyPair.
const MinKeyBits = 16

var (
	ErrKeyTooSmall     = errors.New("key size too small")
	ErrInconsistentKey = errors.New("inconsistent key pair")
	ErrNoInverse       = errors.New("value has no modular inverse")
)

// PublicKey is the authority's (e, n).
type PublicKey struct {
	E *big.Int
	N *big.Int
}

// PrivateKey is the authority's (d, n).
type PrivateKey struct {
	D *big.Int
	N *big.Int
}

// KeyPair holds both halves of an authority key.
type KeyPair struct {
	Public  PublicKey
	Private PrivateKey
}

// Bits returns the bit length of the modulus.
func (k *KeyPair) Bits() int {
	return k.Public.N.BitLen()
}

// Validate checks that both halves share a modulus and that a probe message
// survives an encrypt/decrypt round trip.
func (k *KeyPair) Validate() error {
	if k == nil || k.Public.E == nil || k.Public.N == nil || k.Private.D == nil || k.Private.N == nil {
		return fmt.Errorf("%w: missing component", ErrInconsistentKey)
	}
	if k.Public.N.Cmp(k.Private.N) != 0 {
		return fmt.Errorf("%w: modulus mismatch", ErrInconsistentKey)
	}
	if k.Public.N.Cmp(big.NewInt(3)) <= 0 {
		return fmt.Errorf("%w: modulus too small", ErrInconsistentKey)
	}

	probe := big.NewInt(2)
	c, err := Encrypt(probe, k.Public)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInconsistentKey, err)
	}
	m, err := Decrypt(c, k.Private)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInconsistentKey, err)
	}
	if m.Cmp(probe) != 0 {
		return fmt.Errorf("%w: round trip failed", ErrInconsistentKey)
	}
	return nil
}

// ExtendedGCD returns (g, x, y) with a*x + b*y = g = gcd(a, b).
func ExtendedGCD(a, b *big.Int) (g, x, y *big.Int) {
	oldR, r := new(big.Int).Set(a), new(big.Int).Set(b)
	oldS, s := big.NewInt(1), big.NewInt(0)
	oldT, t := big.NewInt(0), big.NewInt(1)

	q := new(big.Int)
	tmp := new(big.Int)
	for r.Sign() != 0 {
		q.Quo(oldR, r)

		tmp.Mul(q, r)
		oldR, r = r, new(big.Int).Sub(oldR, tmp)

		tmp.Mul(q, s)
		oldS, s = s, new(big.Int).Sub(oldS, tmp)

		tmp.Mul(q, t)
		oldT, t = t, new(big.Int).Sub(oldT, tmp)
	}

	return oldR, oldS, oldT
}

// ModInverse returns the inverse of a modulo m, normalized to [0, m).
func ModInverse(a, m *big.Int) (*big.Int, error) {
	g, x, _ := ExtendedGCD(a, m)
	if g.Cmp(bigOne) != 0 {
		return nil, ErrNoInverse
	}
	return x.Mod(x, m), nil
}

// KeyPairGenerator builds authority key pairs from two fresh primes.
type KeyPairGenerator struct {
	primes *PrimeGenerator
	random io.Reader
}

// NewKeyPairGenerator returns a generator using random for primes and for
// the fallback exponent. A nil reader falls back to crypto/rand.
func NewKeyPairGenerator(random io.Reader) *KeyPairGenerator {
	if random == nil {
		random = rand.Reader
	}
	return &KeyPairGenerator{
		primes: NewPrimeGenerator(random),
		random: random,
	}
}

// Generate creates a key pair whose primes have bits/2 bits each.
func (g *KeyPairGenerator) Generate(bits int) (*KeyPair, error) {
	if bits < MinKeyBits {
		return nil, fmt.Errorf("%w: %d bits (minimum %d)", ErrKeyTooSmall, bits, MinKeyBits)
	}

	p, err := g.primes.Generate(bits / 2)
	if err != nil {
		return nil, fmt.Errorf("failed to generate p: %w", err)
	}

	var q *big.Int
	for {
		q, err = g.primes.Generate(bits / 2)
		if err != nil {
			return nil, fmt.Errorf("failed to generate q: %w", err)
		}
		if q.Cmp(p) != 0 {
			break
		}
	}

	n := new(big.Int).Mul(p, q)
	phi := new(big.Int).Mul(
		new(big.Int).Sub(p, bigOne),
		new(big.Int).Sub(q, bigOne),
	)

	e, d, err := g.chooseExponents(phi)
	if err != nil {
		return nil, err
	}

	check := new(big.Int).Mul(e, d)
	if check.Mod(check, phi).Cmp(bigOne) != 0 {
		return nil, fmt.Errorf("%w: e*d != 1 mod phi", ErrInconsistentKey)
	}

	return &KeyPair{
		Public:  PublicKey{E: e, N: n},
		Private: PrivateKey{D: d, N: new(big.Int).Set(n)},
	}, nil
}

// chooseExponents picks e = 65537 when it is coprime to phi and otherwise
// draws random e in [2, phi-2] until one is. d is the inverse of e mod phi.
func (g *KeyPairGenerator) chooseExponents(phi *big.Int) (e, d *big.Int, err error) {
	e = big.NewInt(DefaultPublicExponent)
	if gcd, x, _ := ExtendedGCD(e, phi); gcd.Cmp(bigOne) == 0 {
		return e, x.Mod(x, phi), nil
	}

	// draws are 2 + [0, phi-3)
	span := new(big.Int).Sub(phi, big.NewInt(3))
	if span.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: totient too small", ErrInconsistentKey)
	}

	for {
		e, err = rand.Int(g.random, span)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to draw public exponent: %w", err)
		}
		e.Add(e, bigTwo)

		if gcd, x, _ := ExtendedGCD(e, phi); gcd.Cmp(bigOne) == 0 {
			return e, x.Mod(x, phi), nil
		}
	}
}
