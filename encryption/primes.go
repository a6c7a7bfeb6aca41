package encryption

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

// MillerRabinRounds is the number of random witnesses tried before a
// candidate is accepted as prime. The error bound is 4^-40.
const MillerRabinRounds = 40

// smallPrimes is the trial-division pre-filter run before Miller-Rabin.
var smallPrimes = []int64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29}

var (
	bigOne = big.NewInt(1)
	bigTwo = big.NewInt(2)

	ErrInvalidBitLength = errors.New("bit length must be at least 2")
)

// PrimeGenerator draws random primes of an exact bit length.
type PrimeGenerator struct {
	random io.Reader
	rounds int
}

// NewPrimeGenerator returns a generator reading from random. A nil reader
// falls back to crypto/rand.
func NewPrimeGenerator(random io.Reader) *PrimeGenerator {
	if random == nil {
		random = rand.Reader
	}
	return &PrimeGenerator{
		random: random,
		rounds: MillerRabinRounds,
	}
}

// Generate returns a probable prime with exactly bits bits. Candidates that
// fail the primality test are discarded and a new one is drawn.
func (g *PrimeGenerator) Generate(bits int) (*big.Int, error) {
	if bits < 2 {
		return nil, ErrInvalidBitLength
	}

	for {
		candidate, err := g.candidate(bits)
		if err != nil {
			return nil, err
		}

		prime, err := g.IsProbablePrime(candidate)
		if err != nil {
			return nil, err
		}
		if prime {
			return candidate, nil
		}
	}
}

// candidate draws an odd integer of exactly bits bits (top bit forced set).
func (g *PrimeGenerator) candidate(bits int) (*big.Int, error) {
	topBits := uint(bits % 8)
	if topBits == 0 {
		topBits = 8
	}

	buf := make([]byte, (bits+7)/8)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return nil, fmt.Errorf("failed to read random candidate: %w", err)
	}

	buf[0] &= uint8(int(1<<topBits) - 1)
	buf[0] |= 1 << (topBits - 1)
	buf[len(buf)-1] |= 1

	return new(big.Int).SetBytes(buf), nil
}

// IsProbablePrime runs trial division by the small primes followed by the
// configured number of Miller-Rabin rounds with random witnesses in
// [2, n-2]. The only error is a failure of the random source.
func (g *PrimeGenerator) IsProbablePrime(n *big.Int) (bool, error) {
	if n.Cmp(bigTwo) < 0 {
		return false, nil
	}

	mod := new(big.Int)
	for _, sp := range smallPrimes {
		p := big.NewInt(sp)
		if n.Cmp(p) == 0 {
			return true, nil
		}
		if mod.Mod(n, p).Sign() == 0 {
			return false, nil
		}
	}

	// n-1 = d * 2^s with d odd
	nMinusOne := new(big.Int).Sub(n, bigOne)
	s := nMinusOne.TrailingZeroBits()
	d := new(big.Int).Rsh(nMinusOne, s)

	// witnesses are drawn as 2 + [0, n-3)
	witnessRange := new(big.Int).Sub(n, big.NewInt(3))

	for i := 0; i < g.rounds; i++ {
		a, err := rand.Int(g.random, witnessRange)
		if err != nil {
			return false, fmt.Errorf("failed to draw witness: %w", err)
		}
		a.Add(a, bigTwo)

		if !millerRabinRound(n, nMinusOne, d, s, a) {
			return false, nil
		}
	}

	return true, nil
}

// millerRabinRound reports whether witness a fails to prove n composite.
func millerRabinRound(n, nMinusOne, d *big.Int, s uint, a *big.Int) bool {
	x := new(big.Int).Exp(a, d, n)
	if x.Cmp(bigOne) == 0 || x.Cmp(nMinusOne) == 0 {
		return true
	}

	for r := uint(1); r < s; r++ {
		x.Mul(x, x).Mod(x, n)
		if x.Cmp(nMinusOne) == 0 {
			return true
		}
		if x.Cmp(bigOne) == 0 {
			// a nontrivial square root of 1 was found
			return false
		}
	}

	return false
}
