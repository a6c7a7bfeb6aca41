package encryption

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// firstPrimes returns the first count primes using a sieve.
func firstPrimes(count int) []int64 {
	const limit = 8000 // the 1000th prime is 7919
	composite := make([]bool, limit)
	primes := make([]int64, 0, count)
	for i := 2; i < limit && len(primes) < count; i++ {
		if composite[i] {
			continue
		}
		primes = append(primes, int64(i))
		for j := i * i; j < limit; j += i {
			composite[j] = true
		}
	}
	return primes
}

func TestGeneratePrimeExactBitLength(t *testing.T) {
	g := NewPrimeGenerator(nil)

	for _, bits := range []int{2, 3, 8, 17, 64, 128, 256} {
		p, err := g.Generate(bits)
		require.NoError(t, err)

		assert.Equal(t, bits, p.BitLen(), "bit length for %d", bits)
		assert.Equal(t, uint(1), p.Bit(0), "prime of %d bits must be odd", bits)
		assert.True(t, p.ProbablyPrime(32), "%s should be prime", p)
	}
}

func TestGeneratePrimeRejectsTinyBitLength(t *testing.T) {
	_, err := NewPrimeGenerator(nil).Generate(1)
	assert.ErrorIs(t, err, ErrInvalidBitLength)
}

func TestIsProbablePrimeAcceptsKnownPrimes(t *testing.T) {
	g := NewPrimeGenerator(nil)

	primes := firstPrimes(1000)
	require.Len(t, primes, 1000)

	for _, p := range primes {
		ok, err := g.IsProbablePrime(big.NewInt(p))
		require.NoError(t, err)
		assert.True(t, ok, "%d reported composite", p)
	}
}

func TestIsProbablePrimeRejectsSmallValues(t *testing.T) {
	g := NewPrimeGenerator(nil)

	for _, n := range []int64{-7, 0, 1, 4, 9, 15, 25, 49, 91, 961} {
		ok, err := g.IsProbablePrime(big.NewInt(n))
		require.NoError(t, err)
		assert.False(t, ok, "%d reported prime", n)
	}
}

func TestIsProbablePrimeRejectsCarmichaelNumbers(t *testing.T) {
	g := NewPrimeGenerator(nil)

	// Classic Carmichael numbers are caught by trial division.
	for _, n := range []int64{561, 1105, 1729, 2465, 2821, 6601, 8911} {
		ok, err := g.IsProbablePrime(big.NewInt(n))
		require.NoError(t, err)
		assert.False(t, ok, "%d reported prime", n)
	}

	// Chernick numbers (6k+1)(12k+1)(18k+1) have no factor below 31, so only
	// the Miller-Rabin rounds can reject them.
	for _, k := range []int64{6, 35, 45, 51, 55, 56} {
		f1 := big.NewInt(6*k + 1)
		f2 := big.NewInt(12*k + 1)
		f3 := big.NewInt(18*k + 1)
		require.True(t, f1.ProbablyPrime(20) && f2.ProbablyPrime(20) && f3.ProbablyPrime(20), "k=%d", k)

		n := new(big.Int).Mul(f1, f2)
		n.Mul(n, f3)

		ok, err := g.IsProbablePrime(n)
		require.NoError(t, err)
		assert.False(t, ok, "Carmichael number %s reported prime", n)
	}
}

func TestIsProbablePrimeRejectsProductsOfLargePrimes(t *testing.T) {
	g := NewPrimeGenerator(nil)

	for i := 0; i < 5; i++ {
		p, err := g.Generate(64)
		require.NoError(t, err)
		q, err := g.Generate(64)
		require.NoError(t, err)

		ok, err := g.IsProbablePrime(new(big.Int).Mul(p, q))
		require.NoError(t, err)
		assert.False(t, ok)
	}
}
