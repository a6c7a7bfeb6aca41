package encryption

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtendedGCD(t *testing.T) {
	cases := []struct {
		a, b int64
		gcd  int64
	}{
		{240, 46, 2},
		{65537, 3120, 1},
		{17, 0, 17},
		{0, 9, 9},
		{1071, 462, 21},
	}

	for _, c := range cases {
		a, b := big.NewInt(c.a), big.NewInt(c.b)
		g, x, y := ExtendedGCD(a, b)
		assert.Equal(t, c.gcd, g.Int64(), "gcd(%d, %d)", c.a, c.b)

		// a*x + b*y == g
		lhs := new(big.Int).Add(new(big.Int).Mul(a, x), new(big.Int).Mul(b, y))
		assert.Equal(t, 0, lhs.Cmp(g), "Bezout identity for (%d, %d)", c.a, c.b)
	}
}

func TestExtendedGCDLargeOperands(t *testing.T) {
	// Fibonacci neighbours maximise the number of Euclid steps.
	a, b := big.NewInt(1), big.NewInt(1)
	for i := 0; i < 3000; i++ {
		a, b = b, new(big.Int).Add(a, b)
	}

	g, x, y := ExtendedGCD(b, a)
	assert.Equal(t, int64(1), g.Int64())

	lhs := new(big.Int).Add(new(big.Int).Mul(b, x), new(big.Int).Mul(a, y))
	assert.Equal(t, 0, lhs.Cmp(g))
}

func TestModInverse(t *testing.T) {
	inv, err := ModInverse(big.NewInt(17), big.NewInt(3120))
	require.NoError(t, err)
	assert.Equal(t, int64(2753), inv.Int64())

	_, err = ModInverse(big.NewInt(6), big.NewInt(9))
	assert.ErrorIs(t, err, ErrNoInverse)
}

func TestGenerateKeyPair(t *testing.T) {
	kp, err := NewKeyPairGenerator(nil).Generate(512)
	require.NoError(t, err)

	assert.Equal(t, int64(DefaultPublicExponent), kp.Public.E.Int64())
	assert.Equal(t, 0, kp.Public.N.Cmp(kp.Private.N))
	assert.InDelta(t, 512, kp.Bits(), 1)
	assert.True(t, kp.Private.D.Sign() > 0)
	assert.True(t, kp.Private.D.Cmp(kp.Public.N) < 0)
	require.NoError(t, kp.Validate())
}

func TestGenerateKeyPairRejectsSmallSizes(t *testing.T) {
	_, err := NewKeyPairGenerator(nil).Generate(8)
	assert.ErrorIs(t, err, ErrKeyTooSmall)
}

func TestChooseExponentsFallsBackWhenDefaultNotCoprime(t *testing.T) {
	g := NewKeyPairGenerator(nil)

	// A multiple of 65537 forces the random fallback.
	phi := big.NewInt(65537 * 2 * 3 * 5 * 7)
	e, d, err := g.chooseExponents(phi)
	require.NoError(t, err)

	assert.NotEqual(t, int64(DefaultPublicExponent), e.Int64())
	assert.True(t, e.Cmp(big.NewInt(2)) >= 0)
	assert.True(t, e.Cmp(new(big.Int).Sub(phi, big.NewInt(2))) <= 0)

	check := new(big.Int).Mul(e, d)
	assert.Equal(t, int64(1), check.Mod(check, phi).Int64())
	assert.True(t, d.Sign() >= 0 && d.Cmp(phi) < 0)
}

func TestKeyPairValidateDetectsMismatch(t *testing.T) {
	kp, err := NewKeyPairGenerator(nil).Generate(128)
	require.NoError(t, err)

	broken := *kp
	broken.Private.D = new(big.Int).Add(kp.Private.D, big.NewInt(2))
	assert.ErrorIs(t, broken.Validate(), ErrInconsistentKey)

	other := *kp
	other.Private.N = new(big.Int).Add(kp.Private.N, big.NewInt(2))
	assert.ErrorIs(t, other.Validate(), ErrInconsistentKey)

	assert.ErrorIs(t, (&KeyPair{}).Validate(), ErrInconsistentKey)
}

func TestRoundTripForRandomMessages(t *testing.T) {
	for _, bits := range []int{64, 256, 512} {
		kp, err := NewKeyPairGenerator(nil).Generate(bits)
		require.NoError(t, err)

		for i := 0; i < 20; i++ {
			m, err := rand.Int(rand.Reader, kp.Public.N)
			require.NoError(t, err)

			c, err := Encrypt(m, kp.Public)
			require.NoError(t, err)
			got, err := Decrypt(c, kp.Private)
			require.NoError(t, err)

			assert.Equal(t, 0, m.Cmp(got), "%d-bit key round trip", bits)
		}

		for _, m := range []*big.Int{big.NewInt(0), big.NewInt(1), new(big.Int).Sub(kp.Public.N, big.NewInt(1))} {
			c, err := Encrypt(m, kp.Public)
			require.NoError(t, err)
			got, err := Decrypt(c, kp.Private)
			require.NoError(t, err)
			assert.Equal(t, 0, m.Cmp(got))
		}
	}
}
