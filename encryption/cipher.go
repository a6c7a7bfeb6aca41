package encryption

import (
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"
)

var (
	ErrMessageOutOfRange    = errors.New("message must satisfy 0 <= m < n")
	ErrCiphertextOutOfRange = errors.New("ciphertext must satisfy 0 <= c < n")
	ErrInvalidUTF8          = errors.New("decoded value is not valid UTF-8")
)

// Encrypt computes message^e mod n. Messages outside [0, n) are rejected;
// there is no padding and no reduction.
func Encrypt(message *big.Int, pub PublicKey) (*big.Int, error) {
	if message == nil || message.Sign() < 0 || message.Cmp(pub.N) >= 0 {
		return nil, ErrMessageOutOfRange
	}
	return new(big.Int).Exp(message, pub.E, pub.N), nil
}

// Decrypt computes ciphertext^d mod n.
func Decrypt(ciphertext *big.Int, priv PrivateKey) (*big.Int, error) {
	if ciphertext == nil || ciphertext.Sign() < 0 || ciphertext.Cmp(priv.N) >= 0 {
		return nil, ErrCiphertextOutOfRange
	}
	return new(big.Int).Exp(ciphertext, priv.D, priv.N), nil
}

// StringToInt maps the UTF-8 bytes of s to a big-endian unsigned integer.
func StringToInt(s string) *big.Int {
	return new(big.Int).SetBytes([]byte(s))
}

// IntToString reverses StringToInt using the minimal byte length of i (at
// least one byte) and requires valid UTF-8.
func IntToString(i *big.Int) (string, error) {
	if i == nil || i.Sign() < 0 {
		return "", fmt.Errorf("cannot decode negative or nil integer")
	}
	b := i.Bytes()
	if len(b) == 0 {
		b = []byte{0}
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

// EncryptString encodes s as an integer and encrypts it. Fields must be short
// enough that their integer form stays below n.
func EncryptString(s string, pub PublicKey) (*big.Int, error) {
	c, err := Encrypt(StringToInt(s), pub)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt %d-byte field: %w", len(s), err)
	}
	return c, nil
}

// DecryptString decrypts c and decodes the result as UTF-8.
func DecryptString(c *big.Int, priv PrivateKey) (string, error) {
	m, err := Decrypt(c, priv)
	if err != nil {
		return "", err
	}
	return IntToString(m)
}

// MaxFieldBytes returns the longest byte string guaranteed to encode below n.
func MaxFieldBytes(pub PublicKey) int {
	return (pub.N.BitLen() - 1) / 8
}
