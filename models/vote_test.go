package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChain(t *testing.T, ciphertexts ...[]byte) []*VoteRecord {
	t.Helper()
	var chain []*VoteRecord
	for i, c := range ciphertexts {
		chain = append(chain, NewVoteRecord(uint64(i), c, LastHash(chain)))
	}
	return chain
}

func TestValidateChain(t *testing.T) {
	assert.True(t, ValidateChain(nil))

	chain := buildChain(t, []byte{0x01}, []byte{0x02, 0x03}, []byte{0x04})
	require.Len(t, chain, 3)
	assert.Equal(t, GenesisHash, chain[0].PrevHash)
	assert.Equal(t, chain[0].Hash, chain[1].PrevHash)
	assert.True(t, ValidateChain(chain))
}

func TestValidateChainDetectsTampering(t *testing.T) {
	chain := buildChain(t, []byte{0x01}, []byte{0x02}, []byte{0x03})
	chain[1].Ciphertext = []byte{0x09}
	assert.False(t, ValidateChain(chain))

	chain = buildChain(t, []byte{0x01}, []byte{0x02}, []byte{0x03})
	assert.False(t, ValidateChain([]*VoteRecord{chain[0], chain[2]}), "dropped record")

	chain = buildChain(t, []byte{0x01}, []byte{0x02})
	chain[0], chain[1] = chain[1], chain[0]
	assert.False(t, ValidateChain(chain), "reordered records")
}

func TestNewVoteRecordCopiesInput(t *testing.T) {
	c := []byte{0x0a, 0x0b}
	r := NewVoteRecord(0, c, nil)
	c[0] = 0xff
	assert.True(t, r.Validate())
	assert.Equal(t, byte(0x0a), r.Ciphertext[0])
}
