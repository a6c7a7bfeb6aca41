package models

import (
	"bytes"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
)

// VoteRecord is one entry of the append-only vote ledger. It carries the
// ciphertext and the hash link to its predecessor, and nothing that could
// identify the voter who cast it.
type VoteRecord struct {
	Index      uint64 `json:"index"`
	Ciphertext []byte `json:"ciphertext"`
	PrevHash   []byte `json:"prev_hash"`
	Hash       []byte `json:"hash"`
}

// GenesisHash is the PrevHash of the first record.
var GenesisHash = make([]byte, 32)

// NewVoteRecord links ciphertext after prevHash at the given index.
func NewVoteRecord(index uint64, ciphertext, prevHash []byte) *VoteRecord {
	if prevHash == nil {
		prevHash = GenesisHash
	}
	r := &VoteRecord{
		Index:      index,
		Ciphertext: append([]byte(nil), ciphertext...),
		PrevHash:   append([]byte(nil), prevHash...),
	}
	r.Hash = r.calculateHash()
	return r
}

func (r *VoteRecord) calculateHash() []byte {
	var index [8]byte
	binary.BigEndian.PutUint64(index[:], r.Index)
	return crypto.Keccak256(index[:], r.Ciphertext, r.PrevHash)
}

// Validate checks the record's own hash.
func (r *VoteRecord) Validate() bool {
	return bytes.Equal(r.calculateHash(), r.Hash)
}

// ValidateChain checks every hash and link of the ledger. An empty ledger is
// valid.
func ValidateChain(records []*VoteRecord) bool {
	prev := GenesisHash
	for i, r := range records {
		if r.Index != uint64(i) {
			return false
		}
		if !bytes.Equal(r.PrevHash, prev) {
			return false
		}
		if !r.Validate() {
			return false
		}
		prev = r.Hash
	}
	return true
}

// LastHash returns the hash a new record must link to.
func LastHash(records []*VoteRecord) []byte {
	if len(records) == 0 {
		return GenesisHash
	}
	return records[len(records)-1].Hash
}
