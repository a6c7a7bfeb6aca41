package storage

import (
	"context"
	"math/big"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsa-voting-backend/encryption"
	"rsa-voting-backend/models"
)

type storeFactory func(t *testing.T) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"json": func(t *testing.T) Store {
			s, err := NewJSONStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLStore(filepath.Join(t.TempDir(), "voting.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func voter(id, key string) *models.VoterCredential {
	return &models.VoterCredential{ID: id, IdentityKey: key, PINHash: "$argon2id$hash", RegisteredAt: 1700000000}
}

func testKeyPair() *encryption.KeyPair {
	return &encryption.KeyPair{
		Public:  encryption.PublicKey{E: big.NewInt(17), N: big.NewInt(3233)},
		Private: encryption.PrivateKey{D: big.NewInt(2753), N: big.NewInt(3233)},
	}
}

func TestStoreVoters(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)

			require.NoError(t, s.CreateVoter(ctx, voter("v1", "key-1")))
			assert.ErrorIs(t, s.CreateVoter(ctx, voter("v2", "key-1")), ErrDuplicate)

			got, err := s.VoterByIdentityKey(ctx, "key-1")
			require.NoError(t, err)
			assert.Equal(t, "v1", got.ID)
			assert.False(t, got.HasVoted)
			assert.Equal(t, int64(1700000000), got.RegisteredAt)

			got, err = s.VoterByID(ctx, "v1")
			require.NoError(t, err)
			assert.Equal(t, "key-1", got.IdentityKey)

			_, err = s.VoterByIdentityKey(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.VoterByID(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreCommitVote(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			require.NoError(t, s.CreateVoter(ctx, voter("v1", "key-1")))
			require.NoError(t, s.CreateVoter(ctx, voter("v2", "key-2")))

			r1, err := s.CommitVote(ctx, "v1", []byte{0x01, 0x02})
			require.NoError(t, err)
			assert.Equal(t, uint64(0), r1.Index)

			_, err = s.CommitVote(ctx, "v1", []byte{0x03})
			assert.ErrorIs(t, err, ErrAlreadyVoted)

			_, err = s.CommitVote(ctx, "nobody", []byte{0x03})
			assert.ErrorIs(t, err, ErrNotFound)

			r2, err := s.CommitVote(ctx, "v2", []byte{0x04})
			require.NoError(t, err)
			assert.Equal(t, uint64(1), r2.Index)
			assert.Equal(t, r1.Hash, r2.PrevHash)

			votes, err := s.Votes(ctx)
			require.NoError(t, err)
			require.Len(t, votes, 2)
			assert.Equal(t, []byte{0x01, 0x02}, votes[0].Ciphertext)
			assert.True(t, models.ValidateChain(votes))

			v, err := s.VoterByID(ctx, "v1")
			require.NoError(t, err)
			assert.True(t, v.HasVoted)

			stats, err := s.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, models.VoterStats{Registered: 2, Voted: 2, Votes: 2}, stats)
		})
	}
}

func TestStoreConcurrentCommitSameVoter(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			require.NoError(t, s.CreateVoter(ctx, voter("v1", "key-1")))

			const attempts = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
				rejected  int
			)
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := s.CommitVote(ctx, "v1", []byte{byte(i + 1)})
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						successes++
					} else if assert.ErrorIs(t, err, ErrAlreadyVoted) {
						rejected++
					}
				}(i)
			}
			wg.Wait()

			assert.Equal(t, 1, successes)
			assert.Equal(t, attempts-1, rejected)

			votes, err := s.Votes(ctx)
			require.NoError(t, err)
			assert.Len(t, votes, 1)
		})
	}
}

func TestStoreKeyPairFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)

			_, err := s.LoadKeyPair(ctx)
			assert.ErrorIs(t, err, ErrNotFound)

			first := testKeyPair()
			saved, err := s.SaveKeyPairIfAbsent(ctx, first)
			require.NoError(t, err)
			assert.Equal(t, 0, saved.Public.N.Cmp(first.Public.N))

			second := testKeyPair()
			second.Public.E = big.NewInt(7)
			second.Private.D = big.NewInt(1783)
			saved, err = s.SaveKeyPairIfAbsent(ctx, second)
			require.NoError(t, err)
			assert.Equal(t, int64(17), saved.Public.E.Int64(), "first key pair must win")

			loaded, err := s.LoadKeyPair(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(2753), loaded.Private.D.Int64())
			assert.Equal(t, int64(3233), loaded.Private.N.Int64())
			require.NoError(t, loaded.Validate())
		})
	}
}

func TestJSONStoreReloadsState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewJSONStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.CreateVoter(ctx, voter("v1", "key-1")))
	_, err = s.CommitVote(ctx, "v1", []byte{0x2a})
	require.NoError(t, err)
	_, err = s.SaveKeyPairIfAbsent(ctx, testKeyPair())
	require.NoError(t, err)

	reopened, err := NewJSONStore(dir)
	require.NoError(t, err)

	v, err := reopened.VoterByIdentityKey(ctx, "key-1")
	require.NoError(t, err)
	assert.True(t, v.HasVoted)

	votes, err := reopened.Votes(ctx)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.True(t, models.ValidateChain(votes))

	kp, err := reopened.LoadKeyPair(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3233), kp.Public.N.Int64())
}

func TestJSONStoreSeparateInstancesShareKeyFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a, err := NewJSONStore(dir)
	require.NoError(t, err)
	b, err := NewJSONStore(dir)
	require.NoError(t, err)

	_, err = a.SaveKeyPairIfAbsent(ctx, testKeyPair())
	require.NoError(t, err)

	other := testKeyPair()
	other.Public.E = big.NewInt(7)
	got, err := b.SaveKeyPairIfAbsent(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, int64(17), got.Public.E.Int64())
}

func TestSQLStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "voting.db")

	s, err := NewSQLStore(path)
	require.NoError(t, err)
	require.NoError(t, s.CreateVoter(ctx, voter("v1", "key-1")))
	_, err = s.CommitVote(ctx, "v1", []byte{0x2a})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewSQLStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	stats, err := reopened.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.VoterStats{Registered: 1, Voted: 1, Votes: 1}, stats)
}

func TestSQLStoreDuplicateAcrossHandles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "voting.db")

	a, err := NewSQLStore(path)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewSQLStore(path)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.CreateVoter(ctx, voter("v1", "key-1")))
	assert.ErrorIs(t, b.CreateVoter(ctx, voter("v2", "key-1")), ErrDuplicate)

	// other constraint failures are not reported as duplicates
	err = b.CreateVoter(ctx, voter("v1", "key-2"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)

	stats, err := b.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Registered)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("postgres", "")
	assert.Error(t, err)

	s, err := Open(BackendSQLite, "")
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
