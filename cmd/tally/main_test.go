package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsa-voting-backend/encryption"
	"rsa-voting-backend/models"
	"rsa-voting-backend/service"
	"rsa-voting-backend/storage"
)

func TestRunReturnsErrors(t *testing.T) {
	dir := t.TempDir()

	err := run(&Config{StorageDir: filepath.Join(dir, "missing"), Backend: storage.BackendJSON, Workers: 1})
	assert.Error(t, err)

	err = run(&Config{StorageDir: dir, Backend: storage.BackendSQLite, Workers: 1})
	assert.Error(t, err)

	// an empty database has no authority key
	s, err := storage.NewSQLStore(filepath.Join(dir, "voting.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = run(&Config{StorageDir: dir, Backend: storage.BackendSQLite, Workers: 1, JSON: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no authority key")

	// the database is released and usable afterwards
	s, err = storage.NewSQLStore(filepath.Join(dir, "voting.db"))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.CreateVoter(context.Background(), &models.VoterCredential{ID: "v1", IdentityKey: "k1", PINHash: "h"}))
}

func TestRunTalliesStoredVotes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := storage.NewJSONStore(dir)
	require.NoError(t, err)
	kr, err := service.LoadOrGenerate(ctx, store, encryption.NewKeyPairGenerator(nil), 512)
	require.NoError(t, err)

	cfg := service.DefaultConfig()
	cfg.Argon2 = encryption.Argon2Params{Time: 1, MemoryKiB: 1024, Threads: 1}
	vs := service.NewVotingService(store, kr, cfg)

	citizen := models.Citizen{CNP: "1234567890123", FirstName: "John", LastName: "Doe"}
	pin, err := vs.Register(ctx, citizen)
	require.NoError(t, err)
	ballot, err := encryption.EncryptString("B", vs.GetPublicKey())
	require.NoError(t, err)
	require.NoError(t, vs.Vote(ctx, citizen.CNP, pin, ballot))
	require.NoError(t, store.Close())

	err = run(&Config{StorageDir: dir, Backend: storage.BackendJSON, Workers: 2, Ballots: true, JSON: true})
	assert.NoError(t, err)
}
