package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsa-voting-backend/api"
	"rsa-voting-backend/encryption"
	"rsa-voting-backend/models"
	"rsa-voting-backend/service"
	"rsa-voting-backend/storage"
)

func newAuthority(t *testing.T) *httptest.Server {
	t.Helper()
	store := storage.NewMemoryStore()
	kr, err := service.LoadOrGenerate(context.Background(), store, encryption.NewKeyPairGenerator(nil), 512)
	require.NoError(t, err)

	cfg := service.DefaultConfig()
	cfg.Argon2 = encryption.Argon2Params{Time: 1, MemoryKiB: 1024, Threads: 1}
	vs := service.NewVotingService(store, kr, cfg)

	ts := httptest.NewServer(api.NewServer(vs).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestClientVotingFlow(t *testing.T) {
	ctx := context.Background()
	ts := newAuthority(t)
	c := New(ts.URL+"/", nil)

	pub, err := c.PublicKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(encryption.DefaultPublicExponent), pub.E.Int64())

	pin, err := c.Register(ctx, models.Citizen{CNP: "1234567890123", FirstName: "John", LastName: "Doe"}, false)
	require.NoError(t, err)

	encPIN, err := c.Register(ctx, models.Citizen{CNP: "9876543210987", FirstName: "Jane", LastName: "Smith"}, true)
	require.NoError(t, err)

	require.NoError(t, c.CastVote(ctx, "1234567890123", pin, "A"))
	require.NoError(t, c.CastVote(ctx, "9876543210987", encPIN, "B"))

	err = c.CastVote(ctx, "1234567890123", pin, "B")
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrAlreadyVoted)

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusConflict, remote.HTTPStatus)

	results, err := c.Results(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 1, "B": 1}, results.Counts)
	assert.True(t, results.ChainValid)
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	ts := newAuthority(t)
	c := New(ts.URL, ts.Client())

	_, err := c.Register(ctx, models.Citizen{CNP: "12", FirstName: "A", LastName: "B"}, false)
	assert.ErrorIs(t, err, service.ErrMalformedRequest)

	err = c.CastVote(ctx, "1234567890123", "1234", "A")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestClientUnreachableAuthority(t *testing.T) {
	ts := newAuthority(t)
	url := ts.URL
	ts.Close()

	_, err := New(url, nil).PublicKey(context.Background())
	assert.Error(t, err)
}
