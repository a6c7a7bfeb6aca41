// Package client is the voter side of the protocol: it fetches the
// authority key, encrypts fields and ballots locally and submits them.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"rsa-voting-backend/api"
	"rsa-voting-backend/encryption"
	"rsa-voting-backend/models"
	"rsa-voting-backend/service"
)

// RemoteError is an ERROR reply from the authority.
type RemoteError struct {
	HTTPStatus int
	Code       service.Kind
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap lets callers match remote errors with errors.Is against the
// service sentinels.
func (e *RemoteError) Unwrap() error {
	return service.ErrorForKind(e.Code)
}

type Client struct {
	baseURL    string
	httpClient *http.Client

	mu     sync.Mutex
	pubKey *encryption.PublicKey
}

// New returns a client for the authority at baseURL. A nil httpClient gets
// a default with a 30 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// PublicKey fetches the authority key once and caches it.
func (c *Client) PublicKey(ctx context.Context) (encryption.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pubKey != nil {
		return *c.pubKey, nil
	}

	var resp api.PublicKeyResponse
	if err := c.call(ctx, api.Envelope{Version: api.ProtocolVersion, Kind: api.KindGetPublicKey}, &resp); err != nil {
		return encryption.PublicKey{}, err
	}
	if resp.E == nil || resp.N == nil {
		return encryption.PublicKey{}, fmt.Errorf("authority returned an incomplete public key")
	}

	pub := encryption.PublicKey{E: resp.E.Int(), N: resp.N.Int()}
	c.pubKey = &pub
	return pub, nil
}

// Register submits citizen and returns the issued PIN. With encrypt set
// each field is RSA-encrypted under the authority key before sending.
func (c *Client) Register(ctx context.Context, citizen models.Citizen, encrypt bool) (string, error) {
	req := &api.RegisterRequest{
		CNP:       citizen.CNP,
		FirstName: citizen.FirstName,
		LastName:  citizen.LastName,
	}

	if encrypt {
		pub, err := c.PublicKey(ctx)
		if err != nil {
			return "", err
		}
		for _, field := range []*string{&req.CNP, &req.FirstName, &req.LastName} {
			ct, err := encryption.EncryptString(*field, pub)
			if err != nil {
				return "", err
			}
			*field = hexutil.Encode(ct.Bytes())
		}
		req.Encrypted = true
	}

	var resp api.RegisterResponse
	err := c.call(ctx, api.Envelope{Version: api.ProtocolVersion, Kind: api.KindRegister, Register: req}, &resp)
	if err != nil {
		return "", err
	}
	return resp.PIN, nil
}

// CastVote encrypts the candidate code and submits it with the voter's
// credentials.
func (c *Client) CastVote(ctx context.Context, cnp, pin, candidate string) error {
	pub, err := c.PublicKey(ctx)
	if err != nil {
		return err
	}
	ct, err := encryption.EncryptString(candidate, pub)
	if err != nil {
		return err
	}

	var resp api.Response
	return c.call(ctx, api.Envelope{
		Version: api.ProtocolVersion,
		Kind:    api.KindCastVote,
		CastVote: &api.CastVoteRequest{
			CNP:           cnp,
			PIN:           pin,
			EncryptedVote: api.NewBigInt(ct),
		},
	}, &resp)
}

// Results fetches the current tally.
func (c *Client) Results(ctx context.Context) (*api.ResultsResponse, error) {
	var resp api.ResultsResponse
	if err := c.get(ctx, "/api/v1/results", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) call(ctx context.Context, env api.Envelope, out interface{}) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/rpc", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to authority failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4*api.MaxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var status api.Response
	if err := json.Unmarshal(data, &status); err != nil {
		return fmt.Errorf("unexpected response (HTTP %d): %w", resp.StatusCode, err)
	}
	if status.Status != api.StatusOK {
		return &RemoteError{HTTPStatus: resp.StatusCode, Code: status.Code, Message: status.Message}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
