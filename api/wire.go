package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"rsa-voting-backend/models"
	"rsa-voting-backend/service"
)

const (
	ProtocolVersion = 1
	MaxBodyBytes    = 64 << 10
)

type RequestKind string

const (
	KindGetPublicKey RequestKind = "GET_PUBLIC_KEY"
	KindRegister     RequestKind = "REGISTER"
	KindCastVote     RequestKind = "CAST_VOTE"
)

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// BigInt is an unsigned integer of any size. It is written as 0x-prefixed
// big-endian hex and read from either that form or a plain JSON number.
type BigInt big.Int

func NewBigInt(x *big.Int) *BigInt {
	return (*BigInt)(new(big.Int).Set(x))
}

func (b *BigInt) Int() *big.Int {
	if b == nil {
		return nil
	}
	return (*big.Int)(b)
}

func (b *BigInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(hexutil.Encode(b.Int().Bytes()))
}

func (b *BigInt) UnmarshalJSON(input []byte) error {
	if len(input) > 0 && input[0] == '"' {
		var s string
		if err := json.Unmarshal(input, &s); err != nil {
			return err
		}
		raw, err := hexutil.Decode(s)
		if err != nil {
			return fmt.Errorf("invalid hex integer: %w", err)
		}
		b.Int().SetBytes(raw)
		return nil
	}

	x, ok := new(big.Int).SetString(string(input), 10)
	if !ok || x.Sign() < 0 {
		return fmt.Errorf("invalid integer %q", input)
	}
	b.Int().Set(x)
	return nil
}

// Envelope is the versioned request union. Exactly the payload named by
// Kind is present.
type Envelope struct {
	Version  int              `json:"version"`
	Kind     RequestKind      `json:"kind"`
	Register *RegisterRequest `json:"register,omitempty"`
	CastVote *CastVoteRequest `json:"cast_vote,omitempty"`
}

// RegisterRequest carries the citizen fields. With Encrypted set, each field
// is a hex ciphertext under the authority public key.
type RegisterRequest struct {
	CNP       string `json:"cnp"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Encrypted bool   `json:"encrypted,omitempty"`
}

type CastVoteRequest struct {
	CNP           string  `json:"cnp"`
	PIN           string  `json:"pin"`
	EncryptedVote *BigInt `json:"encrypted_vote"`
}

// Response is the common part of every reply.
type Response struct {
	Status  string       `json:"status"`
	Code    service.Kind `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
}

type PublicKeyResponse struct {
	Response
	E    *BigInt `json:"e"`
	N    *BigInt `json:"n"`
	Bits int     `json:"bits"`
}

type RegisterResponse struct {
	Response
	PIN string `json:"pin"`
}

type ResultsResponse struct {
	Response
	Counts        map[string]int      `json:"counts"`
	Total         int                 `json:"total"`
	ChainValid    bool                `json:"chain_valid"`
	Undecryptable int                 `json:"undecryptable,omitempty"`
	Lines         []models.ResultLine `json:"lines"`
}

type StatusResponse struct {
	Response
	*service.StatusReport
}

func ok() Response {
	return Response{Status: StatusOK}
}

func errorResponse(err error) Response {
	return Response{Status: StatusError, Code: service.KindOf(err), Message: publicMessage(err)}
}

// publicMessage hides internal detail of server-side failures.
func publicMessage(err error) string {
	switch service.KindOf(err) {
	case service.KindStorageFailure:
		return service.ErrStorageFailure.Error()
	case service.KindCryptoFailure:
		return service.ErrCryptoFailure.Error()
	default:
		return err.Error()
	}
}

// DecodeJSON reads one JSON value of at most MaxBodyBytes into v,
// rejecting unknown fields and trailing data.
func DecodeJSON(r io.Reader, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r, MaxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: cannot read body: %v", service.ErrMalformedRequest, err)
	}
	if len(body) > MaxBodyBytes {
		return fmt.Errorf("%w: body exceeds %d bytes", service.ErrMalformedRequest, MaxBodyBytes)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", service.ErrMalformedRequest, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after request", service.ErrMalformedRequest)
	}
	return nil
}

// DecodeEnvelope reads and validates a request envelope.
func DecodeEnvelope(r io.Reader) (*Envelope, error) {
	var env Envelope
	if err := DecodeJSON(r, &env); err != nil {
		return nil, err
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// Validate checks the envelope shape before any cryptographic work.
func (e *Envelope) Validate() error {
	if e.Version != ProtocolVersion {
		return fmt.Errorf("%w: unsupported version %d", service.ErrMalformedRequest, e.Version)
	}

	switch e.Kind {
	case KindGetPublicKey:
		if e.Register != nil || e.CastVote != nil {
			return fmt.Errorf("%w: %s takes no payload", service.ErrMalformedRequest, e.Kind)
		}
		return nil
	case KindRegister:
		if e.Register == nil || e.CastVote != nil {
			return fmt.Errorf("%w: %s requires only a register payload", service.ErrMalformedRequest, e.Kind)
		}
		return e.Register.Validate()
	case KindCastVote:
		if e.CastVote == nil || e.Register != nil {
			return fmt.Errorf("%w: %s requires only a cast_vote payload", service.ErrMalformedRequest, e.Kind)
		}
		return e.CastVote.Validate()
	default:
		return fmt.Errorf("%w: unknown kind %q", service.ErrMalformedRequest, e.Kind)
	}
}

func (r *RegisterRequest) Validate() error {
	if r.CNP == "" || r.FirstName == "" || r.LastName == "" {
		return fmt.Errorf("%w: cnp, first_name and last_name are required", service.ErrMalformedRequest)
	}
	return nil
}

// Ciphertexts decodes the encrypted fields of r.
func (r *RegisterRequest) Ciphertexts() (service.EncryptedCitizen, error) {
	var enc service.EncryptedCitizen
	fields := []struct {
		name string
		src  string
		dst  **big.Int
	}{
		{"cnp", r.CNP, &enc.CNP},
		{"first_name", r.FirstName, &enc.FirstName},
		{"last_name", r.LastName, &enc.LastName},
	}
	for _, f := range fields {
		raw, err := hexutil.Decode(f.src)
		if err != nil {
			return enc, fmt.Errorf("%w: %s is not a hex ciphertext", service.ErrMalformedRequest, f.name)
		}
		*f.dst = new(big.Int).SetBytes(raw)
	}
	return enc, nil
}

func (r *CastVoteRequest) Validate() error {
	if r.CNP == "" || r.PIN == "" {
		return fmt.Errorf("%w: cnp and pin are required", service.ErrMalformedRequest)
	}
	if r.EncryptedVote == nil {
		return fmt.Errorf("%w: encrypted_vote is required", service.ErrMalformedRequest)
	}
	return nil
}
