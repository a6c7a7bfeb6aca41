// Package api exposes the voting protocol over HTTP. Every protocol request
// can be sent as a versioned envelope to /api/v1/rpc; the other routes are
// conveniences over the same service calls.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"rsa-voting-backend/models"
	"rsa-voting-backend/service"
)

type Server struct {
	votingService *service.VotingService
	mux           *http.ServeMux
}

func NewServer(votingService *service.VotingService) *Server {
	s := &Server{
		votingService: votingService,
		mux:           http.NewServeMux(),
	}

	s.mux.HandleFunc("/api/v1/rpc", s.handleRPC)
	s.mux.HandleFunc("/api/v1/public-key", s.handleGetPublicKey)
	s.mux.HandleFunc("/api/v1/register", s.handleRegister)
	s.mux.HandleFunc("/api/v1/vote", s.handleCastVote)
	s.mux.HandleFunc("/api/v1/results", s.handleGetResults)
	s.mux.HandleFunc("/api/v1/status", s.handleGetStatus)

	return s
}

// Handler returns the routes wrapped with request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	env, err := DecodeEnvelope(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	switch env.Kind {
	case KindGetPublicKey:
		s.writePublicKey(w)
	case KindRegister:
		s.register(w, r, env.Register)
	case KindCastVote:
		s.castVote(w, r, env.CastVote)
	}
}

func (s *Server) handleGetPublicKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writePublicKey(w)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RegisterRequest
	if err := DecodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}
	s.register(w, r, &req)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CastVoteRequest
	if err := DecodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}
	s.castVote(w, r, &req)
}

func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := s.votingService.Tally(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ResultsResponse{
		Response:      ok(),
		Counts:        result.Counts,
		Total:         result.Total,
		ChainValid:    result.ChainValid,
		Undecryptable: result.Undecryptable,
		Lines:         result.Lines(s.votingService.Candidates()),
	})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report, err := s.votingService.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Response: ok(), StatusReport: report})
}

func (s *Server) writePublicKey(w http.ResponseWriter) {
	pub := s.votingService.GetPublicKey()
	writeJSON(w, http.StatusOK, PublicKeyResponse{
		Response: ok(),
		E:        NewBigInt(pub.E),
		N:        NewBigInt(pub.N),
		Bits:     pub.N.BitLen(),
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, req *RegisterRequest) {
	var (
		pin string
		err error
	)
	if req.Encrypted {
		enc, decErr := req.Ciphertexts()
		if decErr != nil {
			writeError(w, decErr)
			return
		}
		pin, err = s.votingService.RegisterEncrypted(r.Context(), enc)
	} else {
		pin, err = s.votingService.Register(r.Context(), models.Citizen{
			CNP:       req.CNP,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		})
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RegisterResponse{Response: ok(), PIN: pin})
}

func (s *Server) castVote(w http.ResponseWriter, r *http.Request, req *CastVoteRequest) {
	if err := s.votingService.Vote(r.Context(), req.CNP, req.PIN, req.EncryptedVote.Int()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ok())
}

// HTTPStatus maps an error kind to its HTTP status code.
func HTTPStatus(kind service.Kind) int {
	switch kind {
	case service.KindOK:
		return http.StatusOK
	case service.KindMalformedRequest:
		return http.StatusBadRequest
	case service.KindInvalidCredentials:
		return http.StatusUnauthorized
	case service.KindNotEligible, service.KindVotingClosed:
		return http.StatusForbidden
	case service.KindAlreadyRegistered, service.KindAlreadyVoted:
		return http.StatusConflict
	case service.KindMalformedVote:
		return http.StatusUnprocessableEntity
	case service.KindStorageFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse(err)
	writeJSON(w, HTTPStatus(resp.Code), resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests records method, path, status and latency. Bodies are never
// logged; they carry CNPs and PINs.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
