package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rsa-voting-backend/api"
	"rsa-voting-backend/encryption"
	"rsa-voting-backend/models"
	"rsa-voting-backend/registry"
	"rsa-voting-backend/service"
	"rsa-voting-backend/storage"
)

type Config struct {
	StorageDir      string
	Backend         string
	DBPath          string
	KeyBits         int
	PINDigits       int
	SessionDuration time.Duration
	RollPath        string
	Candidates      string
	LogLevel        string
	LogPretty       bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	Port            int
}

func main() {
	config := parseFlags()
	setupLogging(config)

	store, err := openStore(config)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.Close()

	keyring, err := service.LoadOrGenerate(context.Background(), store, encryption.NewKeyPairGenerator(nil), config.KeyBits)
	if err != nil {
		if errors.Is(err, service.ErrCryptoFailure) {
			log.Fatal().Err(err).Msg("Authority key bootstrap failed")
		}
		log.Fatal().Err(err).Msg("Failed to load authority key")
	}

	votingService, err := initializeVotingService(config, store, keyring)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize voting service")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      api.NewServer(votingService).Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	serverChan := make(chan error, 1)
	go func() {
		log.Info().Int("port", config.Port).Str("backend", config.Backend).Int("key_bits", keyring.Bits()).Msg("Starting voting authority")
		serverChan <- server.ListenAndServe()
	}()

	select {
	case err := <-serverChan:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		votingService.EndVotingSession()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Error during server shutdown")
		}
		log.Info().Msg("Server shutdown completed")
	}
}

func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.StorageDir, "storage", "data", "Directory for JSON storage and the default database")
	flag.StringVar(&config.Backend, "backend", storage.BackendJSON, "Storage backend: json or sqlite")
	flag.StringVar(&config.DBPath, "db", "", "SQLite database path (default <storage>/voting.db)")
	flag.IntVar(&config.KeyBits, "key-bits", 1024, "Authority modulus size in bits")
	flag.IntVar(&config.PINDigits, "pin-digits", service.DefaultPINDigits, "Length of issued PINs")
	flag.DurationVar(&config.SessionDuration, "session", 0, "Voting session duration (0 keeps it open until shutdown)")
	flag.StringVar(&config.RollPath, "roll", "", "Citizen roll JSON file; empty accepts any well-formed citizen")
	flag.StringVar(&config.Candidates, "candidates", "", `Ballot as "A=Name,B=Name" (default A, B, C)`)
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&config.LogPretty, "log-pretty", false, "Human-readable console logs")
	flag.DurationVar(&config.ReadTimeout, "read-timeout", 10*time.Second, "HTTP read timeout")
	flag.DurationVar(&config.WriteTimeout, "write-timeout", 30*time.Second, "HTTP write timeout")
	flag.IntVar(&config.Port, "port", 8080, "Server port")

	flag.Parse()

	if config.KeyBits < encryption.MinKeyBits {
		log.Fatal().Int("key_bits", config.KeyBits).Msgf("key-bits must be at least %d", encryption.MinKeyBits)
	}
	if config.PINDigits < 1 || config.PINDigits > 12 {
		log.Fatal().Int("pin_digits", config.PINDigits).Msg("pin-digits must be between 1 and 12")
	}

	return config
}

func setupLogging(config *Config) {
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if config.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func openStore(config *Config) (storage.Store, error) {
	absPath, err := filepath.Abs(config.StorageDir)
	if err != nil {
		return nil, err
	}

	switch config.Backend {
	case storage.BackendSQLite:
		if err := os.MkdirAll(absPath, 0755); err != nil {
			return nil, err
		}
		dbPath := config.DBPath
		if dbPath == "" {
			dbPath = filepath.Join(absPath, "voting.db")
		}
		return storage.Open(storage.BackendSQLite, dbPath)
	default:
		return storage.Open(config.Backend, absPath)
	}
}

func initializeVotingService(config *Config, store storage.Store, keyring *service.Keyring) (*service.VotingService, error) {
	cfg := service.DefaultConfig()
	cfg.PINDigits = config.PINDigits
	cfg.Session = config.SessionDuration

	if config.Candidates != "" {
		candidates, err := models.ParseCandidates(config.Candidates)
		if err != nil {
			return nil, fmt.Errorf("invalid -candidates: %w", err)
		}
		cfg.Candidates = candidates
	}

	if config.RollPath != "" {
		roll, err := registry.LoadFromFile(config.RollPath)
		if err != nil {
			return nil, err
		}
		cfg.Roll = roll
	}

	return service.NewVotingService(store, keyring, cfg), nil
}
