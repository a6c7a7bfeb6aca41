// Package registry provides the official citizen roll consulted at
// registration time.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"rsa-voting-backend/models"
)

var (
	ErrNotOnRoll    = errors.New("citizen is not on the roll")
	ErrInactive     = errors.New("citizen is not eligible to vote")
	ErrNameMismatch = errors.New("name does not match the roll")
)

// Roll answers eligibility questions for a citizen.
type Roll interface {
	Verify(c models.Citizen) error
}

// RollEntry is one citizen on the roll.
type RollEntry struct {
	CNP       string `json:"cnp"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsActive  bool   `json:"is_active"` // false for deceased or disenfranchised citizens
}

type rollFile struct {
	Citizens []*RollEntry `json:"citizens"`
}

// CitizenRoll is an in-memory roll optionally backed by a JSON file.
type CitizenRoll struct {
	mu       sync.RWMutex
	citizens map[string]*RollEntry
}

func NewCitizenRoll(entries ...*RollEntry) (*CitizenRoll, error) {
	roll := &CitizenRoll{citizens: make(map[string]*RollEntry)}
	for _, e := range entries {
		if err := roll.Add(e); err != nil {
			return nil, err
		}
	}
	return roll, nil
}

// DefaultEntries are the sample citizens a fresh roll file is seeded with.
func DefaultEntries() []*RollEntry {
	sample := []struct{ cnp, first, last string }{
		{"1234567890123", "John", "Doe"},
		{"9876543210987", "Jane", "Smith"},
		{"4567890123456", "Alice", "Johnson"},
		{"3210987654321", "Bob", "Brown"},
		{"1112223334445", "Michael", "Johnson"},
		{"2223334445556", "Sarah", "Williams"},
		{"3334445556667", "David", "Brown"},
		{"4445556667778", "Emily", "Davis"},
		{"5556667778889", "James", "Miller"},
	}
	entries := make([]*RollEntry, 0, len(sample))
	for _, s := range sample {
		entries = append(entries, &RollEntry{CNP: s.cnp, FirstName: s.first, LastName: s.last, IsActive: true})
	}
	return entries
}

// LoadFromFile reads a roll from path. A missing file is created with the
// default entries.
func LoadFromFile(path string) (*CitizenRoll, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return createDefaultRollFile(path)
		}
		return nil, fmt.Errorf("failed to read roll file: %w", err)
	}

	var file rollFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal roll file: %w", err)
	}

	roll, err := NewCitizenRoll(file.Citizens...)
	if err != nil {
		return nil, fmt.Errorf("invalid roll file %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("citizens", roll.Len()).Msg("Citizen roll loaded")
	return roll, nil
}

func createDefaultRollFile(path string) (*CitizenRoll, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	entries := DefaultEntries()
	data, err := json.MarshalIndent(rollFile{Citizens: entries}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal default roll: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to save default roll file: %w", err)
	}

	log.Info().Str("path", path).Int("citizens", len(entries)).Msg("Default citizen roll created")
	return NewCitizenRoll(entries...)
}

func validateEntry(e *RollEntry) error {
	if e == nil {
		return fmt.Errorf("empty entry")
	}
	if !models.ValidCNP(e.CNP) {
		return fmt.Errorf("personal code must be %d digits", models.CNPLength)
	}
	if e.FirstName == "" {
		return fmt.Errorf("first name is required")
	}
	if e.LastName == "" {
		return fmt.Errorf("last name is required")
	}
	return nil
}

// Add places e on the roll, replacing any entry with the same CNP.
func (r *CitizenRoll) Add(e *RollEntry) error {
	if err := validateEntry(e); err != nil {
		return err
	}
	entry := *e

	r.mu.Lock()
	defer r.mu.Unlock()
	r.citizens[entry.CNP] = &entry
	return nil
}

// Remove takes a citizen off the roll.
func (r *CitizenRoll) Remove(cnp string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.citizens, cnp)
}

func (r *CitizenRoll) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.citizens)
}

// Verify checks that c is an active citizen whose names match the roll.
// Names compare case-insensitively after trimming spaces.
func (r *CitizenRoll) Verify(c models.Citizen) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.citizens[c.CNP]
	if !ok {
		return ErrNotOnRoll
	}
	if !entry.IsActive {
		return ErrInactive
	}
	if !sameName(entry.FirstName, c.FirstName) || !sameName(entry.LastName, c.LastName) {
		return ErrNameMismatch
	}
	return nil
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
