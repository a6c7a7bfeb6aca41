package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"rsa-voting-backend/encryption"
	"rsa-voting-backend/models"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS voters (
		id            TEXT PRIMARY KEY,
		identity_key  TEXT UNIQUE NOT NULL,
		pin_hash      TEXT NOT NULL,
		has_voted     INTEGER NOT NULL DEFAULT 0,
		registered_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS votes (
		vote_index INTEGER PRIMARY KEY,
		ciphertext BLOB NOT NULL,
		prev_hash  BLOB NOT NULL,
		hash       BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS authority_keys (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		e  TEXT NOT NULL,
		n  TEXT NOT NULL,
		d  TEXT NOT NULL
	)`,
}

// SQLStore is the relational backend. The votes table has no column that
// refers to a voter.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens (and migrates) a SQLite database. dsn may be a plain
// file path or ":memory:".
func NewSQLStore(dsn string) (*SQLStore, error) {
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory:
	// databases alive across calls.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	return &SQLStore{db: db}, nil
}

func (s *SQLStore) CreateVoter(ctx context.Context, voter *models.VoterCredential) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO voters (id, identity_key, pin_hash, has_voted, registered_at) VALUES (?, ?, ?, ?, ?)`,
		voter.ID, voter.IdentityKey, voter.PINHash, boolToInt(voter.HasVoted), voter.RegisteredAt,
	)
	if isIdentityConflict(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert voter: %w", err)
	}
	return nil
}

// isIdentityConflict reports whether err is the UNIQUE violation on
// voters.identity_key, which another process may hit first.
func isIdentityConflict(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "voters.identity_key")
	}
	return false
}

func (s *SQLStore) VoterByIdentityKey(ctx context.Context, identityKey string) (*models.VoterCredential, error) {
	return s.queryVoter(ctx, `SELECT id, identity_key, pin_hash, has_voted, registered_at FROM voters WHERE identity_key = ?`, identityKey)
}

func (s *SQLStore) VoterByID(ctx context.Context, id string) (*models.VoterCredential, error) {
	return s.queryVoter(ctx, `SELECT id, identity_key, pin_hash, has_voted, registered_at FROM voters WHERE id = ?`, id)
}

func (s *SQLStore) queryVoter(ctx context.Context, query string, arg string) (*models.VoterCredential, error) {
	var (
		v        models.VoterCredential
		hasVoted int
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&v.ID, &v.IdentityKey, &v.PINHash, &hasVoted, &v.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query voter: %w", err)
	}
	v.HasVoted = hasVoted != 0
	return &v, nil
}

// CommitVote flips has_voted with a conditional update and appends the
// ciphertext in the same transaction.
func (s *SQLStore) CommitVote(ctx context.Context, voterID string, ciphertext []byte) (*models.VoteRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE voters SET has_voted = 1 WHERE id = ? AND has_voted = 0`, voterID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark voter: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to mark voter: %w", err)
	}
	if affected == 0 {
		var hasVoted int
		err := tx.QueryRowContext(ctx, `SELECT has_voted FROM voters WHERE id = ?`, voterID).Scan(&hasVoted)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query voter: %w", err)
		}
		return nil, ErrAlreadyVoted
	}

	var (
		lastIndex int64
		lastHash  []byte
		next      uint64
	)
	err = tx.QueryRowContext(ctx, `SELECT vote_index, hash FROM votes ORDER BY vote_index DESC LIMIT 1`).Scan(&lastIndex, &lastHash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		lastHash = models.GenesisHash
	case err != nil:
		return nil, fmt.Errorf("failed to read ledger head: %w", err)
	default:
		next = uint64(lastIndex) + 1
	}

	record := models.NewVoteRecord(next, ciphertext, lastHash)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO votes (vote_index, ciphertext, prev_hash, hash) VALUES (?, ?, ?, ?)`,
		int64(record.Index), record.Ciphertext, record.PrevHash, record.Hash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit vote: %w", err)
	}
	return record, nil
}

func (s *SQLStore) Votes(ctx context.Context) ([]*models.VoteRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT vote_index, ciphertext, prev_hash, hash FROM votes ORDER BY vote_index`)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	var votes []*models.VoteRecord
	for rows.Next() {
		var (
			r     models.VoteRecord
			index int64
		)
		if err := rows.Scan(&index, &r.Ciphertext, &r.PrevHash, &r.Hash); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		r.Index = uint64(index)
		votes = append(votes, &r)
	}
	return votes, rows.Err()
}

func (s *SQLStore) Stats(ctx context.Context) (models.VoterStats, error) {
	var stats models.VoterStats
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(has_voted), 0) FROM voters`).Scan(&stats.Registered, &stats.Voted)
	if err != nil {
		return stats, fmt.Errorf("failed to count voters: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes`).Scan(&stats.Votes); err != nil {
		return stats, fmt.Errorf("failed to count votes: %w", err)
	}
	return stats, nil
}

func (s *SQLStore) LoadKeyPair(ctx context.Context) (*encryption.KeyPair, error) {
	var r keyRecord
	err := s.db.QueryRowContext(ctx, `SELECT e, n, d FROM authority_keys WHERE id = 1`).Scan(&r.E, &r.N, &r.D)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load key pair: %w", err)
	}
	return r.keyPair()
}

func (s *SQLStore) SaveKeyPairIfAbsent(ctx context.Context, kp *encryption.KeyPair) (*encryption.KeyPair, error) {
	r := newKeyRecord(kp)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO authority_keys (id, e, n, d) VALUES (1, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		r.E, r.N, r.D,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save key pair: %w", err)
	}
	return s.LoadKeyPair(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
