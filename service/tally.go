package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"rsa-voting-backend/anonymizer"
	"rsa-voting-backend/models"
)

// Tally decrypts every stored vote and counts decoded values. It does not
// modify any state and may be repeated.
func (vs *VotingService) Tally(ctx context.Context) (*models.TallyResult, error) {
	return vs.TallyWithProgress(ctx, nil)
}

// TallyWithProgress is Tally reporting each decrypted ballot to progress.
func (vs *VotingService) TallyWithProgress(ctx context.Context, progress func(done, total int)) (*models.TallyResult, error) {
	start := time.Now()

	records, err := vs.store.Votes(ctx)
	if err != nil {
		return nil, vs.reject("tally", storageError("load votes", err))
	}

	decrypted, err := vs.decryptPool.Decrypt(ctx, records, progress)
	if err != nil {
		return nil, vs.reject("tally", fmt.Errorf("tally interrupted: %w", err))
	}

	result := &models.TallyResult{
		Counts:     make(map[string]int),
		ChainValid: models.ValidateChain(records),
	}
	for _, d := range decrypted {
		if d.Err != nil {
			result.Undecryptable++
			log.Warn().Err(d.Err).Uint64("ledger_index", d.Index).Msg("Ballot could not be decrypted")
			continue
		}
		result.Counts[d.Value]++
		result.Total++
	}

	if !result.ChainValid {
		log.Error().Int("records", len(records)).Msg("Vote ledger failed hash-chain validation")
	}
	vs.metricsCollector.RecordCounting(start)
	log.Info().Int("total", result.Total).Bool("chain_valid", result.ChainValid).Msg("Tally completed")

	return result, nil
}

// Ballots returns every decryptable ballot value in random order, for
// publishing alongside the counts.
func (vs *VotingService) Ballots(ctx context.Context) ([]string, error) {
	records, err := vs.store.Votes(ctx)
	if err != nil {
		return nil, vs.reject("ballots", storageError("load votes", err))
	}

	decrypted, err := vs.decryptPool.Decrypt(ctx, records, nil)
	if err != nil {
		return nil, vs.reject("ballots", fmt.Errorf("decryption interrupted: %w", err))
	}

	values := make([]string, 0, len(decrypted))
	for _, d := range decrypted {
		if d.Err == nil {
			values = append(values, d.Value)
		}
	}

	shuffled, err := anonymizer.Shuffle(values)
	if err != nil {
		return nil, vs.reject("ballots", fmt.Errorf("%w: %v", ErrCryptoFailure, err))
	}
	return shuffled, nil
}
