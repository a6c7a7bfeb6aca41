package service

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"

	"rsa-voting-backend/encryption"
	"rsa-voting-backend/models"
)

// DecryptPool decrypts ledger records on a fixed number of workers.
type DecryptPool struct {
	keyring *Keyring
	workers int
}

// DecryptResult is the outcome for one ledger record.
type DecryptResult struct {
	Index uint64
	Value string
	Err   error
}

func NewDecryptPool(keyring *Keyring, workers int) *DecryptPool {
	if workers <= 0 {
		workers = 1
	}
	return &DecryptPool{keyring: keyring, workers: workers}
}

// Decrypt returns one result per record, in ledger order. progress, when
// set, is called from the calling goroutine after each record completes.
func (dp *DecryptPool) Decrypt(ctx context.Context, records []*models.VoteRecord, progress func(done, total int)) ([]DecryptResult, error) {
	results := make([]DecryptResult, len(records))
	jobCh := make(chan int)
	doneCh := make(chan struct{}, len(records))

	var processingWg sync.WaitGroup
	for w := 0; w < dp.workers; w++ {
		processingWg.Add(1)
		go func() {
			defer processingWg.Done()
			for i := range jobCh {
				results[i] = dp.decryptOne(records[i])
				doneCh <- struct{}{}
			}
		}()
	}

	go func() {
		defer close(jobCh)
		for i := range records {
			select {
			case jobCh <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		processingWg.Wait()
		close(doneCh)
	}()

	done := 0
	for range doneCh {
		done++
		if progress != nil {
			progress(done, len(records))
		}
	}

	if done < len(records) {
		return nil, ctx.Err()
	}
	return results, nil
}

// decryptOne keeps values that are not valid UTF-8, replacing the bad
// bytes, so that they are still counted.
func (dp *DecryptPool) decryptOne(r *models.VoteRecord) DecryptResult {
	res := DecryptResult{Index: r.Index}

	m, err := dp.keyring.Decrypt(new(big.Int).SetBytes(r.Ciphertext))
	if err != nil {
		res.Err = err
		return res
	}

	value, err := encryption.IntToString(m)
	if errors.Is(err, encryption.ErrInvalidUTF8) {
		value = strings.ToValidUTF8(string(m.Bytes()), "\uFFFD")
	} else if err != nil {
		res.Err = err
		return res
	}
	res.Value = value
	return res
}
