// Package anonymizer breaks the link between ledger position and
// published ballot contents.
package anonymizer

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Shuffle returns a Fisher-Yates permutation of items drawn from
// crypto/rand. The input slice is not modified.
func Shuffle[T any](items []T) ([]T, error) {
	shuffled := make([]T, len(items))
	copy(shuffled, items)

	for i := len(shuffled) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return nil, fmt.Errorf("shuffle: %w", err)
		}
		k := int(j.Int64())
		shuffled[i], shuffled[k] = shuffled[k], shuffled[i]
	}

	return shuffled, nil
}
