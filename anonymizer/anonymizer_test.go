package anonymizer

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShuffleKeepsElements(t *testing.T) {
	in := []string{"A", "B", "C", "A", "D", "E"}
	out, err := Shuffle(in)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "A", "D", "E"}, in)

	got := append([]string(nil), out...)
	want := append([]string(nil), in...)
	sort.Strings(got)
	sort.Strings(want)
	assert.Equal(t, want, got)
}

func TestShuffleChangesOrder(t *testing.T) {
	in := make([]int, 64)
	for i := range in {
		in[i] = i
	}

	moved := false
	for attempt := 0; attempt < 5 && !moved; attempt++ {
		out, err := Shuffle(in)
		require.NoError(t, err)
		assert.Len(t, out, len(in))
		for i := range out {
			if out[i] != i {
				moved = true
				break
			}
		}
	}
	assert.True(t, moved)
}

func TestShuffleEmpty(t *testing.T) {
	out, err := Shuffle([]int{})
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = Shuffle[int](nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
