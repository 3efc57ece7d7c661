package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRanks(t *testing.T) {
	require.Equal(t, []int{3, 1, 2, 1}, ranks([]float64{3, 1, 2, 1}))
	require.Equal(t, []int{1, 1, 1}, ranks([]float64{5, 5, 5}))
	require.Empty(t, ranks(nil))
}

func TestSortIndices(t *testing.T) {
	require.Equal(t, []int{1, 2, 0}, sortIndices([]float64{0.3, 0.1, 0.2}))
	// Ties keep ascending index order.
	require.Equal(t, []int{0, 2, 1}, sortIndices([]float64{1, 2, 1}))
}

func TestInsertRemoveAt(t *testing.T) {
	v := []int{1, 2, 3}
	v = insertAt(v, 1, 9)
	require.Equal(t, []int{1, 9, 2, 3}, v)
	v = insertAt(v, 4, 8)
	require.Equal(t, []int{1, 9, 2, 3, 8}, v)
	v = removeAt(v, 0)
	require.Equal(t, []int{9, 2, 3, 8}, v)
	v = removeAt(v, 3)
	require.Equal(t, []int{9, 2, 3}, v)
}

func TestNormAbsDiffMatrix(t *testing.T) {
	m := normAbsDiffMatrix([]float64{0, 10})
	require.Equal(t, [][]float64{{0, 1}, {1, 0}}, m)

	// Degenerate value range normalizes to zeros rather than NaN.
	m = normAbsDiffMatrix([]float64{5, 5})
	require.Equal(t, [][]float64{{0, 0}, {0, 0}}, m)
}
