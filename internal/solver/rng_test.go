package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRNGDeterminism(t *testing.T) {
	a := NewRNG(42)
	b := NewRNG(42)
	for i := 0; i < 1000; i++ {
		require.Equal(t, a.next(), b.next(), "streams diverged at step %d", i)
	}
}

func TestRNGSeedsDiffer(t *testing.T) {
	a := NewRNG(1)
	b := NewRNG(2)
	same := 0
	for i := 0; i < 100; i++ {
		if a.next() == b.next() {
			same++
		}
	}
	require.Less(t, same, 5)
}

func TestRNGFloat64Range(t *testing.T) {
	r := NewRNG(7)
	for i := 0; i < 10000; i++ {
		v := r.Float64()
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 1.0)
	}
}

func TestRNGIntBetween(t *testing.T) {
	r := NewRNG(11)
	seen := map[int]bool{}
	for i := 0; i < 1000; i++ {
		v := r.IntBetween(2, 5)
		require.GreaterOrEqual(t, v, 2)
		require.LessOrEqual(t, v, 5)
		seen[v] = true
	}
	require.Len(t, seen, 4, "all values in [2,5] should occur")

	require.Equal(t, 3, r.IntBetween(3, 3))
	require.Equal(t, 3, r.IntBetween(3, 1))
}

func TestRNGNormalInt(t *testing.T) {
	r := NewRNG(13)
	require.Equal(t, 10, r.NormalInt(10, 0))

	sum := 0.0
	n := 20000
	for i := 0; i < n; i++ {
		sum += float64(r.NormalInt(50, 5))
	}
	mean := sum / float64(n)
	require.InDelta(t, 50, mean, 0.5)
}
