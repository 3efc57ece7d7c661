package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWheelInitialWeights(t *testing.T) {
	w := newRouletteWheel(4, 0.1, 0.01)
	for _, weight := range w.weights {
		require.InDelta(t, 0.25, weight, 1e-12)
	}
}

func TestWheelUpdateResetsWindow(t *testing.T) {
	w := newRouletteWheel(2, 0.1, 0.01)
	rng := NewRNG(1)

	w.randomID(rng)
	w.updateStats(1)
	w.updateWeights()

	for i := range w.scores {
		require.Zero(t, w.scores[i])
		require.Zero(t, w.nrUses[i])
	}
	for _, weight := range w.weights {
		require.GreaterOrEqual(t, weight, w.minWeight)
	}
}

func TestWheelUnusedDropsToMinWeight(t *testing.T) {
	w := newRouletteWheel(3, 0.5, 0.01)
	w.lastID = 0
	w.updateStats(10)
	w.updateWeights()

	require.Greater(t, w.weights[0], w.minWeight)
	require.Equal(t, w.minWeight, w.weights[1])
	require.Equal(t, w.minWeight, w.weights[2])
}

func TestWheelAdaptsTowardGoodOperator(t *testing.T) {
	// One operator always scores 1, the other always 0. The good weight
	// approaches the fixed point p*1 + (1-p)*w = 1 and must leave the bad
	// one far behind.
	w := newRouletteWheel(2, 0.1, 0.01)
	rng := NewRNG(5)

	for round := 0; round < 200; round++ {
		for draw := 0; draw < 10; draw++ {
			id := w.randomID(rng)
			if id == 0 {
				w.updateStats(1)
			} else {
				w.updateStats(0)
			}
		}
		w.updateWeights()
	}

	require.Greater(t, w.weights[0], w.minWeight*10)
	require.Greater(t, w.weights[0], 0.8)
	require.InDelta(t, w.minWeight, w.weights[1], 0.05)
	require.Greater(t, w.totalUses[0], w.totalUses[1])
}

func TestWheelSelectionFollowsWeights(t *testing.T) {
	w := newRouletteWheel(2, 0.1, 0.01)
	w.weights[0] = 0.99
	w.weights[1] = 0.01
	rng := NewRNG(9)

	hits := 0
	for i := 0; i < 1000; i++ {
		if w.randomID(rng) == 0 {
			hits++
		}
	}
	require.Greater(t, hits, 950)
}
