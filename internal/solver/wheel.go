package solver

// rouletteWheel is an adaptive weighted selector over N operators. Selection
// walks the prefix sums of the weights; scores accumulate per operator and
// are folded into the weights at each rebalance.
//
// Binary search over the prefix sums would not pay off here: the weights
// change at every rebalance and N stays small (the registries hold ten
// destroy and seven repair operators).
type rouletteWheel struct {
	weights []float64
	scores  []float64
	nrUses  []int

	// totalUses survives rebalances, for reporting.
	totalUses []int

	lastID    int
	parameter float64
	minWeight float64
}

func newRouletteWheel(n int, parameter, minWeight float64) *rouletteWheel {
	w := &rouletteWheel{
		weights:   make([]float64, n),
		scores:    make([]float64, n),
		nrUses:    make([]int, n),
		totalUses: make([]int, n),
		parameter: parameter,
		minWeight: minWeight,
	}
	for i := range w.weights {
		w.weights[i] = 1 / float64(n)
	}
	return w
}

// randomID draws an operator id proportionally to the current weights and
// remembers it as the target for the next updateStats call.
func (w *rouletteWheel) randomID(rng *RNG) int {
	sum := 0.0
	for _, weight := range w.weights {
		sum += weight
	}
	r := rng.Float64() * sum

	current := 0.0
	for id, weight := range w.weights {
		current += weight
		if r <= current {
			w.lastID = id
			return id
		}
	}
	// Rounding can leave r a hair above the final prefix sum.
	w.lastID = len(w.weights) - 1
	return w.lastID
}

// updateStats credits the last drawn operator with a score.
func (w *rouletteWheel) updateStats(score float64) {
	w.scores[w.lastID] += score
	w.nrUses[w.lastID]++
	w.totalUses[w.lastID]++
}

// updateWeights folds the accumulated mean scores into the weights:
// w <- p*(score/uses) + (1-p)*w, clamped below by minWeight. Operators that
// were never drawn in the window drop to minWeight. Scores and use counts
// reset afterwards.
func (w *rouletteWheel) updateWeights() {
	for id := range w.weights {
		if w.nrUses[id] > 0 {
			weight := w.parameter*(w.scores[id]/float64(w.nrUses[id])) + (1-w.parameter)*w.weights[id]
			if weight < w.minWeight {
				weight = w.minWeight
			}
			w.weights[id] = weight
		} else {
			w.weights[id] = w.minWeight
		}
		w.scores[id] = 0
		w.nrUses[id] = 0
	}
}

// snapshot returns a copy of the current weights.
func (w *rouletteWheel) snapshot() []float64 {
	out := make([]float64, len(w.weights))
	copy(out, w.weights)
	return out
}
