package solver

import "sort"

// rangeInts returns the integers [0, n).
func rangeInts(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// removeAt removes the element at position i, preserving order.
func removeAt(v []int, i int) []int {
	return append(v[:i], v[i+1:]...)
}

// insertAt inserts val at position i, shifting the suffix right.
func insertAt(v []int, i, val int) []int {
	v = append(v, 0)
	copy(v[i+1:], v[i:])
	v[i] = val
	return v
}

// sortIndices returns the indices of v ordered by ascending value. Equal
// values keep ascending index order so the result is deterministic.
func sortIndices(v []float64) []int {
	idx := rangeInts(len(v))
	sort.Slice(idx, func(a, b int) bool {
		if v[idx[a]] != v[idx[b]] {
			return v[idx[a]] < v[idx[b]]
		}
		return idx[a] < idx[b]
	})
	return idx
}

// ranks assigns each element its rank in ascending order, starting at 1.
// Equal values share a rank.
func ranks(v []float64) []int {
	idx := sortIndices(v)
	out := make([]int, len(v))
	if len(v) == 0 {
		return out
	}
	rank := 1
	out[idx[0]] = rank
	prev := v[idx[0]]
	for i := 1; i < len(idx); i++ {
		cur := v[idx[i]]
		if cur != prev {
			rank++
		}
		out[idx[i]] = rank
		prev = cur
	}
	return out
}

// normalizeMatrixCopy min-max normalizes m into a new matrix. A degenerate
// range yields zeros.
func normalizeMatrixCopy(m [][]float64, min, max float64) [][]float64 {
	base := max - min
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = make([]float64, len(row))
		if base == 0 {
			continue
		}
		for j, val := range row {
			out[i][j] = (val - min) / base
		}
	}
	return out
}

// normAbsDiffMatrix builds the pairwise |v[i]-v[j]| matrix and min-max
// normalizes it.
func normAbsDiffMatrix(v []float64) [][]float64 {
	min, max := 0.0, 0.0
	m := make([][]float64, len(v))
	for i := range v {
		m[i] = make([]float64, len(v))
		for j := range v {
			d := v[i] - v[j]
			if d < 0 {
				d = -d
			}
			m[i][j] = d
			if d < min {
				min = d
			}
			if d > max {
				max = d
			}
		}
	}
	return normalizeMatrixCopy(m, min, max)
}
