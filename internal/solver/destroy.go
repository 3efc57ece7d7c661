package solver

import "math"

// destroyOperator removes a set of customers from the running solution and
// returns their ids. Implementations leave the solution fully re-evaluated.
type destroyOperator interface {
	apply() ([]int, error)
}

// removeCustomers takes every id in removed out of its route using the
// reverse index, then rebuilds the solution caches from scratch.
func (a *ALNS) removeCustomers(removed []int) error {
	s := a.running
	for _, id := range removed {
		r := s.RouteOf[id]
		pos, ok := customerPos(s.Routes[r], id)
		if !ok {
			return logicErrorf("customer %d not found in route %d during removal", id, r)
		}
		s.Routes[r] = removeAt(s.Routes[r], pos)
	}
	s.EvaluateSolution(a.capaWeight, a.frameWeight)
	return nil
}

// removalCount draws the number of customers to remove from
// Normal(meanRemoval, meanRemoval/2), clamped to [0, NrCustomers-1].
func (a *ALNS) removalCount() int {
	n := a.rng.NormalInt(a.meanRemoval, a.meanRemoval/2)
	if n < 0 {
		n = 0
	}
	if n > a.inst.NrCustomers-1 {
		n = a.inst.NrCustomers - 1
	}
	return n
}

// bias draws the multiplicative selection noise U^rndFactor.
func (a *ALNS) bias() float64 {
	return math.Pow(a.rng.Float64(), a.opts.RandomNoise)
}

// randomDestroy removes each customer independently with probability around
// meanRemoval/NrCustomers. Pure diversification.
type randomDestroy struct{ a *ALNS }

func (op randomDestroy) apply() ([]int, error) {
	a := op.a
	s := a.running
	var removed []int

	for r, route := range s.Routes {
		kept := route[:0]
		for _, id := range route {
			if float64(a.rng.Intn(a.inst.NrCustomers)) > a.meanRemoval {
				kept = append(kept, id)
			} else {
				removed = append(removed, id)
			}
		}
		s.Routes[r] = kept
	}

	s.EvaluateSolution(a.capaWeight, a.frameWeight)
	return removed, nil
}

// routeDestroy empties one uniformly chosen route. Useful to shrink the
// route count when vehicles are over-provisioned.
type routeDestroy struct{ a *ALNS }

func (op routeDestroy) apply() ([]int, error) {
	a := op.a
	s := a.running

	r := a.rng.Intn(a.inst.NrVehicles - 1)
	removed := append([]int(nil), s.Routes[r]...)
	s.Routes[r] = s.Routes[r][:0]

	s.EvaluateSolution(a.capaWeight, a.frameWeight)
	return removed, nil
}

// demandDestroy removes the customers with the biggest demand, rank-biased.
// Heavy customers impact everyone served after them the most.
type demandDestroy struct {
	a           *ALNS
	demandRanks []int
}

func newDemandDestroy(a *ALNS) *demandDestroy {
	return &demandDestroy{a: a, demandRanks: ranks(a.inst.Demand)}
}

func (op *demandDestroy) apply() ([]int, error) {
	a := op.a
	n := a.removalCount()

	skewed := make([]float64, a.inst.NrCustomers)
	for i := range skewed {
		skewed[i] = float64(op.demandRanks[i]) * a.bias()
	}
	sorted := sortIndices(skewed)
	removed := append([]int(nil), sorted[len(sorted)-n:]...)

	if err := a.removeCustomers(removed); err != nil {
		return nil, err
	}
	return removed, nil
}

// timeDestroy removes the customers whose incoming plus outgoing travel time
// along their current route is worst, rank-biased. The ranking is dynamic,
// so it is computed here rather than cached on the solution.
type timeDestroy struct{ a *ALNS }

func (op timeDestroy) apply() ([]int, error) {
	a := op.a
	s := a.running
	cube := a.inst.TimeCube

	travelTimes := make([]float64, a.inst.NrCustomers)
	for _, route := range s.Routes {
		if len(route) == 0 {
			continue
		}
		prev := -1
		for _, id := range route {
			leg := cube[s.LoadLevels[id]][prev+1][id+1]
			travelTimes[id] = leg
			if prev >= 0 {
				travelTimes[prev] += leg
			}
			prev = id
		}
		travelTimes[prev] += cube[0][prev+1][0]
	}

	timeRanks := ranks(travelTimes)
	n := a.removalCount()

	skewed := make([]float64, len(timeRanks))
	for i := range skewed {
		skewed[i] = float64(timeRanks[i]) * a.bias()
	}
	sorted := sortIndices(skewed)
	removed := append([]int(nil), sorted[len(sorted)-n:]...)

	if err := a.removeCustomers(removed); err != nil {
		return nil, err
	}
	return removed, nil
}

// worstDestroy is greedy worst-removal: repeatedly take out the customer
// whose removal decreases quality the most (times noise). Candidate gains
// are cached per route and recomputed only for the route that changed.
type worstDestroy struct{ a *ALNS }

type removalCandidate struct {
	gain float64
	pos  int
}

func (op worstDestroy) apply() ([]int, error) {
	a := op.a
	s := a.running

	target := a.removalCount()
	removed := make([]int, 0, target)

	best := make([]removalCandidate, a.inst.NrVehicles)
	scan := func(r int) error {
		best[r] = removalCandidate{gain: math.Inf(-1), pos: -1}
		for pos := range s.Routes[r] {
			after, err := a.evaluateRemoval(r, pos)
			if err != nil {
				return err
			}
			gain := (s.Quality - after) * a.bias()
			if gain > best[r].gain {
				best[r] = removalCandidate{gain: gain, pos: pos}
			}
		}
		return nil
	}
	for r := range s.Routes {
		if err := scan(r); err != nil {
			return nil, err
		}
	}

	for len(removed) < target {
		bestRoute := -1
		for r := range best {
			if best[r].pos < 0 {
				continue
			}
			if bestRoute < 0 || best[r].gain > best[bestRoute].gain {
				bestRoute = r
			}
		}
		if bestRoute < 0 {
			break
		}

		pos := best[bestRoute].pos
		removed = append(removed, s.Routes[bestRoute][pos])
		s.Routes[bestRoute] = removeAt(s.Routes[bestRoute], pos)
		if err := s.EvaluateChange(bestRoute, pos-1, a.capaWeight, a.frameWeight); err != nil {
			return nil, logicErrorf("removal made route %d infeasible: %v", bestRoute, err)
		}
		if err := scan(bestRoute); err != nil {
			return nil, err
		}
	}

	return removed, nil
}

// evaluateRemoval reports the solution quality with the customer at (routeID,
// pos) taken out, restoring the route before returning. Removal only ever
// lowers loads, so the pseudo-capacity gate cannot fire on the way out; on
// the way back it restores a state that was admissible before.
func (a *ALNS) evaluateRemoval(routeID, pos int) (float64, error) {
	s := a.running
	id := s.Routes[routeID][pos]

	s.Routes[routeID] = removeAt(s.Routes[routeID], pos)
	if err := s.EvaluateChange(routeID, pos-1, a.capaWeight, a.frameWeight); err != nil {
		return 0, logicErrorf("trial removal at route %d pos %d: %v", routeID, pos, err)
	}
	cost := s.Quality

	s.Routes[routeID] = insertAt(s.Routes[routeID], pos, id)
	s.RouteOf[id] = routeID
	if err := s.EvaluateChange(routeID, pos, a.capaWeight, a.frameWeight); err != nil {
		return 0, logicErrorf("restoring route %d pos %d: %v", routeID, pos, err)
	}
	return cost, nil
}

// nodePairDestroy scores each customer by the historic potential of its
// current arcs: the best driving time ever observed for solutions using that
// arc. Customers sitting on historically bad arcs get removed, rank-biased.
type nodePairDestroy struct{ a *ALNS }

func (op nodePairDestroy) apply() ([]int, error) {
	a := op.a
	s := a.running

	perf := make([]float64, a.inst.NrCustomers)
	for _, route := range s.Routes {
		if len(route) == 0 {
			continue
		}
		prev := -1
		for _, id := range route {
			perf[id] += a.potential[prev+1][id+1]
			if prev >= 0 {
				perf[prev] += a.potential[prev+1][id+1]
			}
			prev = id
		}
		perf[prev] += a.potential[prev+1][0]
	}

	perfRanks := ranks(perf)
	n := a.removalCount()

	skewed := make([]float64, len(perfRanks))
	for i := range skewed {
		skewed[i] = float64(perfRanks[i]) * a.bias()
	}
	sorted := sortIndices(skewed)
	removed := append([]int(nil), sorted[len(sorted)-n:]...)

	if err := a.removeCustomers(removed); err != nil {
		return nil, err
	}
	return removed, nil
}

// shawDestroy is relatedness removal after Shaw (1998) and Ropke & Pisinger
// (2005): grow the removal set around a random seed, each step taking the
// candidate most related to a randomly chosen already-removed customer. The
// weight vector distinguishes the four configured variants.
type shawDestroy struct {
	a *ALNS

	distanceWeight float64
	windowWeight   float64
	demandWeight   float64
	vehicleWeight  float64
}

func (op *shawDestroy) apply() ([]int, error) {
	a := op.a
	s := a.running
	inst := a.inst

	n := a.removalCount()

	candidates := rangeInts(inst.NrCustomers)
	removed := make([]int, 0, n+1)

	seed := a.rng.Intn(inst.NrCustomers - 1)
	removed = append(removed, seed)
	candidates = removeAt(candidates, seed)

	for i := 1; i < n && len(candidates) > 0; i++ {
		ref := removed[a.rng.Intn(i-1)]

		bestPos := 0
		minRelatedness := math.MaxFloat64
		for candPos, cand := range candidates {
			// The distance matrix includes the depot, hence the +1 shift.
			relatedness := op.distanceWeight*inst.NormDistance[ref+1][cand+1] +
				op.windowWeight*inst.NormStartWindow[ref][cand] +
				op.windowWeight*inst.NormEndWindow[ref][cand] +
				op.demandWeight*inst.NormDemand[ref][cand]

			if s.RouteOf[ref] == s.RouteOf[cand] {
				relatedness += op.vehicleWeight
			}
			relatedness *= a.bias()

			// Maximum relatedness is a score of 0.
			if relatedness < minRelatedness {
				minRelatedness = relatedness
				bestPos = candPos
			}
		}

		removed = append(removed, candidates[bestPos])
		candidates = removeAt(candidates, bestPos)
	}

	if err := a.removeCustomers(removed); err != nil {
		return nil, err
	}
	return removed, nil
}
