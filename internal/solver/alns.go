package solver

import (
	"math"
	"time"
)

// Options configures a solve. Use DefaultOptions as the base: zero values
// are taken literally (a zero TargetInf really means "never tolerate
// infeasible iterations").
type Options struct {
	// Operator sets, by registry name. Empty lists select random_destroy and
	// basic_greedy respectively.
	DestroyOperators []string
	RepairOperators  []string

	MaxTime       time.Duration // wall clock budget
	MaxIterations int           // iterations without improvement cap

	InitTemperature float64 // scaled by the initial solution quality
	CoolingRate     float64

	WheelMemoryLength int
	WheelParameter    float64

	RewardBest         float64
	RewardAcceptBetter float64
	RewardUnique       float64
	RewardDivers       float64
	Penalty            float64
	MinWeight          float64

	// RandomNoise is the exponent of the U^noise selection bias used by the
	// rank-based destroy operators.
	RandomNoise float64

	// TargetInf is the desired long-run fraction of iterations producing
	// infeasible solutions; the penalty weights are steered toward it.
	TargetInf float64

	// ShakeupLog > 0 enables neighborhood growth under stagnation.
	ShakeupLog     float64
	MeanRemovalLog float64

	// Seed fixes the random stream; a given seed makes the solve
	// deterministic. Zero selects the canonical stream.
	Seed uint64

	// OnBest, when set, is called from the solve loop whenever a new global
	// best is accepted. The loop blocks on it, so it must be fast.
	OnBest func(iteration int, drivingTime float64)
}

// DefaultOptions returns the standard parameterisation.
func DefaultOptions() Options {
	return Options{
		MaxTime:            600 * time.Second,
		MaxIterations:      10000,
		InitTemperature:    0.001,
		CoolingRate:        0.99975,
		WheelMemoryLength:  20,
		WheelParameter:     0.1,
		RewardBest:         33,
		RewardAcceptBetter: 13,
		RewardUnique:       9,
		RewardDivers:       9,
		Penalty:            0,
		MinWeight:          1,
		RandomNoise:        0,
		TargetInf:          0.2,
		ShakeupLog:         20,
		MeanRemovalLog:     2,
	}
}

// DestroyOperatorNames lists the valid destroy registry keys.
var DestroyOperatorNames = []string{
	"random_destroy", "route_destroy", "demand_destroy", "time_destroy",
	"worst_destroy", "node_pair_destroy", "shaw_destroy",
	"distance_similarity", "window_similarity", "demand_similarity",
}

// RepairOperatorNames lists the valid repair registry keys.
var RepairOperatorNames = []string{
	"basic_greedy", "random_greedy", "deep_greedy",
	"2_regret", "3_regret", "5_regret", "beta_hybrid",
}

// ALNS is one adaptive large neighborhood search run: a simulated annealing
// outer loop over roulette-selected destroy/repair pairs mutating a running
// solution. All state, including the random stream, is owned by the value,
// so independent runs may execute concurrently.
type ALNS struct {
	inst *Instance
	opts Options
	rng  *RNG

	capaWeight  float64
	frameWeight float64
	meanRemoval float64

	// potential[i][j] is the best total driving time ever observed for a
	// solution using arc i->j; usage[i][j] counts the iterations whose
	// solution used the arc.
	potential [][]float64
	usage     [][]int

	running *Solution // mutated by every operator pair
	current *Solution // annealing incumbent
	best    *Solution // global best, feasible improvements only

	destroyNames []string
	repairNames  []string
	destroyOps   []destroyOperator
	repairOps    []repairOperator
	destroyWheel *rouletteWheel
	repairWheel  *rouletteWheel

	infCount int
}

// WheelStats exposes a wheel's final state.
type WheelStats struct {
	Names   []string  `json:"names"`
	Weights []float64 `json:"weights"`
	Uses    []int     `json:"uses"`
}

// WeightSnapshot records both wheels' weights at a rebalance point.
type WeightSnapshot struct {
	Iteration int       `json:"iteration"`
	Destroy   []float64 `json:"destroy"`
	Repair    []float64 `json:"repair"`
}

// Result is the outcome of a Solve call.
type Result struct {
	Best       *Solution
	Iterations int
	DurationMS int64

	DestroyWheel WheelStats
	RepairWheel  WheelStats
	Snapshots    []WeightSnapshot

	// Visited maps each distinct route assignment (hashed) to the wall
	// clock ms at which it was first generated.
	Visited map[uint64]int64

	CapaErrorWeight  float64
	FrameErrorWeight float64
}

// SetOnBest installs or replaces the best-solution callback after
// construction.
func (a *ALNS) SetOnBest(fn func(iteration int, drivingTime float64)) {
	a.opts.OnBest = fn
}

// NewALNS validates the operator configuration and assembles a solver over
// the instance. The instance is treated as read-only for the solver's
// lifetime.
func NewALNS(inst *Instance, opts Options) (*ALNS, error) {
	if opts.WheelMemoryLength <= 0 {
		return nil, configErrorf("wheel memory length must be positive (got %d)", opts.WheelMemoryLength)
	}
	if opts.MaxIterations <= 0 {
		return nil, configErrorf("max iterations must be positive (got %d)", opts.MaxIterations)
	}
	if opts.MeanRemovalLog <= 1 {
		return nil, configErrorf("mean removal log base must exceed 1 (got %g)", opts.MeanRemovalLog)
	}

	a := &ALNS{
		inst:        inst,
		opts:        opts,
		rng:         NewRNG(opts.Seed),
		capaWeight:  1,
		frameWeight: 1,
		meanRemoval: math.Log(float64(inst.NrCustomers)) / math.Log(opts.MeanRemovalLog),
		running:     newShellSolution(inst),
		current:     newShellSolution(inst),
		best:        newShellSolution(inst),
	}

	a.potential = make([][]float64, inst.NrNodes)
	a.usage = make([][]int, inst.NrNodes)
	for i := range a.potential {
		a.potential[i] = make([]float64, inst.NrNodes)
		a.usage[i] = make([]int, inst.NrNodes)
		for j := range a.potential[i] {
			a.potential[i][j] = math.Inf(1)
		}
	}

	a.destroyNames = opts.DestroyOperators
	if len(a.destroyNames) == 0 {
		a.destroyNames = []string{"random_destroy"}
	}
	a.repairNames = opts.RepairOperators
	if len(a.repairNames) == 0 {
		a.repairNames = []string{"basic_greedy"}
	}

	for _, name := range a.destroyNames {
		op, err := a.newDestroyOperator(name)
		if err != nil {
			return nil, err
		}
		a.destroyOps = append(a.destroyOps, op)
	}
	for _, name := range a.repairNames {
		op, err := a.newRepairOperator(name)
		if err != nil {
			return nil, err
		}
		a.repairOps = append(a.repairOps, op)
	}

	a.destroyWheel = newRouletteWheel(len(a.destroyOps), opts.WheelParameter, opts.MinWeight)
	a.repairWheel = newRouletteWheel(len(a.repairOps), opts.WheelParameter, opts.MinWeight)
	return a, nil
}

func (a *ALNS) newDestroyOperator(name string) (destroyOperator, error) {
	switch name {
	case "random_destroy":
		return randomDestroy{a: a}, nil
	case "route_destroy":
		return routeDestroy{a: a}, nil
	case "demand_destroy":
		return newDemandDestroy(a), nil
	case "time_destroy":
		return timeDestroy{a: a}, nil
	case "worst_destroy":
		return worstDestroy{a: a}, nil
	case "node_pair_destroy":
		return nodePairDestroy{a: a}, nil
	case "shaw_destroy":
		return &shawDestroy{a: a, distanceWeight: 9, windowWeight: 3, demandWeight: 2, vehicleWeight: 5}, nil
	case "distance_similarity":
		return &shawDestroy{a: a, distanceWeight: 1}, nil
	case "window_similarity":
		return &shawDestroy{a: a, windowWeight: 1}, nil
	case "demand_similarity":
		return &shawDestroy{a: a, demandWeight: 1}, nil
	}
	return nil, configErrorf("unknown destroy operator %q", name)
}

func (a *ALNS) newRepairOperator(name string) (repairOperator, error) {
	switch name {
	case "basic_greedy":
		return basicGreedy{a: a}, nil
	case "random_greedy":
		return randomGreedy{a: a}, nil
	case "deep_greedy":
		return deepGreedy{a: a}, nil
	case "2_regret":
		return &kRegret{a: a, k: 2}, nil
	case "3_regret":
		return &kRegret{a: a, k: 3}, nil
	case "5_regret":
		return &kRegret{a: a, k: 5}, nil
	case "beta_hybrid":
		return &betaHybrid{a: a, beta: 3}, nil
	}
	return nil, configErrorf("unknown repair operator %q", name)
}

// initialize places every customer into a random route that still has room
// below capacity plus the pseudo-capacity slack, in random order with a
// random route offset. The slack guarantees a placement exists whenever
// total demand permits one.
func (a *ALNS) initialize() error {
	inst := a.inst
	maxCapacity := inst.VehicleCapacity + inst.AddPseudoCapacity

	routes := make([][]int, inst.NrVehicles)
	for r := range routes {
		routes[r] = []int{}
	}
	loads := make([]float64, inst.NrVehicles)

	pending := rangeInts(inst.NrCustomers)
	for len(pending) > 0 {
		pick := a.rng.Intn(len(pending) - 1)
		id := pending[pick]

		offset := a.rng.Intn(inst.NrVehicles - 1)
		inserted := false
		for step := 0; step < inst.NrVehicles; step++ {
			r := (offset + step) % inst.NrVehicles
			if loads[r]+inst.Demand[id] < maxCapacity {
				routes[r] = append(routes[r], id)
				loads[r] += inst.Demand[id]
				inserted = true
				break
			}
		}
		if !inserted {
			return ErrInitInfeasible
		}
		pending = removeAt(pending, pick)
	}

	initial := NewSolution(inst, routes, a.capaWeight, a.frameWeight)
	a.running.CopyFrom(initial)
	a.current.CopyFrom(initial)
	return nil
}

// updateHistoricMatrices folds the running solution's arcs into the
// potential and usage matrices, closing depot legs included. Subsequent
// iterations' node-pair removal observes these.
func (a *ALNS) updateHistoricMatrices() {
	driving := a.running.DrivingTime
	for _, route := range a.running.Routes {
		if len(route) == 0 {
			continue
		}
		prev := 0
		for _, id := range route {
			node := id + 1
			if a.potential[prev][node] > driving {
				a.potential[prev][node] = driving
			}
			a.usage[prev][node]++
			prev = node
		}
		if a.potential[prev][0] > driving {
			a.potential[prev][0] = driving
		}
		a.usage[prev][0]++
	}
}

// updatePenaltyWeights steers the infeasibility penalties toward the target
// rate over the last 100 iterations, then rescales the incumbent and running
// qualities. The best solution is always feasible, so its quality equals its
// driving time and needs no rescale.
func (a *ALNS) updatePenaltyWeights() {
	ratio := float64(a.infCount) / 100

	if ratio+0.05 < a.opts.TargetInf {
		a.capaWeight *= 0.85
		a.frameWeight *= 0.85
	} else if ratio-0.05 > a.opts.TargetInf {
		a.capaWeight *= 1.2
		a.frameWeight *= 1.2
	}

	a.current.SetQuality(a.capaWeight, a.frameWeight)
	a.running.SetQuality(a.capaWeight, a.frameWeight)
}

// Solve runs the search until the time budget or the without-improvement
// cap is hit and returns the best feasible solution found.
func (a *ALNS) Solve() (*Result, error) {
	if err := a.initialize(); err != nil {
		return nil, err
	}

	// The configured temperature is relative to the initial quality, which
	// itself scales with the customer count.
	temperature := a.opts.InitTemperature * a.running.Quality

	visited := make(map[uint64]int64)
	var snapshots []WeightSnapshot

	iteration := 0
	iterationWI := 0
	iterationInf := 0
	start := time.Now()

	destroyPeriod := len(a.destroyOps) * a.opts.WheelMemoryLength
	repairPeriod := len(a.repairOps) * a.opts.WheelMemoryLength

	for time.Since(start) < a.opts.MaxTime && iterationWI < a.opts.MaxIterations {
		destroyID := a.destroyWheel.randomID(a.rng)
		repairID := a.repairWheel.randomID(a.rng)

		tStart := time.Now()
		removed, err := a.destroyOps[destroyID].apply()
		if err != nil {
			return nil, err
		}
		if err := a.repairOps[repairID].apply(removed); err != nil {
			return nil, err
		}

		a.updateHistoricMatrices()

		benefit := 0.0
		hash := a.running.Hash()
		_, seen := visited[hash]
		if !seen {
			benefit += a.opts.RewardUnique
		}

		runningQuality := a.running.Quality
		currentQuality := a.current.Quality
		if runningQuality < currentQuality {
			a.current.CopyFrom(a.running)
			benefit += a.opts.RewardAcceptBetter
		} else {
			acceptance := math.Exp(-(runningQuality - currentQuality) / temperature)
			diversity := a.running.Diversity(a.usage, iteration)
			benefit += diversity*acceptance*a.opts.RewardDivers + a.opts.Penalty

			if a.rng.Float64() < acceptance {
				a.current.CopyFrom(a.running)
			}
		}

		if a.running.DrivingTime < a.best.DrivingTime && a.running.IsFeasible {
			a.best.CopyFrom(a.running)
			benefit += a.opts.RewardBest
			iterationWI = 0
			if a.opts.OnBest != nil {
				a.opts.OnBest(iteration, a.best.DrivingTime)
			}
			if a.opts.ShakeupLog > 0 {
				a.meanRemoval = math.Ceil(math.Log(float64(a.inst.NrCustomers)) / math.Log(a.opts.MeanRemovalLog))
			}
		} else {
			iterationWI++
			if a.opts.ShakeupLog > 0 {
				a.meanRemoval = math.Ceil((math.Log(float64(iterationWI+1)) / math.Log(a.opts.ShakeupLog)) *
					(math.Log(float64(a.inst.NrCustomers)) / math.Log(a.opts.MeanRemovalLog)))
			}
		}

		if !seen {
			visited[hash] = tStart.UnixMilli()
		}

		if !a.running.IsFeasible {
			a.infCount++
		}
		if iterationInf == 99 {
			a.updatePenaltyWeights()
			a.infCount = 0
			iterationInf = 0
		} else {
			iterationInf++
		}

		// Score per millisecond so slow operators must earn their keep.
		executionMS := float64(time.Since(tStart).Milliseconds() + 1)
		a.destroyWheel.updateStats(benefit / executionMS)
		a.repairWheel.updateStats(benefit / executionMS)

		if iteration%destroyPeriod == 0 {
			a.destroyWheel.updateWeights()
			snapshots = append(snapshots, WeightSnapshot{
				Iteration: iteration,
				Destroy:   a.destroyWheel.snapshot(),
				Repair:    a.repairWheel.snapshot(),
			})
		}
		if iteration%repairPeriod == 0 {
			a.repairWheel.updateWeights()
		}

		temperature *= a.opts.CoolingRate
		iteration++

		a.running.CopyFrom(a.current)
	}

	if math.IsInf(a.best.DrivingTime, 1) {
		return nil, ErrNoSolution
	}

	return &Result{
		Best:       a.best,
		Iterations: iteration,
		DurationMS: time.Since(start).Milliseconds(),
		DestroyWheel: WheelStats{
			Names:   a.destroyNames,
			Weights: a.destroyWheel.snapshot(),
			Uses:    append([]int(nil), a.destroyWheel.totalUses...),
		},
		RepairWheel: WheelStats{
			Names:   a.repairNames,
			Weights: a.repairWheel.snapshot(),
			Uses:    append([]int(nil), a.repairWheel.totalUses...),
		},
		Snapshots:        snapshots,
		Visited:          visited,
		CapaErrorWeight:  a.capaWeight,
		FrameErrorWeight: a.frameWeight,
	}, nil
}
