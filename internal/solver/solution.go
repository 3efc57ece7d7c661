package solver

import "math"

// Solution owns a set of routes over an Instance plus every cache derived
// from them. Routes hold customer ids; the union of all routes is exactly
// {0..NrCustomers-1}. All derived state can be rebuilt from Routes alone via
// EvaluateSolution, or patched after a single-route edit via EvaluateChange.
type Solution struct {
	inst *Instance

	Routes [][]int

	// RouteOf is the reverse index: RouteOf[c] = r iff c is in Routes[r].
	RouteOf []int

	// Per-customer caches. Loads[c] is the cumulative demand from c's
	// position to the end of its route; LoadLevels[c] its bucket.
	Loads          []float64
	LoadLevels     []int
	ArrivalTimes   []float64
	DepartureTimes []float64

	// Per-route caches.
	StartTimes        []float64
	RouteDrivingTimes []float64
	RouteCapaErrors   []float64
	RouteFrameErrors  []float64
	RouteQualities    []float64

	// Aggregate KPIs.
	DrivingTime float64
	CapaError   float64
	FrameError  float64
	Quality     float64
	IsFeasible  bool
}

// newShellSolution allocates a solution with all buffers sized for inst but
// no routes assigned. Its driving time is the +Inf sentinel so that any
// feasible solution improves on it.
func newShellSolution(inst *Instance) *Solution {
	s := &Solution{
		inst:              inst,
		Routes:            make([][]int, inst.NrVehicles),
		RouteOf:           make([]int, inst.NrCustomers),
		Loads:             make([]float64, inst.NrCustomers),
		LoadLevels:        make([]int, inst.NrCustomers),
		ArrivalTimes:      make([]float64, inst.NrCustomers),
		DepartureTimes:    make([]float64, inst.NrCustomers),
		StartTimes:        make([]float64, inst.NrVehicles),
		RouteDrivingTimes: make([]float64, inst.NrVehicles),
		RouteCapaErrors:   make([]float64, inst.NrVehicles),
		RouteFrameErrors:  make([]float64, inst.NrVehicles),
		RouteQualities:    make([]float64, inst.NrVehicles),
		DrivingTime:       math.Inf(1),
	}
	for r := range s.Routes {
		s.Routes[r] = []int{}
	}
	return s
}

// NewSolution builds a fully evaluated solution from a route assignment.
func NewSolution(inst *Instance, routes [][]int, wCap, wFrm float64) *Solution {
	s := newShellSolution(inst)
	s.Routes = routes
	s.EvaluateSolution(wCap, wFrm)
	return s
}

// CopyFrom deep-copies o into s, reusing s's buffers. The two solutions
// share the Instance only.
func (s *Solution) CopyFrom(o *Solution) {
	s.inst = o.inst
	if len(s.Routes) != len(o.Routes) {
		s.Routes = make([][]int, len(o.Routes))
	}
	for r := range o.Routes {
		s.Routes[r] = append(s.Routes[r][:0], o.Routes[r]...)
	}
	s.RouteOf = append(s.RouteOf[:0], o.RouteOf...)
	s.Loads = append(s.Loads[:0], o.Loads...)
	s.LoadLevels = append(s.LoadLevels[:0], o.LoadLevels...)
	s.ArrivalTimes = append(s.ArrivalTimes[:0], o.ArrivalTimes...)
	s.DepartureTimes = append(s.DepartureTimes[:0], o.DepartureTimes...)
	s.StartTimes = append(s.StartTimes[:0], o.StartTimes...)
	s.RouteDrivingTimes = append(s.RouteDrivingTimes[:0], o.RouteDrivingTimes...)
	s.RouteCapaErrors = append(s.RouteCapaErrors[:0], o.RouteCapaErrors...)
	s.RouteFrameErrors = append(s.RouteFrameErrors[:0], o.RouteFrameErrors...)
	s.RouteQualities = append(s.RouteQualities[:0], o.RouteQualities...)
	s.DrivingTime = o.DrivingTime
	s.CapaError = o.CapaError
	s.FrameError = o.FrameError
	s.Quality = o.Quality
	s.IsFeasible = o.IsFeasible
}

// Clone returns an independent deep copy.
func (s *Solution) Clone() *Solution {
	c := newShellSolution(s.inst)
	c.CopyFrom(s)
	return c
}

// EvaluateSolution rebuilds every cache from Routes. Used at construction
// and after destroy operators that rewrite many positions at once.
func (s *Solution) EvaluateSolution(wCap, wFrm float64) {
	inst := s.inst

	for r, route := range s.Routes {
		for _, id := range route {
			s.RouteOf[id] = r
		}
	}

	for _, route := range s.Routes {
		updateLoadLevels(s.Loads, s.LoadLevels, route, len(route)-1, inst.Demand, inst.LoadBucketSize)
	}

	s.DrivingTime = 0
	s.CapaError = 0
	s.FrameError = 0
	s.Quality = 0
	for r, route := range s.Routes {
		start := startingTime(route, s.LoadLevels, inst.StartWindow, inst.TimeCube)
		s.StartTimes[r] = start
		s.RouteDrivingTimes[r] = updateVisitTimes(s.ArrivalTimes, s.DepartureTimes, start,
			route, s.LoadLevels, inst.StartWindow, inst.TimeCube, inst.ServiceTimes)
		s.RouteCapaErrors[r] = capaError(route, inst.VehicleCapacity, s.Loads)
		s.RouteFrameErrors[r] = frameError(route, inst.EndWindow, s.ArrivalTimes)
		s.RouteQualities[r] = routeQuality(s.RouteDrivingTimes[r], s.RouteCapaErrors[r], s.RouteFrameErrors[r], wCap, wFrm)

		s.DrivingTime += s.RouteDrivingTimes[r]
		s.CapaError += s.RouteCapaErrors[r]
		s.FrameError += s.RouteFrameErrors[r]
		s.Quality += s.RouteQualities[r]
	}
	s.IsFeasible = feasible(s.CapaError, s.FrameError)
}

// SetQuality recomputes the per-route and total qualities from the cached
// driving times and errors under new penalty weights. Everything else is
// weight independent and stays untouched.
func (s *Solution) SetQuality(wCap, wFrm float64) {
	s.Quality = 0
	for r := range s.Routes {
		s.RouteQualities[r] = routeQuality(s.RouteDrivingTimes[r], s.RouteCapaErrors[r], s.RouteFrameErrors[r], wCap, wFrm)
		s.Quality += s.RouteQualities[r]
	}
}

// EvaluateChange re-evaluates route routeID after the caller inserted or
// removed an element at insPos. Only the changed route's caches and the
// aggregate KPIs are touched.
//
// When the route's capacity error reaches the pseudo-capacity ceiling it
// returns errInfeasibilityExceeded immediately: the load caches are already
// mutated at that point and stay mutated, so the caller must either roll the
// edit back (and re-evaluate) or rebuild from scratch.
func (s *Solution) EvaluateChange(routeID, insPos int, wCap, wFrm float64) error {
	inst := s.inst
	route := s.Routes[routeID]
	if insPos > len(route)-1 {
		insPos = len(route) - 1
	}

	s.CapaError -= s.RouteCapaErrors[routeID]
	updateLoadLevels(s.Loads, s.LoadLevels, route, insPos, inst.Demand, inst.LoadBucketSize)
	routeCapa := capaError(route, inst.VehicleCapacity, s.Loads)
	s.CapaError += routeCapa

	if routeCapa >= inst.AddPseudoCapacity {
		// Keep the per-route cache coherent with the totals so that the
		// caller's rollback evaluation subtracts exactly what was added
		// here and the aggregates come back clean.
		s.RouteCapaErrors[routeID] = routeCapa
		return errInfeasibilityExceeded
	}

	s.DrivingTime -= s.RouteDrivingTimes[routeID]
	s.FrameError -= s.RouteFrameErrors[routeID]
	s.Quality -= s.RouteQualities[routeID]

	start := startingTime(route, s.LoadLevels, inst.StartWindow, inst.TimeCube)
	s.StartTimes[routeID] = start
	s.RouteDrivingTimes[routeID] = updateVisitTimes(s.ArrivalTimes, s.DepartureTimes, start,
		route, s.LoadLevels, inst.StartWindow, inst.TimeCube, inst.ServiceTimes)
	routeFrame := frameError(route, inst.EndWindow, s.ArrivalTimes)
	quality := routeQuality(s.RouteDrivingTimes[routeID], routeCapa, routeFrame, wCap, wFrm)

	s.DrivingTime += s.RouteDrivingTimes[routeID]
	s.FrameError += routeFrame
	s.Quality += quality

	s.RouteCapaErrors[routeID] = routeCapa
	s.RouteFrameErrors[routeID] = routeFrame
	s.RouteQualities[routeID] = quality

	s.IsFeasible = feasible(s.CapaError, s.FrameError)
	return nil
}

// Diversity measures how historically under-used the solution's arcs are:
// the mean over all route arcs (depot legs included) of
// 1 - usage/(iteration+1), normalized by customer count plus the number of
// non-empty routes.
func (s *Solution) Diversity(usage [][]int, iteration int) float64 {
	newIter := float64(iteration + 1)
	norm := s.inst.NrCustomers
	diversity := 0.0

	for _, route := range s.Routes {
		if len(route) == 0 {
			continue
		}
		norm++
		prevNode := 0
		for _, id := range route {
			diversity += 1 - float64(usage[prevNode][id+1])/newIter
			prevNode = id + 1
		}
		diversity += 1 - float64(usage[prevNode][0])/newIter
	}

	return diversity / float64(norm)
}

// Equal reports whether two solutions have element-wise identical routes.
// Identical routes imply identical derived state.
func (s *Solution) Equal(o *Solution) bool {
	if len(s.Routes) != len(o.Routes) {
		return false
	}
	for r := range s.Routes {
		if len(s.Routes[r]) != len(o.Routes[r]) {
			return false
		}
		for p := range s.Routes[r] {
			if s.Routes[r][p] != o.Routes[r][p] {
				return false
			}
		}
	}
	return true
}

// Hash folds the route assignment into a single key for the visited set.
// Mixing each route's length into the seed distinguishes splits such as
// [[1,2],[3]] and [[1],[2,3]].
func (s *Solution) Hash() uint64 {
	seed := uint64(len(s.Routes))
	mix := func(v uint64) {
		seed ^= v + 0x9e3779b9 + (seed << 6) + (seed >> 2)
	}
	for _, route := range s.Routes {
		mix(uint64(len(route)))
		for _, id := range route {
			mix(uint64(id))
		}
	}
	return seed
}
