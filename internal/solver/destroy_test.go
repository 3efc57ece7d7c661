package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestALNS(t *testing.T, seed uint64) *ALNS {
	t.Helper()
	inst := twInstance(t, 3, 8,
		[]float64{1, 2, 3, 4, 5, 6, 7, 8},
		vec(8, 1),
		vec(8, 0),
		vec(8, 1000),
		1)

	opts := DefaultOptions()
	opts.DestroyOperators = DestroyOperatorNames
	opts.RepairOperators = RepairOperatorNames
	opts.Seed = seed

	a, err := NewALNS(inst, opts)
	require.NoError(t, err)
	require.NoError(t, a.initialize())
	return a
}

// requireAggregatesMatchScratch rebuilds the running solution's routes from
// scratch and compares every aggregate and per-route figure. Per-customer
// caches of unassigned customers are allowed to be stale, so they are only
// compared for customers currently on a route.
func requireAggregatesMatchScratch(t *testing.T, a *ALNS) {
	t.Helper()
	s := a.running

	routes := make([][]int, len(s.Routes))
	for r := range s.Routes {
		routes[r] = append([]int(nil), s.Routes[r]...)
	}
	scratch := NewSolution(a.inst, routes, a.capaWeight, a.frameWeight)

	require.InDelta(t, scratch.DrivingTime, s.DrivingTime, 1e-6)
	require.InDelta(t, scratch.CapaError, s.CapaError, 1e-6)
	require.InDelta(t, scratch.FrameError, s.FrameError, 1e-6)
	require.InDelta(t, scratch.Quality, s.Quality, 1e-6)
	require.Equal(t, scratch.IsFeasible, s.IsFeasible)

	for r := range routes {
		require.InDelta(t, scratch.StartTimes[r], s.StartTimes[r], 1e-6)
		require.InDelta(t, scratch.RouteDrivingTimes[r], s.RouteDrivingTimes[r], 1e-6)
		require.InDelta(t, scratch.RouteCapaErrors[r], s.RouteCapaErrors[r], 1e-6)
		require.InDelta(t, scratch.RouteFrameErrors[r], s.RouteFrameErrors[r], 1e-6)
		require.InDelta(t, scratch.RouteQualities[r], s.RouteQualities[r], 1e-6)

		for _, id := range routes[r] {
			require.Equal(t, r, s.RouteOf[id])
			require.InDelta(t, scratch.Loads[id], s.Loads[id], 1e-6)
			require.Equal(t, scratch.LoadLevels[id], s.LoadLevels[id])
			require.InDelta(t, scratch.ArrivalTimes[id], s.ArrivalTimes[id], 1e-6)
			require.InDelta(t, scratch.DepartureTimes[id], s.DepartureTimes[id], 1e-6)
		}
	}
}

func TestDestroyOperatorsRemoveCleanly(t *testing.T) {
	for di, name := range DestroyOperatorNames {
		t.Run(name, func(t *testing.T) {
			a := newTestALNS(t, uint64(di+1))
			op := a.destroyOps[di]

			removed, err := op.apply()
			require.NoError(t, err)

			// No duplicates in the removal list.
			seen := map[int]bool{}
			for _, id := range removed {
				require.False(t, seen[id], "duplicate removal of %d", id)
				seen[id] = true
			}

			// Removed customers are off the routes, everyone else is on
			// exactly one.
			onRoute := map[int]int{}
			for _, route := range a.running.Routes {
				for _, id := range route {
					onRoute[id]++
				}
			}
			for _, id := range removed {
				require.Zero(t, onRoute[id], "removed customer %d still routed", id)
			}
			require.Equal(t, a.inst.NrCustomers, len(onRoute)+len(removed))
			for id, n := range onRoute {
				require.Equal(t, 1, n, "customer %d routed %d times", id, n)
			}

			requireAggregatesMatchScratch(t, a)
		})
	}
}

func TestRouteDestroyEmptiesOneRoute(t *testing.T) {
	a := newTestALNS(t, 3)
	before := make([]int, len(a.running.Routes))
	total := 0
	for r, route := range a.running.Routes {
		before[r] = len(route)
		total += len(route)
	}

	removed, err := routeDestroy{a: a}.apply()
	require.NoError(t, err)

	left := 0
	for _, route := range a.running.Routes {
		left += len(route)
	}
	require.Equal(t, total, left+len(removed))

	empty := 0
	for _, route := range a.running.Routes {
		if len(route) == 0 {
			empty++
		}
	}
	require.GreaterOrEqual(t, empty, 1)
}

func TestWorstDestroyRespectsTarget(t *testing.T) {
	a := newTestALNS(t, 5)
	removed, err := worstDestroy{a: a}.apply()
	require.NoError(t, err)
	require.LessOrEqual(t, len(removed), a.inst.NrCustomers-1)
	requireAggregatesMatchScratch(t, a)
}

func TestShawDestroyGrowsAroundSeed(t *testing.T) {
	a := newTestALNS(t, 7)
	op := &shawDestroy{a: a, distanceWeight: 9, windowWeight: 3, demandWeight: 2, vehicleWeight: 5}
	removed, err := op.apply()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(removed), 1, "the seed customer is always removed")
	requireAggregatesMatchScratch(t, a)
}

func TestRemoveCustomersLogicError(t *testing.T) {
	a := newTestALNS(t, 9)
	// Corrupt the reverse index so the removal lookup must fail.
	id := a.running.Routes[0][0]
	wrong := (a.running.RouteOf[id] + 1) % len(a.running.Routes)
	a.running.RouteOf[id] = wrong

	err := a.removeCustomers([]int{id})
	require.Error(t, err)
}
