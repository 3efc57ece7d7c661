package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func requireAllRouted(t *testing.T, a *ALNS) {
	t.Helper()
	counts := make([]int, a.inst.NrCustomers)
	for r, route := range a.running.Routes {
		for _, id := range route {
			counts[id]++
			require.Equal(t, r, a.running.RouteOf[id])
		}
	}
	for id, n := range counts {
		require.Equal(t, 1, n, "customer %d appears %d times", id, n)
	}
}

func TestRepairOperatorsReinsertEverything(t *testing.T) {
	removed := []int{1, 3, 5}
	for ri, name := range RepairOperatorNames {
		t.Run(name, func(t *testing.T) {
			a := newTestALNS(t, uint64(ri+21))
			require.NoError(t, a.removeCustomers(removed))

			require.NoError(t, a.repairOps[ri].apply(append([]int(nil), removed...)))

			requireAllRouted(t, a)
			requireAggregatesMatchScratch(t, a)
		})
	}
}

func TestRepairAfterEachDestroyRoundTrip(t *testing.T) {
	// Operator round trip: any destroy followed by any repair leaves a
	// complete, consistent solution.
	for di, dname := range DestroyOperatorNames {
		for ri, rname := range RepairOperatorNames {
			t.Run(dname+"/"+rname, func(t *testing.T) {
				a := newTestALNS(t, uint64(di*10+ri+1))

				removed, err := a.destroyOps[di].apply()
				require.NoError(t, err)
				require.NoError(t, a.repairOps[ri].apply(removed))

				requireAllRouted(t, a)
				requireAggregatesMatchScratch(t, a)
			})
		}
	}
}

func TestEvaluateInsertionRevertsState(t *testing.T) {
	a := newTestALNS(t, 31)
	removed := []int{0}
	require.NoError(t, a.removeCustomers(removed))
	before := a.running.Clone()

	_, err := a.evaluateInsertion(1, 0, 0)
	require.NoError(t, err)

	require.True(t, before.Equal(a.running))
	requireAggregatesMatchScratch(t, a)
}

func TestBestInsertionPrefersCheapestRoute(t *testing.T) {
	// Two customers far apart; inserting next to the nearby one must win.
	cube := uniformCube(4, 10)
	// Customer 2 (node 3) is close to customer 0 (node 1) and the depot.
	cube[0][1][3], cube[0][3][1] = 1, 1
	cube[0][0][3], cube[0][3][0] = 1, 1

	cfg := InstanceConfig{
		NrVehicles:   2,
		NrNodes:      4,
		NrCustomers:  3,
		Demand:       vec(3, 1),
		ServiceTimes: vec(3, 0),
		StartWindow:  vec(3, 0),
		EndWindow:    vec(3, 1000),
	}
	inst, err := NewTimeCubeInstance(cfg, cube)
	require.NoError(t, err)

	opts := DefaultOptions()
	a, err := NewALNS(inst, opts)
	require.NoError(t, err)
	a.running.CopyFrom(NewSolution(inst, [][]int{{0}, {1}}, 1, 1))

	best, err := a.bestInsertion(2, -1)
	require.NoError(t, err)
	require.Equal(t, 0, best.routeID)
	// Both positions of route 0 cost 1+1+10; the scan keeps the first.
	require.Equal(t, 0, best.pos)
	require.InDelta(t, 1+1+10-(10+10), best.cost, 1e-9)
}

func TestInsertCustomerRejectsUnplaced(t *testing.T) {
	a := newTestALNS(t, 37)
	err := a.insertCustomer(0, insertion{cost: unplacedCost})
	require.ErrorIs(t, err, errNoAdmissibleInsertion)
}

func TestBetaHybridFallsBackOnLargeSets(t *testing.T) {
	a := newTestALNS(t, 41)
	removed := []int{0, 1, 2, 3, 4} // above beta = 3
	require.NoError(t, a.removeCustomers(removed))

	op := &betaHybrid{a: a, beta: 3}
	require.NoError(t, op.apply(append([]int(nil), removed...)))
	requireAllRouted(t, a)
}
