package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// flatConfig builds a VRPLDTT config over n customers with pairwise distance
// 1 km, no elevation, and wide-open windows.
func flatConfig(nrVehicles, nrCustomers int, demand []float64) InstanceConfig {
	n := nrCustomers + 1
	dist := make([][]float64, n)
	elev := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		elev[i] = make([]float64, n)
		for j := range dist[i] {
			if i != j {
				dist[i][j] = 1
			}
		}
	}
	service := make([]float64, nrCustomers)
	startW := make([]float64, nrCustomers)
	endW := make([]float64, nrCustomers)
	for i := range endW {
		endW[i] = 1e6
	}
	return InstanceConfig{
		NrVehicles:   nrVehicles,
		NrNodes:      n,
		NrCustomers:  nrCustomers,
		Demand:       demand,
		ServiceTimes: service,
		StartWindow:  startW,
		EndWindow:    endW,
		Elevation:    elev,
		Distance:     dist,
		LoadBucketSize: 10,
	}
}

func TestNewInstanceFlat(t *testing.T) {
	inst, err := NewInstance(flatConfig(1, 1, []float64{10}))
	require.NoError(t, err)

	require.Equal(t, float64(DefaultVehicleCapacity), inst.VehicleCapacity)
	require.Equal(t, float64(DefaultVehicleWeight), inst.VehicleWeight)
	require.Equal(t, 10.0, inst.AddPseudoCapacity)
	// ceil((150+10)/10) buckets.
	require.Equal(t, 16, inst.NrBuckets())

	// Flat terrain rides at the 25 km/h cap: 1 km in 2.4 minutes, at every
	// load level and in both directions.
	for b := 0; b < inst.NrBuckets(); b++ {
		require.InDelta(t, 2.4, inst.TimeCube[b][0][1], 1e-9)
		require.InDelta(t, 2.4, inst.TimeCube[b][1][0], 1e-9)
		require.Zero(t, inst.TimeCube[b][0][0])
	}
}

func TestNewInstanceBucketCount(t *testing.T) {
	cfg := flatConfig(1, 1, []float64{10})
	cfg.LoadBucketSize = 0
	cfg.NrLoadBuckets = 15
	inst, err := NewInstance(cfg)
	require.NoError(t, err)
	require.Equal(t, 10.0, inst.LoadBucketSize)
	require.Equal(t, 16, inst.NrBuckets())
}

func TestNewInstanceUphillSlower(t *testing.T) {
	cfg := flatConfig(1, 1, []float64{10})
	cfg.Elevation[0][1] = 50 // 50 m climb toward the customer
	inst, err := NewInstance(cfg)
	require.NoError(t, err)

	// Uphill leg is slower than the cap, the flat return leg is not.
	require.Greater(t, inst.TimeCube[0][0][1], 2.4)
	require.InDelta(t, 2.4, inst.TimeCube[0][1][0], 1e-9)

	// More load climbs slower still.
	last := inst.NrBuckets() - 1
	require.Greater(t, inst.TimeCube[last][0][1], inst.TimeCube[0][0][1])
}

func TestNewInstanceConfigErrors(t *testing.T) {
	cfg := flatConfig(1, 1, []float64{10})
	cfg.LoadBucketSize = 0
	_, err := NewInstance(cfg)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)

	cfg = flatConfig(0, 1, []float64{10})
	_, err = NewInstance(cfg)
	require.ErrorAs(t, err, &cfgErr)

	cfg = flatConfig(1, 1, []float64{10})
	cfg.NrNodes = 5
	_, err = NewInstance(cfg)
	require.ErrorAs(t, err, &cfgErr)

	cfg = flatConfig(1, 2, []float64{10}) // demand vector too short
	_, err = NewInstance(cfg)
	require.ErrorAs(t, err, &cfgErr)
}

func TestNewTimeCubeInstance(t *testing.T) {
	cfg := flatConfig(1, 2, []float64{10, 20})
	cube := [][][]float64{{
		{0, 1, 1},
		{1, 0, 1},
		{1, 1, 0},
	}}
	inst, err := NewTimeCubeInstance(cfg, cube)
	require.NoError(t, err)
	require.Equal(t, 1, inst.NrBuckets())
	require.Equal(t, 2*inst.VehicleCapacity, inst.LoadBucketSize)
	// The single layer doubles as the relatedness distance matrix.
	require.Equal(t, cube[0], inst.DistanceMatrix)

	// Every reachable load maps to the only bucket.
	require.Equal(t, 0, loadBucket(inst.VehicleCapacity+inst.AddPseudoCapacity, inst.LoadBucketSize))

	var cfgErr *ConfigError
	_, err = NewTimeCubeInstance(cfg, append(cube, cube[0]))
	require.ErrorAs(t, err, &cfgErr)
}

func TestVelocityModel(t *testing.T) {
	// Downhill and flat ride at the cap.
	require.Equal(t, float64(maxSpeedKmh), velocity(150, -0.1))
	require.Equal(t, float64(maxSpeedKmh), velocity(150, 0))

	// Climbing is monotonically slower in slope and in mass.
	v1 := velocity(150, 0.05)
	v2 := velocity(150, 0.10)
	v3 := velocity(250, 0.05)
	require.Less(t, v1, float64(maxSpeedKmh))
	require.Less(t, v2, v1)
	require.Less(t, v3, v1)
	require.Greater(t, v2, 0.0)
}
