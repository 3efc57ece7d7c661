package solver

import "math"

// Default vehicle attributes for the cargo-bike fleet.
const (
	DefaultVehicleWeight   = 140
	DefaultVehicleCapacity = 150
)

// Instance holds the immutable problem data plus the tables derived from it
// during preprocessing. Node 0 is the depot; customer c corresponds to node
// c+1. All times are minutes, distances km, elevations m, loads kg.
type Instance struct {
	NrVehicles  int
	NrNodes     int
	NrCustomers int

	Demand       []float64
	ServiceTimes []float64
	StartWindow  []float64
	EndWindow    []float64

	VehicleWeight   float64
	VehicleCapacity float64

	// AddPseudoCapacity is the slack above vehicle capacity tolerated during
	// the search, sized so that random initial placement succeeds whenever
	// the fleet's combined capacity plus this slack holds all customers. It
	// equals the largest single customer demand, rounded up.
	AddPseudoCapacity float64

	LoadBucketSize float64

	DistanceMatrix  [][]float64
	ElevationMatrix [][]float64
	SlopeMatrix     [][]float64

	// TimeCube[b][i][j] is the travel time from node i to node j while
	// carrying a load in bucket b. Buckets index increasing mass; bucket 0
	// is the empty vehicle.
	TimeCube [][][]float64

	// Similarity matrices for relatedness removal, min-max normalized.
	NormDistance    [][]float64
	NormStartWindow [][]float64
	NormEndWindow   [][]float64
	NormDemand      [][]float64
}

// InstanceConfig is the construction input for a load-dependent travel time
// instance. Exactly one of LoadBucketSize or NrLoadBuckets must be positive.
// Zero VehicleWeight / VehicleCapacity select the defaults.
type InstanceConfig struct {
	NrVehicles  int
	NrNodes     int
	NrCustomers int

	Demand       []float64
	ServiceTimes []float64
	StartWindow  []float64
	EndWindow    []float64

	Elevation [][]float64
	Distance  [][]float64

	LoadBucketSize float64
	NrLoadBuckets  int

	VehicleWeight   float64
	VehicleCapacity float64
}

func (cfg *InstanceConfig) validate() error {
	if cfg.NrVehicles <= 0 || cfg.NrCustomers <= 0 {
		return configErrorf("vehicle and customer counts must be positive (got %d, %d)", cfg.NrVehicles, cfg.NrCustomers)
	}
	if cfg.NrNodes != cfg.NrCustomers+1 {
		return configErrorf("nr_nodes must equal nr_customers+1 (got %d for %d customers)", cfg.NrNodes, cfg.NrCustomers)
	}
	for _, v := range [][]float64{cfg.Demand, cfg.ServiceTimes, cfg.StartWindow, cfg.EndWindow} {
		if len(v) != cfg.NrCustomers {
			return configErrorf("customer vectors must have length %d", cfg.NrCustomers)
		}
	}
	return nil
}

// NewInstance builds a VRPLDTT instance: the slope matrix and the
// load-indexed travel time cube are derived from distance, elevation and the
// cyclist power model.
func NewInstance(cfg InstanceConfig) (*Instance, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(cfg.Distance) != cfg.NrNodes || len(cfg.Elevation) != cfg.NrNodes {
		return nil, configErrorf("distance and elevation matrices must be %dx%d", cfg.NrNodes, cfg.NrNodes)
	}

	inst := &Instance{
		NrVehicles:      cfg.NrVehicles,
		NrNodes:         cfg.NrNodes,
		NrCustomers:     cfg.NrCustomers,
		Demand:          cfg.Demand,
		ServiceTimes:    cfg.ServiceTimes,
		StartWindow:     cfg.StartWindow,
		EndWindow:       cfg.EndWindow,
		VehicleWeight:   cfg.VehicleWeight,
		VehicleCapacity: cfg.VehicleCapacity,
		DistanceMatrix:  cfg.Distance,
		ElevationMatrix: cfg.Elevation,
	}
	if inst.VehicleWeight == 0 {
		inst.VehicleWeight = DefaultVehicleWeight
	}
	if inst.VehicleCapacity == 0 {
		inst.VehicleCapacity = DefaultVehicleCapacity
	}

	switch {
	case cfg.NrLoadBuckets > 0:
		inst.LoadBucketSize = inst.VehicleCapacity / float64(cfg.NrLoadBuckets)
	case cfg.LoadBucketSize > 0:
		inst.LoadBucketSize = cfg.LoadBucketSize
	default:
		return nil, configErrorf("neither load bucket size nor number of load buckets given")
	}

	inst.AddPseudoCapacity = math.Ceil(maxOf(inst.Demand))
	inst.generalPreprocessing()
	inst.SlopeMatrix = slopeMatrix(inst.DistanceMatrix, inst.ElevationMatrix)
	inst.TimeCube = timeCube(inst.DistanceMatrix, inst.SlopeMatrix,
		inst.VehicleWeight, inst.VehicleCapacity, inst.AddPseudoCapacity, inst.LoadBucketSize)
	return inst, nil
}

// NewTimeCubeInstance builds a classical VRPTW instance from a pre-supplied
// travel time cube with exactly one bucket. The single cube layer doubles as
// the distance matrix for relatedness removal.
func NewTimeCubeInstance(cfg InstanceConfig, cube [][][]float64) (*Instance, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(cube) != 1 {
		return nil, configErrorf("time cube must have exactly one bucket (got %d)", len(cube))
	}
	if len(cube[0]) != cfg.NrNodes {
		return nil, configErrorf("time cube layer must be %dx%d", cfg.NrNodes, cfg.NrNodes)
	}

	inst := &Instance{
		NrVehicles:      cfg.NrVehicles,
		NrNodes:         cfg.NrNodes,
		NrCustomers:     cfg.NrCustomers,
		Demand:          cfg.Demand,
		ServiceTimes:    cfg.ServiceTimes,
		StartWindow:     cfg.StartWindow,
		EndWindow:       cfg.EndWindow,
		VehicleCapacity: cfg.VehicleCapacity,
		DistanceMatrix:  cube[0],
		TimeCube:        cube,
	}
	if inst.VehicleCapacity == 0 {
		inst.VehicleCapacity = DefaultVehicleCapacity
	}
	// An infeasible upper bound: every reachable load falls into bucket 0.
	inst.LoadBucketSize = inst.VehicleCapacity * 2
	inst.AddPseudoCapacity = math.Ceil(maxOf(inst.Demand))
	inst.generalPreprocessing()
	return inst, nil
}

// generalPreprocessing derives the normalized similarity matrices shared by
// the VRPTW and VRPLDTT modes.
func (inst *Instance) generalPreprocessing() {
	minD := math.MaxFloat64
	maxD := -math.MaxFloat64
	for _, row := range inst.DistanceMatrix {
		for _, d := range row {
			if d < minD {
				minD = d
			}
			if d > maxD {
				maxD = d
			}
		}
	}
	inst.NormDistance = normalizeMatrixCopy(inst.DistanceMatrix, minD, maxD)
	inst.NormStartWindow = normAbsDiffMatrix(inst.StartWindow)
	inst.NormEndWindow = normAbsDiffMatrix(inst.EndWindow)
	inst.NormDemand = normAbsDiffMatrix(inst.Demand)
}

// NrBuckets reports the number of load levels in the travel time cube.
func (inst *Instance) NrBuckets() int { return len(inst.TimeCube) }

func maxOf(v []float64) float64 {
	max := v[0]
	for _, x := range v[1:] {
		if x > max {
			max = x
		}
	}
	return max
}
