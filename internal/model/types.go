package model

// Core domain shapes for the optimization API.

// InstanceIn is the construction input for a problem instance. Mode selects
// between the load-dependent travel time problem ("vrpldtt", default), which
// derives its travel times from distance and elevation, and the classical
// time-window problem ("vrptw"), which takes a one-bucket time cube as is.
type InstanceIn struct {
	Mode        string `json:"mode,omitempty"`
	NrVehicles  int    `json:"nrVehicles"`
	NrCustomers int    `json:"nrCustomers"`

	Demand       []float64 `json:"demand"`
	ServiceTimes []float64 `json:"serviceTimes"`
	StartWindow  []float64 `json:"startWindow"`
	EndWindow    []float64 `json:"endWindow"`

	DistanceMatrix  [][]float64   `json:"distanceMatrix,omitempty"`
	ElevationMatrix [][]float64   `json:"elevationMatrix,omitempty"`
	TimeCube        [][][]float64 `json:"timeCube,omitempty"`

	LoadBucketSize float64 `json:"loadBucketSize,omitempty"`
	NrLoadBuckets  int     `json:"nrLoadBuckets,omitempty"`

	VehicleWeight   float64 `json:"vehicleWeight,omitempty"`
	VehicleCapacity float64 `json:"vehicleCapacity,omitempty"`
}

// InstanceOut is the stored instance summary.
type InstanceOut struct {
	ID          string `json:"id"`
	Mode        string `json:"mode"`
	NrVehicles  int    `json:"nrVehicles"`
	NrCustomers int    `json:"nrCustomers"`
	NrBuckets   int    `json:"nrBuckets"`
	CreatedAt   string `json:"createdAt"`
}

// OptimizeRequest launches a solve over a stored instance. Zero-valued
// numeric fields fall back to the solver defaults; the pointer fields
// distinguish an explicit zero from an omitted value.
type OptimizeRequest struct {
	InstanceID string `json:"instanceId"`
	Async      bool   `json:"async,omitempty"`

	DestroyOperators []string `json:"destroyOperators,omitempty"`
	RepairOperators  []string `json:"repairOperators,omitempty"`

	MaxTimeSec    int `json:"maxTimeSec,omitempty"`
	MaxIterations int `json:"maxIterations,omitempty"`

	InitTemperature float64 `json:"initTemperature,omitempty"`
	CoolingRate     float64 `json:"coolingRate,omitempty"`

	WheelMemoryLength int     `json:"wheelMemoryLength,omitempty"`
	WheelParameter    float64 `json:"wheelParameter,omitempty"`

	RewardBest         float64 `json:"rewardBest,omitempty"`
	RewardAcceptBetter float64 `json:"rewardAcceptBetter,omitempty"`
	RewardUnique       float64 `json:"rewardUnique,omitempty"`
	RewardDivers       float64 `json:"rewardDivers,omitempty"`
	MinWeight          float64 `json:"minWeight,omitempty"`

	Penalty     *float64 `json:"penalty,omitempty"`
	RandomNoise *float64 `json:"randomNoise,omitempty"`
	TargetInf   *float64 `json:"targetInf,omitempty"`
	ShakeupLog  *float64 `json:"shakeupLog,omitempty"`

	MeanRemovalLog float64 `json:"meanRemovalLog,omitempty"`

	Seed uint64 `json:"seed,omitempty"`
}

// WheelStatsOut reports an operator wheel's final state.
type WheelStatsOut struct {
	Names   []string  `json:"names"`
	Weights []float64 `json:"weights"`
	Uses    []int     `json:"uses"`
}

// WeightSnapshotOut is one wheel-rebalance sample.
type WeightSnapshotOut struct {
	Iteration int       `json:"iteration"`
	Destroy   []float64 `json:"destroy"`
	Repair    []float64 `json:"repair"`
}

// SolveOut is a stored solve: its routes, KPIs and search statistics.
type SolveOut struct {
	ID         string `json:"id"`
	InstanceID string `json:"instanceId"`
	Status     string `json:"status"` // running, completed, failed
	Error      string `json:"error,omitempty"`

	Routes      [][]int `json:"routes,omitempty"`
	DrivingTime float64 `json:"drivingTime,omitempty"`
	CapaError   float64 `json:"capaError,omitempty"`
	FrameError  float64 `json:"frameError,omitempty"`
	Quality     float64 `json:"quality,omitempty"`
	Feasible    bool    `json:"feasible,omitempty"`

	Iterations int   `json:"iterations,omitempty"`
	DurationMS int64 `json:"durationMs,omitempty"`

	DestroyWheel *WheelStatsOut      `json:"destroyWheel,omitempty"`
	RepairWheel  *WheelStatsOut      `json:"repairWheel,omitempty"`
	Snapshots    []WeightSnapshotOut `json:"snapshots,omitempty"`

	// Visited maps each distinct route assignment, keyed by its hash, to
	// the wall clock ms at which the search first generated it.
	Visited map[uint64]int64 `json:"visited,omitempty"`

	CapaErrorWeight  float64 `json:"capaErrorWeight,omitempty"`
	FrameErrorWeight float64 `json:"frameErrorWeight,omitempty"`

	CreatedAt string `json:"createdAt"`
}

// SubscriptionRequest registers a webhook endpoint for solver events.
type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

// Subscription is a stored webhook registration.
type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}

// SolveEvent is the payload delivered to subscribers and streamed to
// progress listeners.
type SolveEvent struct {
	SolveID     string  `json:"solveId"`
	InstanceID  string  `json:"instanceId,omitempty"`
	Type        string  `json:"type"`
	Iteration   int     `json:"iteration,omitempty"`
	DrivingTime float64 `json:"drivingTime,omitempty"`
	Feasible    bool    `json:"feasible,omitempty"`
}
