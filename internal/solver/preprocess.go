package solver

import "math"

// Physical constants of the cyclist power model.
const (
	maxSpeedKmh        = 25
	riderPowerW        = 350
	kmhToMs            = 3.6
	gravityMs2         = 9.81
	dragCoefficient    = 1.18
	riderSurfaceM2     = 0.83
	airDensity         = 1.18
	rollingCoefficient = 0.01
	velocityAccuracy   = 0.01

	airResistanceConstant = (airDensity * dragCoefficient * riderSurfaceM2) / 2
)

// velocity computes the speed in km/h a rider at fixed power sustains with
// total mass kg on the given slope. Downhill and flat legs ride at the speed
// cap. The stepping starts at accuracy/1.99 so the result rounds to the
// accuracy grid without floating point spill.
func velocity(mass, slope float64) float64 {
	if slope <= 0 {
		return maxSpeedKmh
	}

	rolling := rollingCoefficient * mass * gravityMs2 * math.Cos(math.Atan(slope))
	gravity := mass * gravityMs2 * math.Sin(math.Atan(slope))

	v := velocityAccuracy / 1.99
	for {
		drag := airResistanceConstant * math.Pow(v/kmhToMs, 2)
		power := (drag + rolling + gravity) * v / kmhToMs / 0.95
		if power-riderPowerW >= 0 {
			break
		}
		v += velocityAccuracy
	}

	if v < maxSpeedKmh {
		return v - velocityAccuracy/1.99
	}
	return maxSpeedKmh
}

// slopeMatrix derives rise over run from elevation deltas (m) and travel
// distances (km).
func slopeMatrix(distance, elevation [][]float64) [][]float64 {
	n := len(distance)
	slope := make([][]float64, n)
	for i := 0; i < n; i++ {
		slope[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			d := distance[i][j]
			if d == 0 {
				continue
			}
			e := elevation[i][j]
			ground := math.Sqrt(math.Pow(d*1000, 2) - math.Pow(e, 2))
			slope[i][j] = e / ground
		}
	}
	return slope
}

// timeCube fills the load level x nodes x nodes travel time table in
// minutes. Each bucket rides at the velocity of the bucket's midpoint mass,
// capped at the maximum load the search can reach.
func timeCube(distance, slope [][]float64, vehicleWeight, capacity, pseudoCapacity, bucketSize float64) [][][]float64 {
	maxLoad := capacity + pseudoCapacity
	nrBuckets := int(math.Ceil(maxLoad / bucketSize))
	n := len(distance)

	cube := make([][][]float64, nrBuckets)
	for b := 0; b < nrBuckets; b++ {
		load := math.Min(maxLoad, float64(b)*bucketSize+bucketSize/2)
		cube[b] = make([][]float64, n)
		for i := 0; i < n; i++ {
			cube[b][i] = make([]float64, n)
			for j := 0; j < n; j++ {
				// The cube is direction dependent: slope[i][j] != slope[j][i].
				v := velocity(vehicleWeight+load, slope[i][j])
				cube[b][i][j] = (distance[i][j] / v) * 60
			}
		}
	}
	return cube
}
