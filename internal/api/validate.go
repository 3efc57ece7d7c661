package api

import (
	"fmt"

	"velonav/internal/model"
)

func validateInstanceIn(in *model.InstanceIn) error {
	switch in.Mode {
	case "", "vrpldtt", "vrptw":
	default:
		return fmt.Errorf("invalid mode: %s (allowed: vrpldtt, vrptw)", in.Mode)
	}
	if in.NrVehicles <= 0 || in.NrCustomers <= 0 {
		return fmt.Errorf("nrVehicles and nrCustomers must be positive")
	}
	if in.Mode == "vrptw" {
		if len(in.TimeCube) == 0 {
			return fmt.Errorf("vrptw mode requires timeCube")
		}
	} else {
		if len(in.DistanceMatrix) == 0 || len(in.ElevationMatrix) == 0 {
			return fmt.Errorf("vrpldtt mode requires distanceMatrix and elevationMatrix")
		}
	}
	return nil
}

func validateOptimizeRequest(req *model.OptimizeRequest) error {
	if req.InstanceID == "" {
		return fmt.Errorf("instanceId is required")
	}
	if req.MaxTimeSec < 0 {
		return fmt.Errorf("maxTimeSec must be >= 0")
	}
	if req.MaxIterations < 0 {
		return fmt.Errorf("maxIterations must be >= 0")
	}
	if req.CoolingRate != 0 && (req.CoolingRate <= 0 || req.CoolingRate >= 1) {
		return fmt.Errorf("coolingRate must be in (0,1)")
	}
	if req.WheelParameter != 0 && (req.WheelParameter < 0 || req.WheelParameter > 1) {
		return fmt.Errorf("wheelParameter must be in [0,1]")
	}
	if req.TargetInf != nil && (*req.TargetInf < 0 || *req.TargetInf > 1) {
		return fmt.Errorf("targetInf must be in [0,1]")
	}
	return nil
}

func validateSubscriptionRequest(req *model.SubscriptionRequest) error {
	if req.URL == "" {
		return fmt.Errorf("url is required")
	}
	if len(req.Events) == 0 {
		return fmt.Errorf("events must not be empty")
	}
	allowed := map[string]struct{}{"solve.completed": {}, "solve.failed": {}, "solve.best": {}}
	for _, ev := range req.Events {
		if _, ok := allowed[ev]; !ok {
			return fmt.Errorf("unknown event type: %s (allowed: solve.completed, solve.failed, solve.best)", ev)
		}
	}
	return nil
}
