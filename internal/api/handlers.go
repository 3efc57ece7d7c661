package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"velonav/internal/config"
	"velonav/internal/metrics"
	"velonav/internal/model"
	"velonav/internal/solver"
)

// buildInstance constructs the solver instance from a stored input.
func buildInstance(in model.InstanceIn) (*solver.Instance, error) {
	cfg := solver.InstanceConfig{
		NrVehicles:      in.NrVehicles,
		NrNodes:         in.NrCustomers + 1,
		NrCustomers:     in.NrCustomers,
		Demand:          in.Demand,
		ServiceTimes:    in.ServiceTimes,
		StartWindow:     in.StartWindow,
		EndWindow:       in.EndWindow,
		Elevation:       in.ElevationMatrix,
		Distance:        in.DistanceMatrix,
		LoadBucketSize:  in.LoadBucketSize,
		NrLoadBuckets:   in.NrLoadBuckets,
		VehicleWeight:   in.VehicleWeight,
		VehicleCapacity: in.VehicleCapacity,
	}
	if in.Mode == "vrptw" {
		return solver.NewTimeCubeInstance(cfg, in.TimeCube)
	}
	return solver.NewInstance(cfg)
}

// buildOptions layers the request over the service-wide solver config over
// the library defaults.
func buildOptions(req model.OptimizeRequest, cfg config.SolverConfig) solver.Options {
	opts := solver.DefaultOptions()

	if cfg.MaxTimeSec > 0 {
		opts.MaxTime = time.Duration(cfg.MaxTimeSec) * time.Second
	}
	if cfg.MaxIterations > 0 {
		opts.MaxIterations = cfg.MaxIterations
	}

	opts.DestroyOperators = req.DestroyOperators
	opts.RepairOperators = req.RepairOperators
	if req.MaxTimeSec > 0 {
		opts.MaxTime = time.Duration(req.MaxTimeSec) * time.Second
	}
	if req.MaxIterations > 0 {
		opts.MaxIterations = req.MaxIterations
	}
	if req.InitTemperature > 0 {
		opts.InitTemperature = req.InitTemperature
	}
	if req.CoolingRate > 0 {
		opts.CoolingRate = req.CoolingRate
	}
	if req.WheelMemoryLength > 0 {
		opts.WheelMemoryLength = req.WheelMemoryLength
	}
	if req.WheelParameter > 0 {
		opts.WheelParameter = req.WheelParameter
	}
	if req.RewardBest > 0 {
		opts.RewardBest = req.RewardBest
	}
	if req.RewardAcceptBetter > 0 {
		opts.RewardAcceptBetter = req.RewardAcceptBetter
	}
	if req.RewardUnique > 0 {
		opts.RewardUnique = req.RewardUnique
	}
	if req.RewardDivers > 0 {
		opts.RewardDivers = req.RewardDivers
	}
	if req.MinWeight > 0 {
		opts.MinWeight = req.MinWeight
	}
	if req.MeanRemovalLog > 0 {
		opts.MeanRemovalLog = req.MeanRemovalLog
	}
	if req.Penalty != nil {
		opts.Penalty = *req.Penalty
	}
	if req.RandomNoise != nil {
		opts.RandomNoise = *req.RandomNoise
	}
	if req.TargetInf != nil {
		opts.TargetInf = *req.TargetInf
	}
	if req.ShakeupLog != nil {
		opts.ShakeupLog = *req.ShakeupLog
	}
	opts.Seed = req.Seed
	return opts
}

func toSolveOut(solve model.SolveOut, res *solver.Result) model.SolveOut {
	routes := make([][]int, len(res.Best.Routes))
	for r := range res.Best.Routes {
		routes[r] = append([]int(nil), res.Best.Routes[r]...)
	}
	solve.Status = "completed"
	solve.Routes = routes
	solve.DrivingTime = res.Best.DrivingTime
	solve.CapaError = res.Best.CapaError
	solve.FrameError = res.Best.FrameError
	solve.Quality = res.Best.Quality
	solve.Feasible = res.Best.IsFeasible
	solve.Iterations = res.Iterations
	solve.DurationMS = res.DurationMS
	solve.DestroyWheel = &model.WheelStatsOut{Names: res.DestroyWheel.Names, Weights: res.DestroyWheel.Weights, Uses: res.DestroyWheel.Uses}
	solve.RepairWheel = &model.WheelStatsOut{Names: res.RepairWheel.Names, Weights: res.RepairWheel.Weights, Uses: res.RepairWheel.Uses}
	for _, snap := range res.Snapshots {
		solve.Snapshots = append(solve.Snapshots, model.WeightSnapshotOut(snap))
	}
	solve.Visited = res.Visited
	solve.CapaErrorWeight = res.CapaErrorWeight
	solve.FrameErrorWeight = res.FrameErrorWeight
	return solve
}

// InstancesHandler serves POST and GET /v1/instances.
func (s *Server) InstancesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var in model.InstanceIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateInstanceIn(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "invalid instance", err.Error(), r.URL.Path)
			return
		}
		// Build once up front: construction errors surface here, not at
		// optimize time, and the bucket count comes from preprocessing.
		inst, err := buildInstance(in)
		if err != nil {
			writeError(w, err, r.URL.Path)
			return
		}
		out, err := s.Store.CreateInstance(r.Context(), in, inst.NrBuckets())
		if err != nil {
			writeError(w, err, r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, out)

	case http.MethodGet:
		limit := queryInt(r, "limit", 100)
		items, err := s.Store.ListInstances(r.Context(), limit)
		if err != nil {
			writeError(w, err, r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	default:
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
	}
}

// InstanceByIDHandler serves GET /v1/instances/{id}.
func (s *Server) InstanceByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/instances/")
	out, _, err := s.Store.GetInstance(r.Context(), id)
	if err != nil {
		writeError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// OptimizeHandler serves POST /v1/optimize: it builds the instance, launches
// an ALNS run, and either waits for the result or returns the solve id for
// polling.
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
		return
	}
	if !s.limiter.Allow() {
		writeProblem(w, http.StatusTooManyRequests, "rate limited", "optimize launch rate exceeded", r.URL.Path)
		return
	}

	var req model.OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateOptimizeRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid request", err.Error(), r.URL.Path)
		return
	}

	_, in, err := s.Store.GetInstance(r.Context(), req.InstanceID)
	if err != nil {
		writeError(w, err, r.URL.Path)
		return
	}
	inst, err := buildInstance(in)
	if err != nil {
		writeError(w, err, r.URL.Path)
		return
	}

	opts := buildOptions(req, s.Cfg.Solver)
	alns, err := solver.NewALNS(inst, opts)
	if err != nil {
		writeError(w, err, r.URL.Path)
		return
	}

	solve, err := s.Store.CreateSolve(r.Context(), req.InstanceID)
	if err != nil {
		writeError(w, err, r.URL.Path)
		return
	}

	if req.Async {
		go s.runSolve(solve, alns)
		writeJSON(w, http.StatusAccepted, map[string]any{"id": solve.ID, "status": "running"})
		return
	}

	out := s.runSolve(solve, alns)
	writeJSON(w, http.StatusOK, out)
}

// runSolve executes the search and persists the outcome. It owns all the
// side effects of a solve: progress events, metrics, plan metrics, webhooks.
func (s *Server) runSolve(solve model.SolveOut, alns *solver.ALNS) model.SolveOut {
	ctx := context.Background()

	alns.SetOnBest(func(iteration int, drivingTime float64) {
		s.Broker.Publish(solve.ID, model.SolveEvent{
			SolveID:     solve.ID,
			InstanceID:  solve.InstanceID,
			Type:        "solve.best",
			Iteration:   iteration,
			DrivingTime: drivingTime,
			Feasible:    true,
		})
	})

	res, err := alns.Solve()
	if err != nil {
		log.Printf("solve %s failed: %v", solve.ID, err)
		if serr := s.Store.FailSolve(ctx, solve.ID, err.Error()); serr != nil {
			log.Printf("solve %s: persist failure: %v", solve.ID, serr)
		}
		metrics.Solves.WithLabelValues("failed").Inc()
		evt := model.SolveEvent{SolveID: solve.ID, InstanceID: solve.InstanceID, Type: "solve.failed"}
		s.Broker.Publish(solve.ID, evt)
		s.Pub.Emit(ctx, "solve.failed", evt)
		solve.Status = "failed"
		solve.Error = err.Error()
		return solve
	}

	out := toSolveOut(solve, res)
	if err := s.Store.FinishSolve(ctx, out); err != nil {
		log.Printf("solve %s: persist result: %v", solve.ID, err)
	}
	if err := s.Store.SavePlanMetrics(ctx, solve.ID, map[string]any{
		"iterations":  res.Iterations,
		"durationMs":  res.DurationMS,
		"drivingTime": res.Best.DrivingTime,
		"feasible":    res.Best.IsFeasible,
		"visited":     len(res.Visited),
	}); err != nil {
		log.Printf("solve %s: persist metrics: %v", solve.ID, err)
	}

	metrics.Solves.WithLabelValues("completed").Inc()
	metrics.SolveDuration.Observe(float64(res.DurationMS) / 1000)
	metrics.SolveIterations.Observe(float64(res.Iterations))
	metrics.BestDrivingTime.Set(res.Best.DrivingTime)

	evt := model.SolveEvent{
		SolveID:     solve.ID,
		InstanceID:  solve.InstanceID,
		Type:        "solve.completed",
		Iteration:   res.Iterations,
		DrivingTime: res.Best.DrivingTime,
		Feasible:    res.Best.IsFeasible,
	}
	s.Broker.Publish(solve.ID, evt)
	s.Pub.Emit(ctx, "solve.completed", evt)
	return out
}

// SolvesHandler serves GET /v1/solves.
func (s *Server) SolvesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
		return
	}
	items, err := s.Store.ListSolves(r.Context(), r.URL.Query().Get("instanceId"), queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// SolveByIDHandler serves GET /v1/solves/{id} plus the progress streams
// /v1/solves/{id}/progress/stream (SSE) and /v1/solves/{id}/progress/ws.
func (s *Server) SolveByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/solves/")
	id, sub, _ := strings.Cut(rest, "/")

	switch sub {
	case "":
		if r.Method != http.MethodGet {
			writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
			return
		}
		solve, err := s.Store.GetSolve(r.Context(), id)
		if err != nil {
			writeError(w, err, r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, solve)
	case "progress/stream":
		s.progressSSE(w, r, id)
	case "progress/ws":
		s.ProgressWSHandler(w, r, id)
	default:
		writeProblem(w, http.StatusNotFound, "not found", "", r.URL.Path)
	}
}

// progressSSE streams solve events as server-sent events until the client
// disconnects.
func (s *Server) progressSSE(w http.ResponseWriter, r *http.Request, solveID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := s.Broker.Subscribe(solveID)
	defer s.Broker.Unsubscribe(solveID, ch)

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case evt, open := <-ch:
			if !open {
				return
			}
			data, _ := json.Marshal(evt)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
			flusher.Flush()
		}
	}
}

// SubscriptionsHandler serves POST and GET /v1/subscriptions.
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateSubscriptionRequest(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "invalid subscription", err.Error(), r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeError(w, err, r.URL.Path)
			return
		}
		sub.Secret = ""
		writeJSON(w, http.StatusCreated, sub)

	case http.MethodGet:
		items, err := s.Store.ListSubscriptions(r.Context(), queryInt(r, "limit", 100))
		if err != nil {
			writeError(w, err, r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	default:
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
	}
}

// SubscriptionByIDHandler serves DELETE /v1/subscriptions/{id}.
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), id); err != nil {
		writeError(w, err, r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PlanMetricsHandler serves GET /v1/plan-metrics?solveId={id}.
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
		return
	}
	solveID := r.URL.Query().Get("solveId")
	if solveID == "" {
		writeProblem(w, http.StatusBadRequest, "invalid request", "solveId is required", r.URL.Path)
		return
	}
	items, err := s.Store.ListPlanMetrics(r.Context(), solveID)
	if err != nil {
		writeError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// The memory store is always ready; Postgres readiness surfaces through
	// a cheap query.
	if _, err := s.Store.ListInstances(r.Context(), 1); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "store unavailable", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
