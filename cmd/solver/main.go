package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"

	"velonav/internal/model"
	"velonav/internal/solver"
)

// SysInfo records the machine a solution was computed on.
type SysInfo struct {
	Platform string `json:"platform"`
	CPU      string `json:"cpu"`
	RAM      string `json:"ram"`
}

// SolutionFile is the batch file format: the instance, optionally annotated
// with the solution after a run.
type SolutionFile struct {
	Instance model.InstanceIn `json:"instance"`
	Solution *FileSolution    `json:"solution,omitempty"`
}

type FileSolution struct {
	Routes      [][]int           `json:"routes"`
	DrivingTime float64           `json:"drivingTime"`
	CapaError   float64           `json:"capaError"`
	FrameError  float64           `json:"frameError"`
	Feasible    bool              `json:"feasible"`
	Iterations  int               `json:"iterations"`
	Time        string            `json:"time"`
	Seed        uint64            `json:"seed"`
	Destroy     map[string]int    `json:"destroyUses"`
	Repair      map[string]int    `json:"repairUses"`
	System      SysInfo           `json:"system"`
	Comment     string            `json:"comment,omitempty"`
}

var (
	inputF     = flag.String("input", "input.json", "Path to the input instance")
	outputF    = flag.String("output", "", "Path to the output file. By default the input file is overwritten adding the solution")
	seed       = flag.Uint64("seed", 0, "PRNG seed; 0 selects the canonical stream")
	maxTimeSec = flag.Int("maxTime", 600, "Wall clock budget in seconds")
	maxIter    = flag.Int("maxIterations", 10000, "Iterations-without-improvement cap")
	destroyOps = flag.String("destroy", "", "Comma separated destroy operators (default: all)")
	repairOps  = flag.String("repair", "", "Comma separated repair operators (default: all)")
)

func main() {
	flag.Parse()

	hostStat, _ := host.Info()
	cpuStat, _ := cpu.Info()
	vmStat, _ := mem.VirtualMemory()
	sys := SysInfo{}
	if hostStat != nil {
		sys.Platform = hostStat.Platform
	}
	if len(cpuStat) > 0 {
		sys.CPU = cpuStat[0].ModelName
	}
	if vmStat != nil {
		sys.RAM = fmt.Sprintf("%d GB", vmStat.Total/1024/1024/1024)
	}

	raw, err := os.ReadFile(*inputF)
	if err != nil {
		log.Printf("At %s: %s\n", *inputF, err.Error())
		return
	}
	var file SolutionFile
	if err := json.Unmarshal(raw, &file); err != nil {
		log.Printf("At %s: %s\n", *inputF, err.Error())
		return
	}

	inst, err := buildInstance(file.Instance)
	if err != nil {
		log.Printf("At %s: %s\n", *inputF, err.Error())
		return
	}

	opts := solver.DefaultOptions()
	opts.MaxTime = time.Duration(*maxTimeSec) * time.Second
	opts.MaxIterations = *maxIter
	opts.Seed = *seed
	opts.DestroyOperators = splitOps(*destroyOps, solver.DestroyOperatorNames)
	opts.RepairOperators = splitOps(*repairOps, solver.RepairOperatorNames)

	alns, err := solver.NewALNS(inst, opts)
	if err != nil {
		log.Printf("At %s: %s\n", *inputF, err.Error())
		return
	}

	start := time.Now()
	res, err := alns.Solve()
	comment := ""
	if err != nil {
		comment = err.Error()
	}
	log.Println("--- OPTIMIZATION DONE ---")

	sol := &FileSolution{
		Time:    time.Since(start).String(),
		Seed:    *seed,
		System:  sys,
		Comment: comment,
	}
	if res != nil {
		sol.Routes = res.Best.Routes
		sol.DrivingTime = res.Best.DrivingTime
		sol.CapaError = res.Best.CapaError
		sol.FrameError = res.Best.FrameError
		sol.Feasible = res.Best.IsFeasible
		sol.Iterations = res.Iterations
		sol.Destroy = usesByName(res.DestroyWheel)
		sol.Repair = usesByName(res.RepairWheel)
		fmt.Printf("Found a solution with driving time %.2f min over %d routes in %d iterations\n",
			res.Best.DrivingTime, len(res.Best.Routes), res.Iterations)
	}
	file.Solution = sol

	out, err := json.MarshalIndent(file, "", "\t")
	if err != nil {
		log.Printf("At %s: %s\n", *inputF, err.Error())
		return
	}
	fileName := *inputF
	if *outputF != "" {
		fileName = *outputF
	}
	if err := os.WriteFile(fileName, out, 0644); err != nil {
		log.Printf("At %s: %s\n", *inputF, err.Error())
	}
}

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

func splitOps(list string, all []string) []string {
	if list == "" {
		return append([]string(nil), all...)
	}
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func usesByName(ws solver.WheelStats) map[string]int {
	out := make(map[string]int, len(ws.Names))
	for i, name := range ws.Names {
		out[name] = ws.Uses[i]
	}
	return out
}
