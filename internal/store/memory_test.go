package store

import (
	"context"
	"testing"
	"time"

	"velonav/internal/model"
)

func testInstanceIn() model.InstanceIn {
	return model.InstanceIn{
		NrVehicles:      1,
		NrCustomers:     1,
		Demand:          []float64{10},
		ServiceTimes:    []float64{0},
		StartWindow:     []float64{0},
		EndWindow:       []float64{100},
		DistanceMatrix:  [][]float64{{0, 1}, {1, 0}},
		ElevationMatrix: [][]float64{{0, 0}, {0, 0}},
		LoadBucketSize:  10,
	}
}

func TestMemoryInstances(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	out, err := m.CreateInstance(ctx, testInstanceIn(), 16)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if out.Mode != "vrpldtt" || out.NrBuckets != 16 {
		t.Fatalf("unexpected meta: %+v", out)
	}

	got, in, err := m.GetInstance(ctx, out.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != out.ID || in.NrCustomers != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if _, _, err := m.GetInstance(ctx, "inst_missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	items, err := m.ListInstances(ctx, 10)
	if err != nil || len(items) != 1 {
		t.Fatalf("list: %v items=%d", err, len(items))
	}
}

func TestMemorySolveLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	inst, _ := m.CreateInstance(ctx, testInstanceIn(), 16)
	solve, err := m.CreateSolve(ctx, inst.ID)
	if err != nil {
		t.Fatalf("create solve: %v", err)
	}
	if solve.Status != "running" {
		t.Fatalf("status: %s", solve.Status)
	}

	if _, err := m.CreateSolve(ctx, "inst_missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	solve.Routes = [][]int{{0}}
	solve.DrivingTime = 4.8
	solve.Feasible = true
	if err := m.FinishSolve(ctx, solve); err != nil {
		t.Fatalf("finish: %v", err)
	}

	got, err := m.GetSolve(ctx, solve.ID)
	if err != nil || got.Status != "completed" || got.DrivingTime != 4.8 {
		t.Fatalf("get solve: %v %+v", err, got)
	}

	list, err := m.ListSolves(ctx, inst.ID, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("list solves: %v n=%d", err, len(list))
	}

	other, _ := m.CreateSolve(ctx, inst.ID)
	if err := m.FailSolve(ctx, other.ID, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, _ = m.GetSolve(ctx, other.ID)
	if got.Status != "failed" || got.Error != "boom" {
		t.Fatalf("failed solve: %+v", got)
	}
}

func TestMemorySubscriptions(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	sub, err := m.CreateSubscription(ctx, model.SubscriptionRequest{
		URL: "https://example.invalid/hook", Events: []string{"solve.completed"}, Secret: "shh",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	subs, err := m.GetSubscriptionsForEvent(ctx, "solve.completed")
	if err != nil || len(subs) != 1 || subs[0].Secret != "shh" {
		t.Fatalf("for event: %v %+v", err, subs)
	}
	subs, _ = m.GetSubscriptionsForEvent(ctx, "solve.failed")
	if len(subs) != 0 {
		t.Fatalf("unexpected match: %+v", subs)
	}

	// Listing omits secrets.
	listed, _ := m.ListSubscriptions(ctx, 10)
	if len(listed) != 1 || listed[0].Secret != "" {
		t.Fatalf("list: %+v", listed)
	}

	if err := m.DeleteSubscription(ctx, sub.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.DeleteSubscription(ctx, sub.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryWebhookQueue(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.EnqueueWebhook(ctx, "sub_1", "solve.completed", "https://example.invalid", "shh", []byte(`{}`))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	due, err := m.FetchDueWebhookDeliveries(ctx, 10)
	if err != nil || len(due) != 1 {
		t.Fatalf("fetch due: %v n=%d", err, len(due))
	}

	// A retry pushes the next attempt into the future; it is no longer due.
	next := time.Now().Add(time.Hour)
	if err := m.MarkWebhookDelivery(ctx, id, false, &next, "connection refused", 0, 12); err != nil {
		t.Fatalf("mark: %v", err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("retry should not be due yet: %d", len(due))
	}

	// A success removes it from the queue for good.
	if err := m.MarkWebhookDelivery(ctx, id, true, nil, "", 200, 10); err != nil {
		t.Fatalf("mark success: %v", err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("delivered item still due: %d", len(due))
	}

	// Failing a delivery is terminal.
	id2, _ := m.EnqueueWebhook(ctx, "sub_1", "solve.failed", "https://example.invalid", "shh", []byte(`{}`))
	if err := m.FailWebhookDelivery(ctx, id2, "gone", 410, 8); err != nil {
		t.Fatalf("fail: %v", err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("failed item still due: %d", len(due))
	}
}

func TestMemoryPlanMetrics(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.SavePlanMetrics(ctx, "sol_1", map[string]any{"iterations": 10}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := m.SavePlanMetrics(ctx, "sol_1", map[string]any{"iterations": 20}); err != nil {
		t.Fatalf("save: %v", err)
	}
	items, err := m.ListPlanMetrics(ctx, "sol_1")
	if err != nil || len(items) != 2 {
		t.Fatalf("list: %v n=%d", err, len(items))
	}
}
