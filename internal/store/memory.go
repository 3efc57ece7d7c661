package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"velonav/internal/model"
)

// Memory is the in-process Store used for development and tests. It is the
// behavioral reference for the Postgres implementation.
type Memory struct {
	mu sync.Mutex

	instances     map[string]memInstance
	solves        map[string]model.SolveOut
	subscriptions map[string]model.Subscription
	deliveries    map[string]*memDelivery
	planMetrics   map[string][]map[string]any

	order []string // instance insertion order for listing
}

type memInstance struct {
	out model.InstanceOut
	in  model.InstanceIn
}

type memDelivery struct {
	WebhookDelivery
	status        string // pending, delivered, failed
	nextAttemptAt time.Time
	lastError     string
}

func NewMemory() *Memory {
	return &Memory{
		instances:     map[string]memInstance{},
		solves:        map[string]model.SolveOut{},
		subscriptions: map[string]model.Subscription{},
		deliveries:    map[string]*memDelivery{},
		planMetrics:   map[string][]map[string]any{},
	}
}

func (m *Memory) CreateInstance(_ context.Context, in model.InstanceIn, nrBuckets int) (model.InstanceOut, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := model.InstanceOut{
		ID:          "inst_" + uuid.NewString(),
		Mode:        in.Mode,
		NrVehicles:  in.NrVehicles,
		NrCustomers: in.NrCustomers,
		NrBuckets:   nrBuckets,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if out.Mode == "" {
		out.Mode = "vrpldtt"
	}
	m.instances[out.ID] = memInstance{out: out, in: in}
	m.order = append(m.order, out.ID)
	return out, nil
}

func (m *Memory) GetInstance(_ context.Context, id string) (model.InstanceOut, model.InstanceIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[id]
	if !ok {
		return model.InstanceOut{}, model.InstanceIn{}, ErrNotFound
	}
	return inst.out, inst.in, nil
}

func (m *Memory) ListInstances(_ context.Context, limit int) ([]model.InstanceOut, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.InstanceOut, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.instances[id].out)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) CreateSolve(_ context.Context, instanceID string) (model.SolveOut, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[instanceID]; !ok {
		return model.SolveOut{}, ErrNotFound
	}
	solve := model.SolveOut{
		ID:         "sol_" + uuid.NewString(),
		InstanceID: instanceID,
		Status:     "running",
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	m.solves[solve.ID] = solve
	return solve, nil
}

func (m *Memory) FinishSolve(_ context.Context, solve model.SolveOut) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.solves[solve.ID]
	if !ok {
		return ErrNotFound
	}
	solve.InstanceID = prev.InstanceID
	solve.CreatedAt = prev.CreatedAt
	solve.Status = "completed"
	m.solves[solve.ID] = solve
	return nil
}

func (m *Memory) FailSolve(_ context.Context, id, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	solve, ok := m.solves[id]
	if !ok {
		return ErrNotFound
	}
	solve.Status = "failed"
	solve.Error = errMsg
	m.solves[id] = solve
	return nil
}

func (m *Memory) GetSolve(_ context.Context, id string) (model.SolveOut, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	solve, ok := m.solves[id]
	if !ok {
		return model.SolveOut{}, ErrNotFound
	}
	return solve, nil
}

func (m *Memory) ListSolves(_ context.Context, instanceID string, limit int) ([]model.SolveOut, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SolveOut
	for _, solve := range m.solves {
		if instanceID == "" || solve.InstanceID == instanceID {
			out = append(out, solve)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CreateSubscription(_ context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := model.Subscription{
		ID:     "sub_" + uuid.NewString(),
		URL:    req.URL,
		Events: req.Events,
		Secret: req.Secret,
	}
	m.subscriptions[sub.ID] = sub
	return sub, nil
}

func (m *Memory) GetSubscriptionsForEvent(_ context.Context, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, sub := range m.subscriptions {
		for _, ev := range sub.Events {
			if ev == eventType {
				out = append(out, sub)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(_ context.Context, limit int) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, sub := range m.subscriptions {
		sub.Secret = ""
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) DeleteSubscription(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscriptions[id]; !ok {
		return ErrNotFound
	}
	delete(m.subscriptions, id)
	return nil
}

func (m *Memory) EnqueueWebhook(_ context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := "whd_" + uuid.NewString()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{
			ID:             id,
			SubscriptionID: subscriptionID,
			EventType:      eventType,
			URL:            url,
			Secret:         secret,
			Payload:        payload,
		},
		status:        "pending",
		nextAttemptAt: time.Now(),
	}
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(_ context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var out []WebhookDelivery
	for _, d := range m.deliveries {
		if d.status == "pending" && !d.nextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(_ context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, _ int, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	d.lastError = lastError
	if success {
		d.status = "delivered"
	} else if nextAttemptAt != nil {
		d.nextAttemptAt = *nextAttemptAt
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(_ context.Context, id string, lastError string, _ int, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	d.status = "failed"
	d.lastError = lastError
	return nil
}

func (m *Memory) SavePlanMetrics(_ context.Context, solveID string, metrics map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.planMetrics[solveID] = append(m.planMetrics[solveID], metrics)
	return nil
}

func (m *Memory) ListPlanMetrics(_ context.Context, solveID string) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.planMetrics[solveID]...), nil
}
