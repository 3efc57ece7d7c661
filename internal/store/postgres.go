package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"velonav/internal/model"
)

// Postgres is the pgx-backed Store. Instance inputs and solve results are
// persisted as jsonb; the queue columns the webhook worker polls on are
// relational.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Migrate creates the schema when missing. Dev helper; production runs
// migrations out of band.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS instances (
    id          text PRIMARY KEY,
    mode        text NOT NULL,
    nr_vehicles int NOT NULL,
    nr_customers int NOT NULL,
    nr_buckets  int NOT NULL,
    input       jsonb NOT NULL,
    created_at  timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS solves (
    id          text PRIMARY KEY,
    instance_id text NOT NULL REFERENCES instances(id),
    status      text NOT NULL,
    error       text NOT NULL DEFAULT '',
    result      jsonb,
    created_at  timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS subscriptions (
    id      text PRIMARY KEY,
    url     text NOT NULL,
    events  jsonb NOT NULL,
    secret  text NOT NULL
);
CREATE TABLE IF NOT EXISTS webhook_deliveries (
    id              text PRIMARY KEY,
    subscription_id text NOT NULL,
    event_type      text NOT NULL,
    url             text NOT NULL,
    secret          text NOT NULL,
    payload         bytea NOT NULL,
    status          text NOT NULL DEFAULT 'pending',
    attempts        int NOT NULL DEFAULT 0,
    next_attempt_at timestamptz NOT NULL DEFAULT now(),
    last_error      text NOT NULL DEFAULT '',
    response_code   int NOT NULL DEFAULT 0,
    latency_ms      int NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS plan_metrics (
    solve_id   text NOT NULL,
    metrics    jsonb NOT NULL,
    created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS webhook_deliveries_due
    ON webhook_deliveries (next_attempt_at) WHERE status = 'pending';
`)
	return err
}

func (p *Postgres) CreateInstance(ctx context.Context, in model.InstanceIn, nrBuckets int) (model.InstanceOut, error) {
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
	raw, err := json.Marshal(in)
	if err != nil {
		return model.InstanceOut{}, err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO instances (id, mode, nr_vehicles, nr_customers, nr_buckets, input) VALUES ($1,$2,$3,$4,$5,$6)`,
		out.ID, out.Mode, out.NrVehicles, out.NrCustomers, out.NrBuckets, raw)
	if err != nil {
		return model.InstanceOut{}, err
	}
	return out, nil
}

func (p *Postgres) GetInstance(ctx context.Context, id string) (model.InstanceOut, model.InstanceIn, error) {
	var (
		out model.InstanceOut
		raw []byte
		ts  time.Time
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, mode, nr_vehicles, nr_customers, nr_buckets, input, created_at FROM instances WHERE id = $1`, id).
		Scan(&out.ID, &out.Mode, &out.NrVehicles, &out.NrCustomers, &out.NrBuckets, &raw, &ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.InstanceOut{}, model.InstanceIn{}, ErrNotFound
	}
	if err != nil {
		return model.InstanceOut{}, model.InstanceIn{}, err
	}
	out.CreatedAt = ts.UTC().Format(time.RFC3339)

	var in model.InstanceIn
	if err := json.Unmarshal(raw, &in); err != nil {
		return model.InstanceOut{}, model.InstanceIn{}, err
	}
	return out, in, nil
}

func (p *Postgres) ListInstances(ctx context.Context, limit int) ([]model.InstanceOut, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, mode, nr_vehicles, nr_customers, nr_buckets, created_at FROM instances ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.InstanceOut
	for rows.Next() {
		var (
			inst model.InstanceOut
			ts   time.Time
		)
		if err := rows.Scan(&inst.ID, &inst.Mode, &inst.NrVehicles, &inst.NrCustomers, &inst.NrBuckets, &ts); err != nil {
			return nil, err
		}
		inst.CreatedAt = ts.UTC().Format(time.RFC3339)
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateSolve(ctx context.Context, instanceID string) (model.SolveOut, error) {
	solve := model.SolveOut{
		ID:         "sol_" + uuid.NewString(),
		InstanceID: instanceID,
		Status:     "running",
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO solves (id, instance_id, status) VALUES ($1,$2,$3)`,
		solve.ID, solve.InstanceID, solve.Status)
	if err != nil {
		return model.SolveOut{}, err
	}
	return solve, nil
}

func (p *Postgres) FinishSolve(ctx context.Context, solve model.SolveOut) error {
	solve.Status = "completed"
	raw, err := json.Marshal(solve)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE solves SET status = 'completed', result = $2 WHERE id = $1`, solve.ID, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) FailSolve(ctx context.Context, id, errMsg string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE solves SET status = 'failed', error = $2 WHERE id = $1`, id, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetSolve(ctx context.Context, id string) (model.SolveOut, error) {
	var (
		solve  model.SolveOut
		errMsg string
		raw    []byte
		ts     time.Time
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, instance_id, status, error, result, created_at FROM solves WHERE id = $1`, id).
		Scan(&solve.ID, &solve.InstanceID, &solve.Status, &errMsg, &raw, &ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SolveOut{}, ErrNotFound
	}
	if err != nil {
		return model.SolveOut{}, err
	}
	if len(raw) > 0 {
		var full model.SolveOut
		if err := json.Unmarshal(raw, &full); err != nil {
			return model.SolveOut{}, err
		}
		full.ID = solve.ID
		full.InstanceID = solve.InstanceID
		full.Status = solve.Status
		solve = full
	}
	solve.Error = errMsg
	solve.CreatedAt = ts.UTC().Format(time.RFC3339)
	return solve, nil
}

func (p *Postgres) ListSolves(ctx context.Context, instanceID string, limit int) ([]model.SolveOut, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id FROM solves WHERE ($1 = '' OR instance_id = $1) ORDER BY created_at LIMIT $2`,
		instanceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.SolveOut, 0, len(ids))
	for _, id := range ids {
		solve, err := p.GetSolve(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, solve)
	}
	return out, nil
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	sub := model.Subscription{
		ID:     "sub_" + uuid.NewString(),
		URL:    req.URL,
		Events: req.Events,
		Secret: req.Secret,
	}
	events, err := json.Marshal(sub.Events)
	if err != nil {
		return model.Subscription{}, err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO subscriptions (id, url, events, secret) VALUES ($1,$2,$3,$4)`,
		sub.ID, sub.URL, events, sub.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, url, events, secret FROM subscriptions WHERE events ? $1`, eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (p *Postgres) ListSubscriptions(ctx context.Context, limit int) ([]model.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, url, events, '' FROM subscriptions ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func scanSubscriptions(rows pgx.Rows) ([]model.Subscription, error) {
	var out []model.Subscription
	for rows.Next() {
		var (
			sub model.Subscription
			raw []byte
		)
		if err := rows.Scan(&sub.ID, &sub.URL, &raw, &sub.Secret); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &sub.Events); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := "whd_" + uuid.NewString()
	_, err := p.pool.Exec(ctx,
		`INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload) VALUES ($1,$2,$3,$4,$5,$6)`,
		id, subscriptionID, eventType, url, secret, payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx, `
SELECT id, subscription_id, event_type, url, secret, payload, attempts
FROM webhook_deliveries
WHERE status = 'pending' AND next_attempt_at <= now()
ORDER BY next_attempt_at
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WebhookDelivery
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	status := "pending"
	if success {
		status = "delivered"
	}
	next := time.Now()
	if nextAttemptAt != nil {
		next = *nextAttemptAt
	}
	tag, err := p.pool.Exec(ctx, `
UPDATE webhook_deliveries
SET status = $2, attempts = attempts + 1, next_attempt_at = $3,
    last_error = $4, response_code = $5, latency_ms = $6
WHERE id = $1`, id, status, next, lastError, responseCode, latencyMs)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	tag, err := p.pool.Exec(ctx, `
UPDATE webhook_deliveries
SET status = 'failed', attempts = attempts + 1,
    last_error = $2, response_code = $3, latency_ms = $4
WHERE id = $1`, id, lastError, responseCode, latencyMs)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) SavePlanMetrics(ctx context.Context, solveID string, metrics map[string]any) error {
	raw, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO plan_metrics (solve_id, metrics) VALUES ($1,$2)`, solveID, raw)
	return err
}

func (p *Postgres) ListPlanMetrics(ctx context.Context, solveID string) ([]map[string]any, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT metrics FROM plan_metrics WHERE solve_id = $1 ORDER BY created_at`, solveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var metrics map[string]any
		if err := json.Unmarshal(raw, &metrics); err != nil {
			return nil, err
		}
		out = append(out, metrics)
	}
	return out, rows.Err()
}
