package store

import (
	"context"
	"errors"
	"time"

	"velonav/internal/model"
)

// Store is the persistence interface used by the API server and the webhook
// worker.
type Store interface {
	// Instances
	CreateInstance(ctx context.Context, in model.InstanceIn, nrBuckets int) (model.InstanceOut, error)
	GetInstance(ctx context.Context, id string) (model.InstanceOut, model.InstanceIn, error)
	ListInstances(ctx context.Context, limit int) ([]model.InstanceOut, error)

	// Solves
	CreateSolve(ctx context.Context, instanceID string) (model.SolveOut, error)
	FinishSolve(ctx context.Context, solve model.SolveOut) error
	FailSolve(ctx context.Context, id, errMsg string) error
	GetSolve(ctx context.Context, id string) (model.SolveOut, error)
	ListSolves(ctx context.Context, instanceID string, limit int) ([]model.SolveOut, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, limit int) ([]model.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error

	// Plan metrics, one record per solve and metric set
	SavePlanMetrics(ctx context.Context, solveID string, metrics map[string]any) error
	ListPlanMetrics(ctx context.Context, solveID string) ([]map[string]any, error)
}

// WebhookDelivery is one queued delivery attempt.
type WebhookDelivery struct {
	ID             string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Attempts       int
}

var ErrNotFound = errors.New("not found")
