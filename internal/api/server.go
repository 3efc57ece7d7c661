package api

import (
	"context"
	"strings"

	"golang.org/x/time/rate"

	"velonav/internal/config"
	"velonav/internal/store"
	"velonav/internal/webhooks"
)

// Server wires the HTTP handlers to their dependencies.
type Server struct {
	Cfg    config.Config
	Store  store.Store
	Pub    *webhooks.Publisher
	Broker EventBroker

	// limiter guards the optimize endpoint; solves are CPU-heavy.
	limiter *rate.Limiter
}

// NewServer creates a Server. With no database configured it uses the
// in-memory store; with no Redis the in-process event broker.
func NewServer(cfg config.Config) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := sp.Migrate(context.Background()); err != nil {
			return nil, err
		}
		s = sp
	}

	var broker EventBroker
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		broker = rb
	} else {
		broker = NewBroker()
	}

	perMin := cfg.OptimizeRatePerMin
	if perMin <= 0 {
		perMin = 30
	}

	return &Server{
		Cfg:     cfg,
		Store:   s,
		Pub:     webhooks.NewPublisher(s),
		Broker:  broker,
		limiter: rate.NewLimiter(rate.Limit(float64(perMin)/60), perMin),
	}, nil
}

// NewWebhookWorker creates the background delivery worker.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store)
}
