package webhooks

import (
	"context"
	"encoding/json"
	"log"

	"velonav/internal/store"
)

// Publisher fans an event out to every matching subscription by enqueuing
// one delivery per subscriber. The worker drains the queue.
type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// Emit enqueues eventType for all subscribers. Failures to enqueue are
// logged, not propagated; webhook delivery is best effort by contract.
func (p *Publisher) Emit(ctx context.Context, eventType string, payload any) {
	subs, err := p.Store.GetSubscriptionsForEvent(ctx, eventType)
	if err != nil || len(subs) == 0 {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("webhooks: marshal %s payload: %v", eventType, err)
		return
	}
	for _, sub := range subs {
		if _, err := p.Store.EnqueueWebhook(ctx, sub.ID, eventType, sub.URL, sub.Secret, body); err != nil {
			log.Printf("webhooks: enqueue %s for %s: %v", eventType, sub.ID, err)
		}
	}
}
