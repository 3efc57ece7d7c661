package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"velonav/internal/store"
)

func TestWorkerDeliversAndSigns(t *testing.T) {
	var gotSig, gotType string
	var gotBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer ts.Close()

	s := store.NewMemory()
	payload := []byte(`{"solveId":"sol_1","type":"solve.completed"}`)
	if _, err := s.EnqueueWebhook(context.Background(), "sub_1", "solve.completed", ts.URL, "topsecret", payload); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	w := NewWorker(s)
	w.processOnce()

	if gotType != "solve.completed" {
		t.Fatalf("event type header: %q", gotType)
	}
	if want := SignHMAC("topsecret", payload); gotSig != want {
		t.Fatalf("signature mismatch: got %q want %q", gotSig, want)
	}
	if string(gotBody) != string(payload) {
		t.Fatalf("payload mismatch: %q", gotBody)
	}

	due, _ := s.FetchDueWebhookDeliveries(context.Background(), 10)
	if len(due) != 0 {
		t.Fatalf("delivered webhook still due: %d", len(due))
	}
}

func TestWorkerFailsAtMaxAttempts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	s := store.NewMemory()
	if _, err := s.EnqueueWebhook(context.Background(), "sub_1", "solve.failed", ts.URL, "", []byte(`{}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	w := NewWorker(s)
	w.MaxAttempts = 1
	w.processOnce()

	// With a single allowed attempt the delivery moved to failed.
	due, _ := s.FetchDueWebhookDeliveries(context.Background(), 10)
	if len(due) != 0 {
		t.Fatalf("failed webhook still due: %d", len(due))
	}
}

func TestSignHMAC(t *testing.T) {
	sig := SignHMAC("secret", []byte("body"))
	if len(sig) != 64 {
		t.Fatalf("expected hex sha256 length 64, got %d", len(sig))
	}
	if !Verify("secret", []byte("body"), sig) {
		t.Fatal("verify should accept its own signature")
	}
	if Verify("other", []byte("body"), sig) {
		t.Fatal("verify should reject a wrong secret")
	}
}
