package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eencloud/goeen/log"
)

func testLogger() *log.Logger {
	customFormat := "{{eenTimeStamp .Now}}[{{.Level}}]: {{.Message}}"
	return log.NewContext(os.Stderr, customFormat, log.LevelError).GetLogger("test", log.LevelError)
}

func TestWebhookSend(t *testing.T) {
	var received WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("Bad payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewWebhookClient(time.Second, 0, testLogger())
	payload := WebhookPayload{
		Event:        "signup.completed",
		FormType:     "signup",
		SubmissionID: "sub-1",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Data:         map[string]interface{}{"customer_id": "c-1"},
	}

	if err := client.Send(server.URL, payload); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if received.Event != "signup.completed" || received.SubmissionID != "sub-1" {
		t.Errorf("Unexpected payload: %+v", received)
	}
}

func TestWebhookRetriesThenSucceeds(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewWebhookClient(time.Second, 1, testLogger())
	if err := client.Send(server.URL, WebhookPayload{Event: "signup.step_completed"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if atomic.LoadInt64(&calls) != 2 {
		t.Errorf("Expected 2 attempts, got %d", calls)
	}
}

func TestBackoffDelayDoublesPerAttempt(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
	}
	for _, tt := range tests {
		if got := backoffDelay(tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestWebhookFailureReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewWebhookClient(time.Second, 0, testLogger())
	if err := client.Send(server.URL, WebhookPayload{Event: "signup.failed"}); err == nil {
		t.Error("Expected delivery error")
	}

	stats := client.HealthStats()
	if stats["failure_count"].(int64) != 1 {
		t.Errorf("Expected one recorded failure, got %v", stats["failure_count"])
	}
}

func TestWebhookCircuitOpensAfterRepeatedFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewWebhookClient(time.Second, 0, testLogger())
	for i := 0; i < 5; i++ {
		_ = client.Send(server.URL, WebhookPayload{Event: "signup.failed"})
	}

	if client.health.GetCircuitState() != CircuitOpen {
		t.Fatalf("Expected open circuit, got %v", client.health.GetCircuitState())
	}

	// With the circuit open the endpoint is not contacted at all.
	err := client.Send(server.URL, WebhookPayload{Event: "signup.failed"})
	if err == nil {
		t.Error("Expected drop while circuit open")
	}
}
