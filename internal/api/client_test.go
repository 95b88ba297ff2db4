package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(baseURL string, maxRetries int) *Client {
	return NewClient(ClientConfig{
		BaseURL:          baseURL,
		MetricsEndpoint:  "/api/v1/metrics",
		APIKeyHeader:     "X-API-Key",
		APIKey:           "secret",
		Timeout:          5 * time.Second,
		MaxRetries:       maxRetries,
		RetryBackoffBase: 10 * time.Millisecond,
		VerifySSL:        true,
	})
}

func TestMetricsURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		endpoint string
		want     string
	}{
		{"plain", "https://collector.example.com", "/api/v1/metrics", "https://collector.example.com/api/v1/metrics"},
		{"trailing slash on base", "https://collector.example.com/", "/api/v1/metrics", "https://collector.example.com/api/v1/metrics"},
		{"no leading slash on endpoint", "https://collector.example.com", "api/v1/metrics", "https://collector.example.com/api/v1/metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(ClientConfig{BaseURL: tt.baseURL, MetricsEndpoint: tt.endpoint})
			if got := c.MetricsURL(); got != tt.want {
				t.Errorf("MetricsURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSendPayloadSuccess(t *testing.T) {
	var gotBody []byte
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Get("X-API-Key")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := testClient(server.URL, 3).SendPayload(map[string]any{"metadata": map[string]any{"generator": "test"}})
	if err != nil {
		t.Fatalf("SendPayload() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if gotHeader != "secret" {
		t.Errorf("API key header = %q, want secret", gotHeader)
	}

	var decoded map[string]any
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	if _, ok := decoded["metadata"]; !ok {
		t.Error("request body is missing the payload content")
	}
}

func TestSendPayloadRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:          server.URL,
		MetricsEndpoint:  "/api/v1/metrics",
		Timeout:          5 * time.Second,
		MaxRetries:       3,
		RetryBackoffBase: 50 * time.Millisecond,
		VerifySSL:        true,
	})

	start := time.Now()
	resp, err := client.SendPayload(map[string]any{})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("SendPayload() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d requests, want 3", got)
	}
	// Waits of base then 2*base separate the three attempts.
	if elapsed < 150*time.Millisecond {
		t.Errorf("elapsed = %v, want at least the 50ms+100ms backoff waits", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Errorf("elapsed = %v, backoff waits far larger than configured", elapsed)
	}
}

func TestSendPayloadExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := testClient(server.URL, 3).SendPayload(map[string]any{})
	if err == nil {
		t.Fatal("SendPayload() succeeded, want error")
	}

	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("error type = %T, want *DeliveryError", err)
	}
	if deliveryErr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", deliveryErr.Attempts)
	}
	if deliveryErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", deliveryErr.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d requests, want 3", got)
	}
}

func TestSendPayloadClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	start := time.Now()
	_, err := testClient(server.URL, 3).SendPayload(map[string]any{})
	if err == nil {
		t.Fatal("SendPayload() succeeded, want error")
	}

	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("error type = %T, want *DeliveryError", err)
	}
	if deliveryErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", deliveryErr.StatusCode)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d requests, want 1 (no retries on 4xx)", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("SendPayload() took %v, should fail without backoff sleeps", elapsed)
	}
}

func TestSendPayloadTransportErrorRetried(t *testing.T) {
	// A closed server makes every attempt a transport failure.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := testClient(server.URL, 2).SendPayload(map[string]any{})
	if err == nil {
		t.Fatal("SendPayload() succeeded against a closed server")
	}

	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("error type = %T, want *DeliveryError", err)
	}
	if deliveryErr.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", deliveryErr.Attempts)
	}
	if deliveryErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for transport failures", deliveryErr.StatusCode)
	}
}
