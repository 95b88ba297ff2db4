package api

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"monitoring-agent/pkg/backoff"

	log "monitoring-agent/pkg/log"
)

// ClientConfig holds the delivery settings for the metrics endpoint.
type ClientConfig struct {
	BaseURL          string
	MetricsEndpoint  string
	APIKeyHeader     string
	APIKey           string
	Timeout          time.Duration // per-attempt HTTP timeout
	MaxRetries       int
	RetryBackoffBase time.Duration // wait before attempt 2; doubles each retry
	VerifySSL        bool
}

// Response is the slimmed-down result of a successful delivery. The
// collector imposes no body contract beyond the status code, so the raw body
// is kept only for logging and diagnostics.
type Response struct {
	StatusCode int
	Body       []byte
}

// DeliveryError is the terminal failure of a payload delivery: either a 4xx
// client response (never retried) or the exhaustion of all retry attempts.
type DeliveryError struct {
	Attempts   int
	StatusCode int // last HTTP status, 0 for pure transport failures
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return fmt.Sprintf("client error HTTP %d, not retried: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("payload delivery failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Client sends validated payloads to the remote collector endpoint with
// bounded exponential-backoff retries. It is the only component in the
// pipeline performing network I/O.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	backoff    *backoff.Backoff
}

// NewClient creates a delivery client from the given configuration.
func NewClient(config ClientConfig) *Client {
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	if config.RetryBackoffBase <= 0 {
		config.RetryBackoffBase = time.Second
	}

	transport := http.DefaultTransport
	if !config.VerifySSL {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		// Delivery waits at most five minutes between attempts no matter
		// how high the retry count is configured.
		backoff: backoff.New(config.RetryBackoffBase, 5*time.Minute),
	}
}

// MetricsURL returns the full collector endpoint URL.
func (c *Client) MetricsURL() string {
	base := strings.TrimRight(c.config.BaseURL, "/")
	endpoint := c.config.MetricsEndpoint
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return base + endpoint
}

// SendPayload POSTs the payload as JSON. Any 2xx response is a success and
// returns immediately. A 4xx response is terminal: the same payload cannot
// succeed by retrying. 5xx responses and transport faults are retried up to
// MaxRetries with exponential backoff; exhausting the attempts returns a
// *DeliveryError wrapping the last recorded failure.
func (c *Client) SendPayload(payload map[string]any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &DeliveryError{Attempts: 0, Err: fmt.Errorf("payload serialization: %w", err)}
	}

	url := c.MetricsURL()
	var lastErr error
	lastStatus := 0

	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		log.Info("sending metrics payload", "url", url, "attempt", attempt, "max_retries", c.config.MaxRetries)

		resp, err := c.post(url, body)
		switch {
		case err != nil:
			// Timeout, connection refused, or another transport fault.
			log.Warn("payload delivery transport error", "attempt", attempt, "error", err)
			lastErr = err
			lastStatus = 0

		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			log.Info("payload delivered", "status", resp.StatusCode, "attempt", attempt)
			return resp, nil

		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			log.Error("client error response, delivery aborted", "status", resp.StatusCode)
			return nil, &DeliveryError{
				Attempts:   attempt,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(resp.Body))),
			}

		default:
			log.Warn("server error response, will retry if attempts remain", "status", resp.StatusCode, "attempt", attempt)
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(resp.Body)))
			lastStatus = resp.StatusCode
		}

		if attempt < c.config.MaxRetries {
			delay := c.backoff.ForAttempt(attempt)
			log.Info("waiting before next delivery attempt", "delay", delay)
			time.Sleep(delay)
		}
	}

	return nil, &DeliveryError{
		Attempts:   c.config.MaxRetries,
		StatusCode: lastStatus,
		Err:        lastErr,
	}
}

func (c *Client) post(url string, body []byte) (*Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	log.Debug("response received", "status", resp.StatusCode, "length", len(respBody))
	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}
