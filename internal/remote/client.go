// Package remote is the HTTP client for the school-management system.
//
// The remote side has no native concept of badges: it receives resolved
// access events (person id + badge + idempotency key) and serves the
// authoritative person feed used to confirm identities.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Student is one entry of the authoritative person feed.
type Student struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Registration string `json:"registration"`
	Badge        string `json:"badge,omitempty"`
}

// TransientError marks a delivery failure worth retrying: a transport
// error, a remote 5xx, or throttling.
type TransientError struct {
	Status int // 0 for transport errors
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient delivery failure: %v", e.Err)
	}
	return fmt.Sprintf("transient delivery failure: remote status %d", e.Status)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RejectedError marks a permanent rejection (remote 4xx): the payload is
// malformed from the remote's point of view and retrying cannot help.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("remote rejected event: status %d: %s", e.Status, e.Body)
}

// Client talks to the school-management API.  Authentication is an API key
// sent in the Authorization header.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func NewClient(baseURL, apiKey string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   httpc,
	}
}

// Endpoint identifies this remote for forward-cursor bookkeeping.
func (c *Client) Endpoint() string { return c.baseURL }

// FetchStudents downloads the full person feed.
func (c *Client) FetchStudents(ctx context.Context) ([]Student, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v0/students", nil)
	if err != nil {
		return nil, fmt.Errorf("build students request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch students: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch students: remote status %d", resp.StatusCode)
	}

	var students []Student
	if err := json.NewDecoder(resp.Body).Decode(&students); err != nil {
		return nil, fmt.Errorf("decode students: %w", err)
	}
	return students, nil
}

// accessEventPayload is the wire shape for one forwarded access event.
type accessEventPayload struct {
	PersonID       string `json:"person_id"`
	Badge          string `json:"badge"`
	IdempotencyKey string `json:"idempotency_key"`
	Timestamp      string `json:"timestamp"`
	Direction      string `json:"direction,omitempty"`
}

// Event is the minimal shape the client needs to deliver one access event.
type Event struct {
	PersonID  string
	Badge     string
	Key       string
	Timestamp time.Time
	Direction string
}

// PostAccessEvent delivers one access event.  Errors are classified:
// *TransientError should be retried, *RejectedError must not be.
func (c *Client) PostAccessEvent(ctx context.Context, ev Event) error {
	body, err := json.Marshal(accessEventPayload{
		PersonID:       ev.PersonID,
		Badge:          ev.Badge,
		IdempotencyKey: ev.Key,
		Timestamp:      ev.Timestamp.UTC().Format(time.RFC3339),
		Direction:      ev.Direction,
	})
	if err != nil {
		return fmt.Errorf("marshal access event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v0/attendance", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build attendance request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", ev.Key)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &TransientError{Status: resp.StatusCode}
	default:
		// Read a short diagnostic; the body is not trusted beyond that.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RejectedError{Status: resp.StatusCode, Body: string(snippet)}
	}
}
