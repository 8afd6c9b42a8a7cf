// Package ankiconnect is a client for the AnkiConnect add-on HTTP API.
package ankiconnect

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

// APIVersion is the AnkiConnect protocol version this client speaks.
const APIVersion = 6

// DefaultURL is where AnkiConnect listens by default.
const DefaultURL = "http://localhost:8765"

// Client sends actions to AnkiConnect, one blocking round trip per call.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a Client. A nil httpClient gets a 30s timeout.
func NewClient(url string, httpClient *http.Client) *Client {
	url = strings.TrimSpace(url)
	if url == "" {
		url = DefaultURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{url: url, httpClient: httpClient}
}

type request struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

// Invoke runs one action and decodes its result into out (which may be nil).
// The response must be an object with exactly the keys "error" and "result".
func (c *Client) Invoke(ctx context.Context, action string, params any, out any) error {
	body, err := json.Marshal(request{Action: action, Version: APIVersion, Params: params})
	if err != nil {
		return fmt.Errorf("ankiconnect %s: marshal request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ankiconnect %s: build request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Action: action, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Action: action, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &TransportError{Action: action, Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &ProtocolError{Action: action, Reason: "decode response: " + err.Error()}
	}
	if len(envelope) != 2 {
		return &ProtocolError{Action: action, Reason: "response has unexpected number of fields"}
	}
	errField, ok := envelope["error"]
	if !ok {
		return &ProtocolError{Action: action, Reason: "response is missing required error field"}
	}
	result, ok := envelope["result"]
	if !ok {
		return &ProtocolError{Action: action, Reason: "response is missing required result field"}
	}

	if !isNull(errField) {
		var msg string
		if err := json.Unmarshal(errField, &msg); err != nil {
			msg = string(errField)
		}
		return &ActionError{Action: action, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return &ProtocolError{Action: action, Reason: "decode result: " + err.Error()}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
