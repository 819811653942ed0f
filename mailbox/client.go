package mailbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// requestTimeout bounds every relay round-trip. A hung relay call stalls
// only the one send or poll attempt that made it.
const requestTimeout = 30 * time.Second

// Meta is optional blob metadata, used by file payloads.
type Meta struct {
	Filename string `json:"filename,omitempty"`
	Size     int    `json:"size,omitempty"`
}

// ServerMessage is one stored blob as returned by a fetch.
type ServerMessage struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Data      string `json:"data"`
	Meta      Meta   `json:"meta"`
}

type postRequest struct {
	Data string `json:"data"`
	Meta Meta   `json:"meta"`
}

type postResponse struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Success   bool   `json:"success"`
}

type fetchResponse struct {
	Messages []ServerMessage `json:"messages"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Deleted string `json:"deleted"`
}

// Client talks to one mailbox relay.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a relay client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// Post stores a blob on the given queue and returns the relay-assigned id.
func (c *Client) Post(ctx context.Context, queueID, data string, meta Meta) (string, error) {
	body, err := json.Marshal(postRequest{Data: data, Meta: meta})
	if err != nil {
		return "", fmt.Errorf("failed to serialize post request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/mailbox/%s", c.baseURL, queueID), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result postResponse
	if err := c.do(req, "post", &result); err != nil {
		return "", err
	}
	if !result.Success {
		return "", &TransportError{Op: "post", Reason: "server reported failure"}
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Post",
		"queue_id":  queueID,
		"id":        result.ID,
		"timestamp": result.Timestamp,
	}).Debug("Blob posted to relay")

	return result.ID, nil
}

// Fetch lists all blobs currently stored on the given queue.
func (c *Client) Fetch(ctx context.Context, queueID string) ([]ServerMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/mailbox/%s", c.baseURL, queueID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %w", err)
	}

	var result fetchResponse
	if err := c.do(req, "fetch", &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

// Delete removes one blob from the given queue.
func (c *Client) Delete(ctx context.Context, queueID, messageID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/mailbox/%s/%s", c.baseURL, queueID, messageID), nil)
	if err != nil {
		return fmt.Errorf("failed to build delete request: %w", err)
	}

	var result deleteResponse
	if err := c.do(req, "delete", &result); err != nil {
		return err
	}
	if !result.Success {
		return &TransportError{Op: "delete", Reason: "server reported failure"}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Delete",
		"queue_id": queueID,
		"deleted":  result.Deleted,
	}).Debug("Blob deleted from relay")

	return nil
}

// do executes a request and decodes a JSON body, mapping network failures
// and non-success statuses to TransportError.
func (c *Client) do(req *http.Request, op string, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &TransportError{Op: op, Status: resp.StatusCode, Reason: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Reason: "malformed response body", Err: err}
	}
	return nil
}
