// Package gateway talks to the Evolution API messaging gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned when credentials are missing. It is a
// configuration problem, not a transient send failure.
var ErrNotConfigured = errors.New("messaging gateway is not configured")

// Credentials identify a gateway instance
type Credentials struct {
	APIURL       string
	APIKey       string
	InstanceName string
}

// Valid reports whether all credentials are present
func (c Credentials) Valid() bool {
	return c.APIURL != "" && c.APIKey != "" && c.InstanceName != ""
}

// SendError describes a failed send attempt
type SendError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway send failed: %v", e.Err)
	}
	return fmt.Sprintf("gateway send failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

type sendTextRequest struct {
	Number      string      `json:"number"`
	TextMessage textMessage `json:"textMessage"`
}

type textMessage struct {
	Text string `json:"text"`
}

// Client sends messages through the gateway's REST API
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client whose requests time out after timeout
func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// SendText delivers a text message to number
func (c *Client) SendText(ctx context.Context, creds Credentials, number, text string) error {
	if !creds.Valid() || strings.TrimSpace(number) == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(sendTextRequest{
		Number:      number,
		TextMessage: textMessage{Text: text},
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/message/sendText/%s", strings.TrimRight(creds.APIURL, "/"), creds.InstanceName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[GATEWAY] Send to instance %s failed: %v", creds.InstanceName, err)
		return &SendError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Printf("[GATEWAY] Send to instance %s rejected: status=%d", creds.InstanceName, resp.StatusCode)
		return &SendError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	log.Printf("[GATEWAY] Message sent via instance %s", creds.InstanceName)
	return nil
}
