// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/parley-chat/parley/lib/httpx"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the base URL of the Parley server (e.g., "http://localhost:8787").
	BaseURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used. The stream connection shares this client, so its
	// Timeout must be zero — per-request deadlines come from contexts.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client is a Parley API client. It holds the server URL and HTTP
// transport, shared across room sessions.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Parley API client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("timeline: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("timeline: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// CloseIdleConnections closes idle HTTP connections in the underlying
// transport's connection pool. Called after a stream error so the
// next attempt opens a fresh TCP connection instead of reusing a
// poisoned pooled one.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// Messages fetches a room's full message list. Used for the initial
// load and for resets; incremental updates go through PollMessages.
func (c *Client) Messages(ctx context.Context, roomID int64) ([]Message, error) {
	body, err := c.doRequest(ctx, http.MethodGet, roomPath(roomID, "/messages"), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("timeline: fetching messages for room %d: %w", roomID, err)
	}

	var messages []Message
	if err := json.Unmarshal(body, &messages); err != nil {
		return nil, fmt.Errorf("timeline: parsing messages response: %w", err)
	}
	return messages, nil
}

// PollMessages fetches messages with IDs strictly greater than
// sinceID.
func (c *Client) PollMessages(ctx context.Context, roomID, sinceID int64) ([]Message, error) {
	query := url.Values{}
	query.Set("since_id", strconv.FormatInt(sinceID, 10))

	body, err := c.doRequest(ctx, http.MethodGet, roomPath(roomID, "/messages/poll"), nil, query)
	if err != nil {
		return nil, fmt.Errorf("timeline: polling messages for room %d: %w", roomID, err)
	}

	var messages []Message
	if err := json.Unmarshal(body, &messages); err != nil {
		return nil, fmt.Errorf("timeline: parsing poll response: %w", err)
	}
	return messages, nil
}

// ChattingAgents fetches the server's snapshot of agents currently
// generating a response in the room.
func (c *Client) ChattingAgents(ctx context.Context, roomID int64) ([]ChattingAgent, error) {
	body, err := c.doRequest(ctx, http.MethodGet, roomPath(roomID, "/chatting-agents"), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("timeline: fetching chatting agents for room %d: %w", roomID, err)
	}

	var agents []ChattingAgent
	if err := json.Unmarshal(body, &agents); err != nil {
		return nil, fmt.Errorf("timeline: parsing chatting agents response: %w", err)
	}
	return agents, nil
}

// SendMessage submits an outgoing message to the room. Returns the
// persisted message as echoed by the server.
func (c *Client) SendMessage(ctx context.Context, roomID int64, request SendMessageRequest) (Message, error) {
	body, err := c.doRequest(ctx, http.MethodPost, roomPath(roomID, "/messages/send"), request, nil)
	if err != nil {
		return Message{}, fmt.Errorf("timeline: sending message to room %d: %w", roomID, err)
	}

	var message Message
	if err := json.Unmarshal(body, &message); err != nil {
		return Message{}, fmt.Errorf("timeline: parsing send response: %w", err)
	}
	return message, nil
}

// StreamTicket requests a single-use, short-lived ticket authorizing
// one stream connection to the room. The stream transport cannot
// carry custom auth headers, so the ticket travels as a query
// parameter instead. Stateless — no retries here; the stream
// manager's reconnection machinery decides whether and when to retry.
func (c *Client) StreamTicket(ctx context.Context, roomID int64) (string, error) {
	body, err := c.doRequest(ctx, http.MethodPost, roomPath(roomID, "/stream/ticket"), struct{}{}, nil)
	if err != nil {
		return "", fmt.Errorf("timeline: requesting stream ticket for room %d: %w", roomID, err)
	}

	var response ticketResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("timeline: parsing ticket response: %w", err)
	}
	if response.Ticket == "" {
		return "", fmt.Errorf("timeline: server returned an empty stream ticket for room %d", roomID)
	}
	return response.Ticket, nil
}

// OpenStream connects the room's event stream using a ticket from
// StreamTicket. On success the caller owns the response body and must
// close it; events are read from it with an EventReader. The context
// bounds the entire life of the stream — cancelling it closes the
// connection.
func (c *Client) OpenStream(ctx context.Context, roomID int64, ticket string) (io.ReadCloser, error) {
	query := url.Values{}
	query.Set("ticket", ticket)
	requestURL := c.baseURL + roomPath(roomID, "/stream") + "?" + query.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("timeline: creating stream request: %w", err)
	}
	request.Header.Set("Accept", "text/event-stream")
	request.Header.Set("Cache-Control", "no-cache")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("timeline: opening stream for room %d: %w", roomID, err)
	}

	if response.StatusCode != http.StatusOK {
		defer response.Body.Close()
		return nil, fmt.Errorf("timeline: stream for room %d refused with status %d: %s",
			roomID, response.StatusCode, httpx.ErrorBody(response.Body))
	}

	return response.Body, nil
}

// roomPath builds an API path under /rooms/{roomID}.
func roomPath(roomID int64, suffix string) string {
	return "/rooms/" + strconv.FormatInt(roomID, 10) + suffix
}

// doRequest performs an HTTP request and returns the response body.
// On 2xx, returns the body. On 4xx/5xx, returns a *APIError. query
// may be nil for endpoints without query parameters.
func (c *Client) doRequest(ctx context.Context, method, path string, requestBody any, query url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := httpx.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	// All server error responses share one JSON shape.
	var apiErr APIError
	if jsonErr := json.Unmarshal(responseBody, &apiErr); jsonErr != nil {
		// Non-JSON error body (proxy, load balancer). Fail loud with
		// the raw body.
		return nil, fmt.Errorf("unexpected %d response from %s %s: %s",
			response.StatusCode, method, path, string(responseBody))
	}
	apiErr.StatusCode = response.StatusCode

	return nil, &apiErr
}
