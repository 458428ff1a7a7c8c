// Package backend is the typed HTTP client for the SoulMate backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/soulmate-widget/internal/logging"
	"github.com/zhouzirui/soulmate-widget/internal/model/widget"
)

// ErrStatus marks a response whose status code was not 2xx.
var ErrStatus = errors.New("unexpected backend status")

// Config configures the client.
type Config struct {
	BaseURL string
	// Timeout of zero leaves requests unbounded.
	Timeout time.Duration
}

// Client issues the four backend calls. Every call is independent; nothing is
// retried and nothing is cached.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a backend client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logging.Component(logger, "backend-client"),
	}
}

// Chat posts one user message and returns the reply as sent by the backend.
func (c *Client) Chat(ctx context.Context, message string) (widget.ChatResponse, error) {
	var resp widget.ChatResponse
	err := c.do(ctx, http.MethodPost, "/chat", widget.ChatRequest{Message: message}, &resp)
	return resp, err
}

// SaveJournal persists a journal entry. Any 2xx JSON body counts as success;
// the ack itself is decoded best-effort.
func (c *Client) SaveJournal(ctx context.Context, entry string) (widget.JournalAck, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/journal", widget.JournalRequest{Entry: entry}, &raw); err != nil {
		return widget.JournalAck{}, err
	}

	var ack widget.JournalAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		c.logger.Debug().Err(err).Str("body", truncate(string(raw), 200)).Msg("journal ack has an unexpected shape")
	}
	return ack, nil
}

// Summary fetches today's mood summary.
func (c *Client) Summary(ctx context.Context) (widget.SummaryView, error) {
	var view widget.SummaryView
	err := c.do(ctx, http.MethodGet, "/summary", nil, &view)
	return view, err
}

// Wellness fetches the wellness score.
func (c *Client) Wellness(ctx context.Context) (widget.WellnessView, error) {
	var view widget.WellnessView
	err := c.do(ctx, http.MethodGet, "/wellness", nil, &view)
	return view, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Int("bodyLen", len(data)).
		Msg("backend call finished")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrStatus, method, path, resp.StatusCode, truncate(string(data), 200))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
