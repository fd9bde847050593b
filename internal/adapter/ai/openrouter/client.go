// Package openrouter implements the primary provider client over the
// OpenRouter chat completions API.
package openrouter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/exdly/conectai/internal/domain"
)

// Config carries the OpenRouter credentials and attribution headers.
type Config struct {
	APIKey      string
	BaseURL     string
	Referer     string
	Title       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client implements domain.ProviderClient against OpenRouter.
type Client struct {
	cfg Config
	hc  *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Client{cfg: cfg, hc: &http.Client{Timeout: timeout}}
}

// Name implements domain.ProviderClient.
func (c *Client) Name() string { return "openrouter" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Complete implements domain.ProviderClient. Rate limits surface as
// *domain.RateLimitError carrying the Retry-After hint; unknown models map to
// domain.ErrModelNotFound. Transient failures are retried with backoff.
func (c *Client) Complete(ctx domain.Context, model, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("op=openrouter.Complete: %w: api key missing", domain.ErrInvalidArgument)
	}
	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("op=openrouter.Complete: %w", err)
	}

	var out chatResponse
	op := func() error {
		// Recreate the request each attempt to avoid reusing consumed bodies.
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
		r.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		r.Header.Set("Content-Type", "application/json")
		if c.cfg.Referer != "" {
			r.Header.Set("HTTP-Referer", c.cfg.Referer)
		}
		if c.cfg.Title != "" {
			r.Header.Set("X-Title", c.cfg.Title)
		}
		resp, err := c.hc.Do(r)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			slog.Warn("openrouter rate limited", slog.String("model", model))
			return backoff.Permanent(&domain.RateLimitError{
				Provider:   "openrouter",
				Model:      model,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			})
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("op=openrouter.Complete: model %s: %w", model, domain.ErrModelNotFound))
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			slog.Warn("openrouter 4xx", slog.Int("status", resp.StatusCode), slog.String("model", model), slog.String("body", snippet(raw)))
			return backoff.Permanent(fmt.Errorf("op=openrouter.Complete: status %d", resp.StatusCode))
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			slog.Error("openrouter non-2xx", slog.Int("status", resp.StatusCode), slog.String("model", model), slog.String("body", snippet(raw)))
			return fmt.Errorf("chat status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("op=openrouter.Complete: decode: %w", err))
		}
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime = c.hc.Timeout
	if err := backoff.Retry(op, backoff.WithContext(expo, ctx)); err != nil {
		return "", err
	}
	if out.Error != nil {
		return "", fmt.Errorf("op=openrouter.Complete: provider error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("op=openrouter.Complete: empty choices")
	}
	return out.Choices[0].Message.Content, nil
}

func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func snippet(b []byte) string {
	if len(b) > 512 {
		b = b[:512]
	}
	return string(b)
}
