// Package gemini implements the secondary provider client over the Google
// Generative Language API.
package gemini

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/exdly/conectai/internal/domain"
)

// Config carries the Gemini credentials and generation settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client implements domain.ProviderClient against Gemini.
type Client struct {
	cfg Config
	hc  *http.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Client{cfg: cfg, hc: &http.Client{Timeout: timeout}}
}

// Name implements domain.ProviderClient.
func (c *Client) Name() string { return "gemini" }

type generateRequest struct {
	Contents []content `json:"contents"`
	Config   genConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type genConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// retryHintRe matches the delay Gemini embeds in 429 error messages,
// e.g. "Please retry in 21.5s".
var retryHintRe = regexp.MustCompile(`retry in (\d+(?:\.\d+)?)s`)

// Complete implements domain.ProviderClient with the same error taxonomy as
// the OpenRouter client. The rate-limit hint is parsed out of the error
// message body since Gemini does not send a Retry-After header.
func (c *Client) Complete(ctx domain.Context, model, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("op=gemini.Complete: %w: api key missing", domain.ErrInvalidArgument)
	}
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		Config:   genConfig{Temperature: c.cfg.Temperature, MaxOutputTokens: c.cfg.MaxTokens},
	})
	if err != nil {
		return "", fmt.Errorf("op=gemini.Complete: %w", err)
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.cfg.BaseURL, model, c.cfg.APIKey)

	var out generateResponse
	op := func() error {
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
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
			slog.Warn("gemini rate limited", slog.String("model", model))
			return backoff.Permanent(&domain.RateLimitError{
				Provider:   "gemini",
				Model:      model,
				RetryAfter: parseRetryHint(string(raw)),
			})
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("op=gemini.Complete: model %s: %w", model, domain.ErrModelNotFound))
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			slog.Warn("gemini 4xx", slog.Int("status", resp.StatusCode), slog.String("model", model))
			return backoff.Permanent(fmt.Errorf("op=gemini.Complete: status %d", resp.StatusCode))
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			slog.Error("gemini non-2xx", slog.Int("status", resp.StatusCode), slog.String("model", model))
			return fmt.Errorf("generate status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("op=gemini.Complete: decode: %w", err))
		}
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime = c.hc.Timeout
	if err := backoff.Retry(op, backoff.WithContext(expo, ctx)); err != nil {
		return "", err
	}
	if out.Error != nil {
		return "", fmt.Errorf("op=gemini.Complete: provider error: %s", out.Error.Message)
	}
	if len(out.Candidates) == 0 {
		return "", errors.New("op=gemini.Complete: empty candidates")
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func parseRetryHint(body string) time.Duration {
	m := retryHintRe.FindStringSubmatch(body)
	if m == nil {
		return 0
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
