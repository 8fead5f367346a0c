// Package translate provides core.Translator implementations: an HTTP client
// for the machine-translation service and a Noop passthrough for
// English-only deployments and tests.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rayied/cora/core"
	"github.com/rayied/cora/logging"
)

// Options configures the HTTP translation client.
type Options struct {
	// Timeout bounds each translation call.
	Timeout time.Duration
	// HTTPClient overrides the default client (tests inject a stub here).
	HTTPClient *http.Client
	// Logger records failures. Defaults to NoOp.
	Logger logging.Logger
}

// Client calls a machine-translation service speaking a small JSON protocol:
// POST {text, source, target} to /translate, receiving {translated_text,
// source_lang}. Source may be "auto" for language detection.
type Client struct {
	baseURL string
	client  *http.Client
	logger  logging.Logger
}

// Compile-time interface implementation check.
var _ core.Translator = (*Client)(nil)

// NewClient constructs a translation client for the given base URL.
func NewClient(baseURL string, optFns ...func(o *Options)) *Client {
	opts := Options{
		Timeout: 30 * time.Second,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{baseURL: baseURL, client: httpClient, logger: opts.Logger}
}

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Translate implements core.Translator.
func (c *Client) Translate(ctx context.Context, text, source, target string) (core.Translation, error) {
	payload, err := json.Marshal(translateRequest{Text: text, Source: source, Target: target})
	if err != nil {
		return core.Translation{}, fmt.Errorf("encode translation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return core.Translation{}, fmt.Errorf("build translation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("Translation service unreachable", "error", err)
		return core.Translation{}, fmt.Errorf("%w: translator: %v", core.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return core.Translation{}, fmt.Errorf("%w: translator returned %d: %s", core.ErrUnavailable, resp.StatusCode, body)
	}

	var out core.Translation
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return core.Translation{}, fmt.Errorf("decode translation response: %w", err)
	}
	return out, nil
}

// Noop is a passthrough Translator: it returns the input text unchanged and
// reports the requested source as detected. Useful when every caller speaks
// the working language already.
type Noop struct{}

// Translate implements core.Translator.
func (Noop) Translate(_ context.Context, text, source, _ string) (core.Translation, error) {
	return core.Translation{Text: text, DetectedSource: source}, nil
}
