// Package embed turns event titles into embedding vectors and projects
// them to 2D star-map coordinates.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultBaseURL      = "https://api-inference.huggingface.co"
	defaultModel        = "sentence-transformers/all-MiniLM-L6-v2"
	defaultBatchSize    = 32
	defaultTimeout      = 60 * time.Second
	defaultWarmupBudget = 5 * time.Minute
)

// Client computes text embeddings via the Hugging Face Inference API.
// It is not safe for concurrent use.
type Client struct {
	token        string
	model        string
	baseURL      string
	batchSize    int
	warmupBudget time.Duration
	httpClient   *http.Client

	// set when the API rejects the token and the anonymous retry works
	anonymous bool
}

// Option configures a Client.
type Option func(*Client)

// WithModel sets the embedding model to use.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithBatchSize sets how many texts are sent per API call.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithWarmupBudget sets how long to keep retrying while the model loads.
func WithWarmupBudget(d time.Duration) Option {
	return func(c *Client) {
		c.warmupBudget = d
	}
}

// NewClient creates a new embedding client. The token may be empty for
// anonymous access.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:        token,
		model:        defaultModel,
		baseURL:      defaultBaseURL,
		batchSize:    defaultBatchSize,
		warmupBudget: defaultWarmupBudget,
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed returns one embedding vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts to embed")
	}

	batches := (len(texts) + c.batchSize - 1) / c.batchSize
	vectors := make([][]float64, 0, len(texts))

	for i := 0; i < len(texts); i += c.batchSize {
		end := i + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := c.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d/%d: %w", i/c.batchSize+1, batches, err)
		}
		vectors = append(vectors, batch...)

		slog.Info("embedding progress", "batch", i/c.batchSize+1, "batches", batches, "texts", end)
	}

	return vectors, nil
}

// embedBatch sends one batch, retrying while the model is warming up.
func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float64, error) {
	reqBody := embedRequest{
		Inputs:  batch,
		Options: embedOptions{WaitForModel: true},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var vectors [][]float64
	operation := func() error {
		v, err := c.requestVectors(ctx, bodyBytes)
		if err != nil {
			return err
		}
		vectors = v
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.warmupBudget
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}

	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(vectors), len(batch))
	}
	return vectors, nil
}

func (c *Client) requestVectors(ctx context.Context, body []byte) ([][]float64, error) {
	resp, err := c.send(ctx, body, c.useAuth())
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("send request: %w", err))
	}

	// A rejected token falls back to anonymous access once
	if c.useAuth() && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		resp.Body.Close()
		slog.Warn("embedding API rejected token, retrying without authorization", "status", resp.StatusCode)
		c.anonymous = true
		resp, err = c.send(ctx, body, false)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("send request: %w", err))
		}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusServiceUnavailable:
		return nil, fmt.Errorf("model loading: status %d", resp.StatusCode)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, backoff.Permanent(fmt.Errorf("authorization failed with status %d: provide a valid HUGGINGFACE_TOKEN or unset it", resp.StatusCode))
	default:
		return nil, backoff.Permanent(fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var vectors [][]float64
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return vectors, nil
}

func (c *Client) useAuth() bool {
	return c.token != "" && !c.anonymous
}

func (c *Client) send(ctx context.Context, body []byte, withAuth bool) (*http.Response, error) {
	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", c.baseURL, c.model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if withAuth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

// Hugging Face Inference API types

type embedRequest struct {
	Inputs  []string     `json:"inputs"`
	Options embedOptions `json:"options"`
}

type embedOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}
