package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/codescout-dev/codescout/internal/xerrors"
)

// embedRequest is the wire format for an embedding call.
type embedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	InputType string   `json:"input_type"`
}

// embedResponse is the wire format for an embedding response.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Client is an HTTP embedding client with connection pooling,
// per-request timeouts, and retry with exponential backoff on
// transient failures.
type Client struct {
	client    *http.Client
	transport *http.Transport
	config    Config
	retry     xerrors.RetryConfig

	mu       sync.RWMutex
	dims     int
	progress func(BatchProgress)
	closed   bool
}

var _ Embedder = (*Client)(nil)

// NewClient creates an embedding client. The endpoint and model must
// be set; other fields default.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("embed: endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embed: model is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}

	// Short idle timeout: indexing runs are short-lived and idle
	// connections should not outlive them.
	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	// No http.Client.Timeout: it would override the per-request
	// context timeouts set in embedBatch.
	return &Client{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		retry:     xerrors.DefaultRetryConfig(),
		dims:      cfg.Dimensions,
	}, nil
}

// SetProgress registers a callback invoked synchronously after each
// completed batch.
func (c *Client) SetProgress(fn func(BatchProgress)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = fn
}

// EmbedAll embeds texts in batches of the configured size. The mode
// is required. The returned slice is index-aligned with texts.
func (c *Client) EmbedAll(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("embed: mode is required, got %q", mode)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	batchSize := c.config.BatchSize
	totalBatches := (len(texts) + batchSize - 1) / batchSize
	vectors := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := c.embedBatch(ctx, texts[i:end], mode)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)

		c.reportProgress(BatchProgress{
			Batch:        i/batchSize + 1,
			TotalBatches: totalBatches,
			TextsDone:    end,
			TextsTotal:   len(texts),
		})
	}

	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedAll(ctx, []string{text}, ModeQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// embedBatch sends one embedding request, retrying transient failures.
func (c *Client) embedBatch(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	var vectors [][]float32

	err := xerrors.Retry(ctx, c.retry, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()

		result, err := c.doEmbed(reqCtx, texts, mode)
		if err != nil {
			return err
		}
		vectors = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

func (c *Client) doEmbed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{
		Model:     c.config.Model,
		Input:     texts,
		InputType: string(mode),
	})
	if err != nil {
		return nil, xerrors.Embedding("marshal request", err, false)
	}

	url := c.config.Endpoint + "/api/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, xerrors.Embedding("create request", err, false)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Connection failures and timeouts are retryable.
		return nil, xerrors.Embedding("request failed", err, true)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := fmt.Sprintf("status %d: %s", resp.StatusCode, string(data))

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			// Auth failures are fatal to the run, not retryable.
			return nil, xerrors.Embedding("authentication failed: "+msg, nil, false)
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
			return nil, xerrors.Embedding("model unavailable: "+msg, nil, false)
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return nil, xerrors.Embedding("server error: "+msg, nil, true)
		default:
			return nil, xerrors.Embedding("unexpected response: "+msg, nil, false)
		}
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, xerrors.Embedding("decode response", err, true)
	}
	if result.Error != "" {
		return nil, xerrors.Embedding("service error: "+result.Error, nil, false)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, xerrors.Embedding(
			fmt.Sprintf("embedding count mismatch: sent %d texts, got %d vectors",
				len(texts), len(result.Embeddings)), nil, false)
	}

	c.recordDimensions(result.Embeddings)
	return result.Embeddings, nil
}

// recordDimensions captures the vector size from the first response.
func (c *Client) recordDimensions(vectors [][]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dims == 0 && len(vectors) > 0 {
		c.dims = len(vectors[0])
		slog.Debug("detected embedding dimensions", slog.Int("dims", c.dims))
	}
}

func (c *Client) reportProgress(p BatchProgress) {
	c.mu.RLock()
	fn := c.progress
	c.mu.RUnlock()
	if fn != nil {
		fn(p)
	}
}

// Dimensions returns the embedding vector size, 0 until the first
// successful request when not configured.
func (c *Client) Dimensions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dims
}

// ModelName returns the configured model identifier.
func (c *Client) ModelName() string {
	return c.config.Model
}

// Close releases idle connections. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.transport.CloseIdleConnections()
	return nil
}
