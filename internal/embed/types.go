// Package embed converts chunk text and query strings into
// fixed-dimension vectors via a batched HTTP embedding service.
package embed

import (
	"context"
	"time"
)

// Mode selects the embedding encoding. Asymmetric models encode
// documents and queries differently; mixing modes silently degrades
// search quality, so every call must state its mode explicitly.
type Mode string

const (
	// ModeDocument encodes chunk text at index time.
	ModeDocument Mode = "document"
	// ModeQuery encodes a search query.
	ModeQuery Mode = "query"
)

// Valid reports whether m is a recognized mode.
func (m Mode) Valid() bool {
	return m == ModeDocument || m == ModeQuery
}

// Embedder generates embeddings for text.
type Embedder interface {
	// EmbedAll embeds texts in batches. The mode is required; an
	// empty or unknown mode is an error, never a default.
	EmbedAll(ctx context.Context, texts []string, mode Mode) ([][]float32, error)
	// EmbedQuery embeds a single query string in ModeQuery.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns the embedding vector size, 0 until known.
	Dimensions() int
	// ModelName returns the model identifier.
	ModelName() string
	// Close releases client resources.
	Close() error
}

// Defaults for the HTTP client.
const (
	DefaultBatchSize      = 32
	DefaultRequestTimeout = 60 * time.Second
	DefaultPoolSize       = 8
)

// Config configures the HTTP embedding client.
type Config struct {
	// Endpoint is the service base URL.
	Endpoint string
	// Model is the embedding model identifier.
	Model string
	// APIKey, when set, is sent as a bearer token.
	APIKey string
	// Dimensions is the expected vector size. 0 means detect from
	// the first response.
	Dimensions int
	// BatchSize is the number of texts per request.
	BatchSize int
	// RequestTimeout bounds each HTTP request.
	RequestTimeout time.Duration
	// PoolSize sizes the connection pool.
	PoolSize int
}

// BatchProgress is reported after each completed embedding batch.
type BatchProgress struct {
	Batch        int // 1-based batch number
	TotalBatches int
	TextsDone    int
	TextsTotal   int
}
