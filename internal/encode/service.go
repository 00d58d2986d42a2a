package encode

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	clierrors "github.com/clipgrep/clipgrep/internal/errors"
	"github.com/clipgrep/clipgrep/internal/imaging"
)

// Service defaults.
const (
	// DefaultEndpoint is the local CLIP sidecar address.
	DefaultEndpoint = "http://localhost:9787"

	// DefaultModel is the model requested from the service.
	DefaultModel = "clip-vit-base-patch32"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 60 * time.Second

	// connectTimeout bounds the initial health check.
	connectTimeout = 5 * time.Second

	// poolSize is the HTTP connection pool size.
	poolSize = 4
)

// ServiceConfig configures the encoder service client.
type ServiceConfig struct {
	Endpoint   string
	Model      string
	Timeout    time.Duration
	Dimensions int

	// SkipHealthCheck skips the startup probe (testing).
	SkipHealthCheck bool
}

// ServiceEncoder talks to a local CLIP encoder sidecar over HTTP.
type ServiceEncoder struct {
	client    *http.Client
	transport *http.Transport
	config    ServiceConfig
	modelName string
	dims      int

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Encoder = (*ServiceEncoder)(nil)

// Wire types for the sidecar API.
type encodeImagesRequest struct {
	Model  string   `json:"model"`
	Images []string `json:"images"` // base64-encoded file bytes
}

type encodeTextRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

type encodeResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

type healthResponse struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// NewServiceEncoder creates an encoder client and verifies the service
// is reachable.
func NewServiceEncoder(ctx context.Context, cfg ServiceConfig) (*ServiceEncoder, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimSuffix(cfg.Endpoint, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	// Short idle timeout: CLI runs are short-lived, connections should
	// be cleaned up quickly after exit.
	transport := &http.Transport{
		MaxIdleConns:        poolSize,
		MaxIdleConnsPerHost: poolSize,
		MaxConnsPerHost:     poolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	// No client-level timeout: per-request context timeouts apply.
	e := &ServiceEncoder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		modelName: cfg.Model,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		health, err := e.health(checkCtx)
		if err != nil {
			transport.CloseIdleConnections()
			return nil, fmt.Errorf("failed to connect to encoder service at %s: %w", cfg.Endpoint, err)
		}
		if health.Model != "" {
			e.modelName = health.Model
		}
		if e.dims == 0 {
			e.dims = health.Dimensions
		}
	}

	if e.dims == 0 {
		return nil, fmt.Errorf("encoder service did not report vector dimensions")
	}

	return e, nil
}

func (e *ServiceEncoder) health(ctx context.Context) (*healthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Endpoint+"/v1/health", nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &health, nil
}

// EncodeImages encodes a batch of images in one request. Fails as a
// unit: an error means no vectors for any input.
func (e *ServiceEncoder) EncodeImages(ctx context.Context, images []*imaging.Image) ([][]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return [][]float32{}, nil
	}

	encoded := make([]string, len(images))
	for i, img := range images {
		encoded[i] = base64.StdEncoding.EncodeToString(img.Data)
	}

	vectors, err := e.post(ctx, "/v1/encode/images", encodeImagesRequest{
		Model:  e.modelName,
		Images: encoded,
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(images) {
		return nil, fmt.Errorf("encoder returned %d vectors for %d images", len(vectors), len(images))
	}
	return vectors, e.checkDims(vectors)
}

// EncodeQueries encodes search terms, routing file paths through image
// encoding and everything else through text encoding. Order is
// preserved.
func (e *ServiceEncoder) EncodeQueries(ctx context.Context, queries []Query) ([][]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(queries))

	var texts []string
	var textIdx []int
	var images []*imaging.Image
	var imageIdx []int

	for i, q := range queries {
		if path, ok := q.FilePath(); ok {
			img, err := imaging.ReadImage(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read query image %s: %w", path, err)
			}
			images = append(images, img)
			imageIdx = append(imageIdx, i)
			continue
		}
		texts = append(texts, string(q))
		textIdx = append(textIdx, i)
	}

	if len(texts) > 0 {
		vectors, err := e.post(ctx, "/v1/encode/text", encodeTextRequest{
			Model: e.modelName,
			Texts: texts,
		})
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("encoder returned %d vectors for %d texts", len(vectors), len(texts))
		}
		for j, i := range textIdx {
			results[i] = vectors[j]
		}
	}

	if len(images) > 0 {
		vectors, err := e.EncodeImages(ctx, images)
		if err != nil {
			return nil, err
		}
		for j, i := range imageIdx {
			results[i] = vectors[j]
		}
	}

	return results, e.checkDims(results)
}

func (e *ServiceEncoder) post(ctx context.Context, path string, payload any) ([][]float32, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.config.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("encoder request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("encoding failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result encodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Vectors, nil
}

func (e *ServiceEncoder) checkDims(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != e.dims {
			return clierrors.New(clierrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("dimension mismatch: expected %d, got %d", e.dims, len(v)), nil)
		}
	}
	return nil
}

func (e *ServiceEncoder) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return fmt.Errorf("encoder is closed")
	}
	return nil
}

// Dimensions returns the vector dimension.
func (e *ServiceEncoder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *ServiceEncoder) ModelName() string { return e.modelName }

// Available checks if the service responds to a health probe.
func (e *ServiceEncoder) Available(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	_, err := e.health(checkCtx)
	return err == nil
}

// Close releases pooled connections. Idempotent.
func (e *ServiceEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
