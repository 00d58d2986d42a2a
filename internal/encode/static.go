package encode

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"

	"github.com/clipgrep/clipgrep/internal/imaging"
)

// StaticDimensions is the vector dimension of the static encoder.
const StaticDimensions = 256

// Weights for text vector generation.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// tokenRegex matches alphanumeric sequences.
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// StaticEncoder generates vectors with a deterministic hash-based
// scheme. It works without a running encoder service (no network, no
// model) at the cost of semantic quality; it exists for offline mode
// and tests.
type StaticEncoder struct {
	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Encoder = (*StaticEncoder)(nil)

// NewStaticEncoder creates a static encoder.
func NewStaticEncoder() *StaticEncoder {
	return &StaticEncoder{}
}

// EncodeImages derives a vector from each image's raw bytes.
// Deterministic: identical bytes always map to identical vectors.
func (e *StaticEncoder) EncodeImages(ctx context.Context, images []*imaging.Image) ([][]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(images))
	for i, img := range images {
		vectors[i] = normalizeVector(contentVector(img.Data))
	}
	return vectors, nil
}

// EncodeQueries encodes text terms by token hashing and file terms
// from the file's bytes.
func (e *StaticEncoder) EncodeQueries(ctx context.Context, queries []Query) ([][]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(queries))
	for i, q := range queries {
		if path, ok := q.FilePath(); ok {
			img, err := imaging.ReadImage(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read query image %s: %w", path, err)
			}
			vectors[i] = normalizeVector(contentVector(img.Data))
			continue
		}
		vectors[i] = normalizeVector(textVector(string(q)))
	}
	return vectors, nil
}

// contentVector folds raw bytes into a fixed-length vector.
func contentVector(data []byte) []float32 {
	vector := make([]float32, StaticDimensions)
	const window = 64
	for off := 0; off < len(data); off += window {
		end := off + window
		if end > len(data) {
			end = len(data)
		}
		h := fnv.New64a()
		_, _ = h.Write(data[off:end])
		sum := h.Sum64()
		vector[sum%StaticDimensions] += float32(sum%7) + 1
	}
	return vector
}

// textVector hashes tokens and character n-grams into a vector, so
// overlapping texts land on overlapping components.
func textVector(text string) []float32 {
	vector := make([]float32, StaticDimensions)

	for _, token := range tokenRegex.FindAllString(strings.ToLower(text), -1) {
		vector[hashToIndex(token)] += tokenWeight
	}

	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	runes := []rune(normalized)
	for i := 0; i+ngramSize <= len(runes); i++ {
		vector[hashToIndex(string(runes[i:i+ngramSize]))] += ngramWeight
	}

	return vector
}

func hashToIndex(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % StaticDimensions)
}

func (e *StaticEncoder) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return fmt.Errorf("encoder is closed")
	}
	return nil
}

// Dimensions returns the vector dimension.
func (e *StaticEncoder) Dimensions() int { return StaticDimensions }

// ModelName returns the model identifier.
func (e *StaticEncoder) ModelName() string { return "static-fnv" }

// Available always reports true; the static encoder has no
// dependencies.
func (e *StaticEncoder) Available(ctx context.Context) bool { return true }

// Close marks the encoder closed.
func (e *StaticEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
