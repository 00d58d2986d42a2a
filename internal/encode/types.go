// Package encode talks to the CLIP encoder: it maps images and
// queries to fixed-length feature vectors and computes similarity
// rankings for the searcher.
package encode

import (
	"context"
	"math"
	"os"
	"path/filepath"

	"github.com/clipgrep/clipgrep/internal/imaging"
)

// Query is a search term: free text, or a path to an example image.
type Query string

// FilePath reports whether the query names an existing regular file,
// returning its absolute path if so.
func (q Query) FilePath() (string, bool) {
	abs, err := filepath.Abs(string(q))
	if err != nil {
		return "", false
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return "", false
	}
	return abs, true
}

// Encoder maps images and queries to feature vectors of a fixed
// dimension.
type Encoder interface {
	// EncodeImages encodes a batch of images, returning one vector per
	// input in the same order. The call fails as a unit; no partial
	// results are returned.
	EncodeImages(ctx context.Context, images []*imaging.Image) ([][]float32, error)

	// EncodeQueries encodes search terms. Text terms are encoded as
	// text; file-path terms are read and encoded as images.
	EncodeQueries(ctx context.Context, queries []Query) ([][]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the encoder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
