package encode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/clipgrep/clipgrep/internal/imaging"
)

// DefaultQueryCacheSize is the default number of query encodings kept
// in memory. At 512 dimensions * 4 bytes that is ~0.5MB.
const DefaultQueryCacheSize = 256

// CachedEncoder wraps an Encoder with LRU caching for query
// encodings. Repeated searches with the same terms skip the service
// round-trip. Image batches are never cached; the sweep already
// avoids re-encoding unchanged files.
type CachedEncoder struct {
	inner Encoder
	cache *lru.Cache[string, []float32]
}

// Verify interface implementation at compile time
var _ Encoder = (*CachedEncoder)(nil)

// NewCachedEncoder creates a cached encoder wrapping inner.
func NewCachedEncoder(inner Encoder, cacheSize int) *CachedEncoder {
	if cacheSize <= 0 {
		cacheSize = DefaultQueryCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEncoder{inner: inner, cache: cache}
}

// cacheKey builds a stable key from the query and model name.
func (c *CachedEncoder) cacheKey(q Query) string {
	combined := string(q) + "\x00" + c.inner.ModelName()
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// EncodeImages passes through to the inner encoder.
func (c *CachedEncoder) EncodeImages(ctx context.Context, images []*imaging.Image) ([][]float32, error) {
	return c.inner.EncodeImages(ctx, images)
}

// EncodeQueries returns cached encodings where available and encodes
// the rest in one inner call.
func (c *CachedEncoder) EncodeQueries(ctx context.Context, queries []Query) ([][]float32, error) {
	if len(queries) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(queries))
	var missed []Query
	var missedIdx []int

	for i, q := range queries {
		// File-path queries are not cached: the file content may have
		// changed under the same path.
		if _, isFile := q.FilePath(); isFile {
			missed = append(missed, q)
			missedIdx = append(missedIdx, i)
			continue
		}
		if vec, ok := c.cache.Get(c.cacheKey(q)); ok {
			results[i] = vec
			continue
		}
		missed = append(missed, q)
		missedIdx = append(missedIdx, i)
	}

	if len(missed) == 0 {
		return results, nil
	}

	encoded, err := c.inner.EncodeQueries(ctx, missed)
	if err != nil {
		return nil, err
	}

	for j, i := range missedIdx {
		results[i] = encoded[j]
		if _, isFile := missed[j].FilePath(); !isFile {
			c.cache.Add(c.cacheKey(missed[j]), encoded[j])
		}
	}
	return results, nil
}

// Dimensions returns the vector dimension (passthrough).
func (c *CachedEncoder) Dimensions() int { return c.inner.Dimensions() }

// ModelName returns the model identifier (passthrough).
func (c *CachedEncoder) ModelName() string { return c.inner.ModelName() }

// Available checks the inner encoder.
func (c *CachedEncoder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

// Close closes the inner encoder.
func (c *CachedEncoder) Close() error { return c.inner.Close() }
