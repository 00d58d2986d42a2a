package encode

import (
	"context"
	"fmt"
	"sort"

	"github.com/viant/vec/search"

	clierrors "github.com/clipgrep/clipgrep/internal/errors"
)

// Similarity is one ranked candidate: its index into the input vector
// slice and its similarity score against the combined query.
type Similarity struct {
	Score float32
	Index int
}

// Rank scores every candidate vector against a single combined query
// representation built from the positive and negative terms, and
// returns all candidate indices sorted by descending score. Every
// input index appears exactly once.
//
// The combined query is mean(positive) - mean(negative); scores are
// cosine similarities against it.
func Rank(ctx context.Context, enc Encoder, candidates [][]float32, positive, negative []Query) ([]Similarity, error) {
	if len(positive) == 0 {
		return nil, fmt.Errorf("at least one positive query is required")
	}

	posVecs, err := enc.EncodeQueries(ctx, positive)
	if err != nil {
		return nil, clierrors.Wrap(clierrors.ErrCodeEncodeQuery, err)
	}
	var negVecs [][]float32
	if len(negative) > 0 {
		negVecs, err = enc.EncodeQueries(ctx, negative)
		if err != nil {
			return nil, clierrors.Wrap(clierrors.ErrCodeEncodeQuery, err)
		}
	}

	combined := meanVector(posVecs)
	if neg := meanVector(negVecs); neg != nil {
		for i := range combined {
			combined[i] -= neg[i]
		}
	}

	query := search.Float32s(combined)
	queryMag := query.Magnitude()

	ranked := make([]Similarity, len(candidates))
	for i, cand := range candidates {
		var score float32
		// Zero-magnitude vectors have no direction; they score zero
		// rather than dividing by zero inside the distance kernel.
		if queryMag != 0 && search.Float32s(cand).Magnitude() != 0 {
			// CosineDistance = 1 - cosine similarity.
			score = 1 - query.CosineDistance(cand)
		}
		ranked[i] = Similarity{Score: score, Index: i}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}

// meanVector averages a set of equal-length vectors. Returns nil for
// an empty set.
func meanVector(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	mean := make([]float32, len(vecs[0]))
	for _, v := range vecs {
		for i, val := range v {
			mean[i] += val
		}
	}
	n := float32(len(vecs))
	for i := range mean {
		mean[i] /= n
	}
	return mean
}
