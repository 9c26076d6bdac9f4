package vectorstore

import (
	"fmt"
	"math"
	"sort"

	"github.com/xxxsen/siteinsight/internal/model"
	appErr "github.com/xxxsen/siteinsight/internal/pkg/errors"
)

// CosineDistance is 1 - a·b/(|a||b|). Callers guarantee equal lengths and non-zero norms.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func checkVector(v []float32, dim int) error {
	if len(v) != dim {
		return fmt.Errorf("%w: vector dimension %d, want %d", appErr.ErrInvalid, len(v), dim)
	}
	n := norm(v)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("%w: vector has no direction", appErr.ErrInvalid)
	}
	return nil
}

func checkQuery(url string, query []float32, k int, dim int) error {
	if url == "" {
		return fmt.Errorf("%w: url is required", appErr.ErrInvalid)
	}
	if k <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", appErr.ErrInvalid, k)
	}
	return checkVector(query, dim)
}

func checkChunks(url string, chunks []model.Chunk, dim int) error {
	if url == "" {
		return fmt.Errorf("%w: url is required", appErr.ErrInvalid)
	}
	seen := make(map[int]struct{}, len(chunks))
	for i, c := range chunks {
		if c.WebsiteURL != "" && c.WebsiteURL != url {
			return fmt.Errorf("%w: chunk %d belongs to %s", appErr.ErrInvalid, i, c.WebsiteURL)
		}
		if _, ok := seen[c.SequenceIndex]; ok {
			return fmt.Errorf("%w: duplicate sequence index %d", appErr.ErrInvalid, c.SequenceIndex)
		}
		seen[c.SequenceIndex] = struct{}{}
		if err := checkVector(c.Embedding, dim); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	return nil
}

func notFound(url string) error {
	return fmt.Errorf("%w: no chunks for %s", appErr.ErrNotFound, url)
}

// rank orders by distance then sequence index and keeps at most k.
func rank(items []model.ScoredChunk, k int) []model.ScoredChunk {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Distance != items[j].Distance {
			return items[i].Distance < items[j].Distance
		}
		return items[i].SequenceIndex < items[j].SequenceIndex
	})
	if k < len(items) {
		items = items[:k]
	}
	return items
}
