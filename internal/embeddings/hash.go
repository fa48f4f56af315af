package embeddings

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// HashProvider embeds text by signed feature hashing of its lowercased
// words into a fixed number of buckets. Texts sharing most words land close
// together; unrelated texts are near-orthogonal. It needs no model, network
// or cgo.
type HashProvider struct {
	dimension int
}

// NewHashProvider returns a HashProvider producing vectors of dimension dim.
func NewHashProvider(dim int) (*HashProvider, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: hash dimension must be positive, got %d", ErrInvalidConfig, dim)
	}
	return &HashProvider{dimension: dim}, nil
}

// EmbedDocuments implements vectorstore.Embedder.
func (p *HashProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := p.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// EmbedQuery implements vectorstore.Embedder.
func (p *HashProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		// Punctuation-only input still needs a non-zero vector.
		tokens = []string{strings.TrimSpace(text)}
	}

	vec := make([]float32, p.dimension)
	for _, tok := range tokens {
		h := xxhash.Sum64String(tok)
		sign := float32(1)
		if h>>63 == 1 {
			sign = -1
		}
		vec[h%uint64(p.dimension)] += sign
	}

	var sumSq float64
	for _, x := range vec {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		// Every token cancelled out; fall back to the first token's bucket.
		vec[xxhash.Sum64String(tokens[0])%uint64(p.dimension)] = 1
		sumSq = 1
	}
	norm := float32(1 / math.Sqrt(sumSq))
	for i := range vec {
		vec[i] *= norm
	}
	return vec, nil
}

// Dimension implements Provider.
func (p *HashProvider) Dimension() int {
	return p.dimension
}

// Close implements Provider.
func (p *HashProvider) Close() error {
	return nil
}
