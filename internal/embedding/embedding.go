// Package embedding turns event serializations into fixed-length vectors.
// The model is opaque to the rest of the system: anything satisfying Embedder
// can back the history store, as long as the scheme string stays stable.
package embedding

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder computes a fixed-length vector for a piece of text.
// Implementations must be deterministic for a fixed scheme.
type Embedder interface {
	Embed(text string) ([]float32, error)
	// Scheme identifies the embedding function and version. Vectors produced
	// under different schemes are not comparable.
	Scheme() string
}

// SchemeHashingV1 identifies the built-in feature-hashing embedder.
const SchemeHashingV1 = "feature-hash/v1"

// DefaultDim is the dimensionality of the built-in embedder.
const DefaultDim = 256

// HashingEmbedder is a deterministic token-hashing embedder. Unigrams and
// adjacent bigrams of the input are hashed into a fixed number of buckets
// with signed counts, then L2-normalized. It is not a learned model, but it
// is stable, cheap, and good enough to separate "looks like the user's
// history" from "looks nothing like it".
type HashingEmbedder struct {
	dim int
}

// NewHashingEmbedder returns a HashingEmbedder with the given dimensionality.
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = DefaultDim
	}
	return &HashingEmbedder{dim: dim}
}

// Scheme implements Embedder.
func (h *HashingEmbedder) Scheme() string {
	return SchemeHashingV1
}

// Embed implements Embedder.
func (h *HashingEmbedder) Embed(text string) ([]float32, error) {
	vec := make([]float32, h.dim)
	tokens := tokenize(text)

	for i, tok := range tokens {
		h.bump(vec, tok)
		if i+1 < len(tokens) {
			h.bump(vec, tok+" "+tokens[i+1])
		}
	}

	normalize(vec)
	return vec, nil
}

// bump hashes a feature into its bucket with a hash-derived sign.
func (h *HashingEmbedder) bump(vec []float32, feature string) {
	hash := fnv.New64a()
	hash.Write([]byte(feature))
	sum := hash.Sum64()

	idx := int(sum % uint64(h.dim))
	if sum&(1<<63) != 0 {
		vec[idx]--
	} else {
		vec[idx]++
	}
}

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// normalize scales the vector to unit length in place.
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

// CosineDistance returns 1 - cosine similarity of two vectors. Vectors of
// different lengths or zero norm are maximally distant.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp rounding noise so identical vectors report exactly zero distance.
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return 1 - sim
}
