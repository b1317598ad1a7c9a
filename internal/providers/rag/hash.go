package rag

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashProvider is an offline embedding provider based on feature hashing of
// lowercased words. Texts that share words get a positive cosine similarity,
// which is enough for local development and tests.
type HashProvider struct {
	dims int
}

func NewHashProvider(dims int) *HashProvider {
	if dims <= 0 {
		dims = 384
	}
	return &HashProvider{dims: dims}
}

func (p *HashProvider) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.embed(t)
	}
	return out, nil
}

func (p *HashProvider) embed(text string) []float32 {
	vec := make([]float32, p.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		sum := h.Sum32()
		sign := float32(1)
		if sum&0x80000000 != 0 {
			sign = -1
		}
		vec[int(sum%uint32(p.dims))] += sign
	}

	if len(words) == 0 {
		h := fnv.New32a()
		h.Write([]byte(text))
		vec[int(h.Sum32()%uint32(p.dims))] = 1
	}

	Normalize(vec)
	return vec
}
