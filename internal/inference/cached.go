package inference

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/ppiankov/claimsynth/internal/cache"
)

// CachedEmbedder serves repeated texts from a cache and only sends misses
// to the wrapped embedder. Keys include the model name so switching models
// never returns stale vectors.
type CachedEmbedder struct {
	next  Embedder
	cache cache.Cache
	model string
	ttl   time.Duration
}

// NewCachedEmbedder wraps next with c. A nil cache returns next unchanged.
func NewCachedEmbedder(next Embedder, c cache.Cache, model string, ttl time.Duration) Embedder {
	if c == nil {
		return next
	}
	return &CachedEmbedder{next: next, cache: c, model: model, ttl: ttl}
}

// Embed implements Embedder
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	// Unique misses, each mapped to every position that needs it
	var misses []string
	positions := map[string][]int{}
	for i, t := range texts {
		if v, ok := e.lookup(t); ok {
			out[i] = v
			continue
		}
		if _, seen := positions[t]; !seen {
			misses = append(misses, t)
		}
		positions[t] = append(positions[t], i)
	}

	if len(misses) == 0 {
		return out, nil
	}

	vecs, err := e.next.Embed(ctx, misses)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(misses) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrBadResponse, len(vecs), len(misses))
	}

	for i, t := range misses {
		_ = e.cache.Set(e.key(t), encodeVector(vecs[i]), e.ttl)
		for _, pos := range positions[t] {
			out[pos] = vecs[i]
		}
	}
	return out, nil
}

func (e *CachedEmbedder) key(text string) string {
	return cache.Key("embed", e.model, text)
}

func (e *CachedEmbedder) lookup(text string) ([]float32, bool) {
	data, ok := e.cache.Get(e.key(text))
	if !ok {
		return nil, false
	}
	v, err := decodeVector(data)
	if err != nil {
		_ = e.cache.Delete(e.key(text))
		return nil, false
	}
	return v, true
}

// encodeVector stores a vector as little-endian float32 bits
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector of %d bytes", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return v, nil
}
