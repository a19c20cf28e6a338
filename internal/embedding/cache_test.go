package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder derives a deterministic vector from the input text.
type stubEmbedder struct {
	calls atomic.Int32
	err   error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, 8)
	for i := range vec {
		bits := binary.BigEndian.Uint32(sum[i*4 : i*4+4])
		vec[i] = float32(bits%1000) / 1000
	}
	return vec, nil
}

func (s *stubEmbedder) Dimensions() int { return 8 }

func TestCacheEmbedPaperCachesByCanonicalID(t *testing.T) {
	stub := &stubEmbedder{}
	cache := NewCache(stub, nil)
	ctx := context.Background()

	first, err := cache.EmbedPaper(ctx, "arxiv:2401.00001", "satellite networks")
	require.NoError(t, err)

	second, err := cache.EmbedPaper(ctx, "arxiv:2401.00001", "satellite networks")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), stub.calls.Load(), "second call must hit the cache")
	assert.Equal(t, 1, cache.Len())
}

func TestCacheInvalidatesOnContentChange(t *testing.T) {
	stub := &stubEmbedder{}
	cache := NewCache(stub, nil)
	ctx := context.Background()

	_, err := cache.EmbedPaper(ctx, "arxiv:2401.00001", "original abstract")
	require.NoError(t, err)

	_, err = cache.EmbedPaper(ctx, "arxiv:2401.00001", "revised abstract")
	require.NoError(t, err)

	assert.Equal(t, int32(2), stub.calls.Load(), "changed text must recompute")
	assert.Equal(t, 1, cache.Len())
}

func TestCacheEmbedDoesNotCache(t *testing.T) {
	stub := &stubEmbedder{}
	cache := NewCache(stub, nil)
	ctx := context.Background()

	_, err := cache.Embed(ctx, "a query")
	require.NoError(t, err)
	_, err = cache.Embed(ctx, "a query")
	require.NoError(t, err)

	assert.Equal(t, int32(2), stub.calls.Load())
	assert.Equal(t, 0, cache.Len())
}

func TestCacheEmbedderErrorNotCached(t *testing.T) {
	stub := &stubEmbedder{err: fmt.Errorf("boom")}
	cache := NewCache(stub, nil)

	_, err := cache.EmbedPaper(context.Background(), "arxiv:1", "text")
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestCacheConcurrentAccess(t *testing.T) {
	stub := &stubEmbedder{}
	cache := NewCache(stub, nil)
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			// Half the workers race on the same key, half use distinct keys.
			id := "shared"
			text := "shared text"
			if i%2 == 0 {
				id = fmt.Sprintf("paper:%d", i)
				text = fmt.Sprintf("text %d", i)
			}
			_, err := cache.EmbedPaper(ctx, id, text)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// The shared key resolves to one entry regardless of the race.
	vec, err := cache.EmbedPaper(ctx, "shared", "shared text")
	require.NoError(t, err)
	expected, _ := stub.Embed(ctx, "shared text")
	assert.Equal(t, expected, vec)
}

func TestEmbeddingDeterminism(t *testing.T) {
	stub := &stubEmbedder{}
	a, err := stub.Embed(context.Background(), "identical text")
	require.NoError(t, err)
	b, err := stub.Embed(context.Background(), "identical text")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
