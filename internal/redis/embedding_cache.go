package redis

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/semantic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const DefaultCacheTTL = 7 * 24 * time.Hour

// KV is the subset of the go-redis client used by the cache.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// EmbeddingCache memoises an embedder in Redis. Cache failures never fail an
// Embed call; they are logged and the wrapped embedder is used.
type EmbeddingCache struct {
	kv     KV
	next   semantic.Embedder
	model  string
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewEmbeddingCache(kv KV, next semantic.Embedder, model string, ttl time.Duration, logger *zerolog.Logger) *EmbeddingCache {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &EmbeddingCache{kv: kv, next: next, model: model, ttl: ttl, logger: logger}
}

func (c *EmbeddingCache) Dimension() int {
	return c.next.Dimension()
}

func (c *EmbeddingCache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	raw, err := c.kv.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		vec, decodeErr := decodeVector(raw)
		if decodeErr == nil {
			return vec, nil
		}
		c.logger.Warn().Err(decodeErr).Str("key", key).Msg("Discarding corrupt cached embedding")
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn().Err(err).Msg("Embedding cache read failed")
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.kv.Set(ctx, key, encodeVector(vec), c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Embedding cache write failed")
	}
	return vec, nil
}

func (c *EmbeddingCache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("gitsensei:emb:%s:%d:%s", c.model, c.next.Dimension(), hex.EncodeToString(sum[:]))
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(raw []byte) ([]float32, error) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, fmt.Errorf("invalid cached vector length %d", len(raw))
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return vec, nil
}
