package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"knowledge-engine/internal/logger"
	"knowledge-engine/models"
	"knowledge-engine/utils"
)

// RetrievalCache keeps recent retrieval contexts in Redis, brotli
// compressed. Every cache failure is fail-open: a miss is returned and the
// pipeline recomputes.
type RetrievalCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRetrievalCache(rdb *redis.Client, ttl time.Duration) *RetrievalCache {
	return &RetrievalCache{rdb: rdb, ttl: ttl}
}

func cacheKey(query string, k int, includeExternal, rerank bool) string {
	return fmt.Sprintf("retrieval:%s:%d:%t:%t", utils.MD5Hex(query), k, includeExternal, rerank)
}

func (rc *RetrievalCache) Get(ctx context.Context, query string, k int, includeExternal, rerank bool) (*models.RetrievalContext, bool) {
	if rc == nil || rc.rdb == nil {
		return nil, false
	}

	raw, err := rc.rdb.Get(ctx, cacheKey(query, k, includeExternal, rerank)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Debug("Retrieval cache read failed", "error", err)
		}
		return nil, false
	}

	data, err := utils.DecompressBrotli(raw)
	if err != nil {
		logger.Debug("Retrieval cache decompress failed", "error", err)
		return nil, false
	}

	var rctx models.RetrievalContext
	if err := json.Unmarshal(data, &rctx); err != nil {
		logger.Debug("Retrieval cache decode failed", "error", err)
		return nil, false
	}
	return &rctx, true
}

func (rc *RetrievalCache) Set(ctx context.Context, k int, includeExternal, rerank bool, rctx *models.RetrievalContext) {
	if rc == nil || rc.rdb == nil || rctx == nil || rctx.Failed {
		return
	}

	data, err := json.Marshal(rctx)
	if err != nil {
		return
	}

	compressed, err := utils.CompressBrotli(data)
	if err != nil {
		logger.Debug("Retrieval cache compress failed", "error", err)
		return
	}

	if err := rc.rdb.Set(ctx, cacheKey(rctx.Query, k, includeExternal, rerank), compressed, rc.ttl).Err(); err != nil {
		logger.Debug("Retrieval cache write failed", "error", err)
	}
}
