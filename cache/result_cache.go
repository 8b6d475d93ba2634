package cache

import (
	"context"
	"errors"
	"time"

	"bopus/logger"
	"bopus/model"

	"github.com/bytedance/sonic"
	"github.com/go-redis/redis/v8"
)

// KeyPattern 匹配所有切分结果缓存
const KeyPattern = "bopus:split:*"

// kv 结果缓存用到的 Redis 命令子集，便于测试替换
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Keys(ctx context.Context, pattern string) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// ResultCache 把切分结果以 JSON 存入 Redis
type ResultCache struct {
	client     kv
	ttl        time.Duration
	maxRetries int
	retryDelay time.Duration
}

// NewResultCache 创建结果缓存
func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	return newResultCache(client, ttl)
}

func newResultCache(client kv, ttl time.Duration) *ResultCache {
	return &ResultCache{
		client:     client,
		ttl:        ttl,
		maxRetries: 2,
		retryDelay: 100 * time.Millisecond,
	}
}

// Get 获取缓存，未命中返回 nil, nil
func (c *ResultCache) Get(ctx context.Context, key string) (*model.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	retryDelay := c.retryDelay
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		data, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			var run model.Run
			if err := sonic.Unmarshal(data, &run); err != nil {
				// 格式损坏的缓存当作未命中
				logger.Warn("切分缓存格式错误", logger.String("key", key), logger.ErrorField(err))
				return nil, nil
			}
			logger.Debug("切分缓存获取成功", logger.String("key", key), logger.Int("attempt", attempt+1))
			return &run, nil
		}
		if errors.Is(err, redis.Nil) {
			logger.Debug("切分缓存不存在", logger.String("key", key))
			return nil, nil
		}

		lastErr = err
		if attempt < c.maxRetries-1 {
			logger.Warn("获取切分缓存失败，准备重试",
				logger.String("key", key),
				logger.Int("attempt", attempt+1),
				logger.ErrorField(err))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2 // 指数退避
		}
	}
	return nil, lastErr
}

// Set 写入缓存
func (c *ResultCache) Set(ctx context.Context, key string, run *model.Run) error {
	data, err := sonic.Marshal(run)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return err
	}
	logger.Debug("切分缓存设置成功",
		logger.String("key", key),
		logger.Int("dataSize", len(data)),
		logger.Duration("expiration", c.ttl))
	return nil
}

// Purge 批量删除匹配模式的缓存，返回删除数量
func (c *ResultCache) Purge(ctx context.Context, pattern string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	keys, err := c.client.Keys(ctx, pattern).Result()
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	return c.client.Del(ctx, keys...).Result()
}
