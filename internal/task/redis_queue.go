package task

import (
	"context"
	"errors"
	"log/slog"
	"time"

	xerrors "AgentSwap/internal/errors"
	"AgentSwap/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisQueueConfig 描述 Redis 队列参数，连接由调用方提供。
type RedisQueueConfig struct {
	Key       string
	BlockWait time.Duration
}

// RedisQueue 使用 Redis list 实现任务队列，LPUSH 投递、BRPOP 消费。
type RedisQueue struct {
	client *redis.Client
	key    string
	wait   time.Duration
}

// NewRedisQueue 创建 Redis 队列实例。
func NewRedisQueue(client *redis.Client, cfg RedisQueueConfig) (*RedisQueue, error) {
	if client == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "Redis 客户端未初始化")
	}
	key := cfg.Key
	if key == "" {
		key = "agentswap:messages"
	}
	wait := cfg.BlockWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisQueue{client: client, key: key, wait: wait}, nil
}

// Publish 将任务投递到 Redis。
func (q *RedisQueue) Publish(ctx context.Context, taskID string) error {
	if err := q.client.LPush(ctx, q.key, taskID).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeQueueFailure, err, "Redis 发布任务失败")
	}
	return nil
}

// Consume 通过 BRPOP 从 Redis 获取任务，处理出错的任务会被放回队尾。
func (q *RedisQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	errCh := make(chan error, workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			for {
				if ctx.Err() != nil {
					errCh <- ctx.Err()
					return
				}
				values, err := q.client.BRPop(ctx, q.wait, q.key).Result()
				if err != nil {
					if errors.Is(err, redis.Nil) {
						continue
					}
					if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
						errCh <- err
						return
					}
					errCh <- xerrors.Wrap(xerrors.CodeQueueFailure, err, "Redis 取任务失败")
					return
				}
				if len(values) != 2 {
					continue
				}
				taskID := values[1]
				if handlerErr := handler(ctx, taskID); handlerErr != nil {
					logger.L().Warn("任务处理失败，重新入队",
						slog.String("task_id", taskID),
						slog.String("error", handlerErr.Error()))
					_ = q.client.RPush(ctx, q.key, taskID).Err()
				}
			}
		}()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Close 关闭 Redis 连接。
func (q *RedisQueue) Close() error {
	if q == nil || q.client == nil {
		return nil
	}
	return q.client.Close()
}
