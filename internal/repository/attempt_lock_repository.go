package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const attemptSubmitLockPrefix = "exam:attempt:submit:"

// AttemptLockRepository 基于 Redis SETNX 的提交互斥锁，挡住同一作答的并发提交
type AttemptLockRepository struct {
	Redis *redis.Client
}

func NewAttemptLockRepository(rdb *redis.Client) *AttemptLockRepository {
	return &AttemptLockRepository{Redis: rdb}
}

// Acquire 获取成功返回 true；锁已被占用返回 false
func (r *AttemptLockRepository) Acquire(ctx context.Context, attemptID string, ttl time.Duration) (bool, error) {
	return r.Redis.SetNX(ctx, attemptSubmitLockPrefix+attemptID, time.Now().Unix(), ttl).Result()
}

func (r *AttemptLockRepository) Release(ctx context.Context, attemptID string) error {
	return r.Redis.Del(ctx, attemptSubmitLockPrefix+attemptID).Err()
}
