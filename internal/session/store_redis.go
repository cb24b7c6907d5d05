package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// keyPrefix 会话在redis里的固定命名空间
const keyPrefix = "autoflex:session:"

// RedisStore 基于redis的会话存储，TTL即会话有效期
type RedisStore struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisStore 创建redis会话存储
func NewRedisStore(rdb *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, logger: logger}
}

func (s *RedisStore) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("编码会话失败: %w", err)
	}
	return s.rdb.Set(ctx, keyPrefix+sess.ID, payload, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	payload, err := s.rdb.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		// 损坏的会话直接丢弃
		s.logger.Warn("丢弃损坏的会话数据", zap.String("session_id", id), zap.Error(err))
		s.rdb.Del(ctx, keyPrefix+id)
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, keyPrefix+id).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
