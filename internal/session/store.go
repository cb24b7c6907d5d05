package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound 会话不存在（或已过期、或存储内容损坏被丢弃）
var ErrNotFound = errors.New("session: not found")

// Store 会话持久化存储。
// 两种实现：redis（默认）和sqlite，均以固定命名空间为键、
// JSON为存储格式；损坏的存储内容在读取时被丢弃并按不存在处理。
type Store interface {
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
