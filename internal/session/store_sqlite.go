package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sessionRecord sessions表结构
type sessionRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	Payload   []byte
	ExpiresAt time.Time `gorm:"index"`
}

func (sessionRecord) TableName() string {
	return "sessions"
}

// SQLiteStore 基于本地sqlite文件的会话存储，
// 用于不部署redis的单机/开发场景。
type SQLiteStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSQLiteStore 打开（必要时建表）sqlite会话存储
func NewSQLiteStore(path string, zl *zap.Logger) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("打开sqlite失败: %w", err)
	}
	if err := db.AutoMigrate(&sessionRecord{}); err != nil {
		return nil, fmt.Errorf("迁移sessions表失败: %w", err)
	}
	return &SQLiteStore{db: db, logger: zl}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("编码会话失败: %w", err)
	}
	record := sessionRecord{
		ID:        sess.ID,
		Payload:   payload,
		ExpiresAt: time.Now().Add(ttl),
	}
	return s.db.WithContext(ctx).Save(&record).Error
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	var record sessionRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if time.Now().After(record.ExpiresAt) {
		s.db.WithContext(ctx).Delete(&sessionRecord{}, "id = ?", id)
		return nil, ErrNotFound
	}

	var sess Session
	if err := json.Unmarshal(record.Payload, &sess); err != nil {
		// 损坏的会话直接丢弃
		s.logger.Warn("丢弃损坏的会话数据", zap.String("session_id", id), zap.Error(err))
		s.db.WithContext(ctx).Delete(&sessionRecord{}, "id = ?", id)
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&sessionRecord{}, "id = ?", id).Error
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
