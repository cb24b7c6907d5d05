// Package session 管理控制台会话：登录换取上游token、持久化会话、
// 签发网关自己的会话凭证。会话是整个网关里唯一的跨页面共享状态，
// 只会被显式登录/登出和401失效两条路径修改。
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/autoflex/console/internal/autoflex"
)

// Session 一次已认证的控制台会话
type Session struct {
	ID        string        `json:"id"`
	Token     string        `json:"token"` // 上游API的bearer token
	User      autoflex.User `json:"user"`
	CreatedAt time.Time     `json:"created_at"`
}

// Manager 会话生命周期管理
type Manager struct {
	api    *autoflex.Client
	store  Store
	secret []byte
	ttl    time.Duration
	logger *zap.Logger
}

// NewManager 创建会话管理器
func NewManager(api *autoflex.Client, store Store, secret string, ttl time.Duration, logger *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		api:    api,
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger,
	}
}

// sessionClaims 网关会话凭证的JWT claims
type sessionClaims struct {
	jwt.RegisteredClaims
}

// Login 上游登录成功后建立会话，返回会话和网关凭证。
// 凭证失败（401等）原样上抛，由调用方转成用户可见错误。
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, string, error) {
	result, err := m.api.Login(ctx, email, password)
	if err != nil {
		return nil, "", err
	}

	s := &Session{
		ID:        uuid.New().String(),
		Token:     result.Token,
		User:      result.User,
		CreatedAt: time.Now(),
	}
	if err := m.store.Save(ctx, s, m.ttl); err != nil {
		return nil, "", fmt.Errorf("保存会话失败: %w", err)
	}

	cookieToken, err := m.mint(s.ID)
	if err != nil {
		return nil, "", fmt.Errorf("签发会话凭证失败: %w", err)
	}

	m.logger.Info("用户登录",
		zap.String("session_id", s.ID),
		zap.String("email", s.User.Email),
		zap.String("role", string(s.User.Role)),
	)
	return s, cookieToken, nil
}

// Resolve 根据网关凭证恢复会话。
// 凭证无效、会话不存在或存储损坏都按未登录处理（返回ErrNotFound）。
func (m *Manager) Resolve(ctx context.Context, cookieToken string) (*Session, error) {
	if cookieToken == "" {
		return nil, ErrNotFound
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(cookieToken, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrNotFound
	}

	s, err := m.store.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("读取会话失败: %w", err)
	}
	return s, nil
}

// Logout 无条件清除会话
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	if err := m.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("删除会话失败: %w", err)
	}
	m.logger.Info("用户登出", zap.String("session_id", sessionID))
	return nil
}

// Invalidate 上游返回401时调用：整个会话作废，前端回到登录页。
// 403不走这里，会话保留。
func (m *Manager) Invalidate(ctx context.Context, sessionID string) {
	if err := m.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrNotFound) {
		m.logger.Warn("作废会话失败", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	m.logger.Info("会话已作废（上游401）", zap.String("session_id", sessionID))
}

// TTL 会话有效期
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// mint 签发以会话ID为subject的HS256凭证
func (m *Manager) mint(sessionID string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Issuer:    "autoflex-console",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}
