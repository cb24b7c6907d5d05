// Package sse 向浏览器推送页面状态快照。
// 结构沿用连接注册表+带缓冲channel：缓冲满的连接跳过该事件，
// 浏览器下次主动取快照即可补齐。
package sse

import (
	"sync"

	"go.uber.org/zap"
)

// Event 一条SSE事件
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client 一条已建立的SSE连接
type Client struct {
	ID        string
	SessionID string
	Events    chan Event
}

// Hub 管理所有SSE连接
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

// NewHub 创建Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register 注册连接
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("SSE连接注册",
		zap.String("client_id", client.ID),
		zap.String("session_id", client.SessionID),
		zap.Int("total", len(h.clients)),
	)
}

// Unregister 注销连接并关闭其事件channel
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("SSE连接注销",
			zap.String("client_id", clientID),
			zap.Int("total", len(h.clients)),
		)
	}
}

// SendToSession 向某个会话的所有连接发送事件
func (h *Hub) SendToSession(sessionID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.SessionID != sessionID {
			continue
		}
		select {
		case client.Events <- event:
		default:
			h.logger.Debug("SSE缓冲已满，跳过事件", zap.String("client_id", client.ID))
		}
	}
}

// ConnectionCount 当前连接数（指标用）
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
