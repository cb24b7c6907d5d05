package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/autoflex/console/internal/middleware"
	"github.com/autoflex/console/internal/sse"
)

// SSEHandler SSE连接处理器
type SSEHandler struct {
	deps *Deps
}

// NewSSEHandler 创建SSE处理器
func NewSSEHandler(deps *Deps) *SSEHandler {
	return &SSEHandler{deps: deps}
}

// Stream GET /api/events
// 页面控制器的每次状态变化都会以page_state事件推到这里
func (h *SSEHandler) Stream(c *gin.Context) {
	s := middleware.SessionFromContext(c)
	clientID := fmt.Sprintf("%s_%d", s.ID, time.Now().UnixNano())

	client := &sse.Client{
		ID:        clientID,
		SessionID: s.ID,
		Events:    make(chan sse.Event, 64),
	}

	h.deps.Hub.Register(client)
	middleware.SSEConnections.Inc()
	defer middleware.SSEConnections.Dec()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteString("event: connected\ndata: {\"client_id\":\"" + clientID + "\"}\n\n")
	c.Writer.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	clientGone := c.Request.Context().Done()

	for {
		select {
		case <-clientGone:
			h.deps.Hub.Unregister(clientID)
			return
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			c.Writer.WriteString(fmt.Sprintf("event: %s\ndata: %s\n\n", event.EventType, event.Data))
			c.Writer.Flush()
		case <-heartbeat.C:
			c.Writer.WriteString(": keepalive\n\n")
			c.Writer.Flush()
		}
	}
}
