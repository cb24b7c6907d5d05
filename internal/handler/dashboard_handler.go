package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/autoflex/console/internal/dashboard"
	"github.com/autoflex/console/internal/middleware"
)

// DashboardHandler 看板处理器
type DashboardHandler struct {
	deps *Deps
}

// NewDashboardHandler 创建看板处理器
func NewDashboardHandler(deps *Deps) *DashboardHandler {
	return &DashboardHandler{deps: deps}
}

// Overview GET /api/dashboard
// 拉一次产能报表，指标在内存里归并，不落任何状态
func (h *DashboardHandler) Overview(c *gin.Context) {
	s := middleware.SessionFromContext(c)

	items, err := h.deps.API.ListCapacity(c.Request.Context(), s.Token)
	if err != nil {
		h.deps.upstreamError(c, err)
		return
	}

	Success(c, gin.H{
		"metrics": dashboard.Compute(items),
		"items":   items,
	})
}
