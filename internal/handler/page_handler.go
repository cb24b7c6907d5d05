package handler

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/autoflex/console/internal/autoflex"
	"github.com/autoflex/console/internal/listview"
	"github.com/autoflex/console/internal/middleware"
	"github.com/autoflex/console/internal/permissions"
	"github.com/autoflex/console/internal/session"
	"github.com/autoflex/console/internal/sse"
)

// 页面名称
const (
	PageProducts     = "products"
	PageRawMaterials = "raw-materials"
	PageProduction   = "production"
)

// 各页面允许的过滤字段
var pageFilterFields = map[string]map[string]bool{
	PageProducts:     {"name": true, "code": true},
	PageRawMaterials: {"name": true, "code": true},
	PageProduction:   {"search": true},
}

// PageHandler 列表页处理器：把HTTP输入事件转发给会话的页面控制器
type PageHandler struct {
	deps *Deps
}

// NewPageHandler 创建列表页处理器
func NewPageHandler(deps *Deps) *PageHandler {
	return &PageHandler{deps: deps}
}

// page 取（必要时创建并首次加载）当前会话的页面控制器
func (h *PageHandler) page(c *gin.Context) (listview.Page, *session.Session, bool) {
	name := c.Param("page")
	if _, ok := pageFilterFields[name]; !ok {
		NotFound(c, "Unknown page: "+name)
		return nil, nil, false
	}

	s := middleware.SessionFromContext(c)
	p, created := h.deps.Registry.Get(s.ID, name, func() listview.Page {
		return h.build(s, name)
	})
	if created {
		// 页面挂载即加载
		p.Reload()
	}
	return p, s, true
}

// Snapshot GET /api/pages/:page
func (h *PageHandler) Snapshot(c *gin.Context) {
	p, _, ok := h.page(c)
	if !ok {
		return
	}
	Success(c, p.SnapshotData())
}

// FilterRequest 过滤输入
type FilterRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// Filter POST /api/pages/:page/filter
// 每次键入调用一次，控制器去抖后合并为一次加载
func (h *PageHandler) Filter(c *gin.Context) {
	var req FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	p, _, ok := h.page(c)
	if !ok {
		return
	}
	if !pageFilterFields[c.Param("page")][req.Field] {
		BadRequest(c, "Unsupported filter field: "+req.Field)
		return
	}

	p.SetFilter(req.Field, req.Value)
	Success(c, p.SnapshotData())
}

// SortRequest 排序切换
type SortRequest struct {
	Field string `json:"field" binding:"required"`
}

// Sort POST /api/pages/:page/sort
func (h *PageHandler) Sort(c *gin.Context) {
	var req SortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	p, _, ok := h.page(c)
	if !ok {
		return
	}
	if !p.ToggleSort(req.Field) {
		BadRequest(c, "Unsupported sort field: "+req.Field)
		return
	}
	Success(c, p.SnapshotData())
}

// Reload POST /api/pages/:page/reload
func (h *PageHandler) Reload(c *gin.Context) {
	p, _, ok := h.page(c)
	if !ok {
		return
	}
	p.Reload()
	Success(c, p.SnapshotData())
}

// ExpandRequest 展开行
type ExpandRequest struct {
	ID int64 `json:"id" binding:"required"`
}

// Expand POST /api/pages/:page/expand（仅产能页）
func (h *PageHandler) Expand(c *gin.Context) {
	var req ExpandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	p, _, ok := h.page(c)
	if !ok {
		return
	}
	if !p.ToggleExpand(req.ID) {
		BadRequest(c, "Page does not support row expansion")
		return
	}
	Success(c, p.SnapshotData())
}

// DeleteRequest 删除目标
type DeleteRequest struct {
	ID int64 `json:"id" binding:"required"`
}

// OpenDelete POST /api/pages/:page/delete/open
// 删除永远两步：先打开确认对话框
func (h *PageHandler) OpenDelete(c *gin.Context) {
	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	p, _, ok := h.page(c)
	if !ok {
		return
	}
	if !p.OpenDelete(req.ID) {
		BadRequest(c, "Page is read-only")
		return
	}
	Success(c, p.SnapshotData())
}

// CancelDelete POST /api/pages/:page/delete/cancel
// 取消不产生任何变更请求
func (h *PageHandler) CancelDelete(c *gin.Context) {
	p, _, ok := h.page(c)
	if !ok {
		return
	}
	p.CancelDelete()
	Success(c, p.SnapshotData())
}

// ConfirmDelete POST /api/pages/:page/delete/confirm
// 确认后调上游删除，成功则列表重新加载
func (h *PageHandler) ConfirmDelete(c *gin.Context) {
	p, _, ok := h.page(c)
	if !ok {
		return
	}
	if err := p.ConfirmDelete(c.Request.Context()); err != nil {
		h.deps.upstreamError(c, err)
		return
	}
	Success(c, p.SnapshotData())
}

// build 为会话构造页面控制器
func (h *PageHandler) build(s *session.Session, name string) listview.Page {
	deps := h.deps
	canManage := permissions.CanManage(&s.User)

	// 后台加载撞上401时整个会话失效，和请求路径上的行为一致
	onUnauthorized := func() {
		deps.Sessions.Invalidate(context.Background(), s.ID)
		deps.Registry.DropSession(s.ID)
	}

	switch name {
	case PageProducts:
		return listview.New(listview.Config[autoflex.Product]{
			Page:        PageProducts,
			Debounce:    deps.Cfg.UI.Debounce,
			CanManage:   canManage,
			DefaultSort: listview.Sort{Field: "code", Direction: listview.Asc},
			Fields: map[string]listview.FieldSpec[autoflex.Product]{
				"code":  {String: func(p autoflex.Product) string { return p.Code }},
				"name":  {String: func(p autoflex.Product) string { return p.Name }},
				"price": {Numeric: true, Number: func(p autoflex.Product) float64 { return p.Price }},
			},
			ID: func(p autoflex.Product) int64 { return p.ID },
			Load: func(ctx context.Context, filters map[string]string) ([]autoflex.Product, error) {
				return deps.API.ListProducts(ctx, s.Token, autoflex.ProductFilter{
					Name: filters["name"],
					Code: filters["code"],
				})
			},
			Remove: func(ctx context.Context, id int64) error {
				return deps.API.DeleteProduct(ctx, s.Token, id)
			},
			OnChange:       publisher[autoflex.Product](deps, s.ID),
			OnUnauthorized: onUnauthorized,
			Logger:         deps.Logger,
		})

	case PageRawMaterials:
		return listview.New(listview.Config[autoflex.RawMaterial]{
			Page:        PageRawMaterials,
			Debounce:    deps.Cfg.UI.Debounce,
			CanManage:   canManage,
			DefaultSort: listview.Sort{Field: "code", Direction: listview.Asc},
			Fields: map[string]listview.FieldSpec[autoflex.RawMaterial]{
				"code": {String: func(m autoflex.RawMaterial) string { return m.Code }},
				"name": {String: func(m autoflex.RawMaterial) string { return m.Name }},
				"unit": {String: func(m autoflex.RawMaterial) string { return string(m.Unit) }},
				"stockQuantity": {
					Numeric: true,
					Number:  func(m autoflex.RawMaterial) float64 { return m.StockQuantity },
				},
			},
			ID: func(m autoflex.RawMaterial) int64 { return m.ID },
			Load: func(ctx context.Context, filters map[string]string) ([]autoflex.RawMaterial, error) {
				return deps.API.ListRawMaterials(ctx, s.Token, autoflex.RawMaterialFilter{
					Name: filters["name"],
					Code: filters["code"],
				})
			},
			Remove: func(ctx context.Context, id int64) error {
				return deps.API.DeleteRawMaterial(ctx, s.Token, id)
			},
			OnChange:       publisher[autoflex.RawMaterial](deps, s.ID),
			OnUnauthorized: onUnauthorized,
			Logger:         deps.Logger,
		})

	default: // PageProduction
		return listview.New(listview.Config[autoflex.CapacityItem]{
			Page:      PageProduction,
			Debounce:  deps.Cfg.UI.Debounce,
			CanManage: canManage,
			// 产能页默认按总价值降序
			DefaultSort: listview.Sort{Field: "totalValue", Direction: listview.Desc},
			Fields: map[string]listview.FieldSpec[autoflex.CapacityItem]{
				"productName": {String: func(i autoflex.CapacityItem) string { return i.ProductName }},
				"maxQuantity": {
					Numeric: true,
					Number:  func(i autoflex.CapacityItem) float64 { return float64(i.MaxQuantity) },
				},
				"totalValue": {
					Numeric: true,
					Number:  func(i autoflex.CapacityItem) float64 { return i.TotalValue },
				},
			},
			ID: func(i autoflex.CapacityItem) int64 { return i.ProductID },
			Load: func(ctx context.Context, filters map[string]string) ([]autoflex.CapacityItem, error) {
				return deps.API.ListCapacity(ctx, s.Token)
			},
			// 报表在本地按名称/编码子串过滤（大小写不敏感）
			Match: func(i autoflex.CapacityItem, query string) bool {
				return strings.Contains(strings.ToLower(i.ProductName), query) ||
					strings.Contains(strings.ToLower(i.ProductCode), query)
			},
			Expandable:     true,
			OnChange:       publisher[autoflex.CapacityItem](deps, s.ID),
			OnUnauthorized: onUnauthorized,
			Logger:         deps.Logger,
		})
	}
}

// publisher 把页面快照序列化后推给该会话的SSE连接
func publisher[T any](deps *Deps, sessionID string) func(listview.Snapshot[T]) {
	return func(snap listview.Snapshot[T]) {
		data, err := json.Marshal(snap)
		if err != nil {
			deps.Logger.Warn("序列化页面快照失败", zap.Error(err))
			return
		}
		deps.Hub.SendToSession(sessionID, sse.Event{
			EventType: "page_state",
			Data:      string(data),
		})
	}
}
