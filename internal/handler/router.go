package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autoflex/console/internal/middleware"
)

// RegisterRoutes 注册全部路由
func RegisterRoutes(r *gin.Engine, h *Handlers, deps *Deps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if deps.Cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")

	// 公开路由
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/register", h.Auth.Register)
	api.GET("/auth/session", h.Auth.SessionInfo)

	// 认证守卫
	authed := api.Group("", middleware.SessionAuth(deps.Sessions, deps.Cfg.Session.CookieName))
	authed.POST("/auth/logout", h.Auth.Logout)
	authed.GET("/events", h.SSE.Stream)
	authed.GET("/dashboard", h.Dashboard.Overview)

	pages := authed.Group("/pages")
	pages.GET("/:page", h.Pages.Snapshot)
	pages.POST("/:page/filter", h.Pages.Filter)
	pages.POST("/:page/sort", h.Pages.Sort)
	pages.POST("/:page/reload", h.Pages.Reload)
	pages.POST("/:page/expand", h.Pages.Expand)

	// 变更操作仅管理员可见
	pagesAdmin := pages.Group("", middleware.AdminOnly())
	pagesAdmin.POST("/:page/delete/open", h.Pages.OpenDelete)
	pagesAdmin.POST("/:page/delete/cancel", h.Pages.CancelDelete)
	pagesAdmin.POST("/:page/delete/confirm", h.Pages.ConfirmDelete)

	forms := authed.Group("/forms", middleware.AdminOnly())
	forms.GET("/product-options", h.ProductForm.Options)
	forms.GET("/products/:id", h.ProductForm.Get)
	forms.POST("/products", h.ProductForm.Create)
	forms.PUT("/products/:id", h.ProductForm.Update)
	forms.PUT("/products/:id/materials", h.ProductForm.ReplaceMaterials)
	forms.GET("/raw-materials/:id", h.MaterialForm.Get)
	forms.POST("/raw-materials", h.MaterialForm.Create)
	forms.PUT("/raw-materials/:id", h.MaterialForm.Update)

	export := authed.Group("/export", middleware.AdminOnly())
	export.GET("/:page", h.Export.Download)
}
