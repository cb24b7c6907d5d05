package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/autoflex/console/internal/autoflex"
	"github.com/autoflex/console/internal/middleware"
	"github.com/autoflex/console/internal/permissions"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	deps *Deps
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(deps *Deps) *AuthHandler {
	return &AuthHandler{deps: deps}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login 登录：上游认证成功后建立会话并下发会话cookie
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	s, cookieToken, err := h.deps.Sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, autoflex.ErrUnauthorized) {
			Unauthorized(c, "Invalid email or password")
			return
		}
		h.deps.upstreamError(c, err)
		return
	}

	cfg := h.deps.Cfg.Session
	c.SetCookie(cfg.CookieName, cookieToken, int(h.deps.Sessions.TTL().Seconds()), "/", "", false, true)

	Success(c, gin.H{
		"token":      cookieToken,
		"user":       s.User,
		"can_manage": permissions.CanManage(&s.User),
	})
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// Register 注册新账号（代理上游，不自动登录）
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	user, err := h.deps.API.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.deps.upstreamError(c, err)
		return
	}
	Created(c, user)
}

// Logout 登出：无条件清会话、回收页面控制器、清cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	s := middleware.SessionFromContext(c)
	if s != nil {
		if err := h.deps.Sessions.Logout(c.Request.Context(), s.ID); err != nil {
			InternalError(c, "Failed to logout")
			return
		}
		h.deps.Registry.DropSession(s.ID)
	}

	cfg := h.deps.Cfg.Session
	c.SetCookie(cfg.CookieName, "", -1, "/", "", false, true)
	Success(c, nil)
}

// SessionInfo 会话状态查询，未登录不算错误。
// 前端挂载时先问这里，得到resolving之后的最终状态。
func (h *AuthHandler) SessionInfo(c *gin.Context) {
	token := middleware.ExtractToken(c, h.deps.Cfg.Session.CookieName)

	s, err := h.deps.Sessions.Resolve(c.Request.Context(), token)
	if err != nil {
		Success(c, gin.H{"status": "unauthenticated"})
		return
	}

	Success(c, gin.H{
		"status":     "authenticated",
		"user":       s.User,
		"can_manage": permissions.CanManage(&s.User),
	})
}
