package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/autoflex/console/internal/autoflex"
	"github.com/autoflex/console/internal/config"
	"github.com/autoflex/console/internal/listview"
	"github.com/autoflex/console/internal/middleware"
	"github.com/autoflex/console/internal/sse"
	"github.com/autoflex/console/internal/session"
)

// Handlers 处理器集合
type Handlers struct {
	Auth         *AuthHandler
	Pages        *PageHandler
	ProductForm  *ProductFormHandler
	MaterialForm *MaterialFormHandler
	Dashboard    *DashboardHandler
	Export       *ExportHandler
	SSE          *SSEHandler
}

// Deps 各处理器共享的依赖
type Deps struct {
	API      *autoflex.Client
	Sessions *session.Manager
	Registry *listview.Registry
	Hub      *sse.Hub
	Cfg      *config.Config
	Logger   *zap.Logger
}

// NewHandlers 创建处理器集合
func NewHandlers(deps *Deps) *Handlers {
	return &Handlers{
		Auth:         NewAuthHandler(deps),
		Pages:        NewPageHandler(deps),
		ProductForm:  NewProductFormHandler(deps),
		MaterialForm: NewMaterialFormHandler(deps),
		Dashboard:    NewDashboardHandler(deps),
		Export:       NewExportHandler(deps),
		SSE:          NewSSEHandler(deps),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应，code前三位即HTTP状态码
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// ValidationFailed 表单校验失败，data为字段→文案
func ValidationFailed(c *gin.Context, fields map[string]string) {
	c.JSON(400, Response{
		Code:    40000,
		Message: "Validation failed",
		Data:    fields,
	})
}

// Unauthorized 未认证响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// Forbidden 无权限响应
func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// NotFound 未找到响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// upstreamError 把上游API错误翻译成网关响应。
// 401：整个会话作废（前端回登录页）；403：会话保留（前端跳forbidden页）；
// 4xx校验错误透传后端message；5xx统一文案。
func (d *Deps) upstreamError(c *gin.Context, err error) {
	var apiErr *autoflex.APIError
	if errors.As(err, &apiErr) {
		middleware.UpstreamErrors.WithLabelValues(strconv.Itoa(apiErr.Status)).Inc()
	}

	switch {
	case errors.Is(err, autoflex.ErrUnauthorized):
		if s := middleware.SessionFromContext(c); s != nil {
			d.Sessions.Invalidate(context.Background(), s.ID)
			d.Registry.DropSession(s.ID)
		}
		Unauthorized(c, userMessage(err))
	case errors.Is(err, autoflex.ErrForbidden):
		Forbidden(c, userMessage(err))
	case errors.Is(err, autoflex.ErrNotFound):
		NotFound(c, userMessage(err))
	case apiErr != nil && apiErr.Status < 500:
		BadRequest(c, apiErr.Message)
	case apiErr != nil:
		InternalError(c, apiErr.Message)
	default:
		d.Logger.Error("上游请求失败", zap.Error(err))
		InternalError(c, "Upstream request failed")
	}
}

func userMessage(err error) string {
	var apiErr *autoflex.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// parseID 解析正整数路径参数
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(c, "Invalid id")
		return 0, false
	}
	return id, true
}
