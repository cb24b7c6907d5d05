package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/autoflex/console/internal/permissions"
	"github.com/autoflex/console/internal/session"
)

// sessionKey gin context里会话的键
const sessionKey = "console_session"

// Logger 日志中间件
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", latency),
			zap.String("request_id", c.GetString("request_id")),
		}

		if s := SessionFromContext(c); s != nil {
			fields = append(fields, zap.String("session_id", s.ID))
		}

		if status >= 500 {
			logger.Error("Server error", fields...)
		} else if status >= 400 {
			logger.Warn("Client error", fields...)
		} else {
			logger.Info("Request", fields...)
		}
	}
}

// CORS 跨域中间件
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestID 请求ID中间件
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Request.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// SessionAuth 认证守卫：解析会话凭证并把会话放进context。
// 未登录返回40100，前端据此跳转登录页。
// 凭证优先取cookie，其次Authorization header，最后query参数（SSE场景）。
func SessionAuth(mgr *session.Manager, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c, cookieName)

		s, err := mgr.Resolve(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{
					"code":    40100,
					"message": "Authentication required",
				})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{
					"code":    50000,
					"message": "Failed to resolve session",
				})
			}
			c.Abort()
			return
		}

		c.Set(sessionKey, s)
		c.Next()
	}
}

// AdminOnly 管理员守卫：非ADMIN返回40300（前端跳forbidden页），会话保留。
// 必须挂在SessionAuth之后。
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := SessionFromContext(c)
		if s == nil || !permissions.CanManage(&s.User) {
			c.JSON(http.StatusForbidden, gin.H{
				"code":    40300,
				"message": "Admin role required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// SessionFromContext 取当前请求的会话，未认证路由返回nil
func SessionFromContext(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*session.Session)
	return s
}

// ExtractToken 从cookie/Authorization/query里取会话凭证
func ExtractToken(c *gin.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	return c.Query("token")
}
