package autoflex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// 上游返回401/403/404时通过errors.Is识别的哨兵错误
var (
	ErrUnauthorized = errors.New("autoflex: unauthorized")
	ErrForbidden    = errors.New("autoflex: forbidden")
	ErrNotFound     = errors.New("autoflex: not found")
)

// APIError 规范化后的上游API错误
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("autoflex api [%d]: %s", e.Status, e.Message)
}

// Unwrap 按状态码映射到哨兵错误，便于调用方用errors.Is分类处理
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// Client Autoflex后端API客户端。
// 所有持久化实体都由远端API拥有，本客户端不做缓存、不做重试。
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient 创建API客户端
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// upstreamError 上游错误响应体（message字段可选）
type upstreamError struct {
	Message string `json:"message"`
}

// do 发送一次请求并解码响应。
// token非空时携带 Authorization: Bearer；非2xx统一规范化为*APIError。
func (c *Client) do(ctx context.Context, token, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("编码请求体失败: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求Autoflex API失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}

		var ue upstreamError
		if len(respBody) > 0 && json.Unmarshal(respBody, &ue) == nil && ue.Message != "" {
			apiErr.Message = ue.Message
		} else if resp.StatusCode >= 500 {
			// 5xx不透传原始内容，用通用文案
			apiErr.Message = "Internal server error"
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		if len(respBody) > 0 && resp.StatusCode < 500 {
			apiErr.Details = strings.TrimSpace(string(respBody))
		}

		c.logger.Warn("上游API返回错误",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return apiErr
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("解析响应失败: %w", err)
		}
	}
	return nil
}
