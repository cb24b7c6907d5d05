package autoflex

import (
	"context"
	"net/http"
)

// LoginResult 登录结果
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Login 用邮箱密码登录，返回后端签发的token和用户信息
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	var result LoginResult
	if err := c.do(ctx, "", http.MethodPost, "/auth/login", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Register 注册新账号
func (c *Client) Register(ctx context.Context, name, email, password string) (*User, error) {
	body := map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}
	var user User
	if err := c.do(ctx, "", http.MethodPost, "/auth/register", nil, body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
