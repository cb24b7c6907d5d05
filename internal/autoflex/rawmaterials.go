package autoflex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ListRawMaterials 原材料列表，过滤条件为空时返回全量
func (c *Client) ListRawMaterials(ctx context.Context, token string, filter RawMaterialFilter) ([]RawMaterial, error) {
	query := url.Values{}
	if code := strings.TrimSpace(filter.Code); code != "" {
		query.Set("code", code)
	}
	if name := strings.TrimSpace(filter.Name); name != "" {
		query.Set("name", name)
	}

	var items []RawMaterial
	if err := c.do(ctx, token, http.MethodGet, "/raw-materials", query, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetRawMaterial 按ID获取原材料
func (c *Client) GetRawMaterial(ctx context.Context, token string, id int64) (*RawMaterial, error) {
	var material RawMaterial
	if err := c.do(ctx, token, http.MethodGet, fmt.Sprintf("/raw-materials/%d", id), nil, nil, &material); err != nil {
		return nil, err
	}
	return &material, nil
}

// CreateRawMaterial 创建原材料
func (c *Client) CreateRawMaterial(ctx context.Context, token string, req RawMaterialRequest) (*RawMaterial, error) {
	var material RawMaterial
	if err := c.do(ctx, token, http.MethodPost, "/raw-materials", nil, req, &material); err != nil {
		return nil, err
	}
	return &material, nil
}

// UpdateRawMaterial 更新原材料
func (c *Client) UpdateRawMaterial(ctx context.Context, token string, id int64, req RawMaterialRequest) (*RawMaterial, error) {
	var material RawMaterial
	if err := c.do(ctx, token, http.MethodPut, fmt.Sprintf("/raw-materials/%d", id), nil, req, &material); err != nil {
		return nil, err
	}
	return &material, nil
}

// DeleteRawMaterial 删除原材料
func (c *Client) DeleteRawMaterial(ctx context.Context, token string, id int64) error {
	return c.do(ctx, token, http.MethodDelete, fmt.Sprintf("/raw-materials/%d", id), nil, nil, nil)
}
