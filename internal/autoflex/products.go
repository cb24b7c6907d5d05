package autoflex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ListProducts 产品列表，过滤条件为空时返回全量
func (c *Client) ListProducts(ctx context.Context, token string, filter ProductFilter) ([]Product, error) {
	query := url.Values{}
	if code := strings.TrimSpace(filter.Code); code != "" {
		query.Set("code", code)
	}
	if name := strings.TrimSpace(filter.Name); name != "" {
		query.Set("name", name)
	}

	var items []Product
	if err := c.do(ctx, token, http.MethodGet, "/products", query, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetProduct 按ID获取产品
func (c *Client) GetProduct(ctx context.Context, token string, id int64) (*Product, error) {
	var product Product
	if err := c.do(ctx, token, http.MethodGet, fmt.Sprintf("/products/%d", id), nil, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct 创建产品
func (c *Client) CreateProduct(ctx context.Context, token string, req ProductRequest) (*Product, error) {
	var product Product
	if err := c.do(ctx, token, http.MethodPost, "/products", nil, req, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct 更新产品
func (c *Client) UpdateProduct(ctx context.Context, token string, id int64, req ProductRequest) (*Product, error) {
	var product Product
	if err := c.do(ctx, token, http.MethodPut, fmt.Sprintf("/products/%d", id), nil, req, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// ReplaceProductMaterials 整体替换产品用料清单
func (c *Client) ReplaceProductMaterials(ctx context.Context, token string, id int64, lines []MaterialLine) (*Product, error) {
	var product Product
	if err := c.do(ctx, token, http.MethodPut, fmt.Sprintf("/products/%d/materials", id), nil, lines, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct 删除产品
func (c *Client) DeleteProduct(ctx context.Context, token string, id int64) error {
	return c.do(ctx, token, http.MethodDelete, fmt.Sprintf("/products/%d", id), nil, nil, nil)
}
