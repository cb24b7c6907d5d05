package autoflex

import (
	"context"
	"net/http"
)

// ListCapacity 获取产能报表（只读，由后端按当前库存计算）
func (c *Client) ListCapacity(ctx context.Context, token string) ([]CapacityItem, error) {
	var items []CapacityItem
	if err := c.do(ctx, token, http.MethodGet, "/production", nil, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}
