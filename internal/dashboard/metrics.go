// Package dashboard 对产能报表做纯内存汇总，除最初一次拉取外无任何网络往返。
// 所有函数无隐藏状态，方便单测。
package dashboard

import "github.com/autoflex/console/internal/autoflex"

// TopItem 汇总中的榜首条目
type TopItem struct {
	ProductID   int64   `json:"product_id"`
	ProductCode string  `json:"product_code"`
	ProductName string  `json:"product_name"`
	MaxQuantity int64   `json:"max_quantity"`
	TotalValue  float64 `json:"total_value"`
}

// Metrics 看板汇总指标
type Metrics struct {
	Total              int      `json:"total"`
	Available          int      `json:"available"`
	Unavailable        int      `json:"unavailable"`
	TopByValue         *TopItem `json:"top_by_value"`
	TopByQuantity      *TopItem `json:"top_by_quantity"`
	LowStockSignals    int      `json:"low_stock_signals"`
	ProductsWithAnyLow int      `json:"products_with_any_low"`
}

// Compute 扫描产能列表计算看板指标。
// 榜首并列时保留先出现的条目（严格大于才替换）；
// maxQuantity和totalValue信任后端数值，不重算。
func Compute(items []autoflex.CapacityItem) Metrics {
	m := Metrics{Total: len(items)}

	var topByValue, topByQuantity *autoflex.CapacityItem
	for i := range items {
		item := &items[i]

		if item.MaxQuantity > 0 {
			m.Available++
		}

		if topByValue == nil || item.TotalValue > topByValue.TotalValue {
			topByValue = item
		}
		if topByQuantity == nil || item.MaxQuantity > topByQuantity.MaxQuantity {
			topByQuantity = item
		}

		lows := 0
		for _, mat := range item.Materials {
			if mat.LowStock() {
				lows++
			}
		}
		m.LowStockSignals += lows
		if lows > 0 {
			m.ProductsWithAnyLow++
		}
	}

	m.Unavailable = m.Total - m.Available
	m.TopByValue = toTop(topByValue)
	m.TopByQuantity = toTop(topByQuantity)
	return m
}

func toTop(item *autoflex.CapacityItem) *TopItem {
	if item == nil {
		return nil
	}
	return &TopItem{
		ProductID:   item.ProductID,
		ProductCode: item.ProductCode,
		ProductName: item.ProductName,
		MaxQuantity: item.MaxQuantity,
		TotalValue:  item.TotalValue,
	}
}
