package handler

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/autoflex/console/internal/autoflex"
	"github.com/autoflex/console/internal/middleware"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 报表导出处理器（管理员专用）
type ExportHandler struct {
	deps *Deps
}

// NewExportHandler 创建导出处理器
func NewExportHandler(deps *Deps) *ExportHandler {
	return &ExportHandler{deps: deps}
}

// Download GET /api/export/:page
// 把当前列表导出为xlsx，直接流给调用方
func (h *ExportHandler) Download(c *gin.Context) {
	s := middleware.SessionFromContext(c)
	ctx := c.Request.Context()

	page := strings.TrimSuffix(c.Param("page"), ".xlsx")

	var (
		f   *excelize.File
		err error
	)
	switch page {
	case PageProducts:
		var items []autoflex.Product
		if items, err = h.deps.API.ListProducts(ctx, s.Token, autoflex.ProductFilter{}); err == nil {
			f, err = productsSheet(items)
		}
	case PageRawMaterials:
		var items []autoflex.RawMaterial
		if items, err = h.deps.API.ListRawMaterials(ctx, s.Token, autoflex.RawMaterialFilter{}); err == nil {
			f, err = rawMaterialsSheet(items)
		}
	case PageProduction:
		var items []autoflex.CapacityItem
		if items, err = h.deps.API.ListCapacity(ctx, s.Token); err == nil {
			f, err = capacitySheet(items)
		}
	default:
		NotFound(c, "Unknown page: "+page)
		return
	}

	if err != nil {
		h.deps.upstreamError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, page))
	if err := f.Write(c.Writer); err != nil {
		h.deps.Logger.Warn("导出报表写出失败", zap.String("page", page), zap.Error(err))
	}
}

func productsSheet(items []autoflex.Product) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"ID", "Code", "Name", "Price", "Materials"}); err != nil {
		return nil, err
	}
	for i, p := range items {
		lines := make([]string, 0, len(p.Materials))
		for _, m := range p.Materials {
			lines = append(lines, fmt.Sprintf("%s x%.2f", m.RawMaterialName, m.Quantity))
		}
		row := []interface{}{p.ID, p.Code, p.Name, p.Price, strings.Join(lines, "; ")}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func rawMaterialsSheet(items []autoflex.RawMaterial) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"ID", "Code", "Name", "Unit", "Stock"}); err != nil {
		return nil, err
	}
	for i, m := range items {
		row := []interface{}{m.ID, m.Code, m.Name, m.Unit.DisplayName(), m.StockQuantity}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func capacitySheet(items []autoflex.CapacityItem) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	header := []interface{}{"Code", "Product", "Unit Price", "Max Qty", "Total Value", "Status", "Low Materials"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, item := range items {
		status := "Unavailable"
		if item.MaxQuantity > 0 {
			status = "Available"
		}
		lows := make([]string, 0)
		for _, m := range item.Materials {
			if m.LowStock() {
				lows = append(lows, m.RawMaterialCode)
			}
		}
		row := []interface{}{
			item.ProductCode, item.ProductName, item.UnitPrice,
			item.MaxQuantity, item.TotalValue, status, strings.Join(lows, ", "),
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}
	return f, nil
}
