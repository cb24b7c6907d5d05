package handler

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/autoflex/console/internal/autoflex"
	"github.com/autoflex/console/internal/middleware"
)

// ProductFormHandler 产品表单处理器（管理员专用）
type ProductFormHandler struct {
	deps *Deps
}

// NewProductFormHandler 创建产品表单处理器
func NewProductFormHandler(deps *Deps) *ProductFormHandler {
	return &ProductFormHandler{deps: deps}
}

// ProductMaterialForm 表单里的用料行
type ProductMaterialForm struct {
	RawMaterialID int64   `json:"rawMaterialId"`
	Quantity      float64 `json:"quantity"`
}

// ProductForm 产品表单
type ProductForm struct {
	Code      string                `json:"code"`
	Name      string                `json:"name"`
	Price     float64               `json:"price"`
	Materials []ProductMaterialForm `json:"materials"`
}

// validate 按schema校验，返回字段→文案
func (f *ProductForm) validate() map[string]string {
	errs := map[string]string{}

	if strings.TrimSpace(f.Code) == "" {
		errs["code"] = "Code is required"
	}
	if strings.TrimSpace(f.Name) == "" {
		errs["name"] = "Name is required"
	}
	if f.Price < 0 {
		errs["price"] = "Price must be >= 0"
	}

	for k, v := range validateMaterials(f.Materials) {
		errs[k] = v
	}
	return errs
}

// validateMaterials 用料清单校验：至少一行、行内原材料和用量合法、
// 同一原材料在一个产品里最多出现一次
func validateMaterials(materials []ProductMaterialForm) map[string]string {
	errs := map[string]string{}
	if len(materials) == 0 {
		errs["materials"] = "At least one material is required"
		return errs
	}

	seen := make(map[int64]bool, len(materials))
	for i, m := range materials {
		if m.RawMaterialID <= 0 {
			errs[fmt.Sprintf("materials.%d.rawMaterialId", i)] = "Select a material"
		} else if seen[m.RawMaterialID] {
			errs[fmt.Sprintf("materials.%d.rawMaterialId", i)] = "Material already selected"
		} else {
			seen[m.RawMaterialID] = true
		}
		if m.Quantity <= 0 {
			errs[fmt.Sprintf("materials.%d.quantity", i)] = "Quantity must be > 0"
		}
	}
	return errs
}

func (f *ProductForm) toRequest() autoflex.ProductRequest {
	lines := make([]autoflex.MaterialLine, 0, len(f.Materials))
	for _, m := range f.Materials {
		lines = append(lines, autoflex.MaterialLine{
			RawMaterialID: m.RawMaterialID,
			Quantity:      m.Quantity,
		})
	}
	return autoflex.ProductRequest{
		Code:      strings.TrimSpace(f.Code),
		Name:      strings.TrimSpace(f.Name),
		Price:     f.Price,
		Materials: lines,
	}
}

// Options GET /api/forms/product-options
// 用料选择器的原材料候选；已选项由前端按表单当前值禁用
func (h *ProductFormHandler) Options(c *gin.Context) {
	s := middleware.SessionFromContext(c)
	materials, err := h.deps.API.ListRawMaterials(c.Request.Context(), s.Token, autoflex.RawMaterialFilter{})
	if err != nil {
		h.deps.upstreamError(c, err)
		return
	}
	Success(c, materials)
}

// Get GET /api/forms/products/:id
// 编辑模式的预填充：阻塞取回产品和原材料候选后一并返回
func (h *ProductFormHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	s := middleware.SessionFromContext(c)
	ctx := c.Request.Context()

	materials, err := h.deps.API.ListRawMaterials(ctx, s.Token, autoflex.RawMaterialFilter{})
	if err != nil {
		h.deps.upstreamError(c, err)
		return
	}

	product, err := h.deps.API.GetProduct(ctx, s.Token, id)
	if err != nil {
		h.deps.upstreamError(c, err)
		return
	}

	Success(c, gin.H{
		"product":             product,
		"available_materials": materials,
	})
}

// Create POST /api/forms/products
func (h *ProductFormHandler) Create(c *gin.Context) {
	var form ProductForm
	if err := c.ShouldBindJSON(&form); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if errs := form.validate(); len(errs) > 0 {
		ValidationFailed(c, errs)
		return
	}

	s := middleware.SessionFromContext(c)
	product, err := h.deps.API.CreateProduct(c.Request.Context(), s.Token, form.toRequest())
	if err != nil {
		h.deps.upstreamError(c, err)
		return
	}
	Created(c, product)
}

// Update PUT /api/forms/products/:id
func (h *ProductFormHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var form ProductForm
	if err := c.ShouldBindJSON(&form); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if errs := form.validate(); len(errs) > 0 {
		ValidationFailed(c, errs)
		return
	}

	s := middleware.SessionFromContext(c)
	product, err := h.deps.API.UpdateProduct(c.Request.Context(), s.Token, id, form.toRequest())
	if err != nil {
		h.deps.upstreamError(c, err)
		return
	}
	Success(c, product)
}

// MaterialsRequest 整体替换用料清单
type MaterialsRequest struct {
	Materials []ProductMaterialForm `json:"materials"`
}

// ReplaceMaterials PUT /api/forms/products/:id/materials
func (h *ProductFormHandler) ReplaceMaterials(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req MaterialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if errs := validateMaterials(req.Materials); len(errs) > 0 {
		ValidationFailed(c, errs)
		return
	}

	lines := make([]autoflex.MaterialLine, 0, len(req.Materials))
	for _, m := range req.Materials {
		lines = append(lines, autoflex.MaterialLine{RawMaterialID: m.RawMaterialID, Quantity: m.Quantity})
	}

	s := middleware.SessionFromContext(c)
	product, err := h.deps.API.ReplaceProductMaterials(c.Request.Context(), s.Token, id, lines)
	if err != nil {
		h.deps.upstreamError(c, err)
		return
	}
	Success(c, product)
}
