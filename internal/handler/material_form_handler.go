package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/autoflex/console/internal/autoflex"
	"github.com/autoflex/console/internal/middleware"
)

// MaterialFormHandler 原材料表单处理器（管理员专用）
type MaterialFormHandler struct {
	deps *Deps
}

// NewMaterialFormHandler 创建原材料表单处理器
func NewMaterialFormHandler(deps *Deps) *MaterialFormHandler {
	return &MaterialFormHandler{deps: deps}
}

// MaterialForm 原材料表单
type MaterialForm struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Unit          string  `json:"unit"`
	StockQuantity float64 `json:"stockQuantity"`
}

// validate 按schema校验，返回字段→文案
func (f *MaterialForm) validate() map[string]string {
	errs := map[string]string{}
	if strings.TrimSpace(f.Code) == "" {
		errs["code"] = "Code is required"
	}
	if strings.TrimSpace(f.Name) == "" {
		errs["name"] = "Name is required"
	}
	if strings.TrimSpace(f.Unit) == "" {
		errs["unit"] = "Unit is required"
	} else if !autoflex.Unit(f.Unit).Valid() {
		errs["unit"] = "Unknown unit: " + f.Unit
	}
	if f.StockQuantity < 0 {
		errs["stockQuantity"] = "Stock must be >= 0"
	}
	return errs
}

func (f *MaterialForm) toRequest() autoflex.RawMaterialRequest {
	return autoflex.RawMaterialRequest{
		Code:          strings.TrimSpace(f.Code),
		Name:          strings.TrimSpace(f.Name),
		Unit:          autoflex.Unit(f.Unit),
		StockQuantity: f.StockQuantity,
	}
}

// Get GET /api/forms/raw-materials/:id 编辑模式预填充
func (h *MaterialFormHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	s := middleware.SessionFromContext(c)
	material, err := h.deps.API.GetRawMaterial(c.Request.Context(), s.Token, id)
	if err != nil {
		h.deps.upstreamError(c, err)
		return
	}
	Success(c, material)
}

// Create POST /api/forms/raw-materials
func (h *MaterialFormHandler) Create(c *gin.Context) {
	var form MaterialForm
	if err := c.ShouldBindJSON(&form); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if errs := form.validate(); len(errs) > 0 {
		ValidationFailed(c, errs)
		return
	}

	s := middleware.SessionFromContext(c)
	material, err := h.deps.API.CreateRawMaterial(c.Request.Context(), s.Token, form.toRequest())
	if err != nil {
		h.deps.upstreamError(c, err)
		return
	}
	Created(c, material)
}

// Update PUT /api/forms/raw-materials/:id
func (h *MaterialFormHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var form MaterialForm
	if err := c.ShouldBindJSON(&form); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if errs := form.validate(); len(errs) > 0 {
		ValidationFailed(c, errs)
		return
	}

	s := middleware.SessionFromContext(c)
	material, err := h.deps.API.UpdateRawMaterial(c.Request.Context(), s.Token, id, form.toRequest())
	if err != nil {
		h.deps.upstreamError(c, err)
		return
	}
	Success(c, material)
}
