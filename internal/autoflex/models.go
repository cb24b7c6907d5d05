package autoflex

// Role 用户角色
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// User 登录用户信息（由后端API返回）
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Unit 原材料计量单位
type Unit string

const (
	UnitKG   Unit = "KG"
	UnitG    Unit = "G"
	UnitUnit Unit = "UNIT"
	UnitL    Unit = "L"
	UnitML   Unit = "ML"
)

var unitNames = map[Unit]string{
	UnitKG:   "Kilogram",
	UnitG:    "Gram",
	UnitUnit: "Unit",
	UnitL:    "Liter",
	UnitML:   "Mililiter",
}

// DisplayName 单位的展示名称，未知单位原样返回
func (u Unit) DisplayName() string {
	if u == "" {
		return "-"
	}
	if name, ok := unitNames[u]; ok {
		return name
	}
	return string(u)
}

// Valid 校验单位是否为已知枚举值
func (u Unit) Valid() bool {
	_, ok := unitNames[u]
	return ok
}

// RawMaterial 原材料
type RawMaterial struct {
	ID            int64   `json:"id"`
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Unit          Unit    `json:"unit"`
	StockQuantity float64 `json:"stockQuantity"`
}

// RawMaterialRequest 创建/更新原材料的请求体
type RawMaterialRequest struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Unit          Unit    `json:"unit"`
	StockQuantity float64 `json:"stockQuantity"`
}

// ProductMaterial 产品BOM行（后端可能附带展示字段）
type ProductMaterial struct {
	RawMaterialID   int64   `json:"rawMaterialId"`
	RawMaterialName string  `json:"rawMaterialName,omitempty"`
	Quantity        float64 `json:"quantity"`
	Unit            string  `json:"unit,omitempty"`
}

// Product 产品
type Product struct {
	ID        int64             `json:"id"`
	Code      string            `json:"code"`
	Name      string            `json:"name"`
	Price     float64           `json:"price"`
	Materials []ProductMaterial `json:"materials,omitempty"`
}

// MaterialLine 产品用料行（请求体，仅含ID和用量）
type MaterialLine struct {
	RawMaterialID int64   `json:"rawMaterialId"`
	Quantity      float64 `json:"quantity"`
}

// ProductRequest 创建/更新产品的请求体
type ProductRequest struct {
	Code      string         `json:"code"`
	Name      string         `json:"name"`
	Price     float64        `json:"price"`
	Materials []MaterialLine `json:"materials,omitempty"`
}

// CapacityMaterial 产能报表中的物料明细
type CapacityMaterial struct {
	RawMaterialID   int64   `json:"rawMaterialId"`
	RawMaterialCode string  `json:"rawMaterialCode"`
	RawMaterialName string  `json:"rawMaterialName"`
	Unit            Unit    `json:"unit"`
	RequiredPerUnit float64 `json:"requiredPerUnit"`
	StockQuantity   float64 `json:"stockQuantity"`
}

// LowStock 库存是否不足一个产品的单位用量。
// requiredPerUnit为0的行不构成低库存信号。
func (m CapacityMaterial) LowStock() bool {
	return m.RequiredPerUnit > 0 && m.StockQuantity < m.RequiredPerUnit
}

// CapacityItem 产能报表行（后端计算，客户端只读）
// 后端保证 maxQuantity = min(floor(stock/requiredPerUnit))，
// totalValue = maxQuantity * unitPrice，本服务不重算。
type CapacityItem struct {
	ProductID   int64              `json:"productId"`
	ProductCode string             `json:"productCode"`
	ProductName string             `json:"productName"`
	UnitPrice   float64            `json:"unitPrice"`
	MaxQuantity int64              `json:"maxQuantity"`
	TotalValue  float64            `json:"totalValue"`
	Materials   []CapacityMaterial `json:"materials"`
}

// ProductFilter 产品列表过滤条件
type ProductFilter struct {
	Name string
	Code string
}

// RawMaterialFilter 原材料列表过滤条件
type RawMaterialFilter struct {
	Name string
	Code string
}
