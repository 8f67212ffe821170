package dto

import "time"

// ==================== 商品 ====================

// CreateItemRequest 上架商品（需要 Staff 角色）
// AssertedRole 是函数级授权的客户端断言演示字段
type CreateItemRequest struct {
	Name           string `json:"name" binding:"required"`
	Description    string `json:"description"`
	PriceCents     int64  `json:"price_cents" binding:"required,min=1"`
	Currency       string `json:"currency"`
	Stock          int    `json:"stock"`
	CostPriceCents int64  `json:"cost_price_cents"`
	SupplierEmail  string `json:"supplier_email"`
	IsFeatured     bool   `json:"is_featured"`
	AssertedRole   string `json:"asserted_role"`
}

// UpdateItemRequest 更新商品（属性级网关过滤受限字段）
type UpdateItemRequest struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	PriceCents     *int64  `json:"price_cents"`
	Stock          *int    `json:"stock"`
	IsFeatured     *bool   `json:"is_featured"`
	CostPriceCents *int64  `json:"cost_price_cents"`
	SupplierEmail  *string `json:"supplier_email"`
}

// ItemInfo 商品信息
// 受限字段用指针，严格属性级策略下剥离后不出现在 JSON 里
type ItemInfo struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	Stock       int       `json:"stock"`
	IsFeatured  bool      `json:"is_featured"`
	OwnerID     int64     `json:"owner_id"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// 受限属性
	CostPriceCents *int64  `json:"cost_price_cents,omitempty"`
	SupplierEmail  *string `json:"supplier_email,omitempty"`
}

// ListItemsRequest 商品列表/搜索
type ListItemsRequest struct {
	Keyword  string `form:"keyword"`
	Featured *bool  `form:"featured"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// ListItemsResponse 商品列表响应
type ListItemsResponse struct {
	Total int64       `json:"total"`
	List  []*ItemInfo `json:"list"`
}

// AttachImageRequest 按 URL 抓取商品图
type AttachImageRequest struct {
	URL string `json:"url" binding:"required"`
}
