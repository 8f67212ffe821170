package dto

import "time"

// ==================== 订单 ====================

// AddItemRequest 购物车加商品
type AddItemRequest struct {
	ItemID   int64 `json:"item_id" binding:"required"`
	Quantity int   `json:"quantity" binding:"required,min=1"`
}

// ApplyCouponRequest 用券
type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// PayOrderRequest 支付
// Paid 是客户端自报的支付结果（unsafe consumption 演示），
// 严格业务流策略下完全无视；Amount/Currency 只作事件附注
type PayOrderRequest struct {
	Paid        bool   `json:"paid"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// ShipOrderRequest 发货
// AssertedRole 是函数级授权的客户端断言演示字段
type ShipOrderRequest struct {
	AssertedRole string `json:"asserted_role"`
}

// OrderLineInfo 订单行
type OrderLineInfo struct {
	ItemID     int64 `json:"item_id"`
	Quantity   int   `json:"quantity"`
	PriceCents int64 `json:"price_cents"`
}

// OrderInfo 订单信息
type OrderInfo struct {
	ID           int64           `json:"id"`
	OwnerID      int64           `json:"owner_id"`
	Status       string          `json:"status"`
	TotalCents   int64           `json:"total_cents"`
	Currency     string          `json:"currency"`
	DiscountCode string          `json:"discount_code,omitempty"`
	Items        []OrderLineInfo `json:"items"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
	ShippedAt    *time.Time      `json:"shipped_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// OrderListResponse 订单列表响应
type OrderListResponse struct {
	Total int64        `json:"total"`
	List  []*OrderInfo `json:"list"`
}
