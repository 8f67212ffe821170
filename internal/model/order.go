package model

import "time"

// ==================== 订单状态常量 ====================

// OrderStatus 订单状态（线性推进，不回退）
const (
	OrderStatusCart    = "cart"    // 购物车
	OrderStatusPlaced  = "placed"  // 已下单
	OrderStatusPaid    = "paid"    // 已支付
	OrderStatusShipped = "shipped" // 已发货（终态）
)

// orderStatusRank 状态序，用于判断只进不退
var orderStatusRank = map[string]int{
	OrderStatusCart:    0,
	OrderStatusPlaced:  1,
	OrderStatusPaid:    2,
	OrderStatusShipped: 3,
}

// OrderStatusRank 返回状态序号，未知状态返回 -1
func OrderStatusRank(status string) int {
	if r, ok := orderStatusRank[status]; ok {
		return r
	}
	return -1
}

// ==================== Order 订单主表 ====================

// Order 订单
// 不变量：每个用户同一时刻至多一个 cart 状态的活跃订单
type Order struct {
	ID      int64  `gorm:"primaryKey;autoIncrement"`
	OwnerID int64  `gorm:"index;not null"`
	Status  string `gorm:"size:20;index;default:cart"`

	// 金额（分为单位存储）
	TotalAmount  int64
	Currency     string `gorm:"size:10;default:USD"`
	DiscountCode string `gorm:"size:64"` // 空串表示未用券

	// 支付 / 发货
	PaidAt    *time.Time
	ShippedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// 关联
	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

func (*Order) TableName() string {
	return "orders"
}

// GetTotal 获取总金额（元）
func (o *Order) GetTotal() float64 {
	return float64(o.TotalAmount) / 100
}

// IsCart 是否处于购物车状态
func (o *Order) IsCart() bool {
	return o.Status == OrderStatusCart
}

// IsShipped 是否已到终态
func (o *Order) IsShipped() bool {
	return o.Status == OrderStatusShipped
}

// CanStartCheckout 检查是否可以下单
func (o *Order) CanStartCheckout() bool {
	return o.Status == OrderStatusCart
}

// CanApplyCoupon 检查是否可以用券（placed/paid 阶段）
func (o *Order) CanApplyCoupon() bool {
	return o.Status == OrderStatusPlaced || o.Status == OrderStatusPaid
}

// CanPay 检查是否可以支付
func (o *Order) CanPay() bool {
	return o.Status == OrderStatusPlaced
}

// CanShip 检查是否处于可发货窗口（宽松策略允许 placed 直接发货）
func (o *Order) CanShip() bool {
	return o.Status == OrderStatusPlaced || o.Status == OrderStatusPaid
}

// ==================== OrderItem 订单项 ====================

// OrderItem 订单行
type OrderItem struct {
	ID      int64 `gorm:"primaryKey;autoIncrement"`
	OrderID int64 `gorm:"index;not null"`
	ItemID  int64 `gorm:"index;not null"`

	Quantity    int `gorm:"default:1"`
	PriceAmount int64 // 加入时的单价快照（分）

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (*OrderItem) TableName() string {
	return "order_items"
}
