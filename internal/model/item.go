package model

// ==================== Item 商品 ====================

// Item 商品
// cost_price / supplier_email 是受限属性：
// 严格属性级策略下仅 Staff/Admin 属主可见可写，其余调用方读取时剥离、写入时丢弃；
// 宽松策略下对所有人可见可写（属性级越权演示）
type Item struct {
	BaseModel
	Name        string `gorm:"size:255;index;not null"`
	Description string `gorm:"type:text"`

	// 金额（分为单位存储）
	PriceAmount int64  `gorm:"not null"`
	Currency    string `gorm:"size:10;default:USD"`
	Stock       int    `gorm:"default:0"`

	// 受限属性
	CostPriceAmount int64  // 进货价（分）
	SupplierEmail   string `gorm:"size:255"`

	IsFeatured bool  `gorm:"default:false"`
	OwnerID    int64 `gorm:"index;not null"` // 上架的 Staff 用户 ID

	ImageURL string `gorm:"size:500"`
}

func (Item) TableName() string {
	return "items"
}

// ItemRestrictedFields 商品的受限属性集合（列名）
var ItemRestrictedFields = map[string]bool{
	"cost_price_amount": true,
	"supplier_email":    true,
}

// GetPrice 获取售价（元）
func (i *Item) GetPrice() float64 {
	return float64(i.PriceAmount) / 100
}

// GetCostPrice 获取进货价（元）
func (i *Item) GetCostPrice() float64 {
	return float64(i.CostPriceAmount) / 100
}
