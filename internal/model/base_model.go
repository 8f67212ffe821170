package model

import (
	"time"

	"gorm.io/gorm"
)

// ==================== BaseModel 公共字段 ====================

// BaseModel 持久化实体的公共字段
// DeletedAt 开启软删除：下架商品仍被历史订单行引用，
// 查询时按缺失处理而不是报错
type BaseModel struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
