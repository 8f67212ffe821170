package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"shopsec_dev_v1_202608/internal/model"
)

// ==================== EventRepository 安全事件仓库 ====================

// EventRepository 安全事件仓库接口
// 核心逻辑只写不读；List 仅供运维接口查询
type EventRepository interface {
	Create(ctx context.Context, event *model.SecurityEvent) error
	List(ctx context.Context, category string, page, pageSize int) ([]model.SecurityEvent, int64, error)
	// DeleteBefore 按保留期清理历史事件
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ==================== 实现 ====================

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建安全事件仓库
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *model.SecurityEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepository) List(ctx context.Context, category string, page, pageSize int) ([]model.SecurityEvent, int64, error) {
	var events []model.SecurityEvent
	var total int64

	db := r.db.WithContext(ctx).Model(&model.SecurityEvent{})
	if category != "" {
		db = db.Where("category = ?", category)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	err := db.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&events).Error
	return events, total, err
}

func (r *eventRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&model.SecurityEvent{})
	return res.RowsAffected, res.Error
}
