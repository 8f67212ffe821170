package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"shopsec_dev_v1_202608/internal/model"
)

// ==================== 过滤条件 ====================

// ItemFilter 商品过滤条件
// PrefixOnly 为 true 时关键字只做前缀匹配（严格资源限制策略，索引可用），
// 否则两侧通配（宽松策略，全表扫描演示）
type ItemFilter struct {
	Keyword    string
	PrefixOnly bool
	OwnerID    int64
	Featured   *bool
	Page       int
	PageSize   int
}

// ==================== ItemRepository 商品仓库 ====================

// ItemRepository 商品仓库接口
type ItemRepository interface {
	Create(ctx context.Context, item *model.Item) error
	GetByID(ctx context.Context, id int64) (*model.Item, error)
	GetByIDs(ctx context.Context, ids []int64) ([]model.Item, error)
	Update(ctx context.Context, item *model.Item) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	List(ctx context.Context, filter ItemFilter) ([]model.Item, int64, error)
}

// ==================== 实现 ====================

type itemRepository struct {
	db *gorm.DB
}

// NewItemRepository 创建商品仓库
func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) Create(ctx context.Context, item *model.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *itemRepository) GetByID(ctx context.Context, id int64) (*model.Item, error) {
	var item model.Item
	err := r.db.WithContext(ctx).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetByIDs 批量获取商品（已删除的 ID 不出现在结果里，调用方自行跳过）
func (r *itemRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []model.Item
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error
	return items, err
}

func (r *itemRepository) Update(ctx context.Context, item *model.Item) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// UpdateFields 按字段更新（属性级网关过滤后的字段集）
func (r *itemRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.Item{}).Where("id = ?", id).Updates(fields).Error
}

func (r *itemRepository) List(ctx context.Context, filter ItemFilter) ([]model.Item, int64, error) {
	var items []model.Item
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Item{})

	if filter.Keyword != "" {
		if filter.PrefixOnly {
			db = db.Where("name LIKE ?", filter.Keyword+"%")
		} else {
			db = db.Where("name LIKE ?", "%"+filter.Keyword+"%")
		}
	}
	if filter.OwnerID > 0 {
		db = db.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Featured != nil {
		db = db.Where("is_featured = ?", *filter.Featured)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	err := db.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}
