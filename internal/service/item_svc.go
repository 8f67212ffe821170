package service

import (
	"context"
	"errors"
	"fmt"

	"shopsec_dev_v1_202608/internal/api/dto"
	"shopsec_dev_v1_202608/internal/model"
	"shopsec_dev_v1_202608/internal/policy"
	"shopsec_dev_v1_202608/internal/repository"
)

// ==================== ItemService 商品服务 ====================

// ItemService 商品目录
// 上架走函数级网关（Staff），更新走对象级 + 属性级网关，
// 列表/搜索走资源限制网关
type ItemService struct {
	itemRepo repository.ItemRepository
	authz    *AuthzService
}

// NewItemService 创建商品服务
func NewItemService(itemRepo repository.ItemRepository, authz *AuthzService) *ItemService {
	return &ItemService{itemRepo: itemRepo, authz: authz}
}

// ==================== 上架 ====================

// CreateItem 上架商品，要求 Staff 角色
func (s *ItemService) CreateItem(ctx context.Context, p *model.Principal, req *dto.CreateItemRequest, pol *policy.Config) (*dto.ItemInfo, error) {
	if d := s.authz.CheckFunction(p, model.RoleStaff, req.AssertedRole, pol); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, d.Reason)
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	item := &model.Item{
		Name:            req.Name,
		Description:     req.Description,
		PriceAmount:     req.PriceCents,
		Currency:        currency,
		Stock:           req.Stock,
		CostPriceAmount: req.CostPriceCents,
		SupplierEmail:   req.SupplierEmail,
		IsFeatured:      req.IsFeatured,
		OwnerID:         p.ID,
	}
	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("商品入库失败: %w", err)
	}

	// 创建者就是属主，受限字段直接可见
	return s.toItemInfo(p, item, pol), nil
}

// ==================== 查询 ====================

// GetItem 商品详情，受限字段经属性级网关裁剪
func (s *ItemService) GetItem(ctx context.Context, p *model.Principal, itemID int64, pol *policy.Config) (*dto.ItemInfo, error) {
	if itemID <= 0 {
		return nil, fmt.Errorf("%w: 非法商品 ID", ErrValidation)
	}
	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("查询商品失败: %w", err)
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	return s.toItemInfo(p, item, pol), nil
}

// ListItems 商品列表/搜索，分页和匹配方式由资源限制网关决定
func (s *ItemService) ListItems(ctx context.Context, p *model.Principal, req *dto.ListItemsRequest, pol *policy.Config) (*dto.ListItemsResponse, error) {
	limited, prefixOnly := s.authz.LimitQuery(p, PageRequest{
		Page:     req.Page,
		PageSize: req.PageSize,
		Keyword:  req.Keyword,
	}, pol)

	items, total, err := s.itemRepo.List(ctx, repository.ItemFilter{
		Keyword:    limited.Keyword,
		PrefixOnly: prefixOnly,
		Featured:   req.Featured,
		Page:       limited.Page,
		PageSize:   limited.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("查询商品列表失败: %w", err)
	}

	list := make([]*dto.ItemInfo, len(items))
	for i := range items {
		list[i] = s.toItemInfo(p, &items[i], pol)
	}
	return &dto.ListItemsResponse{Total: total, List: list}, nil
}

// ==================== 更新 ====================

// UpdateItem 更新商品：对象级网关（属主）+ 属性级网关（受限字段静默丢弃）
func (s *ItemService) UpdateItem(ctx context.Context, p *model.Principal, itemID int64, req *dto.UpdateItemRequest, pol *policy.Config) (*dto.ItemInfo, error) {
	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("查询商品失败: %w", err)
	}
	if item == nil {
		return nil, ErrItemNotFound
	}

	if d := s.authz.CheckObject(p, item.ID, item.OwnerID, pol); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, d.Reason)
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.PriceCents != nil {
		fields["price_amount"] = *req.PriceCents
	}
	if req.Stock != nil {
		fields["stock"] = *req.Stock
	}
	if req.IsFeatured != nil {
		fields["is_featured"] = *req.IsFeatured
	}
	if req.CostPriceCents != nil {
		fields["cost_price_amount"] = *req.CostPriceCents
	}
	if req.SupplierEmail != nil {
		fields["supplier_email"] = *req.SupplierEmail
	}

	filtered := s.authz.FilterFields(p, item.ID, item.OwnerID, fields,
		FieldAccess{Restricted: model.ItemRestrictedFields}, true, pol)

	if err := s.itemRepo.UpdateFields(ctx, item.ID, filtered); err != nil {
		return nil, fmt.Errorf("保存商品失败: %w", err)
	}

	updated, err := s.itemRepo.GetByID(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("查询商品失败: %w", err)
	}
	return s.toItemInfo(p, updated, pol), nil
}

// ==================== 辅助方法 ====================

// toItemInfo 转换为 DTO，受限字段按属性级网关裁剪
func (s *ItemService) toItemInfo(p *model.Principal, item *model.Item, pol *policy.Config) *dto.ItemInfo {
	info := &dto.ItemInfo{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		PriceCents:  item.PriceAmount,
		Currency:    item.Currency,
		Stock:       item.Stock,
		IsFeatured:  item.IsFeatured,
		OwnerID:     item.OwnerID,
		ImageURL:    item.ImageURL,
		CreatedAt:   item.CreatedAt,
	}

	requested := map[string]interface{}{
		"cost_price_amount": item.CostPriceAmount,
		"supplier_email":    item.SupplierEmail,
	}
	allowed := s.authz.FilterFields(p, item.ID, item.OwnerID, requested,
		FieldAccess{Restricted: model.ItemRestrictedFields}, false, pol)

	if v, ok := allowed["cost_price_amount"]; ok {
		cost := v.(int64)
		info.CostPriceCents = &cost
	}
	if v, ok := allowed["supplier_email"]; ok {
		email := v.(string)
		info.SupplierEmail = &email
	}
	return info
}

// ==================== 错误定义 ====================

var ErrItemNotFound = errors.New("商品不存在")
