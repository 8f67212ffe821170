package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopsec_dev_v1_202608/internal/model"
	"shopsec_dev_v1_202608/internal/policy"
	"shopsec_dev_v1_202608/internal/repository"
	"shopsec_dev_v1_202608/pkg/utils"
)

// ==================== 优惠券表 ====================

// couponTable 优惠券面额（分）
var couponTable = map[string]int64{
	"FREESHIP": 1000,
	"WELCOME5": 500,
	"VIP20":    2000,
}

// ==================== OrderService 订单状态机 ====================

// OrderService 订单生命周期：cart → placed → paid → shipped
// 线性推进，严格业务流策略下不越序不回退；shipped 为终态，
// 终态之后的任何生命周期调用都是 Deny/no-op，不会崩
//
// 并发：同一订单的变更经 KeyedMutex 按订单 ID 串行化；
// AddItem 额外先按属主加锁，覆盖"每人至多一个购物车"的创建竞态，
// 再持有订单锁做读改写，和 checkout/pay/ship 互斥
type OrderService struct {
	orderRepo  repository.OrderRepository
	itemRepo   repository.ItemRepository
	authz      *AuthzService
	sink       AuditSink
	gateway    PaymentGateway
	payTimeout time.Duration

	cartLocks  *utils.KeyedMutex // key = owner id
	orderLocks *utils.KeyedMutex // key = order id
}

// NewOrderService 创建订单服务
func NewOrderService(
	orderRepo repository.OrderRepository,
	itemRepo repository.ItemRepository,
	authz *AuthzService,
	sink AuditSink,
	gateway PaymentGateway,
	payTimeout time.Duration,
) *OrderService {
	if payTimeout <= 0 {
		payTimeout = 5 * time.Second
	}
	return &OrderService{
		orderRepo:  orderRepo,
		itemRepo:   itemRepo,
		authz:      authz,
		sink:       sink,
		gateway:    gateway,
		payTimeout: payTimeout,
		cartLocks:  utils.NewKeyedMutex(),
		orderLocks: utils.NewKeyedMutex(),
	}
}

// ==================== addItem ====================

// AddItem 向调用方的购物车加商品
// 首次调用找不到购物车则隐式创建；已有同商品行合并数量；
// 每次都按仓库现价重算总额，已被删除的商品行直接跳过而不是整单失败
func (s *OrderService) AddItem(ctx context.Context, p *model.Principal, itemID int64, qty int, pol *policy.Config) (*model.Order, error) {
	if p == nil {
		return nil, ErrAuthInvalid
	}
	if qty < 1 {
		return nil, fmt.Errorf("%w: 数量必须 >= 1", ErrValidation)
	}

	unlock := s.cartLocks.Lock(p.ID)
	defer unlock()

	cart, err := s.orderRepo.GetActiveCart(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("查询购物车失败: %w", err)
	}

	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("查询商品失败: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("%w: 商品 %d 不存在", ErrValidation, itemID)
	}

	if cart == nil {
		cart = &model.Order{
			OwnerID:  p.ID,
			Status:   model.OrderStatusCart,
			Currency: item.Currency,
		}
		if err := s.orderRepo.Create(ctx, cart); err != nil {
			return nil, fmt.Errorf("创建购物车失败: %w", err)
		}
	}

	// 订单锁拿到之前 checkout 可能已经推进状态，锁内重读再改写，
	// 防止把陈旧的 cart 状态写回去
	unlockOrder := s.orderLocks.Lock(cart.ID)
	defer unlockOrder()

	cart, err = s.loadOrder(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	if !cart.IsCart() {
		return nil, ErrInvalidTransition
	}

	// 合并已有行或追加新行
	merged := false
	for i := range cart.Items {
		if cart.Items[i].ItemID == itemID {
			cart.Items[i].Quantity += qty
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, model.OrderItem{
			OrderID:     cart.ID,
			ItemID:      itemID,
			Quantity:    qty,
			PriceAmount: item.PriceAmount,
		})
	}

	if err := s.recomputeTotal(ctx, cart); err != nil {
		return nil, err
	}

	if err := s.orderRepo.SaveWithItems(ctx, cart); err != nil {
		return nil, fmt.Errorf("保存购物车失败: %w", err)
	}
	return cart, nil
}

// recomputeTotal 以仓库现价重算总额，缺失的商品跳过
func (s *OrderService) recomputeTotal(ctx context.Context, order *model.Order) error {
	ids := make([]int64, 0, len(order.Items))
	for _, line := range order.Items {
		ids = append(ids, line.ItemID)
	}

	items, err := s.itemRepo.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("查询商品价格失败: %w", err)
	}
	priceByID := make(map[int64]int64, len(items))
	for _, it := range items {
		priceByID[it.ID] = it.PriceAmount
	}

	var total int64
	for _, line := range order.Items {
		price, ok := priceByID[line.ItemID]
		if !ok {
			// 商品已在购物途中被删除
			continue
		}
		total += price * int64(line.Quantity)
	}
	order.TotalAmount = total
	return nil
}

// ==================== startCheckout ====================

// StartCheckout 购物车下单：cart → placed
// 需要对象级网关放行；该转移没有业务流分歧
func (s *OrderService) StartCheckout(ctx context.Context, p *model.Principal, orderID int64, pol *policy.Config) (*model.Order, error) {
	unlock := s.orderLocks.Lock(orderID)
	defer unlock()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if d := s.authz.CheckObject(p, order.ID, order.OwnerID, pol); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, d.Reason)
	}
	if !order.CanStartCheckout() {
		return nil, ErrInvalidTransition
	}

	order.Status = model.OrderStatusPlaced
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("保存订单失败: %w", err)
	}
	return order, nil
}

// ==================== applyCoupon ====================

// ApplyCoupon 用券，placed/paid 阶段有效
// 严格业务流：一单一券，重复用券是幂等 Deny，不动任何状态
// 宽松业务流：每次都从"当前总额"重扣并覆盖券码——可无限叠加/重放，
// 第二次起每次补记一条业务流违规事件
func (s *OrderService) ApplyCoupon(ctx context.Context, p *model.Principal, orderID int64, code string, pol *policy.Config) (*model.Order, error) {
	unlock := s.orderLocks.Lock(orderID)
	defer unlock()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if d := s.authz.CheckObject(p, order.ID, order.OwnerID, pol); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, d.Reason)
	}
	if !order.CanApplyCoupon() {
		return nil, ErrInvalidTransition
	}

	discount, ok := couponTable[code]
	if !ok {
		return nil, fmt.Errorf("%w: 券码 %s", ErrInvalidCoupon, code)
	}

	if pol.BusinessFlowStrict {
		if order.DiscountCode != "" {
			return nil, ErrCouponAlreadyApplied
		}
		order.TotalAmount -= discount
		if order.TotalAmount < 0 {
			order.TotalAmount = 0
		}
		order.DiscountCode = code
	} else {
		if order.DiscountCode != "" {
			s.sink.Emit(model.SecurityEvent{
				Category:    model.EventBusinessFlowViolation,
				PrincipalID: principalID(p),
				TargetID:    order.ID,
				Detail:      fmt.Sprintf("重复用券 %s（已有 %s），折扣叠加", code, order.DiscountCode),
			})
		}
		// 从当前总额重扣，不设下限——负总额正是要演示的缺陷
		order.TotalAmount -= discount
		order.DiscountCode = code
	}

	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("保存订单失败: %w", err)
	}
	return order, nil
}

// ==================== pay ====================

// PayRequest 支付请求
// ClientAssertedPaid 是客户端自报的支付结果，严格策略完全无视；
// AmountCents/Currency 仅作事件附注，不参与对账
type PayRequest struct {
	ClientAssertedPaid bool
	AmountCents        int64
	Currency           string
}

// Pay 支付：placed → paid
// 严格业务流：调外部支付桩（带超时，超时按失败处理），桩成功才转 paid
// 宽松业务流：ClientAssertedPaid=true 直接转 paid，桩压根不调用
// （客户端可以白嫖），记一条 unsafe_consumption 事件留底；
// 断言为 false 时回落到正常扣款路径
func (s *OrderService) Pay(ctx context.Context, p *model.Principal, orderID int64, req PayRequest, pol *policy.Config) (*model.Order, error) {
	unlock := s.orderLocks.Lock(orderID)
	defer unlock()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if d := s.authz.CheckObject(p, order.ID, order.OwnerID, pol); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, d.Reason)
	}
	if !order.CanPay() {
		return nil, ErrInvalidTransition
	}

	if !pol.BusinessFlowStrict && req.ClientAssertedPaid {
		s.sink.Emit(model.SecurityEvent{
			Category:    model.EventUnsafeConsumption,
			PrincipalID: principalID(p),
			TargetID:    order.ID,
			Detail: fmt.Sprintf("信任客户端断言的支付结果, 自报 amount=%d currency=%s, 实际应付=%d %s",
				req.AmountCents, req.Currency, order.TotalAmount, order.Currency),
		})
		return s.markPaid(ctx, order)
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.payTimeout)
	defer cancel()
	if err := s.gateway.Charge(chargeCtx, order.TotalAmount, order.Currency); err != nil {
		// 超时同样按失败处理，订单停留在 placed
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	return s.markPaid(ctx, order)
}

func (s *OrderService) markPaid(ctx context.Context, order *model.Order) (*model.Order, error) {
	now := time.Now()
	order.Status = model.OrderStatusPaid
	order.PaidAt = &now
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("保存订单失败: %w", err)
	}
	return order, nil
}

// ==================== ship ====================

// Ship 发货，需要 Staff 角色（函数级网关，宽松策略可被客户端断言顶替）
// 严格业务流：只有 paid → shipped
// 宽松业务流：placed/paid 一律转 shipped，前态不是 paid 时
// 记一条业务流违规事件
func (s *OrderService) Ship(ctx context.Context, p *model.Principal, orderID int64, clientAssertedRole string, pol *policy.Config) (*model.Order, error) {
	unlock := s.orderLocks.Lock(orderID)
	defer unlock()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if d := s.authz.CheckFunction(p, model.RoleStaff, clientAssertedRole, pol); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, d.Reason)
	}
	if !order.CanShip() {
		return nil, ErrInvalidTransition
	}

	if pol.BusinessFlowStrict {
		if order.Status != model.OrderStatusPaid {
			return nil, ErrInvalidTransition
		}
	} else if order.Status != model.OrderStatusPaid {
		s.sink.Emit(model.SecurityEvent{
			Category:    model.EventBusinessFlowViolation,
			PrincipalID: principalID(p),
			TargetID:    order.ID,
			Detail:      fmt.Sprintf("未支付先发货, 前态=%s", order.Status),
		})
	}

	now := time.Now()
	order.Status = model.OrderStatusShipped
	order.ShippedAt = &now
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("保存订单失败: %w", err)
	}
	return order, nil
}

// ==================== 查询 ====================

// GetOrder 查单（对象级网关）
func (s *OrderService) GetOrder(ctx context.Context, p *model.Principal, orderID int64, pol *policy.Config) (*model.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if d := s.authz.CheckObject(p, order.ID, order.OwnerID, pol); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, d.Reason)
	}
	return order, nil
}

// GetCart 查调用方购物车，可能为 nil
func (s *OrderService) GetCart(ctx context.Context, p *model.Principal) (*model.Order, error) {
	if p == nil {
		return nil, ErrAuthInvalid
	}
	return s.orderRepo.GetActiveCart(ctx, p.ID)
}

// ListOrders 调用方的订单列表
func (s *OrderService) ListOrders(ctx context.Context, p *model.Principal, page, pageSize int, pol *policy.Config) ([]model.Order, int64, error) {
	if p == nil {
		return nil, 0, ErrAuthInvalid
	}
	req, _ := s.authz.LimitQuery(p, PageRequest{Page: page, PageSize: pageSize}, pol)
	return s.orderRepo.ListByOwner(ctx, p.ID, req.Page, req.PageSize)
}

// loadOrder 取订单（含订单行），不存在按校验失败处理
func (s *OrderService) loadOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	if orderID <= 0 {
		return nil, fmt.Errorf("%w: 非法订单 ID", ErrValidation)
	}
	order, err := s.orderRepo.GetByIDWithItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("查询订单失败: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ==================== 错误定义 ====================

var (
	ErrValidation           = errors.New("请求参数不合法")
	ErrAccessDenied         = errors.New("没有权限执行该操作")
	ErrOrderNotFound        = errors.New("订单不存在")
	ErrInvalidTransition    = errors.New("订单当前状态不允许该操作")
	ErrInvalidCoupon        = errors.New("无效的优惠券")
	ErrCouponAlreadyApplied = errors.New("该订单已使用过优惠券")
	ErrPaymentFailed        = errors.New("支付失败")
)
