package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"shopsec_dev_v1_202608/internal/api/dto"
	"shopsec_dev_v1_202608/internal/middleware"
	"shopsec_dev_v1_202608/internal/model"
	"shopsec_dev_v1_202608/internal/policy"
	"shopsec_dev_v1_202608/internal/service"
)

// ==================== OrderController 订单控制器 ====================

// OrderController 订单生命周期入口
type OrderController struct {
	orderService *service.OrderService
	pol          *policy.Config
}

// NewOrderController 创建订单控制器
func NewOrderController(orderService *service.OrderService, pol *policy.Config) *OrderController {
	return &OrderController{orderService: orderService, pol: pol}
}

// AddItem 购物车加商品（没有购物车则隐式创建）
// @Summary 购物车加商品
// @Tags Order
// @Accept json
// @Produce json
// @Param request body dto.AddItemRequest true "商品与数量"
// @Success 200 {object} dto.OrderInfo
// @Failure 400 {object} map[string]interface{}
// @Router /orders/cart/items [post]
func (c *OrderController) AddItem(ctx *gin.Context) {
	var req dto.AddItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBadRequest(ctx, err)
		return
	}

	p := middleware.GetPrincipal(ctx)
	order, err := c.orderService.AddItem(ctx.Request.Context(), p, req.ItemID, req.Quantity, c.pol)
	if err != nil {
		respondError(ctx, err, c.pol)
		return
	}
	respondOK(ctx, "已加入购物车", toOrderInfo(order))
}

// GetCart 查看购物车
// @Summary 查看购物车
// @Tags Order
// @Produce json
// @Success 200 {object} dto.OrderInfo
// @Router /orders/cart [get]
func (c *OrderController) GetCart(ctx *gin.Context) {
	p := middleware.GetPrincipal(ctx)
	order, err := c.orderService.GetCart(ctx.Request.Context(), p)
	if err != nil {
		respondError(ctx, err, c.pol)
		return
	}
	if order == nil {
		respondOK(ctx, "购物车为空", nil)
		return
	}
	respondOK(ctx, "", toOrderInfo(order))
}

// StartCheckout 下单：cart → placed
// @Summary 下单
// @Tags Order
// @Produce json
// @Param id path int true "订单 ID"
// @Success 200 {object} dto.OrderInfo
// @Failure 409 {object} map[string]interface{}
// @Router /orders/{id}/checkout [post]
func (c *OrderController) StartCheckout(ctx *gin.Context) {
	c.transition(ctx, func(p *model.Principal, orderID int64) (*model.Order, error) {
		return c.orderService.StartCheckout(ctx.Request.Context(), p, orderID, c.pol)
	}, "下单成功")
}

// ApplyCoupon 用券
// @Summary 用券
// @Tags Order
// @Accept json
// @Produce json
// @Param id path int true "订单 ID"
// @Param request body dto.ApplyCouponRequest true "券码"
// @Success 200 {object} dto.OrderInfo
// @Failure 409 {object} map[string]interface{}
// @Router /orders/{id}/coupon [post]
func (c *OrderController) ApplyCoupon(ctx *gin.Context) {
	var req dto.ApplyCouponRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBadRequest(ctx, err)
		return
	}

	c.transition(ctx, func(p *model.Principal, orderID int64) (*model.Order, error) {
		return c.orderService.ApplyCoupon(ctx.Request.Context(), p, orderID, req.Code, c.pol)
	}, "用券成功")
}

// Pay 支付
// @Summary 支付
// @Tags Order
// @Accept json
// @Produce json
// @Param id path int true "订单 ID"
// @Param request body dto.PayOrderRequest true "支付信息"
// @Success 200 {object} dto.OrderInfo
// @Failure 402 {object} map[string]interface{}
// @Router /orders/{id}/pay [post]
func (c *OrderController) Pay(ctx *gin.Context) {
	var req dto.PayOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBadRequest(ctx, err)
		return
	}

	c.transition(ctx, func(p *model.Principal, orderID int64) (*model.Order, error) {
		return c.orderService.Pay(ctx.Request.Context(), p, orderID, service.PayRequest{
			ClientAssertedPaid: req.Paid,
			AmountCents:        req.AmountCents,
			Currency:           req.Currency,
		}, c.pol)
	}, "支付成功")
}

// Ship 发货
// @Summary 发货
// @Tags Order
// @Accept json
// @Produce json
// @Param id path int true "订单 ID"
// @Param request body dto.ShipOrderRequest true "发货信息"
// @Success 200 {object} dto.OrderInfo
// @Failure 409 {object} map[string]interface{}
// @Router /orders/{id}/ship [post]
func (c *OrderController) Ship(ctx *gin.Context) {
	var req dto.ShipOrderRequest
	// 发货可以不带 body
	_ = ctx.ShouldBindJSON(&req)

	c.transition(ctx, func(p *model.Principal, orderID int64) (*model.Order, error) {
		return c.orderService.Ship(ctx.Request.Context(), p, orderID, req.AssertedRole, c.pol)
	}, "发货成功")
}

// GetDetail 订单详情
// @Summary 订单详情
// @Tags Order
// @Produce json
// @Param id path int true "订单 ID"
// @Success 200 {object} dto.OrderInfo
// @Failure 403 {object} map[string]interface{}
// @Router /orders/{id} [get]
func (c *OrderController) GetDetail(ctx *gin.Context) {
	c.transition(ctx, func(p *model.Principal, orderID int64) (*model.Order, error) {
		return c.orderService.GetOrder(ctx.Request.Context(), p, orderID, c.pol)
	}, "")
}

// GetList 我的订单列表
// @Summary 订单列表
// @Tags Order
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} dto.OrderListResponse
// @Router /orders [get]
func (c *OrderController) GetList(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "20"))

	p := middleware.GetPrincipal(ctx)
	orders, total, err := c.orderService.ListOrders(ctx.Request.Context(), p, page, pageSize, c.pol)
	if err != nil {
		respondError(ctx, err, c.pol)
		return
	}

	list := make([]*dto.OrderInfo, len(orders))
	for i := range orders {
		list[i] = toOrderInfo(&orders[i])
	}
	respondOK(ctx, "", &dto.OrderListResponse{Total: total, List: list})
}

// ==================== 辅助方法 ====================

// transition 解析路径订单 ID 并执行一次生命周期操作
func (c *OrderController) transition(ctx *gin.Context, op func(*model.Principal, int64) (*model.Order, error), message string) {
	orderID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(ctx, err)
		return
	}

	p := middleware.GetPrincipal(ctx)
	order, err := op(p, orderID)
	if err != nil {
		respondError(ctx, err, c.pol)
		return
	}
	respondOK(ctx, message, toOrderInfo(order))
}

// toOrderInfo 转换为 DTO
func toOrderInfo(order *model.Order) *dto.OrderInfo {
	lines := make([]dto.OrderLineInfo, len(order.Items))
	for i, line := range order.Items {
		lines[i] = dto.OrderLineInfo{
			ItemID:     line.ItemID,
			Quantity:   line.Quantity,
			PriceCents: line.PriceAmount,
		}
	}
	return &dto.OrderInfo{
		ID:           order.ID,
		OwnerID:      order.OwnerID,
		Status:       order.Status,
		TotalCents:   order.TotalAmount,
		Currency:     order.Currency,
		DiscountCode: order.DiscountCode,
		Items:        lines,
		PaidAt:       order.PaidAt,
		ShippedAt:    order.ShippedAt,
		CreatedAt:    order.CreatedAt,
	}
}
