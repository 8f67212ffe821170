package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shopsec_dev_v1_202608/internal/model"
	"shopsec_dev_v1_202608/internal/policy"
	"shopsec_dev_v1_202608/internal/repository"
)

// ==================== 测试辅助 ====================

func setupOrderTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	// :memory: 库在多连接下各自独立，收紧到单连接
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	db.AutoMigrate(&model.Item{}, &model.Order{}, &model.OrderItem{}, &model.SecurityEvent{})
	return db
}

// newOrderTestService 组装订单服务，gateway 可注入成功/失败桩
func newOrderTestService(t *testing.T, db *gorm.DB, sink AuditSink, gateway PaymentGateway) *OrderService {
	t.Helper()
	return NewOrderService(
		repository.NewOrderRepository(db),
		repository.NewItemRepository(db),
		NewAuthzService(sink),
		sink,
		gateway,
		time.Second,
	)
}

// seedItem 插入一个上架商品，返回 ID
func seedItem(t *testing.T, db *gorm.DB, name string, priceCents int64) int64 {
	t.Helper()
	item := &model.Item{
		Name:        name,
		PriceAmount: priceCents,
		Currency:    "USD",
		Stock:       100,
		OwnerID:     100,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("插入商品失败: %v", err)
	}
	return item.ID
}

// placeOrder 走正常流程造出一个 placed 订单
func placeOrder(t *testing.T, svc *OrderService, p *model.Principal, itemID int64, qty int, pol *policy.Config) *model.Order {
	t.Helper()
	ctx := context.Background()
	cart, err := svc.AddItem(ctx, p, itemID, qty, pol)
	if err != nil {
		t.Fatalf("加购失败: %v", err)
	}
	order, err := svc.StartCheckout(ctx, p, cart.ID, pol)
	if err != nil {
		t.Fatalf("下单失败: %v", err)
	}
	return order
}

var (
	testCustomer = &model.Principal{ID: 1, Role: model.RoleCustomer}
	testStaff    = &model.Principal{ID: 2, Role: model.RoleStaff}
)

// ==================== 购物车 ====================

func TestOrderService_AddItemCreatesCartAndMerges(t *testing.T) {
	db := setupOrderTestDB(t)
	svc := newOrderTestService(t, db, NopAuditSink{}, NewStubGateway(1))
	pol := policy.AllStrict()
	ctx := context.Background()

	itemID := seedItem(t, db, "T恤", 1200)

	// 首次加购隐式创建购物车
	cart, err := svc.AddItem(ctx, testCustomer, itemID, 2, pol)
	if err != nil {
		t.Fatalf("加购失败: %v", err)
	}
	if cart.Status != model.OrderStatusCart {
		t.Errorf("status = %s, want cart", cart.Status)
	}
	if cart.TotalAmount != 2400 {
		t.Errorf("total = %d, want 2400", cart.TotalAmount)
	}

	// 同商品合并行而不是新增行
	cart, err = svc.AddItem(ctx, testCustomer, itemID, 1, pol)
	if err != nil {
		t.Fatalf("二次加购失败: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Errorf("行数 = %d, want 1", len(cart.Items))
	}
	if cart.Items[0].Quantity != 3 {
		t.Errorf("数量 = %d, want 3", cart.Items[0].Quantity)
	}
	if cart.TotalAmount != 3600 {
		t.Errorf("total = %d, want 3600", cart.TotalAmount)
	}

	// 全程只应有一个购物车
	var count int64
	db.Model(&model.Order{}).Where("owner_id = ? AND status = ?", testCustomer.ID, model.OrderStatusCart).Count(&count)
	if count != 1 {
		t.Errorf("购物车数量 = %d, want 1", count)
	}
}

func TestOrderService_AddItemRejectsBadQuantity(t *testing.T) {
	db := setupOrderTestDB(t)
	svc := newOrderTestService(t, db, NopAuditSink{}, NewStubGateway(1))
	itemID := seedItem(t, db, "T恤", 1200)

	_, err := svc.AddItem(context.Background(), testCustomer, itemID, 0, policy.AllStrict())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestOrderService_RecomputeSkipsDeletedItem(t *testing.T) {
	db := setupOrderTestDB(t)
	svc := newOrderTestService(t, db, NopAuditSink{}, NewStubGateway(1))
	pol := policy.AllStrict()
	ctx := context.Background()

	keepID := seedItem(t, db, "保留款", 1000)
	goneID := seedItem(t, db, "下架款", 500)

	if _, err := svc.AddItem(ctx, testCustomer, keepID, 1, pol); err != nil {
		t.Fatalf("加购失败: %v", err)
	}
	if _, err := svc.AddItem(ctx, testCustomer, goneID, 2, pol); err != nil {
		t.Fatalf("加购失败: %v", err)
	}

	// 商品在购物途中被删除
	db.Delete(&model.Item{}, goneID)

	cart, err := svc.AddItem(ctx, testCustomer, keepID, 1, pol)
	if err != nil {
		t.Fatalf("重算不应因缺失商品整单失败: %v", err)
	}
	// 缺失行跳过：总额只含保留款 2 件
	if cart.TotalAmount != 2000 {
		t.Errorf("total = %d, want 2000", cart.TotalAmount)
	}
}

func TestOrderService_ConcurrentAddItemSingleCart(t *testing.T) {
	db := setupOrderTestDB(t)
	svc := newOrderTestService(t, db, NopAuditSink{}, NewStubGateway(1))
	pol := policy.AllStrict()
	itemID := seedItem(t, db, "T恤", 100)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AddItem(context.Background(), testCustomer, itemID, 1, pol); err != nil {
				t.Errorf("并发加购失败: %v", err)
			}
		}()
	}
	wg.Wait()

	var count int64
	db.Model(&model.Order{}).Where("owner_id = ? AND status = ?", testCustomer.ID, model.OrderStatusCart).Count(&count)
	if count != 1 {
		t.Fatalf("并发加购产生了 %d 个购物车, want 1", count)
	}

	cart, _ := svc.GetCart(context.Background(), testCustomer)
	if cart.Items[0].Quantity != workers {
		t.Errorf("数量 = %d, want %d", cart.Items[0].Quantity, workers)
	}
}

// gatedItemRepo 在 GetByIDs 上布一个闸门，用来把 AddItem
// 卡在读改写中间，和其它转移交错
type gatedItemRepo struct {
	repository.ItemRepository

	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func (r *gatedItemRepo) GetByIDs(ctx context.Context, ids []int64) ([]model.Item, error) {
	r.mu.Lock()
	trip := r.armed
	r.armed = false
	r.mu.Unlock()

	if trip {
		r.entered <- struct{}{}
		<-r.release
	}
	return r.ItemRepository.GetByIDs(ctx, ids)
}

func (r *gatedItemRepo) arm() {
	r.mu.Lock()
	r.armed = true
	r.mu.Unlock()
}

// 加购写回订单整行，必须和 checkout 按同一订单串行，
// 否则挂起中的加购会把已 placed 的订单改回 cart
func TestOrderService_AddItemDoesNotRevertConcurrentCheckout(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := &gatedItemRepo{
		ItemRepository: repository.NewItemRepository(db),
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	svc := NewOrderService(
		repository.NewOrderRepository(db),
		repo,
		NewAuthzService(NopAuditSink{}),
		NopAuditSink{},
		NewStubGateway(1),
		time.Second,
	)
	pol := policy.AllStrict()
	ctx := context.Background()

	itemID := seedItem(t, db, "T恤", 2500)
	cart, err := svc.AddItem(ctx, testCustomer, itemID, 1, pol)
	if err != nil {
		t.Fatalf("加购失败: %v", err)
	}

	// 第二次加购卡在重算总额处，此时必须已持有订单锁
	repo.arm()
	addDone := make(chan error, 1)
	go func() {
		_, err := svc.AddItem(ctx, testCustomer, itemID, 1, pol)
		addDone <- err
	}()
	<-repo.entered

	// checkout 与挂起中的加购并发，只能等加购写完再推进
	checkoutDone := make(chan error, 1)
	go func() {
		_, err := svc.StartCheckout(ctx, testCustomer, cart.ID, pol)
		checkoutDone <- err
	}()

	select {
	case err := <-checkoutDone:
		t.Fatalf("checkout 未与加购互斥就完成了: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(repo.release)
	if err := <-addDone; err != nil {
		t.Fatalf("并发加购失败: %v", err)
	}
	if err := <-checkoutDone; err != nil {
		t.Fatalf("下单失败: %v", err)
	}

	// 终态必须是 placed：加购不得把状态写回 cart
	order, err := svc.GetOrder(ctx, testCustomer, cart.ID, pol)
	if err != nil {
		t.Fatalf("查单失败: %v", err)
	}
	if order.Status != model.OrderStatusPlaced {
		t.Fatalf("status = %s, want placed（加购覆盖了 checkout 的状态推进）", order.Status)
	}
	if order.Items[0].Quantity != 2 {
		t.Errorf("数量 = %d, want 2", order.Items[0].Quantity)
	}
}

// ==================== 生命周期 ====================

func TestOrderService_HappyPathStrict(t *testing.T) {
	db := setupOrderTestDB(t)
	svc := newOrderTestService(t, db, NopAuditSink{}, NewStubGateway(1))
	pol := policy.AllStrict()
	ctx := context.Background()

	itemID := seedItem(t, db, "T恤", 2500)
	order := placeOrder(t, svc, testCustomer, itemID, 1, pol)
	if order.Status != model.OrderStatusPlaced {
		t.Fatalf("status = %s, want placed", order.Status)
	}

	order, err := svc.Pay(ctx, testCustomer, order.ID, PayRequest{}, pol)
	if err != nil {
		t.Fatalf("支付失败: %v", err)
	}
	if order.Status != model.OrderStatusPaid || order.PaidAt == nil {
		t.Fatalf("status = %s, want paid（含时间戳）", order.Status)
	}

	order, err = svc.Ship(ctx, testStaff, order.ID, "", pol)
	if err != nil {
		t.Fatalf("发货失败: %v", err)
	}
	if order.Status != model.OrderStatusShipped || order.ShippedAt == nil {
		t.Fatalf("status = %s, want shipped（含时间戳）", order.Status)
	}

	// 终态之后的任何生命周期调用都是拒绝而不是崩
	if _, err := svc.Pay(ctx, testCustomer, order.ID, PayRequest{}, pol); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("终态支付 err = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.Ship(ctx, testStaff, order.ID, "", pol); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("终态发货 err = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.StartCheckout(ctx, testCustomer, order.ID, pol); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("终态下单 err = %v, want ErrInvalidTransition", err)
	}
}

func TestOrderService_ShipFromCartDeniedBothModes(t *testing.T) {
	for _, pol := range []*policy.Config{policy.AllStrict(), policy.AllPermissive()} {
		db := setupOrderTestDB(t)
		svc := newOrderTestService(t, db, NopAuditSink{}, NewStubGateway(1))
		ctx := context.Background()

		itemID := seedItem(t, db, "T恤", 1000)
		cart, err := svc.AddItem(ctx, testCustomer, itemID, 1, pol)
		if err != nil {
			t.Fatalf("加购失败: %v", err)
		}

		// 购物车不在可发货窗口，宽松策略也不放行
		if _, err := svc.Ship(ctx, testStaff, cart.ID, "staff", pol); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("cart 发货 err = %v, want ErrInvalidTransition", err)
		}
	}
}

// ==================== 用券 ====================

func TestOrderService_CouponStrictOncePerOrder(t *testing.T) {
	db := setupOrderTestDB(t)
	svc := newOrderTestService(t, db, NopAuditSink{}, NewStubGateway(1))
	pol := policy.AllStrict()
	ctx := context.Background()

	itemID := seedItem(t, db, "T恤", 2500)
	order := placeOrder(t, svc, testCustomer, itemID, 1, pol)

	order, err := svc.ApplyCoupon(ctx, testCustomer, order.ID, "FREESHIP", pol)
	if err != nil {
		t.Fatalf("用券失败: %v", err)
	}
	if order.TotalAmount != 1500 {
		t.Errorf("total = %d, want 1500", order.TotalAmount)
	}

	// 重复用券：幂等拒绝，金额和券码都不动
	_, err = svc.ApplyCoupon(ctx, testCustomer, order.ID, "WELCOME5", pol)
	if !errors.Is(err, ErrCouponAlreadyApplied) {
		t.Fatalf("err = %v, want ErrCouponAlreadyApplied", err)
	}
	reloaded, _ := svc.GetOrder(ctx, testCustomer, order.ID, pol)
	if reloaded.TotalAmount != 1500 || reloaded.DiscountCode != "FREESHIP" {
		t.Errorf("拒绝后状态被改动: total=%d code=%s", reloaded.TotalAmount, reloaded.DiscountCode)
	}
}

func TestOrderService_CouponStrictClampsAtZero(t *testing.T) {
	db := setupOrderTestDB(t)
	svc := newOrderTestService(t, db, NopAuditSink{}, NewStubGateway(1))
	pol := policy.AllStrict()

	itemID := seedItem(t, db, "小物件", 300)
	order := placeOrder(t, svc, testCustomer, itemID, 1, pol)

	// 面额超过总额：钳到 0 而不是负数
	order, err := svc.ApplyCoupon(context.Background(), testCustomer, order.ID, "VIP20", pol)
	if err != nil {
		t.Fatalf("用券失败: %v", err)
	}
	if order.TotalAmount != 0 {
		t.Errorf("total = %d, want 0", order.TotalAmount)
	}
}

func TestOrderService_CouponPermissiveStacksWithoutFloor(t *testing.T) {
	db := setupOrderTestDB(t)
	sink := &recordingSink{}
	svc := newOrderTestService(t, db, sink, NewStubGateway(1))
	pol := policy.AllPermissive()
	ctx := context.Background()

	itemID := seedItem(t, db, "T恤", 2500)
	order := placeOrder(t, svc, testCustomer, itemID, 1, pol)

	// 同一券码反复用：每次都从当前总额重扣
	order, _ = svc.ApplyCoupon(ctx, testCustomer, order.ID, "FREESHIP", pol)
	if order.TotalAmount != 1500 {
		t.Fatalf("第一次用券 total = %d, want 1500", order.TotalAmount)
	}
	order, _ = svc.ApplyCoupon(ctx, testCustomer, order.ID, "FREESHIP", pol)
	if order.TotalAmount != 500 {
		t.Fatalf("第二次用券 total = %d, want 500", order.TotalAmount)
	}
	// 不设下限，扣成负数照样落库
	order, _ = svc.ApplyCoupon(ctx, testCustomer, order.ID, "FREESHIP", pol)
	if order.TotalAmount != -500 {
		t.Fatalf("第三次用券 total = %d, want -500", order.TotalAmount)
	}

	// 第二次起每次补记一条业务流违规
	if sink.count(model.EventBusinessFlowViolation) != 2 {
		t.Errorf("违规事件 = %d, want 2", sink.count(model.EventBusinessFlowViolation))
	}
}

func TestOrderService_CouponUnknownCode(t *testing.T) {
	db := setupOrderTestDB(t)
	svc := newOrderTestService(t, db, NopAuditSink{}, NewStubGateway(1))
	pol := policy.AllPermissive()

	itemID := seedItem(t, db, "T恤", 2500)
	order := placeOrder(t, svc, testCustomer, itemID, 1, pol)

	// 无效券码两种策略都拒绝
	if _, err := svc.ApplyCoupon(context.Background(), testCustomer, order.ID, "NOSUCH", pol); !errors.Is(err, ErrInvalidCoupon) {
		t.Fatalf("err = %v, want ErrInvalidCoupon", err)
	}
}

// ==================== 支付 ====================

func TestOrderService_PayStrictIgnoresClientAssertion(t *testing.T) {
	db := setupOrderTestDB(t)
	svc := newOrderTestService(t, db, NopAuditSink{}, NewStubGateway(0)) // 桩必拒
	pol := policy.AllStrict()
	ctx := context.Background()

	itemID := seedItem(t, db, "T恤", 2500)
	order := placeOrder(t, svc, testCustomer, itemID, 1, pol)

	// 客户端自报已支付，严格策略照样走桩——桩拒绝即失败
	_, err := svc.Pay(ctx, testCustomer, order.ID, PayRequest{ClientAssertedPaid: true}, pol)
	if !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("err = %v, want ErrPaymentFailed", err)
	}

	// 订单停留在 placed
	reloaded, _ := svc.GetOrder(ctx, testCustomer, order.ID, pol)
	if reloaded.Status != model.OrderStatusPlaced {
		t.Errorf("status = %s, want placed", reloaded.Status)
	}
}

func TestOrderService_PayPermissiveTrustsClientAssertion(t *testing.T) {
	db := setupOrderTestDB(t)
	sink := &recordingSink{}
	svc := newOrderTestService(t, db, sink, NewStubGateway(0)) // 桩必拒也无所谓
	pol := policy.AllPermissive()
	ctx := context.Background()

	itemID := seedItem(t, db, "T恤", 2500)
	order := placeOrder(t, svc, testCustomer, itemID, 1, pol)

	// 自报已支付：桩压根不调用，直接转 paid
	order, err := svc.Pay(ctx, testCustomer, order.ID, PayRequest{
		ClientAssertedPaid: true,
		AmountCents:        1, // 自报金额与实际不符，仅记事件
		Currency:           "USD",
	}, pol)
	if err != nil {
		t.Fatalf("支付失败: %v", err)
	}
	if order.Status != model.OrderStatusPaid {
		t.Fatalf("status = %s, want paid", order.Status)
	}

	ev := sink.last(model.EventUnsafeConsumption)
	if ev == nil {
		t.Fatal("应记一条 unsafe_consumption 事件")
	}
	if ev.TargetID != order.ID {
		t.Errorf("事件 target = %d, want %d", ev.TargetID, order.ID)
	}
}

func TestOrderService_PayPermissiveAssertedFalseCharges(t *testing.T) {
	db := setupOrderTestDB(t)
	svc := newOrderTestService(t, db, &recordingSink{}, NewStubGateway(1))
	pol := policy.AllPermissive()

	itemID := seedItem(t, db, "T恤", 2500)
	order := placeOrder(t, svc, testCustomer, itemID, 1, pol)

	// 断言为 false 回落正常扣款路径
	order, err := svc.Pay(context.Background(), testCustomer, order.ID, PayRequest{ClientAssertedPaid: false}, pol)
	if err != nil {
		t.Fatalf("支付失败: %v", err)
	}
	if order.Status != model.OrderStatusPaid {
		t.Errorf("status = %s, want paid", order.Status)
	}
}

// ==================== 发货 ====================

func TestOrderService_ShipStrictRequiresPaidAndStaff(t *testing.T) {
	db := setupOrderTestDB(t)
	svc := newOrderTestService(t, db, NopAuditSink{}, NewStubGateway(1))
	pol := policy.AllStrict()
	ctx := context.Background()

	itemID := seedItem(t, db, "T恤", 2500)
	order := placeOrder(t, svc, testCustomer, itemID, 1, pol)

	// placed 未支付：Staff 也发不了
	if _, err := svc.Ship(ctx, testStaff, order.ID, "", pol); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}

	// 顾客带断言也发不了
	if _, err := svc.Ship(ctx, testCustomer, order.ID, "staff", pol); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}
}

func TestOrderService_ShipPermissiveBeforePayment(t *testing.T) {
	db := setupOrderTestDB(t)
	sink := &recordingSink{}
	svc := newOrderTestService(t, db, sink, NewStubGateway(1))
	pol := policy.AllPermissive()
	ctx := context.Background()

	itemID := seedItem(t, db, "T恤", 2500)
	order := placeOrder(t, svc, testCustomer, itemID, 1, pol)

	// 顾客断言 staff + 未支付发货：双重放行，各记一条事件
	order, err := svc.Ship(ctx, testCustomer, order.ID, "staff", pol)
	if err != nil {
		t.Fatalf("发货失败: %v", err)
	}
	if order.Status != model.OrderStatusShipped {
		t.Fatalf("status = %s, want shipped", order.Status)
	}

	if sink.count(model.EventRoleSubstitution) != 1 {
		t.Errorf("角色替换事件 = %d, want 1", sink.count(model.EventRoleSubstitution))
	}
	if sink.count(model.EventBusinessFlowViolation) != 1 {
		t.Errorf("业务流违规事件 = %d, want 1", sink.count(model.EventBusinessFlowViolation))
	}
}

// ==================== 对象级网关接入 ====================

func TestOrderService_GetOrderObjectGate(t *testing.T) {
	db := setupOrderTestDB(t)
	sink := &recordingSink{}

	itemID := seedItem(t, db, "T恤", 2500)

	// 严格：他人查单被拒
	strictSvc := newOrderTestService(t, db, sink, NewStubGateway(1))
	order := placeOrder(t, strictSvc, testCustomer, itemID, 1, policy.AllStrict())

	other := &model.Principal{ID: 42, Role: model.RoleCustomer}
	if _, err := strictSvc.GetOrder(context.Background(), other, order.ID, policy.AllStrict()); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}

	// 宽松：放行 + 越权事件
	got, err := strictSvc.GetOrder(context.Background(), other, order.ID, policy.AllPermissive())
	if err != nil {
		t.Fatalf("宽松策略应放行: %v", err)
	}
	if got.ID != order.ID {
		t.Errorf("order id = %d, want %d", got.ID, order.ID)
	}
	if sink.count(model.EventObjectBypass) != 1 {
		t.Errorf("越权事件 = %d, want 1", sink.count(model.EventObjectBypass))
	}
}

func TestOrderService_OrderNotFound(t *testing.T) {
	db := setupOrderTestDB(t)
	svc := newOrderTestService(t, db, NopAuditSink{}, NewStubGateway(1))

	if _, err := svc.GetOrder(context.Background(), testCustomer, 9999, policy.AllStrict()); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}
