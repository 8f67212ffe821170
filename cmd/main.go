package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"shopsec_dev_v1_202608/internal/config"
	"shopsec_dev_v1_202608/internal/controller"
	"shopsec_dev_v1_202608/internal/middleware"
	"shopsec_dev_v1_202608/internal/model"
	"shopsec_dev_v1_202608/internal/policy"
	"shopsec_dev_v1_202608/internal/repository"
	"shopsec_dev_v1_202608/internal/router"
	"shopsec_dev_v1_202608/internal/service"
	"shopsec_dev_v1_202608/internal/task"
	"shopsec_dev_v1_202608/pkg/database"
)

func main() {
	// 1. 读取配置并解析策略
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}
	pol := cfg.ResolvePolicy()
	log.Printf("策略已解析: %+v", *pol)

	middleware.SetJWTConfig(&middleware.JWTConfig{
		SecretKey:       cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		Issuer:          "shopsec",
	})
	gin.SetMode(cfg.GinMode)

	// 2. 初始化数据库
	db := initDatabase(cfg)

	// 3. 初始化依赖
	deps := initDependencies(db, cfg, pol)
	defer deps.AuditSink.Close()

	// 4. 启动定时任务
	if cfg.TasksEnabled {
		deps.Tasks.Start()
		defer deps.Tasks.Stop()
	}

	// 5. 初始化路由并启动服务
	r := gin.Default()
	router.InitRoutes(r, deps.Services.Identity, pol,
		deps.Controllers.Auth,
		deps.Controllers.User,
		deps.Controllers.Item,
		deps.Controllers.Order,
		deps.Controllers.Audit,
	)
	startServer(r, cfg.ListenAddr)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	AuditSink   *service.AsyncAuditSink
	Services    *Services
	Controllers *Controllers
	Tasks       *task.TaskManager
}

// Repositories 仓库集合
type Repositories struct {
	User  repository.UserRepository
	Item  repository.ItemRepository
	Order repository.OrderRepository
	Event repository.EventRepository
}

// Services 服务集合
type Services struct {
	Identity   *service.IdentityService
	Authz      *service.AuthzService
	User       *service.UserService
	Item       *service.ItemService
	Order      *service.OrderService
	ImageFetch *service.ImageFetchService
	AuditQuery *service.AuditQueryService
}

// Controllers 控制器集合
type Controllers struct {
	Auth  *controller.AuthController
	User  *controller.UserController
	Item  *controller.ItemController
	Order *controller.OrderController
	Audit *controller.AuditController
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
func initDatabase(cfg *config.Config) *gorm.DB {
	opts := database.Options{
		MaxIdleConns: cfg.DBMaxIdleConns,
		MaxOpenConns: cfg.DBMaxOpenConns,
		LogSQL:       cfg.DBLogSQL,
	}
	return database.InitDB(cfg.DatabaseDSN, opts,
		// Account
		&model.User{},
		// Catalog
		&model.Item{},
		// Order
		&model.Order{}, &model.OrderItem{},
		// Audit
		&model.SecurityEvent{},
	)
}

// initDependencies 初始化所有依赖
func initDependencies(db *gorm.DB, cfg *config.Config, pol *policy.Config) *Dependencies {
	// -------- Repo 层 --------
	repos := &Repositories{
		User:  repository.NewUserRepository(db),
		Item:  repository.NewItemRepository(db),
		Order: repository.NewOrderRepository(db),
		Event: repository.NewEventRepository(db),
	}

	// -------- 审计落库 --------
	sink := service.NewAsyncAuditSink(repos.Event)

	// -------- 支付网关 --------
	gateway := initPaymentGateway(cfg)

	// -------- 业务服务 --------
	authz := service.NewAuthzService(sink)
	services := &Services{
		Identity:   service.NewIdentityService(repos.User, sink),
		Authz:      authz,
		User:       service.NewUserService(repos.User, authz),
		Item:       service.NewItemService(repos.Item, authz),
		Order:      service.NewOrderService(repos.Order, repos.Item, authz, sink, gateway, cfg.PaymentTimeout),
		ImageFetch: service.NewImageFetchService(repos.Item, authz, sink, cfg.ImageFetchAllowHosts),
		AuditQuery: service.NewAuditQueryService(repos.Event, authz),
	}

	// -------- Controller 层 --------
	controllers := &Controllers{
		Auth:  controller.NewAuthController(services.User, pol),
		User:  controller.NewUserController(services.User, pol),
		Item:  controller.NewItemController(services.Item, services.ImageFetch, pol),
		Order: controller.NewOrderController(services.Order, pol),
		Audit: controller.NewAuditController(services.AuditQuery, pol),
	}

	// -------- 定时任务 --------
	tasks := task.NewTaskManager(&task.TaskManagerDeps{
		OrderRepo: repos.Order,
		EventRepo: repos.Event,
	}, &task.TaskManagerConfig{
		CartEnabled:        cfg.TasksEnabled,
		CartStaleDays:      cfg.CartStaleDays,
		EventEnabled:       cfg.TasksEnabled,
		EventRetentionDays: cfg.EventRetentionDays,
	})

	return &Dependencies{
		DB:          db,
		Repos:       repos,
		AuditSink:   sink,
		Services:    services,
		Controllers: controllers,
		Tasks:       tasks,
	}
}

// initPaymentGateway 选择支付网关：配置了远端地址走 HTTP，否则用进程内桩
func initPaymentGateway(cfg *config.Config) service.PaymentGateway {
	if cfg.PaymentGatewayURL != "" {
		log.Printf("支付走远端网关: %s", cfg.PaymentGatewayURL)
		return service.NewRemoteGateway(cfg.PaymentGatewayURL, cfg.PaymentTimeout)
	}
	return service.NewStubGateway(cfg.PaymentSuccessRate)
}

// ==================== 服务启动 ====================

// startServer 启动服务
func startServer(r *gin.Engine, addr string) {
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Printf("服务启动在 %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 优雅关闭，最多等待 30 秒
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务强制关闭: %v", err)
	}

	log.Println("服务已退出")
}
