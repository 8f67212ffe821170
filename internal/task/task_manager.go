package task

import (
	"context"
	"log"

	"shopsec_dev_v1_202608/internal/repository"
)

// ==================== TaskManager 后台任务管理器 ====================

// TaskManager 统一管理后台清理任务
// 管理范围：购物车清理、安全事件保留
type TaskManager struct {
	cartTask  *CartCleanupTask
	eventTask *EventRetentionTask
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	OrderRepo repository.OrderRepository
	EventRepo repository.EventRepository
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	CartEnabled   bool
	CartStaleDays int

	EventEnabled       bool
	EventRetentionDays int
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		CartEnabled:   true,
		CartStaleDays: 30,

		EventEnabled:       true,
		EventRetentionDays: 90,
	}
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tm := &TaskManager{}

	if cfg.CartEnabled && deps.OrderRepo != nil {
		tm.cartTask = NewCartCleanupTask(deps.OrderRepo, cfg.CartStaleDays)
	}

	if cfg.EventEnabled && deps.EventRepo != nil {
		tm.eventTask = NewEventRetentionTask(deps.EventRepo, cfg.EventRetentionDays)
	}

	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start() {
	log.Println("[TaskManager] 正在启动后台清理任务...")

	if tm.cartTask != nil {
		tm.cartTask.Start()
	}
	if tm.eventTask != nil {
		tm.eventTask.Start()
	}

	log.Println("[TaskManager] 后台清理任务已全部启动")
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	log.Println("[TaskManager] 正在停止后台清理任务...")

	if tm.cartTask != nil {
		tm.cartTask.Stop()
	}
	if tm.eventTask != nil {
		tm.eventTask.Stop()
	}

	log.Println("[TaskManager] 后台清理任务已全部停止")
}

// ==================== 手动触发接口 ====================

// TriggerCartCleanup 触发购物车清理
func (tm *TaskManager) TriggerCartCleanup(ctx context.Context) (int64, error) {
	if tm.cartTask == nil {
		return 0, ErrTaskDisabled
	}
	return tm.cartTask.CleanupNow(ctx)
}

// TriggerEventPrune 触发安全事件清理
func (tm *TaskManager) TriggerEventPrune(ctx context.Context) (int64, error) {
	if tm.eventTask == nil {
		return 0, ErrTaskDisabled
	}
	return tm.eventTask.PruneNow(ctx)
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"cart_cleanup":    tm.cartTask != nil,
		"event_retention": tm.eventTask != nil,
	}
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
