package task

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"shopsec_dev_v1_202608/internal/repository"
)

// ==================== CartCleanupTask 购物车清理任务 ====================

// CartCleanupTask 定期删除长期未动的购物车
type CartCleanupTask struct {
	OrderRepo repository.OrderRepository
	Cron      *cron.Cron

	// 超过这个天数未更新的购物车视为废弃
	staleDays int
}

func NewCartCleanupTask(orderRepo repository.OrderRepository, staleDays int) *CartCleanupTask {
	if staleDays <= 0 {
		staleDays = 30
	}
	return &CartCleanupTask{
		OrderRepo: orderRepo,
		Cron:      cron.New(cron.WithSeconds()), // 支持秒级控制
		staleDays: staleDays,
	}
}

// Start 启动定时任务
func (t *CartCleanupTask) Start() {
	// 每天凌晨 3 点执行
	_, err := t.Cron.AddFunc("0 0 3 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		t.cleanupJob(ctx)
	})
	if err != nil {
		log.Fatalf("无法启动购物车清理任务: %v", err)
	}

	t.Cron.Start()
	log.Printf("购物车清理任务已启动 (保留 %d 天)", t.staleDays)
}

// Stop 停止定时任务
func (t *CartCleanupTask) Stop() {
	t.Cron.Stop()
}

// CleanupNow 手动触发一次清理
func (t *CartCleanupTask) CleanupNow(ctx context.Context) (int64, error) {
	before := time.Now().AddDate(0, 0, -t.staleDays)
	return t.OrderRepo.DeleteStaleCarts(ctx, before)
}

func (t *CartCleanupTask) cleanupJob(ctx context.Context) {
	deleted, err := t.CleanupNow(ctx)
	if err != nil {
		log.Printf("[Cron] 购物车清理失败: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("[Cron] 已清理 %d 个废弃购物车", deleted)
	}
}
