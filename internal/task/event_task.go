package task

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"shopsec_dev_v1_202608/internal/repository"
)

// ==================== EventRetentionTask 安全事件保留任务 ====================

// EventRetentionTask 按保留期滚动删除安全事件，避免事件表无限增长
type EventRetentionTask struct {
	EventRepo repository.EventRepository
	Cron      *cron.Cron

	retentionDays int
}

func NewEventRetentionTask(eventRepo repository.EventRepository, retentionDays int) *EventRetentionTask {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &EventRetentionTask{
		EventRepo:     eventRepo,
		Cron:          cron.New(cron.WithSeconds()),
		retentionDays: retentionDays,
	}
}

// Start 启动定时任务
func (t *EventRetentionTask) Start() {
	// 每天凌晨 4 点执行，错开购物车清理
	_, err := t.Cron.AddFunc("0 0 4 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		t.pruneJob(ctx)
	})
	if err != nil {
		log.Fatalf("无法启动安全事件保留任务: %v", err)
	}

	t.Cron.Start()
	log.Printf("安全事件保留任务已启动 (保留 %d 天)", t.retentionDays)
}

// Stop 停止定时任务
func (t *EventRetentionTask) Stop() {
	t.Cron.Stop()
}

// PruneNow 手动触发一次滚动删除
func (t *EventRetentionTask) PruneNow(ctx context.Context) (int64, error) {
	before := time.Now().AddDate(0, 0, -t.retentionDays)
	return t.EventRepo.DeleteBefore(ctx, before)
}

func (t *EventRetentionTask) pruneJob(ctx context.Context) {
	deleted, err := t.PruneNow(ctx)
	if err != nil {
		log.Printf("[Cron] 安全事件清理失败: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("[Cron] 已清理 %d 条过期安全事件", deleted)
	}
}
