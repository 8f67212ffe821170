package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"shopsec_dev_v1_202608/internal/model"
	"shopsec_dev_v1_202608/internal/policy"
	"shopsec_dev_v1_202608/internal/repository"
)

// ==================== AuditSink 安全事件汇 ====================

// AuditSink 网关和状态机的事件出口
// Emit 必须是 fire-and-forget：不阻塞、不失败主操作；
// 汇不可用时事件直接丢弃
type AuditSink interface {
	Emit(event model.SecurityEvent)
}

// ==================== AsyncAuditSink 异步落库实现 ====================

// AsyncAuditSink 缓冲通道 + 单写协程，把事件写进 security_events 表
type AsyncAuditSink struct {
	eventRepo repository.EventRepository
	ch        chan model.SecurityEvent
	done      chan struct{}
}

// NewAsyncAuditSink 创建并启动异步事件汇
func NewAsyncAuditSink(eventRepo repository.EventRepository) *AsyncAuditSink {
	s := &AsyncAuditSink{
		eventRepo: eventRepo,
		ch:        make(chan model.SecurityEvent, 1024),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

// Emit 投递事件；缓冲满时丢弃而不是阻塞调用方
func (s *AsyncAuditSink) Emit(event model.SecurityEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	select {
	case s.ch <- event:
	default:
		log.Printf("[audit] 事件缓冲已满，丢弃: category=%s principal=%d", event.Category, event.PrincipalID)
	}
}

// Close 停止写协程并排空缓冲
func (s *AsyncAuditSink) Close() {
	close(s.ch)
	<-s.done
}

func (s *AsyncAuditSink) run() {
	defer close(s.done)
	for event := range s.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := s.eventRepo.Create(ctx, &event); err != nil {
			// 落库失败只记日志，绝不反馈给主流程
			log.Printf("[audit] 事件落库失败: %v", err)
		}
		cancel()
	}
}

// ==================== NopAuditSink 空实现 ====================

// NopAuditSink 丢弃一切事件（汇不可用时的兜底，也方便测试）
type NopAuditSink struct{}

func (NopAuditSink) Emit(model.SecurityEvent) {}

// ==================== AuditQueryService 事件查询（运维） ====================

// AuditQueryService 管理员查看安全事件
// 核心逻辑只写不读，这里是给运维面板用的出口
type AuditQueryService struct {
	eventRepo repository.EventRepository
	authz     *AuthzService
}

// NewAuditQueryService 创建事件查询服务
func NewAuditQueryService(eventRepo repository.EventRepository, authz *AuthzService) *AuditQueryService {
	return &AuditQueryService{eventRepo: eventRepo, authz: authz}
}

// ListEvents 按类别分页查事件，函数级网关要求 Admin
func (s *AuditQueryService) ListEvents(ctx context.Context, p *model.Principal, category string, page, pageSize int, pol *policy.Config) ([]model.SecurityEvent, int64, error) {
	if d := s.authz.CheckFunction(p, model.RoleAdmin, "", pol); !d.Allowed {
		return nil, 0, fmt.Errorf("%w: %s", ErrAccessDenied, d.Reason)
	}
	limited, _ := s.authz.LimitQuery(p, PageRequest{Page: page, PageSize: pageSize}, pol)
	return s.eventRepo.List(ctx, category, limited.Page, limited.PageSize)
}
