package model

import "time"

// ==================== 安全事件类别 ====================

const (
	EventAuthFallback          = "auth_fallback"           // 认证降级（none 算法 / 过期放行 / query 传 token）
	EventObjectBypass          = "object_bypass"           // 对象级越权放行
	EventPropertyBypass        = "property_bypass"         // 受限属性触碰放行
	EventRoleSubstitution      = "role_substitution"       // 客户端断言角色替换
	EventResourceLimitBypass   = "resource_limit_bypass"   // 资源限制放行
	EventBusinessFlowViolation = "business_flow_violation" // 业务流越序
	EventUnsafeConsumption     = "unsafe_consumption"      // 信任客户端断言的支付结果
	EventSSRFBypass            = "ssrf_bypass"             // 外部 URL 抓取放行
)

// ==================== SecurityEvent 安全事件 ====================

// SecurityEvent 网关和状态机发出的结构化安全事件
// 只写不读：核心逻辑从不依赖已落库的事件
type SecurityEvent struct {
	ID          string `gorm:"size:36;primaryKey"` // UUID
	Category    string `gorm:"size:40;index;not null"`
	PrincipalID int64  `gorm:"index"`
	TargetID    int64  `gorm:"index"`
	Detail      string `gorm:"size:1000"`

	CreatedAt time.Time `gorm:"index"`
}

func (SecurityEvent) TableName() string {
	return "security_events"
}
