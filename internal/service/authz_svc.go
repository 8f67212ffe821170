package service

import (
	"fmt"
	"sort"

	"shopsec_dev_v1_202608/internal/model"
	"shopsec_dev_v1_202608/internal/policy"
)

// ==================== 判定结果 ====================

// Decision 网关判定结果，一等公民而不是异常
// 调用方必须先分支再继续，Deny 即停止处理
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow 放行
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny 拒绝
func Deny(format string, args ...interface{}) Decision {
	return Decision{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// ==================== 属性级网关输入 ====================

// FieldAccess 资源的字段访问规则
type FieldAccess struct {
	// Restricted 受限属性：严格策略下仅特权属主/Admin 可触碰
	Restricted map[string]bool
	// AdminOnly 仅 Admin 可写的字段（如 role），严格策略下对属主也不放行
	AdminOnly map[string]bool
}

// PageRequest 资源限制网关输入
type PageRequest struct {
	Page     int
	PageSize int
	Keyword  string
}

// 严格策略下的分页上限
const (
	maxPageSize     = 100
	defaultPageSize = 20
)

// ==================== AuthzService 授权网关 ====================

// AuthzService 四个相互独立的授权检查
// 每个检查都是 (Principal, 资源描述, 策略) 的纯函数，
// 除了向事件汇发事件外不碰任何共享状态
type AuthzService struct {
	sink AuditSink
}

// NewAuthzService 创建授权网关
func NewAuthzService(sink AuditSink) *AuthzService {
	return &AuthzService{sink: sink}
}

// ==================== 对象级 ====================

// CheckObject 对象级授权：调用方是否拥有（或有权凌驾）这个资源实例
// 严格：属主或 Admin 才放行
// 宽松：一律放行，非属主访问时补记一条越权事件
func (s *AuthzService) CheckObject(p *model.Principal, targetID, resourceOwnerID int64, pol *policy.Config) Decision {
	if p == nil {
		return Deny("缺少请求主体")
	}

	if pol.ObjectLevelStrict {
		if p.ID == resourceOwnerID || p.Role == model.RoleAdmin {
			return Allow()
		}
		return Deny("非资源属主")
	}

	if p.ID != resourceOwnerID {
		s.sink.Emit(model.SecurityEvent{
			Category:    model.EventObjectBypass,
			PrincipalID: p.ID,
			TargetID:    targetID,
			Detail:      fmt.Sprintf("非属主访问放行, owner=%d", resourceOwnerID),
		})
	}
	return Allow()
}

// ==================== 属性级 ====================

// FilterFields 属性级授权：返回调用方可触碰的字段子集
// 严格：剔除受限属性（特权属主/Admin 除外）和仅 Admin 字段（属主也不行），
// 写入静默丢弃，读取直接剥离
// 宽松：原样返回全部字段，每个被触碰的受限字段记一条事件
func (s *AuthzService) FilterFields(p *model.Principal, targetID, resourceOwnerID int64, fields map[string]interface{}, access FieldAccess, isUpdate bool, pol *policy.Config) map[string]interface{} {
	if len(fields) == 0 {
		return fields
	}

	if pol.PropertyLevelStrict {
		filtered := make(map[string]interface{}, len(fields))
		privileged := s.isPrivilegedOwner(p, resourceOwnerID)
		for name, value := range fields {
			if access.AdminOnly[name] && !p.IsAdmin() {
				continue
			}
			if access.Restricted[name] && !privileged {
				continue
			}
			filtered[name] = value
		}
		return filtered
	}

	// 宽松：全量放行，受限字段逐个记事件（排序保证事件顺序稳定）
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	action := "读取"
	if isUpdate {
		action = "写入"
	}
	for _, name := range names {
		if access.Restricted[name] || access.AdminOnly[name] {
			s.sink.Emit(model.SecurityEvent{
				Category:    model.EventPropertyBypass,
				PrincipalID: principalID(p),
				TargetID:    targetID,
				Detail:      fmt.Sprintf("%s受限字段 %s 放行", action, name),
			})
		}
	}
	return fields
}

// isPrivilegedOwner 受限属性的特权属主：Staff/Admin 且拥有该资源，或任意 Admin
func (s *AuthzService) isPrivilegedOwner(p *model.Principal, ownerID int64) bool {
	if p == nil {
		return false
	}
	if p.Role == model.RoleAdmin {
		return true
	}
	return p.ID == ownerID && p.Role == model.RoleStaff
}

// ==================== 函数级 ====================

// CheckFunction 函数级授权：角色是否允许调用这个操作
// 严格：本人角色等于要求角色或为 Admin，客户端断言一律无视
// 宽松：客户端断言的角色存在时，仅在本次判定内顶替真实角色
// （演示信任客户端可控的授权信号），并记一条替换事件
func (s *AuthzService) CheckFunction(p *model.Principal, requiredRole model.Role, clientAssertedRole string, pol *policy.Config) Decision {
	if p == nil {
		return Deny("缺少请求主体")
	}

	effective := p.Role
	if !pol.FunctionLevelStrict && clientAssertedRole != "" {
		effective = model.Role(clientAssertedRole)
		s.sink.Emit(model.SecurityEvent{
			Category:    model.EventRoleSubstitution,
			PrincipalID: p.ID,
			Detail:      fmt.Sprintf("客户端断言角色 %s 顶替真实角色 %s", clientAssertedRole, p.Role),
		})
	}

	if effective == requiredRole || effective == model.RoleAdmin {
		return Allow()
	}
	return Deny("角色 %s 无权调用该操作", effective)
}

// ==================== 资源限制 ====================

// LimitQuery 资源限制网关
// 严格：分页钳制到 1..100，搜索只允许前缀匹配（索引可用）
// 宽松：任意 page_size >= 1 照单全收，两侧通配搜索；
// 超过钳制阈值时记一条"本应被钳制"的事件
// 返回值第二项为 true 时关键字只做前缀匹配
func (s *AuthzService) LimitQuery(p *model.Principal, req PageRequest, pol *policy.Config) (PageRequest, bool) {
	if req.Page < 1 {
		req.Page = 1
	}

	if pol.ResourceLimitsStrict {
		if req.PageSize < 1 {
			req.PageSize = defaultPageSize
		}
		if req.PageSize > maxPageSize {
			req.PageSize = maxPageSize
		}
		return req, true
	}

	if req.PageSize < 1 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		s.sink.Emit(model.SecurityEvent{
			Category:    model.EventResourceLimitBypass,
			PrincipalID: principalID(p),
			Detail:      fmt.Sprintf("page_size=%d 超过钳制阈值 %d 仍放行", req.PageSize, maxPageSize),
		})
	}
	return req, false
}

// ==================== 辅助 ====================

func principalID(p *model.Principal) int64 {
	if p == nil {
		return 0
	}
	return p.ID
}
