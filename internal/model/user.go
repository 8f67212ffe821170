package model

import (
	"time"

	"gorm.io/datatypes"
)

// ==================== 角色常量 ====================

// Role 系统角色
type Role string

const (
	RoleCustomer Role = "customer" // 普通顾客
	RoleStaff    Role = "staff"    // 店铺员工
	RoleAdmin    Role = "admin"    // 管理员
)

// ValidRole 校验角色字符串是否合法
func ValidRole(r string) bool {
	switch Role(r) {
	case RoleCustomer, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// ==================== User 用户 ====================

// User 系统用户
// role 是函数级授权的唯一依据，严格策略下只有本人或 Admin 可修改用户，
// 且 role 字段只有 Admin 可写；宽松策略下任何携带 role 的请求体都能改
type User struct {
	BaseModel
	Email    string `gorm:"size:255;uniqueIndex;not null"`
	Password string `gorm:"size:255;not null"` // bcrypt 哈希
	Role     Role   `gorm:"size:20;default:'customer'"`

	// 资料字段
	Nickname string `gorm:"size:100"`
	Phone    string `gorm:"size:32"`
	Address  string `gorm:"size:500"`

	// 扩展资料（PostgreSQL JSONB）
	Profile datatypes.JSONMap `gorm:"type:jsonb"`

	LastLoginAt *time.Time
}

func (User) TableName() string {
	return "users"
}

// IsAdmin 是否管理员
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ==================== Principal 请求主体 ====================

// Principal 每次请求由 IdentityResolver 解析出的调用方身份
// 只存活一个请求周期，不落库；Role 始终来自持久化的 User
type Principal struct {
	ID   int64
	Role Role
}

// IsAdmin 是否管理员
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
