package dto

import "time"

// ==================== 用户 ====================

// UserInfo 用户信息
type UserInfo struct {
	ID          int64                  `json:"id"`
	Email       string                 `json:"email"`
	Nickname    string                 `json:"nickname"`
	Phone       string                 `json:"phone"`
	Address     string                 `json:"address"`
	Role        string                 `json:"role"`
	Profile     map[string]interface{} `json:"profile,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	LastLoginAt *time.Time             `json:"last_login_at,omitempty"`
}

// UpdateProfileRequest 更新资料
// Role 是属性级授权的演示字段：严格策略下只有 Admin 写得进去，
// 宽松策略下任何人带上它都能提权
type UpdateProfileRequest struct {
	Nickname *string `json:"nickname"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	Role     *string `json:"role"`

	// 自由结构的扩展资料，整体覆盖写入
	Profile map[string]interface{} `json:"profile"`
}

// UserListRequest 用户列表
type UserListRequest struct {
	Keyword  string `form:"keyword"`
	Role     string `form:"role"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// UserListResponse 用户列表响应
type UserListResponse struct {
	Total int64       `json:"total"`
	List  []*UserInfo `json:"list"`
}
