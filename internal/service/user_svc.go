package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"

	"shopsec_dev_v1_202608/internal/api/dto"
	"shopsec_dev_v1_202608/internal/middleware"
	"shopsec_dev_v1_202608/internal/model"
	"shopsec_dev_v1_202608/internal/policy"
	"shopsec_dev_v1_202608/internal/repository"
)

// userAdminOnlyFields 用户资源上仅 Admin 可写的字段
// role 即便对属主本人在严格策略下也不放行——这是提权演示的关键字段
var userAdminOnlyFields = map[string]bool{
	"role": true,
}

// ==================== UserService 用户服务 ====================

// UserService 注册、登录与资料维护
type UserService struct {
	userRepo repository.UserRepository
	authz    *AuthzService
}

// NewUserService 创建用户服务
func NewUserService(userRepo repository.UserRepository, authz *AuthzService) *UserService {
	return &UserService{userRepo: userRepo, authz: authz}
}

// ==================== 认证相关 ====================

// Register 注册新用户（角色固定 customer，提权只能走资料更新的演示通道）
func (s *UserService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.UserInfo, error) {
	exists, err := s.userRepo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     model.RoleCustomer,
		Nickname: req.Nickname,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.toUserInfo(user), nil
}

// Login 用户登录
func (s *UserService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	accessToken, refreshToken, err := middleware.GenerateTokenPair(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}

	_ = s.userRepo.UpdateLastLogin(ctx, user.ID)

	cfg := middleware.GetJWTConfig()
	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(cfg.AccessTokenTTL),
		User:         s.toUserInfo(user),
	}, nil
}

// RefreshToken 刷新 Token
func (s *UserService) RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.RefreshTokenResponse, error) {
	claims, err := middleware.ParseToken(req.RefreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Subject != "refresh" {
		return nil, ErrInvalidToken
	}

	// 确认用户仍然有效
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	accessToken, refreshToken, err := middleware.GenerateTokenPair(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}

	cfg := middleware.GetJWTConfig()
	return &dto.RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(cfg.AccessTokenTTL),
	}, nil
}

// ==================== 资料维护 ====================

// GetProfile 查看用户资料（对象级网关：本人或 Admin）
func (s *UserService) GetProfile(ctx context.Context, p *model.Principal, userID int64, pol *policy.Config) (*dto.UserInfo, error) {
	if d := s.authz.CheckObject(p, userID, userID, pol); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, d.Reason)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.toUserInfo(user), nil
}

// UpdateProfile 更新用户资料
// 对象级网关管"谁的资料"，属性级网关管"哪些字段"：
// role 严格策略下只有 Admin 写得进，宽松策略下带上就生效（提权演示）
func (s *UserService) UpdateProfile(ctx context.Context, p *model.Principal, userID int64, req *dto.UpdateProfileRequest, pol *policy.Config) (*dto.UserInfo, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if d := s.authz.CheckObject(p, user.ID, user.ID, pol); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, d.Reason)
	}

	fields := map[string]interface{}{}
	if req.Nickname != nil {
		fields["nickname"] = *req.Nickname
	}
	if req.Phone != nil {
		fields["phone"] = *req.Phone
	}
	if req.Address != nil {
		fields["address"] = *req.Address
	}
	if req.Profile != nil {
		fields["profile"] = datatypes.JSONMap(req.Profile)
	}
	if req.Role != nil {
		if !model.ValidRole(*req.Role) {
			return nil, fmt.Errorf("%w: 非法角色 %s", ErrValidation, *req.Role)
		}
		fields["role"] = *req.Role
	}

	filtered := s.authz.FilterFields(p, user.ID, user.ID, fields,
		FieldAccess{AdminOnly: userAdminOnlyFields}, true, pol)

	if err := s.userRepo.UpdateFields(ctx, user.ID, filtered); err != nil {
		return nil, err
	}

	updated, err := s.userRepo.GetByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.toUserInfo(updated), nil
}

// ==================== 用户管理（管理员） ====================

// ListUsers 用户列表，函数级网关要求 Admin
func (s *UserService) ListUsers(ctx context.Context, p *model.Principal, req *dto.UserListRequest, assertedRole string, pol *policy.Config) (*dto.UserListResponse, error) {
	if d := s.authz.CheckFunction(p, model.RoleAdmin, assertedRole, pol); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, d.Reason)
	}

	limited, _ := s.authz.LimitQuery(p, PageRequest{Page: req.Page, PageSize: req.PageSize}, pol)

	users, total, err := s.userRepo.List(ctx, repository.UserFilter{
		Keyword:  req.Keyword,
		Role:     req.Role,
		Page:     limited.Page,
		PageSize: limited.PageSize,
	})
	if err != nil {
		return nil, err
	}

	list := make([]*dto.UserInfo, len(users))
	for i, u := range users {
		list[i] = s.toUserInfo(&u)
	}
	return &dto.UserListResponse{Total: total, List: list}, nil
}

// ==================== 辅助方法 ====================

// toUserInfo 转换为 DTO
func (s *UserService) toUserInfo(user *model.User) *dto.UserInfo {
	return &dto.UserInfo{
		ID:          user.ID,
		Email:       user.Email,
		Nickname:    user.Nickname,
		Phone:       user.Phone,
		Address:     user.Address,
		Role:        string(user.Role),
		Profile:     user.Profile,
		CreatedAt:   user.CreatedAt,
		LastLoginAt: user.LastLoginAt,
	}
}

// ==================== 错误定义 ====================

var (
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrInvalidToken       = errors.New("Token 无效")
	ErrUserNotFound       = errors.New("用户不存在")
	ErrEmailExists        = errors.New("邮箱已注册")
)
