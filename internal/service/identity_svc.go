package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"shopsec_dev_v1_202608/internal/middleware"
	"shopsec_dev_v1_202608/internal/model"
	"shopsec_dev_v1_202608/internal/policy"
	"shopsec_dev_v1_202608/internal/repository"
)

// ==================== IdentityService 身份解析 ====================

// IdentityService 从请求携带的 token 解析出 Principal
// 两种姿态：
//   - 严格认证：只认 Authorization Bearer 头，HS256 验签，过期即拒
//   - 宽松认证：query 参数可兜底传 token，验签失败回退 none 算法，
//     过期只记事件仍然放行（演示用，不是 bug）
//
// 无论哪种姿态，Principal.Role 都以库里的 User 为准，token 里的角色
// 声明只是快照，不可伪造提权（函数级网关的客户端断言是另一回事）
type IdentityService struct {
	userRepo repository.UserRepository
	sink     AuditSink
}

// NewIdentityService 创建身份解析服务
func NewIdentityService(userRepo repository.UserRepository, sink AuditSink) *IdentityService {
	return &IdentityService{userRepo: userRepo, sink: sink}
}

// Authenticate 解析并验证调用方身份
func (s *IdentityService) Authenticate(ctx context.Context, sources middleware.TokenSources, pol *policy.Config) (*model.Principal, error) {
	if pol.AuthnStrict {
		return s.authenticateStrict(ctx, sources)
	}
	return s.authenticatePermissive(ctx, sources)
}

// authenticateStrict 严格路径
func (s *IdentityService) authenticateStrict(ctx context.Context, sources middleware.TokenSources) (*model.Principal, error) {
	if sources.HeaderBearer == "" {
		return nil, ErrAuthInvalid
	}

	claims, err := middleware.ParseToken(sources.HeaderBearer)
	if err != nil {
		return nil, ErrAuthInvalid
	}
	if claims.Subject != "access" {
		return nil, ErrAuthInvalid
	}

	return s.loadPrincipal(ctx, claims.UserID)
}

// authenticatePermissive 宽松路径
func (s *IdentityService) authenticatePermissive(ctx context.Context, sources middleware.TokenSources) (*model.Principal, error) {
	tokenString := sources.HeaderBearer
	if tokenString == "" && sources.QueryParam != "" {
		tokenString = sources.QueryParam
		s.sink.Emit(model.SecurityEvent{
			Category: model.EventAuthFallback,
			Detail:   "token 经 query 参数传入",
		})
	}
	if tokenString == "" {
		return nil, ErrAuthInvalid
	}

	// 先按主算法验签，失败再放宽到 none 算法重试
	claims, err := middleware.ParseToken(tokenString)
	if err != nil {
		claims, err = middleware.ParseTokenInsecure(tokenString)
		if err != nil {
			return nil, ErrAuthInvalid
		}
		if middleware.UsedNoneAlgorithm(tokenString) {
			s.sink.Emit(model.SecurityEvent{
				Category:    model.EventAuthFallback,
				PrincipalID: claims.UserID,
				Detail:      "回退 none 算法验签通过",
			})
		}
	}
	if claims.Subject != "access" {
		return nil, ErrAuthInvalid
	}

	// 过期只记不拒
	if claims.IsExpired() {
		log.Printf("[identity] 接受已过期 token: user=%d exp=%v", claims.UserID, claims.ExpiresAt)
		s.sink.Emit(model.SecurityEvent{
			Category:    model.EventAuthFallback,
			PrincipalID: claims.UserID,
			Detail:      fmt.Sprintf("接受已过期 token, exp=%v", claims.ExpiresAt),
		})
	}

	return s.loadPrincipal(ctx, claims.UserID)
}

// loadPrincipal 角色以持久化用户为准
func (s *IdentityService) loadPrincipal(ctx context.Context, userID int64) (*model.Principal, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("加载用户失败: %w", err)
	}
	if user == nil {
		return nil, ErrAuthInvalid
	}
	return &model.Principal{ID: user.ID, Role: user.Role}, nil
}

// ==================== 错误定义 ====================

var (
	ErrAuthInvalid = errors.New("认证凭据缺失、无效或已过期")
)
