package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"shopsec_dev_v1_202608/internal/model"
	"shopsec_dev_v1_202608/internal/policy"
)

// ==================== 身份解析输入 ====================

// TokenSources 一次请求里可能携带 token 的位置
// 严格认证策略只看 HeaderBearer；宽松策略允许 QueryParam 兜底
type TokenSources struct {
	HeaderBearer string // Authorization: Bearer <token> 的 token 部分
	QueryParam   string // ?token=<token>
}

// Authenticator 身份解析器（由 service.IdentityService 实现）
type Authenticator interface {
	Authenticate(ctx context.Context, sources TokenSources, pol *policy.Config) (*model.Principal, error)
}

// ==================== Gin 中间件 ====================

// Context Keys
const (
	ContextKeyPrincipal = "principal"
)

// ExtractTokenSources 从请求中取出各个位置的 token
func ExtractTokenSources(c *gin.Context) TokenSources {
	src := TokenSources{
		QueryParam: c.Query("token"),
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			src.HeaderBearer = parts[1]
		}
	}
	return src
}

// Authenticated 认证中间件
// 解析失败统一 401；成功把 Principal 注入 gin context 和 request context
func Authenticated(auth Authenticator, pol *policy.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := auth.Authenticate(c.Request.Context(), ExtractTokenSources(c), pol)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "认证失败",
			})
			c.Abort()
			return
		}

		c.Set(ContextKeyPrincipal, principal)
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

// GetPrincipal 从 gin context 获取请求主体
func GetPrincipal(c *gin.Context) *model.Principal {
	if v, exists := c.Get(ContextKeyPrincipal); exists {
		if p, ok := v.(*model.Principal); ok {
			return p
		}
	}
	return nil
}

// ==================== Request Context 注入 ====================

type principalContextKey struct{}

// WithPrincipal 把请求主体注入 request context，供服务层打事件标签
func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFrom 从 request context 取请求主体
func PrincipalFrom(ctx context.Context) *model.Principal {
	if p, ok := ctx.Value(principalContextKey{}).(*model.Principal); ok {
		return p
	}
	return nil
}
