package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"shopsec_dev_v1_202608/internal/api/dto"
	"shopsec_dev_v1_202608/internal/middleware"
	"shopsec_dev_v1_202608/internal/policy"
	"shopsec_dev_v1_202608/internal/service"
)

// ==================== UserController 用户控制器 ====================

// UserController 资料维护与用户管理
type UserController struct {
	userService *service.UserService
	pol         *policy.Config
}

// NewUserController 创建用户控制器
func NewUserController(userService *service.UserService, pol *policy.Config) *UserController {
	return &UserController{userService: userService, pol: pol}
}

// GetMe 获取当前用户信息
// @Summary 获取当前用户信息
// @Tags User
// @Produce json
// @Success 200 {object} dto.UserInfo
// @Router /users/me [get]
func (c *UserController) GetMe(ctx *gin.Context) {
	p := middleware.GetPrincipal(ctx)
	resp, err := c.userService.GetProfile(ctx.Request.Context(), p, p.ID, c.pol)
	if err != nil {
		respondError(ctx, err, c.pol)
		return
	}
	respondOK(ctx, "", resp)
}

// GetProfile 获取指定用户信息（对象级网关演示入口）
// @Summary 获取指定用户信息
// @Tags User
// @Produce json
// @Param id path int true "用户 ID"
// @Success 200 {object} dto.UserInfo
// @Failure 403 {object} map[string]interface{}
// @Router /users/{id} [get]
func (c *UserController) GetProfile(ctx *gin.Context) {
	userID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(ctx, err)
		return
	}

	p := middleware.GetPrincipal(ctx)
	resp, err := c.userService.GetProfile(ctx.Request.Context(), p, userID, c.pol)
	if err != nil {
		respondError(ctx, err, c.pol)
		return
	}
	respondOK(ctx, "", resp)
}

// UpdateProfile 更新指定用户资料（属性级网关演示入口：role 字段）
// @Summary 更新用户资料
// @Tags User
// @Accept json
// @Produce json
// @Param id path int true "用户 ID"
// @Param request body dto.UpdateProfileRequest true "资料"
// @Success 200 {object} dto.UserInfo
// @Failure 403 {object} map[string]interface{}
// @Router /users/{id} [put]
func (c *UserController) UpdateProfile(ctx *gin.Context) {
	userID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(ctx, err)
		return
	}

	var req dto.UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBadRequest(ctx, err)
		return
	}

	p := middleware.GetPrincipal(ctx)
	resp, err := c.userService.UpdateProfile(ctx.Request.Context(), p, userID, &req, c.pol)
	if err != nil {
		respondError(ctx, err, c.pol)
		return
	}
	respondOK(ctx, "更新成功", resp)
}

// ListUsers 用户列表（函数级网关要求 Admin）
// @Summary 用户列表
// @Tags User
// @Produce json
// @Param keyword query string false "关键字"
// @Param role query string false "角色"
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} dto.UserListResponse
// @Failure 403 {object} map[string]interface{}
// @Router /users [get]
func (c *UserController) ListUsers(ctx *gin.Context) {
	var req dto.UserListRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		respondBadRequest(ctx, err)
		return
	}

	p := middleware.GetPrincipal(ctx)
	// X-Asserted-Role: 函数级授权的客户端断言（宽松策略下生效）
	resp, err := c.userService.ListUsers(ctx.Request.Context(), p, &req, ctx.GetHeader("X-Asserted-Role"), c.pol)
	if err != nil {
		respondError(ctx, err, c.pol)
		return
	}
	respondOK(ctx, "", resp)
}
