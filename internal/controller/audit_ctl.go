package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"shopsec_dev_v1_202608/internal/middleware"
	"shopsec_dev_v1_202608/internal/policy"
	"shopsec_dev_v1_202608/internal/service"
)

// ==================== AuditController 安全事件控制器 ====================

// AuditController 运维面板的事件查询入口
type AuditController struct {
	auditQuery *service.AuditQueryService
	pol        *policy.Config
}

// NewAuditController 创建安全事件控制器
func NewAuditController(auditQuery *service.AuditQueryService, pol *policy.Config) *AuditController {
	return &AuditController{auditQuery: auditQuery, pol: pol}
}

// GetList 安全事件列表（仅 Admin）
// @Summary 安全事件列表
// @Tags Audit
// @Produce json
// @Param category query string false "事件类别"
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /admin/events [get]
func (c *AuditController) GetList(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "50"))

	p := middleware.GetPrincipal(ctx)
	events, total, err := c.auditQuery.ListEvents(ctx.Request.Context(), p, ctx.Query("category"), page, pageSize, c.pol)
	if err != nil {
		respondError(ctx, err, c.pol)
		return
	}
	respondOK(ctx, "", gin.H{
		"total": total,
		"list":  events,
	})
}
