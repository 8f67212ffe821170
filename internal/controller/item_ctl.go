package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"shopsec_dev_v1_202608/internal/api/dto"
	"shopsec_dev_v1_202608/internal/middleware"
	"shopsec_dev_v1_202608/internal/policy"
	"shopsec_dev_v1_202608/internal/service"
)

// ==================== ItemController 商品控制器 ====================

// ItemController 商品目录
type ItemController struct {
	itemService  *service.ItemService
	imageService *service.ImageFetchService
	pol          *policy.Config
}

// NewItemController 创建商品控制器
func NewItemController(itemService *service.ItemService, imageService *service.ImageFetchService, pol *policy.Config) *ItemController {
	return &ItemController{itemService: itemService, imageService: imageService, pol: pol}
}

// Create 上架商品
// @Summary 上架商品
// @Tags Item
// @Accept json
// @Produce json
// @Param request body dto.CreateItemRequest true "商品"
// @Success 200 {object} dto.ItemInfo
// @Failure 403 {object} map[string]interface{}
// @Router /items [post]
func (c *ItemController) Create(ctx *gin.Context) {
	var req dto.CreateItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBadRequest(ctx, err)
		return
	}

	p := middleware.GetPrincipal(ctx)
	resp, err := c.itemService.CreateItem(ctx.Request.Context(), p, &req, c.pol)
	if err != nil {
		respondError(ctx, err, c.pol)
		return
	}
	respondOK(ctx, "上架成功", resp)
}

// GetDetail 商品详情
// @Summary 商品详情
// @Tags Item
// @Produce json
// @Param id path int true "商品 ID"
// @Success 200 {object} dto.ItemInfo
// @Failure 404 {object} map[string]interface{}
// @Router /items/{id} [get]
func (c *ItemController) GetDetail(ctx *gin.Context) {
	itemID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(ctx, err)
		return
	}

	p := middleware.GetPrincipal(ctx)
	resp, err := c.itemService.GetItem(ctx.Request.Context(), p, itemID, c.pol)
	if err != nil {
		respondError(ctx, err, c.pol)
		return
	}
	respondOK(ctx, "", resp)
}

// GetList 商品列表/搜索（资源限制网关演示入口）
// @Summary 商品列表
// @Tags Item
// @Produce json
// @Param keyword query string false "关键字"
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} dto.ListItemsResponse
// @Router /items [get]
func (c *ItemController) GetList(ctx *gin.Context) {
	var req dto.ListItemsRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		respondBadRequest(ctx, err)
		return
	}

	p := middleware.GetPrincipal(ctx)
	resp, err := c.itemService.ListItems(ctx.Request.Context(), p, &req, c.pol)
	if err != nil {
		respondError(ctx, err, c.pol)
		return
	}
	respondOK(ctx, "", resp)
}

// Update 更新商品
// @Summary 更新商品
// @Tags Item
// @Accept json
// @Produce json
// @Param id path int true "商品 ID"
// @Param request body dto.UpdateItemRequest true "商品"
// @Success 200 {object} dto.ItemInfo
// @Failure 403 {object} map[string]interface{}
// @Router /items/{id} [put]
func (c *ItemController) Update(ctx *gin.Context) {
	itemID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(ctx, err)
		return
	}

	var req dto.UpdateItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBadRequest(ctx, err)
		return
	}

	p := middleware.GetPrincipal(ctx)
	resp, err := c.itemService.UpdateItem(ctx.Request.Context(), p, itemID, &req, c.pol)
	if err != nil {
		respondError(ctx, err, c.pol)
		return
	}
	respondOK(ctx, "更新成功", resp)
}

// AttachImage 按 URL 抓取商品图（SSRF 演示入口）
// @Summary 按 URL 抓取商品图
// @Tags Item
// @Accept json
// @Produce json
// @Param id path int true "商品 ID"
// @Param request body dto.AttachImageRequest true "图片 URL"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /items/{id}/image [post]
func (c *ItemController) AttachImage(ctx *gin.Context) {
	itemID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(ctx, err)
		return
	}

	var req dto.AttachImageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBadRequest(ctx, err)
		return
	}

	p := middleware.GetPrincipal(ctx)
	if err := c.imageService.AttachImage(ctx.Request.Context(), p, itemID, req.URL, c.pol); err != nil {
		respondError(ctx, err, c.pol)
		return
	}
	respondOK(ctx, "抓取成功", nil)
}
